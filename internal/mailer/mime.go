package mailer

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
	"strings"
	"time"
)

var ErrInvalidEmail = errors.New("mailer: invalid email")

func (e Email) validate() error {
	switch {
	case len(e.To) == 0:
		return fmt.Errorf("%w: at least one recipient required", ErrInvalidEmail)
	case e.From == "":
		return fmt.Errorf("%w: from address required", ErrInvalidEmail)
	case e.Subject == "":
		return fmt.Errorf("%w: subject required", ErrInvalidEmail)
	case e.TextBody == "" && e.HTMLBody == "":
		return fmt.Errorf("%w: text or html body required", ErrInvalidEmail)
	}
	return nil
}

// headerValue drops line breaks so customer-supplied values cannot add headers.
func headerValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

func formatAddress(name, addr string) string {
	addr = headerValue(addr)
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", headerValue(name)), addr)
}

func newMessageID(domain string) string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return fmt.Sprintf("<%s@%s>", hex.EncodeToString(b), domain)
}

func writeHeader(b *bytes.Buffer, k, v string) {
	fmt.Fprintf(b, "%s: %s\r\n", k, v)
}

// buildMIMEMessage renders e as an RFC 5322 message. Bodies are quoted-printable UTF-8;
// when both bodies are set they go out as multipart/alternative.
func buildMIMEMessage(e Email, messageIDDomain string) (string, error) {
	if err := e.validate(); err != nil {
		return "", err
	}

	var b bytes.Buffer
	writeHeader(&b, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(&b, "Message-ID", newMessageID(messageIDDomain))
	writeHeader(&b, "From", formatAddress(e.FromName, e.From))
	writeHeader(&b, "To", headerValue(strings.Join(e.To, ", ")))
	if len(e.Cc) > 0 {
		writeHeader(&b, "Cc", headerValue(strings.Join(e.Cc, ", ")))
	}
	if e.ReplyTo != "" {
		writeHeader(&b, "Reply-To", headerValue(e.ReplyTo))
	}
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", headerValue(e.Subject)))
	writeHeader(&b, "MIME-Version", "1.0")

	keys := make([]string, 0, len(e.Headers))
	for k, v := range e.Headers {
		if k != "" && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&b, textproto.CanonicalMIMEHeaderKey(headerValue(k)), headerValue(e.Headers[k]))
	}

	if e.TextBody == "" || e.HTMLBody == "" {
		ct, body := "text/plain", e.TextBody
		if e.HTMLBody != "" {
			ct, body = "text/html", e.HTMLBody
		}
		writeHeader(&b, "Content-Type", ct+"; charset=UTF-8")
		writeHeader(&b, "Content-Transfer-Encoding", "quoted-printable")
		b.WriteString("\r\n")
		if err := writeQP(&b, body); err != nil {
			return "", err
		}
		return b.String(), nil
	}

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	for _, p := range []struct{ ct, body string }{
		{"text/plain", e.TextBody},
		{"text/html", e.HTMLBody},
	} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", p.ct+"; charset=UTF-8")
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return "", err
		}
		if err := qp.Close(); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	writeHeader(&b, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()))
	b.WriteString("\r\n")
	b.Write(parts.Bytes())
	return b.String(), nil
}

func writeQP(b *bytes.Buffer, body string) error {
	qp := quotedprintable.NewWriter(b)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	if err := qp.Close(); err != nil {
		return err
	}
	b.WriteString("\r\n")
	return nil
}
