// Package pix builds and parses static PIX "copia e cola" payloads (BR Code, EMV MPM).
package pix

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/textnorm"
)

const (
	idPayloadFormat   = "00"
	idMerchantAccount = "26"
	idCategoryCode    = "52"
	idCurrency        = "53"
	idAmount          = "54"
	idCountry         = "58"
	idMerchantName    = "59"
	idMerchantCity    = "60"
	idAdditionalData  = "62"
	idCRC             = "63"

	idGUI         = "00"
	idKey         = "01"
	idDescription = "02"
	idTxID        = "05"

	gui            = "br.gov.bcb.pix"
	currencyBRL    = "986"
	maxNameLen     = 25
	maxCityLen     = 15
	maxTxIDLen     = 25
	maxFieldLen    = 99
	emptyTxID      = "***"
	crcPlaceholder = idCRC + "04"
	crcHexLen      = 4
)

const (
	KeyCPF    = "cpf"
	KeyCNPJ   = "cnpj"
	KeyPhone  = "phone"
	KeyEmail  = "email"
	KeyRandom = "random"
)

var (
	ErrMissingKey      = errors.New("pix: key is required")
	ErrMissingMerchant = errors.New("pix: merchant name and city are required")
	ErrNegativeAmount  = errors.New("pix: amount must not be negative")
	ErrMalformed       = errors.New("pix: malformed payload")
	ErrInvalidCRC      = errors.New("pix: crc mismatch")
)

var nonTxID = regexp.MustCompile(`[^A-Za-z0-9]`)

// Payload is the input of a static BR Code.
type Payload struct {
	Key          string
	KeyType      string
	MerchantName string
	MerchantCity string
	AmountCents  int64
	TxID         string
	Description  string
}

// Build returns the EMV string including the trailing CRC.
func (p Payload) Build() (string, error) {
	key := NormalizeKey(p.Key, p.KeyType)
	if key == "" {
		return "", ErrMissingKey
	}
	name := merchantText(p.MerchantName, maxNameLen)
	city := merchantText(p.MerchantCity, maxCityLen)
	if name == "" || city == "" {
		return "", ErrMissingMerchant
	}
	if p.AmountCents < 0 {
		return "", ErrNegativeAmount
	}

	account := field(idGUI, gui) + field(idKey, key)
	if desc := fitDescription(p.Description, len(account)); desc != "" {
		account += field(idDescription, desc)
	}
	if len(account) > maxFieldLen {
		return "", fmt.Errorf("pix: key too long (%d bytes)", len(key))
	}

	var b strings.Builder
	b.WriteString(field(idPayloadFormat, "01"))
	b.WriteString(field(idMerchantAccount, account))
	b.WriteString(field(idCategoryCode, "0000"))
	b.WriteString(field(idCurrency, currencyBRL))
	if p.AmountCents > 0 {
		b.WriteString(field(idAmount, FormatAmount(p.AmountCents)))
	}
	b.WriteString(field(idCountry, "BR"))
	b.WriteString(field(idMerchantName, name))
	b.WriteString(field(idMerchantCity, city))
	b.WriteString(field(idAdditionalData, field(idTxID, sanitizeTxID(p.TxID))))
	b.WriteString(crcPlaceholder)

	body := b.String()
	return body + fmt.Sprintf("%04X", CRC16([]byte(body))), nil
}

// FormatAmount renders cents the way field 54 expects them: "42.50".
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// NormalizeKey canonicalizes a PIX key according to its type.
func NormalizeKey(key, keyType string) string {
	key = strings.TrimSpace(key)
	switch strings.ToLower(keyType) {
	case KeyCPF, KeyCNPJ:
		return digits(key)
	case KeyPhone:
		d := digits(key)
		if d == "" {
			return ""
		}
		if !strings.HasPrefix(d, "55") || len(d) <= 11 {
			d = "55" + d
		}
		return "+" + d
	case KeyEmail:
		return strings.ToLower(key)
	default:
		return key
	}
}

func field(id, value string) string {
	return id + fmt.Sprintf("%02d", len(value)) + value
}

// fitDescription drops or trims the description so field 26 stays within 99 bytes.
func fitDescription(desc string, used int) string {
	desc = strings.TrimSpace(asciiOnly(desc))
	room := maxFieldLen - used - 4
	if room <= 0 || desc == "" {
		return ""
	}
	if len(desc) > room {
		desc = strings.TrimSpace(desc[:room])
	}
	return desc
}

// asciiOnly strips accents and drops whatever is still outside ASCII, so byte lengths are
// character counts.
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, textnorm.StripAccents(s))
}

func merchantText(s string, max int) string {
	s = strings.ToUpper(strings.Join(strings.Fields(asciiOnly(s)), " "))
	if len(s) > max {
		s = strings.TrimSpace(s[:max])
	}
	return s
}

func sanitizeTxID(s string) string {
	s = nonTxID.ReplaceAllString(s, "")
	if len(s) > maxTxIDLen {
		s = s[:maxTxIDLen]
	}
	if s == "" {
		return emptyTxID
	}
	return s
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Parsed is a decoded BR Code.
type Parsed struct {
	Key          string
	Description  string
	MerchantName string
	MerchantCity string
	AmountCents  int64
	TxID         string
	Currency     string
	Country      string
	CRC          string
}

// Parse decodes a BR Code and verifies its checksum.
func Parse(code string) (Parsed, error) {
	code = strings.TrimSpace(code)
	if len(code) < len(crcPlaceholder)+crcHexLen {
		return Parsed{}, ErrMalformed
	}
	body := code[:len(code)-crcHexLen]
	if !strings.HasSuffix(body, crcPlaceholder) {
		return Parsed{}, ErrMalformed
	}
	got := strings.ToUpper(code[len(code)-crcHexLen:])
	if want := fmt.Sprintf("%04X", CRC16([]byte(body))); got != want {
		return Parsed{}, ErrInvalidCRC
	}

	top, err := decodeTLV(code)
	if err != nil {
		return Parsed{}, err
	}
	out := Parsed{
		MerchantName: top[idMerchantName],
		MerchantCity: top[idMerchantCity],
		Currency:     top[idCurrency],
		Country:      top[idCountry],
		CRC:          got,
	}

	account, err := decodeTLV(top[idMerchantAccount])
	if err != nil {
		return Parsed{}, err
	}
	if account[idGUI] != gui {
		return Parsed{}, ErrMalformed
	}
	out.Key = account[idKey]
	out.Description = account[idDescription]

	if extra := top[idAdditionalData]; extra != "" {
		add, err := decodeTLV(extra)
		if err != nil {
			return Parsed{}, err
		}
		out.TxID = add[idTxID]
	}

	if amt := top[idAmount]; amt != "" {
		d, err := decimal.NewFromString(amt)
		if err != nil {
			return Parsed{}, fmt.Errorf("%w: amount %q", ErrMalformed, amt)
		}
		out.AmountCents = d.Shift(2).Round(0).IntPart()
	}
	return out, nil
}

func decodeTLV(s string) (map[string]string, error) {
	out := make(map[string]string)
	for i := 0; i < len(s); {
		if i+4 > len(s) {
			return nil, ErrMalformed
		}
		id := s[i : i+2]
		n, err := strconv.Atoi(s[i+2 : i+4])
		if err != nil || i+4+n > len(s) {
			return nil, ErrMalformed
		}
		out[id] = s[i+4 : i+4+n]
		i += 4 + n
	}
	return out, nil
}
