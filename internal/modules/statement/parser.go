package statement

import (
	"bytes"
	"encoding/csv"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	ofxOpen  = regexp.MustCompile(`(?i)<STMTTRN>`)
	ofxClose = regexp.MustCompile(`(?i)</STMTTRN>|</BANKTRANLIST>`)
	ofxTags  = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range []string{"DTPOSTED", "TRNAMT", "MEMO", "NAME", "FITID", "CHECKNUM"} {
		ofxTags[tag] = regexp.MustCompile(`(?i)<` + tag + `>\s*([^<\r\n]+)`)
	}
}

// Parse dispatches on the file extension. Unreadable rows are skipped; an empty result
// means the file could not be understood.
func Parse(content []byte, filename string) []Transaction {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ofx":
		return ParseOFX(decodeText(content))
	case ".csv", ".txt":
		return ParseDelimited(decodeText(content))
	case ".tsv":
		return parseDelimitedWith(decodeText(content), '\t')
	case ".xlsx":
		if rows, err := xlsxRows(content); err == nil {
			return parseRows(rows)
		}
		return parseDelimitedWith(decodeText(content), '\t')
	case ".xls":
		if rows, err := xlsRows(content); err == nil {
			return parseRows(rows)
		}
		return parseDelimitedWith(decodeText(content), '\t')
	default:
		text := decodeText(content)
		if txs := ParseDelimited(text); len(txs) > 0 {
			return txs
		}
		return ParseOFX(text)
	}
}

// ParseFile is Parse with the empty result reported as ErrNoTransactions.
func ParseFile(content []byte, filename string) ([]Transaction, error) {
	txs := Parse(content, filename)
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}
	return txs, nil
}

// decodeText returns UTF-8 text; anything that is not valid UTF-8 is read as Windows-1252,
// the usual encoding of Brazilian bank exports.
func decodeText(b []byte) string {
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// ParseOFX reads <STMTTRN> blocks, with or without SGML closing tags.
func ParseOFX(text string) []Transaction {
	chunks := ofxOpen.Split(text, -1)
	if len(chunks) < 2 {
		return nil
	}
	var out []Transaction
	for _, block := range chunks[1:] {
		if loc := ofxClose.FindStringIndex(block); loc != nil {
			block = block[:loc[0]]
		}

		posted := ofxTag(block, "DTPOSTED")
		if len(posted) < 8 {
			continue
		}
		date, ok := validDate(posted[0:4], posted[4:6], posted[6:8])
		if !ok {
			continue
		}
		amt, ok := parseAmount(ofxTag(block, "TRNAMT"))
		if !ok || amt.value.IsZero() {
			continue
		}

		desc := ofxTag(block, "MEMO")
		if desc == "" {
			desc = ofxTag(block, "NAME")
		}
		if desc == "" {
			desc = DefaultDescription
		}
		ref := ofxTag(block, "FITID")
		if ref == "" {
			ref = ofxTag(block, "CHECKNUM")
		}

		tx := Transaction{
			Date:        date,
			Amount:      amt.value,
			Description: desc,
			Type:        Credit,
			Reference:   ref,
		}
		if amt.negative {
			tx.Type = Debit
		}
		out = append(out, tx)
	}
	return out
}

func ofxTag(block, tag string) string {
	m := ofxTags[tag].FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// ParseDelimited reads a text table, picking ';', tab or ',' from the header line.
func ParseDelimited(text string) []Transaction {
	return parseDelimitedWith(text, detectDelimiter(text))
}

func detectDelimiter(text string) rune {
	header := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		header = text[:i]
	}
	switch {
	case strings.Contains(header, ";"):
		return ';'
	case strings.Contains(header, "\t"):
		return '\t'
	default:
		return ','
	}
}

func parseDelimitedWith(text string, delim rune) []Transaction {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, rec)
	}
	return parseRows(rows)
}

// parseRows applies the column heuristics to every row. Header rows never carry both a
// date and an amount, so they fall out with the other unreadable rows.
func parseRows(rows [][]string) []Transaction {
	var out []Transaction
	for _, row := range rows {
		if tx, ok := parseRow(row); ok {
			out = append(out, tx)
		}
	}
	return out
}

func parseRow(row []string) (Transaction, bool) {
	dateIdx, amountIdx := -1, -1
	var (
		date string
		amt  amount
		// bare integers only count when no field has a decimal part
		intIdx = -1
		intAmt amount
	)
	for i, raw := range row {
		field := strings.TrimSpace(raw)
		if field == "" {
			continue
		}
		if dateIdx < 0 {
			if d, ok := parseDate(field); ok {
				dateIdx, date = i, d
				continue
			}
		}
		if amountIdx < 0 {
			if a, ok := parseAmount(field); ok && !a.value.IsZero() {
				if a.hasDecimal {
					amountIdx, amt = i, a
				} else if intIdx < 0 {
					intIdx, intAmt = i, a
				}
			}
		}
	}
	if amountIdx < 0 && intIdx >= 0 {
		amountIdx, amt = intIdx, intAmt
	}
	if dateIdx < 0 || amountIdx < 0 {
		return Transaction{}, false
	}

	typ := Credit
	if amt.negative {
		typ = Debit
	}
	desc := ""
	for i, raw := range row {
		if i == dateIdx || i == amountIdx {
			continue
		}
		field := strings.TrimSpace(raw)
		switch strings.ToUpper(field) {
		case "D":
			typ = Debit
			continue
		case "C":
			typ = Credit
			continue
		}
		if desc == "" && utf8.RuneCountInString(field) > 3 {
			if _, isAmount := parseAmount(field); !isAmount {
				desc = field
			}
		}
	}
	if desc == "" {
		desc = DefaultDescription
	}

	return Transaction{
		Date:        date,
		Amount:      amt.value,
		Description: desc,
		Type:        typ,
	}, true
}

func xlsxRows(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoTransactions
	}
	return f.GetRows(sheets[0])
}

func xlsRows(content []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, row := range sheet.GetRows() {
		var cols []string
		for _, cell := range row.GetCols() {
			cols = append(cols, cell.GetString())
		}
		rows = append(rows, cols)
	}
	return rows, nil
}
