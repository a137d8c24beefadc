// Package statement turns bank statement exports (OFX, CSV/TSV, XLS/XLSX) into transactions.
package statement

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	Credit Type = "credit"
	Debit  Type = "debit"
)

const dateLayout = "2006-01-02"

// DefaultDescription labels rows that carry no usable text.
const DefaultDescription = "Transação bancária"

var ErrNoTransactions = errors.New("statement: no transactions found")

// Transaction is one normalized statement line. Amount is always positive; Type carries the sign.
type Transaction struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Type        Type            `json:"type"`
	Reference   string          `json:"reference,omitempty"`
}

// MarshalJSON writes the amount as a JSON number.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		alias
		Amount json.Number `json:"amount"`
	}{alias(t), json.Number(t.Amount.StringFixed(2))})
}

func (t Transaction) Cents() int64 {
	return t.Amount.Shift(2).Round(0).IntPart()
}

func (t Transaction) Time() (time.Time, error) {
	return time.ParseInLocation(dateLayout, t.Date, time.Local)
}

// Fingerprint identifies the line across uploads of the same statement.
func (t Transaction) Fingerprint() string {
	return t.fingerprint(0)
}

func (t Transaction) fingerprint(occurrence int) string {
	parts := []string{
		t.Date,
		string(t.Type),
		strconv.FormatInt(t.Cents(), 10),
		strings.TrimSpace(t.Reference),
		strings.ToUpper(strings.Join(strings.Fields(t.Description), " ")),
	}
	key := strings.Join(parts, "|")
	if occurrence > 0 {
		key += "#" + strconv.Itoa(occurrence)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Fingerprints returns one fingerprint per line. The nth repeat of an identical line within
// txs gets its own print, so twin payments stay distinct while a re-upload maps onto the same set.
func Fingerprints(txs []Transaction) []string {
	seen := make(map[string]int, len(txs))
	out := make([]string, len(txs))
	for i, t := range txs {
		base := t.fingerprint(0)
		out[i] = t.fingerprint(seen[base])
		seen[base]++
	}
	return out
}

// Valid reports whether the line has a real date and a non-zero amount.
func (t Transaction) Valid() bool {
	if t.Amount.Sign() <= 0 || (t.Type != Credit && t.Type != Debit) {
		return false
	}
	_, err := time.Parse(dateLayout, t.Date)
	return err == nil
}
