// Package taxid validates Brazilian taxpayer identifiers (CPF and CNPJ).
package taxid

import "strings"

type Kind string

const (
	CPF  Kind = "cpf"
	CNPJ Kind = "cnpj"
)

// Digits strips everything but 0-9.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Classify returns the identifier kind when the check digits are valid.
func Classify(s string) (Kind, bool) {
	d := Digits(s)
	switch len(d) {
	case 11:
		return CPF, validCPF(d)
	case 14:
		return CNPJ, validCNPJ(d)
	default:
		return "", false
	}
}

func Valid(s string) bool {
	_, ok := Classify(s)
	return ok
}

func validCPF(d string) bool {
	if allSame(d) {
		return false
	}
	return checkDigit(d[:9], 10) == int(d[9]-'0') &&
		checkDigit(d[:10], 11) == int(d[10]-'0')
}

func checkDigit(prefix string, startWeight int) int {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (startWeight - i)
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

func validCNPJ(d string) bool {
	if allSame(d) {
		return false
	}
	return cnpjDigit(d[:12], cnpjWeights1) == int(d[12]-'0') &&
		cnpjDigit(d[:13], cnpjWeights2) == int(d[13]-'0')
}

func cnpjDigit(prefix string, weights []int) int {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
