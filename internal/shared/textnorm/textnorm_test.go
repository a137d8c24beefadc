package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "PIX RECEBIDO JOAO DA CONCEICAO", Key("  Pix recebido - João da Conceição!! "))
	assert.Equal(t, "SAO PAULO", StripAccents("SÃO PAULO"))
	assert.Equal(t, []string{"MARIA", "SILVA"}, Tokens("Maria da Silva", 4))
}
