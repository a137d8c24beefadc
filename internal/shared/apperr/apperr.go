package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	Invalid      Kind = "invalid"
	NotFound     Kind = "not_found"
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	Conflict     Kind = "conflict"
	Gateway      Kind = "gateway"
	Internal     Kind = "internal"
)

type kindInfo struct {
	status int
	msg    string
}

var kinds = map[Kind]kindInfo{
	Invalid:      {http.StatusBadRequest, "Dados inválidos."},
	NotFound:     {http.StatusNotFound, "Registro não encontrado."},
	Unauthorized: {http.StatusUnauthorized, "Não autorizado."},
	Forbidden:    {http.StatusForbidden, "Acesso negado."},
	Conflict:     {http.StatusConflict, "A operação conflita com o estado atual."},
	Gateway:      {http.StatusBadGateway, "Falha ao comunicar com o provedor de pagamento."},
	Internal:     {http.StatusInternalServerError, genericMsg},
}

const genericMsg = "Ocorreu um erro inesperado. Tente novamente."

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.PublicMsg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithCause attaches the internal cause kept for logs.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func InvalidErr(publicMsg string, fields map[string]string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg, Fields: fields}
}

func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

func UnauthorizedErr(publicMsg string) *AppError {
	return &AppError{Kind: Unauthorized, PublicMsg: publicMsg}
}

func ForbiddenErr(publicMsg string) *AppError {
	return &AppError{Kind: Forbidden, PublicMsg: publicMsg}
}

func ConflictErr(publicMsg string) *AppError {
	return &AppError{Kind: Conflict, PublicMsg: publicMsg}
}

// GatewayErr keeps the upstream cause for logs while exposing a message to the customer.
func GatewayErr(publicMsg string, err error) *AppError {
	return &AppError{Kind: Gateway, PublicMsg: publicMsg, Err: err}
}

// Wrap turns any error into an AppError; unknown errors become Internal with the generic message.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return &AppError{Kind: Internal, PublicMsg: genericMsg, Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of kind k.
func IsKind(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		if info, ok := kinds[ae.Kind]; ok {
			return info.status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to show the customer: the error's own message, else the
// default for its kind.
func PublicMessage(err error) string {
	ae, ok := As(err)
	if !ok {
		return genericMsg
	}
	if ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	if info, ok := kinds[ae.Kind]; ok {
		return info.msg
	}
	return genericMsg
}
