package apperr

type Kind string

type AppError struct {
	Kind      Kind
	PublicMsg string            // mensagem que pode ser exibida ao cliente
	Fields    map[string]string // erros por campo (opcional)
	Err       error             // erro interno (somente log)
}
