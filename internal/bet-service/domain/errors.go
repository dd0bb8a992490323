package domain

import (
	"errors"
	"fmt"
)

// Categorias de erro expostas pelo engine. Use errors.Is para classificar.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotPermitted = errors.New("not permitted")
	ErrConflict     = errors.New("status conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("store unavailable")
)

// ValidationError descreve o campo inválido de uma requisição
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: field '%s' %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Conflictf cria um erro de pré-condição (status diferente do esperado)
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotPermittedf cria um erro de autorização
func NotPermittedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotPermitted, fmt.Sprintf(format, args...))
}

// Kind retorna o nome da categoria do erro (usado em métricas e logs)
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotPermitted):
		return "not_permitted"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "unavailable"
	}
}
