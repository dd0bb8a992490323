package identity

import (
	"context"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

// Provider expõe a identidade autenticada de quem chama o engine
type Provider interface {
	CurrentActorID(ctx context.Context) (string, error)
}

type ctxKey struct{}

// WithActor anexa o id do usuário autenticado ao contexto
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, actorID)
}

// ContextProvider lê o ator gravado no contexto por WithActor (middleware HTTP)
type ContextProvider struct{}

func (ContextProvider) CurrentActorID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok || id == "" {
		return "", domain.NotPermittedf("unauthenticated")
	}
	return id, nil
}

// Static devolve sempre o mesmo ator (testes e ferramentas)
type Static string

func (s Static) CurrentActorID(context.Context) (string, error) {
	if s == "" {
		return "", domain.NotPermittedf("unauthenticated")
	}
	return string(s), nil
}
