package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

// ProfileInput é o perfil de pagamento do usuário
type ProfileInput struct {
	PaymentHandle string `json:"payment_handle" validate:"required,max=64,excludesall=/?#& "`
}

// SetPaymentHandle grava o handle do ator usado nos links de pagamento
func (e *Engine) SetPaymentHandle(ctx context.Context, in ProfileInput) error {
	actor, err := e.ident.CurrentActorID(ctx)
	if err != nil {
		return err
	}

	in.PaymentHandle = strings.TrimSpace(in.PaymentHandle)
	if err := validate.Struct(in); err != nil {
		return &domain.ValidationError{Field: "PaymentHandle", Message: "must be a bare handle up to 64 characters"}
	}

	if err := e.store.SetPaymentHandle(ctx, actor, in.PaymentHandle); err != nil {
		return err
	}
	e.log.Info("payment handle updated", zap.String("userId", actor))
	return nil
}
