package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

var validate = newValidator()

// maxStake é o primeiro valor que não cabe em NUMERIC(12,2)
var maxStake = decimal.New(1, 10)

func newValidator() *validator.Validate {
	v := validator.New()
	// decimal.Decimal é validado como float64 (gt=0 etc.)
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// CreateInput são os dados de uma nova aposta
type CreateInput struct {
	Description  string            `json:"description" validate:"required,max=500"`
	Stake        decimal.Decimal   `json:"stake" validate:"gt=0"`
	DueDate      time.Time         `json:"due_date" validate:"required"`
	Visibility   domain.Visibility `json:"visibility" validate:"required,oneof=public private"`
	RecipientIDs []string          `json:"recipient_ids" validate:"required,min=1,unique,dive,required"`
}

// Validate normaliza e valida o input antes de qualquer escrita
func (in *CreateInput) Validate(creatorID string) error {
	in.Description = strings.TrimSpace(in.Description)
	if in.Visibility == "" {
		in.Visibility = domain.VisibilityPrivate
	}
	for i := range in.RecipientIDs {
		in.RecipientIDs[i] = strings.TrimSpace(in.RecipientIDs[i])
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.ValidationError{Field: fe.Field(), Message: fmt.Sprintf("failed '%s' check", fe.Tag())}
		}
		return &domain.ValidationError{Message: err.Error()}
	}
	// o valor precisa caber em NUMERIC(12,2)
	if !in.Stake.Equal(in.Stake.Round(2)) {
		return &domain.ValidationError{Field: "Stake", Message: "must have at most 2 decimal places"}
	}
	if in.Stake.GreaterThanOrEqual(maxStake) {
		return &domain.ValidationError{Field: "Stake", Message: "must be less than " + maxStake.String()}
	}
	for _, id := range in.RecipientIDs {
		if id == creatorID {
			return &domain.ValidationError{Field: "RecipientIDs", Message: "creator cannot be a recipient"}
		}
	}
	return nil
}

// Create cria a aposta e os recipients em uma única operação atômica
func (e *Engine) Create(ctx context.Context, in CreateInput) (View, error) {
	actor, err := e.ident.CurrentActorID(ctx)
	if err != nil {
		e.observe("create", err)
		return View{}, err
	}
	if err := in.Validate(actor); err != nil {
		e.observe("create", err)
		return View{}, err
	}

	b, rs, err := e.store.CreateBet(ctx, domain.Bet{
		Description: in.Description,
		Stake:       in.Stake,
		DueDate:     in.DueDate,
		Visibility:  in.Visibility,
		Status:      domain.BetPending,
		CreatorID:   actor,
	}, in.RecipientIDs)
	if err != nil {
		e.log.Error("create bet", zap.String("actor", actor), zap.Error(err))
		e.observe("create", err)
		return View{}, err
	}

	v := newView(b, rs)
	e.observe("create", nil)
	e.log.Info("bet created", zap.String("betId", b.ID), zap.String("actor", actor), zap.Int("recipients", len(rs)))
	e.afterWrite(ctx, "create", actor, v)
	return v, nil
}
