package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/payment"
)

// Accept aceita o convite: recipient -> in_progress, aposta -> in_progress
func (e *Engine) Accept(ctx context.Context, betID string) (View, error) {
	v, _, err := e.transition(ctx, "accept", betID, planRespond(domain.RecipientInProgress))
	return v, err
}

// Reject recusa o convite. A aposta só vira rejected quando todos recusarem.
func (e *Engine) Reject(ctx context.Context, betID string) (View, error) {
	v, _, err := e.transition(ctx, "reject", betID, planRespond(domain.RecipientRejected))
	return v, err
}

// Claim declara o resultado do ator (fase pendente, aguardando a contraparte)
func (e *Engine) Claim(ctx context.Context, betID string, outcome domain.Outcome) (View, error) {
	v, _, err := e.transition(ctx, "claim", betID, planClaim(outcome))
	return v, err
}

// Dispute rejeita a declaração da contraparte; a aposta volta ao estado anterior à declaração
func (e *Engine) Dispute(ctx context.Context, betID, recipientID string) (View, error) {
	v, _, err := e.transition(ctx, "dispute", betID, planResolve(recipientID, false))
	return v, err
}

// Cancel cancela a aposta e todos os recipients ainda não finalizados
func (e *Engine) Cancel(ctx context.Context, betID string) (View, error) {
	v, _, err := e.transition(ctx, "cancel", betID, planCancel)
	return v, err
}

// Payment é o pagamento sugerido ao perdedor
type Payment struct {
	PayeeID string `json:"payee_id"`
	Amount  string `json:"amount"`
	Link    string `json:"link,omitempty"`
}

// Resolution é o resultado de uma liquidação (confirm/concede)
type Resolution struct {
	View     View      `json:"view"`
	Payments []Payment `json:"payments,omitempty"`
}

// Confirm aceita a declaração da contraparte: os registros recebem o status final
func (e *Engine) Confirm(ctx context.Context, betID, recipientID string) (Resolution, error) {
	v, actor, err := e.transition(ctx, "confirm", betID, planResolve(recipientID, true))
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{View: v, Payments: e.payments(ctx, actor, v)}, nil
}

// Concede declara a própria derrota diretamente, sem fase pendente
func (e *Engine) Concede(ctx context.Context, betID string) (Resolution, error) {
	v, actor, err := e.transition(ctx, "concede", betID, planConcede)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{View: v, Payments: e.payments(ctx, actor, v)}, nil
}

// payments lista quem o ator deve pagar após a liquidação.
// Melhor esforço: falhas de handle/link só geram log.
func (e *Engine) payments(ctx context.Context, actor string, v View) []Payment {
	var payees []string
	if v.Bet.CreatorID == actor {
		// creator perde quando o recipient ganha
		for _, r := range v.Recipients {
			if r.Status == domain.RecipientWon {
				payees = append(payees, r.UserID)
			}
		}
	} else if r := domain.RecipientOf(v.Recipients, actor); r != nil && r.Status == domain.RecipientLost {
		payees = append(payees, v.Bet.CreatorID)
	}

	out := make([]Payment, 0, len(payees))
	for _, payee := range payees {
		p := Payment{PayeeID: payee, Amount: v.Bet.Stake.StringFixed(2)}
		if e.Links != nil {
			link, err := e.paymentLink(ctx, payee, v)
			if err != nil {
				e.log.Warn("payment link unavailable",
					zap.String("betId", v.Bet.ID), zap.String("payee", payee), zap.Error(err))
			}
			p.Link = link
		}
		out = append(out, p)
	}
	return out
}

func (e *Engine) paymentLink(ctx context.Context, payee string, v View) (string, error) {
	handle, err := e.store.PaymentHandle(ctx, payee)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if handle == "" {
		return "", payment.ErrNoHandle
	}
	return e.Links.Link(handle, v.Bet.Stake, v.Bet.Description)
}

// Delete remove uma aposta pending; somente o creator
func (e *Engine) Delete(ctx context.Context, betID string) error {
	actor, err := e.ident.CurrentActorID(ctx)
	if err != nil {
		e.observe("delete", err)
		return err
	}
	v, err := e.load(ctx, betID)
	if err != nil {
		e.observe("delete", err)
		return err
	}
	if v.Bet.CreatorID != actor {
		err = domain.NotPermittedf("only the creator may delete bet %s", betID)
		e.observe("delete", err)
		return err
	}
	if v.EffectiveStatus != domain.BetPending {
		err = domain.Conflictf("bet %s is %s", betID, v.EffectiveStatus)
		e.observe("delete", err)
		return err
	}

	if err := e.store.DeleteBet(ctx, betID, actor); err != nil {
		e.observe("delete", err)
		return err
	}
	e.observe("delete", nil)
	e.log.Info("bet deleted", zap.String("betId", betID), zap.String("actor", actor))
	e.afterWrite(ctx, "delete", actor, v)
	return nil
}
