package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/identity"
	"github.com/radieske/p2p-bet-engine/pkg/contracts/events"
)

// Store é o contrato de persistência consumido pelo engine.
// Apply, CreateBet e DeleteBet devem ser atômicos no store.
type Store interface {
	CreateBet(ctx context.Context, b domain.Bet, recipientIDs []string) (domain.Bet, []domain.Recipient, error)
	GetBet(ctx context.Context, betID string) (domain.Bet, error)
	ListRecipients(ctx context.Context, betID string) ([]domain.Recipient, error)
	ListBetsForUser(ctx context.Context, userID string) ([]domain.Bet, error)
	Apply(ctx context.Context, c domain.Change) (domain.Bet, []domain.Recipient, error)
	DeleteBet(ctx context.Context, betID, creatorID string) error
	PaymentHandle(ctx context.Context, userID string) (string, error)
	SetPaymentHandle(ctx context.Context, userID, handle string) error
}

// Publisher publica eventos de ciclo de vida (Kafka)
type Publisher interface {
	PublishLifecycle(ctx context.Context, e events.BetLifecycle) error
}

// ViewCache guarda projeções de View; nunca é usado como entrada de uma transição.
// Fill só grava se a geração não mudou desde Generation; Invalidate avança a geração.
type ViewCache interface {
	Get(ctx context.Context, betID string, dst any) (bool, error)
	Generation(ctx context.Context, betID string) (int64, error)
	Fill(ctx context.Context, betID string, gen int64, v any) (bool, error)
	Invalidate(ctx context.Context, betID string) error
}

// PaymentLinker monta o link de pagamento exibido após uma derrota
type PaymentLinker interface {
	Link(handle string, amount decimal.Decimal, note string) (string, error)
}

// Engine implementa a máquina de estados da aposta e o protocolo de resultado.
// Events, Views, Links e OnTransition são opcionais.
type Engine struct {
	log   *zap.Logger
	store Store
	ident identity.Provider

	Events Publisher
	Views  ViewCache
	Links  PaymentLinker

	OnTransition func(op, result string) // métricas

	now func() time.Time
}

// New cria o engine com store e provedor de identidade
func New(log *zap.Logger, store Store, ident identity.Provider) *Engine {
	return &Engine{log: log, store: store, ident: ident, now: time.Now}
}

// View é a aposta com seus recipients e o status efetivo recalculado
type View struct {
	Bet             domain.Bet         `json:"bet"`
	Recipients      []domain.Recipient `json:"recipients"`
	EffectiveStatus domain.BetStatus   `json:"effective_status"`
}

func newView(b domain.Bet, rs []domain.Recipient) View {
	if rs == nil {
		rs = []domain.Recipient{}
	}
	return View{Bet: b, Recipients: rs, EffectiveStatus: domain.EffectiveStatus(b.Status, rs)}
}

// load lê o estado atual direto do store (sem cache)
func (e *Engine) load(ctx context.Context, betID string) (View, error) {
	b, err := e.store.GetBet(ctx, betID)
	if err != nil {
		return View{}, err
	}
	rs, err := e.store.ListRecipients(ctx, betID)
	if err != nil {
		return View{}, err
	}
	return newView(b, rs), nil
}

type planFunc func(actor string, v View) (domain.Change, error)

// maxAttempts limita os replanejamentos quando o store recusa um snapshot desatualizado
const maxAttempts = 3

// transition executa o fluxo comum: snapshot -> plano -> Apply atômico -> projeções
func (e *Engine) transition(ctx context.Context, op, betID string, plan planFunc) (View, string, error) {
	actor, err := e.ident.CurrentActorID(ctx)
	if err != nil {
		e.observe(op, err)
		return View{}, "", err
	}

	var (
		b  domain.Bet
		rs []domain.Recipient
	)
	for attempt := 1; ; attempt++ {
		v, err := e.load(ctx, betID)
		if err != nil {
			e.observe(op, err)
			return View{}, actor, err
		}
		c, err := plan(actor, v)
		if err != nil {
			e.observe(op, err)
			return View{}, actor, err
		}
		c.Op, c.BetID, c.ActorID = op, betID, actor

		b, rs, err = e.store.Apply(ctx, c)
		// snapshot velho: replaneja sobre o estado novo (ex.: claim concorrente vira confirm/dispute)
		if errors.Is(err, domain.ErrConflict) && attempt < maxAttempts {
			e.log.Debug("stale snapshot, replanning",
				zap.String("op", op), zap.String("betId", betID), zap.Int("attempt", attempt))
			continue
		}
		if err == nil {
			break
		}
		e.log.Info("transition refused",
			zap.String("op", op), zap.String("betId", betID), zap.String("actor", actor), zap.Error(err))
		e.observe(op, err)
		return View{}, actor, err
	}
	out := newView(b, rs)
	e.observe(op, nil)
	e.log.Info("transition applied",
		zap.String("op", op), zap.String("betId", betID), zap.String("actor", actor),
		zap.String("status", string(out.EffectiveStatus)))

	e.afterWrite(ctx, op, actor, out)
	return out, actor, nil
}

// afterWrite invalida o cache e publica o evento; falhas aqui não desfazem a transição
func (e *Engine) afterWrite(ctx context.Context, op, actor string, v View) {
	if e.Views != nil {
		if err := e.Views.Invalidate(ctx, v.Bet.ID); err != nil {
			e.log.Warn("view cache invalidate failed", zap.String("betId", v.Bet.ID), zap.Error(err))
		}
	}
	if e.Events != nil {
		if err := e.Events.PublishLifecycle(ctx, lifecycleEvent(op, actor, v, e.now())); err != nil {
			e.log.Warn("publish lifecycle failed", zap.String("betId", v.Bet.ID), zap.Error(err))
		}
	}
}

func (e *Engine) observe(op string, err error) {
	if e.OnTransition != nil {
		e.OnTransition(op, domain.Kind(err))
	}
}

func lifecycleEvent(op, actor string, v View, now time.Time) events.BetLifecycle {
	ids := make([]string, 0, len(v.Recipients))
	for _, r := range v.Recipients {
		ids = append(ids, r.UserID)
	}
	return events.BetLifecycle{
		BetID:        v.Bet.ID,
		Type:         events.LifecycleType(op),
		ActorID:      actor,
		CreatorID:    v.Bet.CreatorID,
		RecipientIDs: ids,
		BetStatus:    string(v.EffectiveStatus),
		Description:  v.Bet.Description,
		Stake:        v.Bet.Stake.StringFixed(2),
		TsUnixMs:     now.UnixMilli(),
	}
}
