package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

// Get retorna a aposta com o status efetivo. Apostas privadas só para participantes.
func (e *Engine) Get(ctx context.Context, betID string) (View, error) {
	actor, err := e.ident.CurrentActorID(ctx)
	if err != nil {
		return View{}, err
	}

	v, hit := e.cached(ctx, betID)
	if !hit {
		if v, err = e.loadAndFill(ctx, betID); err != nil {
			return View{}, err
		}
	}

	if v.Bet.Visibility != domain.VisibilityPublic && !domain.IsParticipant(v.Bet, v.Recipients, actor) {
		return View{}, domain.NotPermittedf("bet %s is private", betID)
	}
	return v, nil
}

// loadAndFill lê do store e repõe o cache. A geração é lida antes do store:
// se uma transição invalidar no meio, o Fill é descartado.
func (e *Engine) loadAndFill(ctx context.Context, betID string) (View, error) {
	if e.Views == nil {
		return e.load(ctx, betID)
	}
	gen, genErr := e.Views.Generation(ctx, betID)
	if genErr != nil {
		e.log.Warn("view cache generation failed", zap.String("betId", betID), zap.Error(genErr))
	}
	v, err := e.load(ctx, betID)
	if err != nil || genErr != nil {
		return v, err
	}
	if _, err := e.Views.Fill(ctx, betID, gen, v); err != nil {
		e.log.Warn("view cache fill failed", zap.String("betId", betID), zap.Error(err))
	}
	return v, nil
}

func (e *Engine) cached(ctx context.Context, betID string) (View, bool) {
	if e.Views == nil {
		return View{}, false
	}
	var v View
	ok, err := e.Views.Get(ctx, betID, &v)
	if err != nil {
		e.log.Warn("view cache get failed", zap.String("betId", betID), zap.Error(err))
		return View{}, false
	}
	if !ok {
		return View{}, false
	}
	// recalcula mesmo no cache: a projeção pode ter sido gravada antes de uma correção
	v.EffectiveStatus = domain.EffectiveStatus(v.Bet.Status, v.Recipients)
	return v, true
}

// List retorna as apostas criadas ou recebidas pelo ator
func (e *Engine) List(ctx context.Context) ([]View, error) {
	actor, err := e.ident.CurrentActorID(ctx)
	if err != nil {
		return nil, err
	}
	return e.listFor(ctx, actor)
}

func (e *Engine) listFor(ctx context.Context, userID string) ([]View, error) {
	bets, err := e.store.ListBetsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(bets))
	for _, b := range bets {
		rs, err := e.store.ListRecipients(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, newView(b, rs))
	}
	return out, nil
}

// Stats são as estatísticas de vitórias/derrotas de um usuário
type Stats struct {
	UserID    string          `json:"user_id"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	Open      int             `json:"open"`
	Pending   int             `json:"pending"`
	Cancelled int             `json:"cancelled"`
	Net       decimal.Decimal `json:"net"`
}

// WinRate é a fração de vitórias entre apostas liquidadas
func (s Stats) WinRate() float64 {
	total := s.Wins + s.Losses
	if total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(total)
}

// Stats calcula o placar do usuário. Cada registro liquidado conta uma vez;
// para apostas que o usuário criou, o resultado do registro é invertido.
// Apostas privadas só entram quando o ator também participa delas.
func (e *Engine) Stats(ctx context.Context, userID string) (Stats, error) {
	actor, err := e.ident.CurrentActorID(ctx)
	if err != nil {
		return Stats{}, err
	}
	views, err := e.listFor(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	if actor != userID {
		visible := views[:0]
		for _, v := range views {
			if v.Bet.Visibility == domain.VisibilityPublic || domain.IsParticipant(v.Bet, v.Recipients, actor) {
				visible = append(visible, v)
			}
		}
		views = visible
	}
	return computeStats(userID, views), nil
}

func computeStats(userID string, views []View) Stats {
	st := Stats{UserID: userID, Net: decimal.Zero}
	for _, v := range views {
		switch v.EffectiveStatus {
		case domain.BetPending:
			st.Pending++
		case domain.BetInProgress:
			st.Open++
		case domain.BetCancelled:
			st.Cancelled++
		}

		creator := v.Bet.CreatorID == userID
		for _, r := range v.Recipients {
			if !creator && r.UserID != userID {
				continue
			}
			if !r.Status.Settled() {
				continue
			}
			won := r.Status == domain.RecipientWon
			if creator {
				won = !won
			}
			if won {
				st.Wins++
				st.Net = st.Net.Add(v.Bet.Stake)
			} else {
				st.Losses++
				st.Net = st.Net.Sub(v.Bet.Stake)
			}
		}
	}
	return st
}
