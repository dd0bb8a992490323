package sweeper

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

// Store é o subconjunto do repositório usado pela varredura
type Store interface {
	ListBetsByStatus(ctx context.Context, statuses []domain.BetStatus, limit int) ([]domain.Bet, error)
	ListRecipients(ctx context.Context, betID string) ([]domain.Recipient, error)
	UpdateBetStatus(ctx context.Context, betID string, from, to domain.BetStatus) error
}

// Sweeper recalcula o status efetivo das apostas abertas e corrige linhas divergentes
type Sweeper struct {
	Log       *zap.Logger
	Store     Store
	BatchSize int

	OnScanned  func(n int)
	OnRepaired func(from, to domain.BetStatus)
	OnError    func(stage string)
}

// Result resume uma execução
type Result struct {
	Scanned  int
	Repaired int
	Skipped  int
}

var openStatuses = []domain.BetStatus{domain.BetPending, domain.BetInProgress}

// Sweep executa uma varredura. Conflitos (linha alterada por outra transação) são ignorados.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	bets, err := s.Store.ListBetsByStatus(ctx, openStatuses, s.BatchSize)
	if err != nil {
		s.fail("list")
		return res, err
	}
	res.Scanned = len(bets)
	if s.OnScanned != nil {
		s.OnScanned(len(bets))
	}

	for _, b := range bets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rs, err := s.Store.ListRecipients(ctx, b.ID)
		if err != nil {
			s.Log.Warn("list recipients failed", zap.String("betId", b.ID), zap.Error(err))
			s.fail("recipients")
			continue
		}
		want := domain.EffectiveStatus(b.Status, rs)
		if want == b.Status {
			continue
		}

		err = s.Store.UpdateBetStatus(ctx, b.ID, b.Status, want)
		switch {
		case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound):
			res.Skipped++
			s.Log.Debug("bet moved during sweep", zap.String("betId", b.ID), zap.Error(err))
		case err != nil:
			s.Log.Warn("repair failed", zap.String("betId", b.ID), zap.Error(err))
			s.fail("update")
		default:
			res.Repaired++
			s.Log.Info("bet status repaired",
				zap.String("betId", b.ID), zap.String("from", string(b.Status)), zap.String("to", string(want)))
			if s.OnRepaired != nil {
				s.OnRepaired(b.Status, want)
			}
		}
	}
	return res, nil
}

func (s *Sweeper) fail(stage string) {
	if s.OnError != nil {
		s.OnError(stage)
	}
}
