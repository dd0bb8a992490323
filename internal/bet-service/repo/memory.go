package repo

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

// Memory guarda apostas em memória, com a mesma semântica atômica do Postgres.
// Usa mutex para segurança de concorrência.
type Memory struct {
	mu         sync.RWMutex
	bets       map[string]domain.Bet
	recipients map[string][]domain.Recipient // betID -> recipients
	handles    map[string]string             // userID -> payment handle

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		bets:       make(map[string]domain.Bet),
		recipients: make(map[string][]domain.Recipient),
		handles:    make(map[string]string),
		now:        time.Now,
	}
}

// Put grava o estado como está, sem validação (fixtures e testes)
func (m *Memory) Put(b domain.Bet, rs []domain.Recipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bets[b.ID] = b
	m.recipients[b.ID] = slices.Clone(rs)
}

// SetPaymentHandle registra (ou troca) o handle de pagamento de um usuário
func (m *Memory) SetPaymentHandle(_ context.Context, userID, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles[userID] = handle
	return nil
}

func (m *Memory) CreateBet(_ context.Context, b domain.Bet, recipientIDs []string) (domain.Bet, []domain.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	rs := make([]domain.Recipient, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		rs = append(rs, domain.Recipient{
			ID:        uuid.NewString(),
			BetID:     b.ID,
			UserID:    id,
			Status:    domain.RecipientPending,
			CreatedAt: now,
		})
	}
	m.bets[b.ID] = b
	m.recipients[b.ID] = rs
	return b, slices.Clone(rs), nil
}

func (m *Memory) GetBet(_ context.Context, betID string) (domain.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bets[betID]
	if !ok {
		return domain.Bet{}, fmt.Errorf("bet %s: %w", betID, domain.ErrNotFound)
	}
	return b, nil
}

func (m *Memory) ListRecipients(_ context.Context, betID string) ([]domain.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.recipients[betID]), nil
}

func (m *Memory) ListBetsForUser(_ context.Context, userID string) ([]domain.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Bet
	for id, b := range m.bets {
		if b.CreatorID == userID || domain.RecipientOf(m.recipients[id], userID) != nil {
			out = append(out, b)
		}
	}
	sortBets(out)
	slices.Reverse(out)
	return out, nil
}

func (m *Memory) ListBetsByStatus(_ context.Context, statuses []domain.BetStatus, limit int) ([]domain.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Bet
	for _, b := range m.bets {
		if slices.Contains(statuses, b.Status) {
			out = append(out, b)
		}
	}
	sortBets(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Apply valida e aplica a Change sob o lock, tudo ou nada
func (m *Memory) Apply(_ context.Context, c domain.Change) (domain.Bet, []domain.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[c.BetID]
	if !ok {
		return domain.Bet{}, nil, fmt.Errorf("bet %s: %w", c.BetID, domain.ErrNotFound)
	}
	out, err := domain.ApplyChange(b, m.recipients[c.BetID], c, m.now())
	if err != nil {
		return domain.Bet{}, nil, err
	}
	m.bets[c.BetID] = out.Bet
	m.recipients[c.BetID] = out.Recipients
	return out.Bet, slices.Clone(out.Recipients), nil
}

// UpdateBetStatus troca o status somente se o atual for from
func (m *Memory) UpdateBetStatus(_ context.Context, betID string, from, to domain.BetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return fmt.Errorf("bet %s: %w", betID, domain.ErrNotFound)
	}
	if b.Status != from {
		return domain.Conflictf("bet %s is %s, expected %s", betID, b.Status, from)
	}
	now := m.now()
	b.Status = to
	b.UpdatedAt = &now
	m.bets[betID] = b
	return nil
}

func (m *Memory) DeleteBet(_ context.Context, betID, creatorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return fmt.Errorf("bet %s: %w", betID, domain.ErrNotFound)
	}
	if b.CreatorID != creatorID {
		return domain.NotPermittedf("only the creator may delete bet %s", betID)
	}
	if st := domain.EffectiveStatus(b.Status, m.recipients[betID]); st != domain.BetPending {
		return domain.Conflictf("bet %s is %s", betID, st)
	}
	delete(m.bets, betID)
	delete(m.recipients, betID)
	return nil
}

func (m *Memory) PaymentHandle(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[userID]
	if !ok {
		return "", fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	return h, nil
}

func sortBets(bs []domain.Bet) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].ID < bs[j].ID
		}
		return bs[i].CreatedAt.Before(bs[j].CreatedAt)
	})
}
