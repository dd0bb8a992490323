package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Visibility controla quem pode consultar uma aposta
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Bet é a aposta criada por um usuário (creator) para um ou mais amigos
type Bet struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Stake       decimal.Decimal `json:"stake"`
	DueDate     time.Time       `json:"due_date"`
	Visibility  Visibility      `json:"visibility"`
	Status      BetStatus       `json:"status"`
	CreatorID   string          `json:"creator_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// Recipient é o registro de participação de um convidado na aposta.
// PendingOutcome e o status final (won/lost) são sempre do ponto de vista do recipient.
type Recipient struct {
	ID               string          `json:"id"`
	BetID            string          `json:"bet_id"`
	UserID           string          `json:"user_id"`
	Status           RecipientStatus `json:"status"`
	PendingOutcome   Outcome         `json:"pending_outcome,omitempty"`
	OutcomeClaimedBy string          `json:"outcome_claimed_by,omitempty"`
	OutcomeClaimedAt *time.Time      `json:"outcome_claimed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AwaitingConfirmation indica se existe um resultado declarado aguardando a contraparte
func (r Recipient) AwaitingConfirmation() bool { return r.PendingOutcome != OutcomeNone }

// IsParticipant retorna true se o usuário é o creator ou um dos recipients
func IsParticipant(b Bet, rs []Recipient, userID string) bool {
	if b.CreatorID == userID {
		return true
	}
	return RecipientOf(rs, userID) != nil
}

// RecipientOf retorna o registro do usuário na aposta, ou nil
func RecipientOf(rs []Recipient, userID string) *Recipient {
	for i := range rs {
		if rs[i].UserID == userID {
			return &rs[i]
		}
	}
	return nil
}
