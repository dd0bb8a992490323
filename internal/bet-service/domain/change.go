package domain

import (
	"slices"
	"time"
)

// Role define quem pode aplicar uma Change
type Role int

const (
	// RoleParticipant: creator ou qualquer recipient da aposta
	RoleParticipant Role = iota
	// RoleCreator: somente o creator
	RoleCreator
	// RoleRecipient: somente o dono de cada registro alterado
	RoleRecipient
)

// RecipientChange é uma escrita condicional (compare-and-swap) em um recipient:
// só é aplicada se status e pending_outcome atuais forem FromStatus/FromPending.
type RecipientChange struct {
	RecipientID string
	FromStatus  RecipientStatus
	FromPending Outcome
	Status      RecipientStatus
	Pending     Outcome
}

// Change descreve uma transição completa de uma aposta, aplicada atomicamente pelo store
type Change struct {
	Op         string
	BetID      string
	ActorID    string
	Role       Role
	AllowedBet []BetStatus // status efetivos aceitos antes da transição (vazio = qualquer)
	SetBet     BetStatus   // status base para a reconciliação ("" mantém o gravado)
	Recipients []RecipientChange
}

// Applied é o resultado de ApplyChange: novo estado e o que precisa ser escrito
type Applied struct {
	Bet        Bet
	Recipients []Recipient
	Changed    []Recipient
	BetChanged bool
	OldStatus  BetStatus
}

// ApplyChange valida autorização e pré-condições de c contra o estado atual e devolve o
// novo estado. É chamada pelos stores dentro da transação (ou do lock), com o estado recém lido.
func ApplyChange(b Bet, rs []Recipient, c Change, now time.Time) (Applied, error) {
	if err := authorize(b, rs, c); err != nil {
		return Applied{}, err
	}

	eff := EffectiveStatus(b.Status, rs)
	if len(c.AllowedBet) > 0 && !slices.Contains(c.AllowedBet, eff) {
		return Applied{}, Conflictf("bet %s is %s", b.ID, eff)
	}

	out := Applied{Bet: b, OldStatus: b.Status, Recipients: slices.Clone(rs)}
	for _, rc := range c.Recipients {
		idx := slices.IndexFunc(out.Recipients, func(r Recipient) bool { return r.ID == rc.RecipientID })
		if idx < 0 {
			return Applied{}, Conflictf("recipient %s not in bet %s", rc.RecipientID, b.ID)
		}
		r := out.Recipients[idx]
		if r.Status != rc.FromStatus || r.PendingOutcome != rc.FromPending {
			return Applied{}, Conflictf("recipient %s is %s (pending %q), expected %s (pending %q)",
				r.ID, r.Status, r.PendingOutcome, rc.FromStatus, rc.FromPending)
		}
		if r.Status.Terminal() || !CanTransition(r.Status, rc.Status) {
			return Applied{}, Conflictf("recipient %s cannot move from %s to %s", r.ID, r.Status, rc.Status)
		}
		if rc.Pending != OutcomeNone && rc.Status != RecipientInProgress {
			return Applied{}, Conflictf("pending outcome requires in_progress recipient")
		}

		r.Status = rc.Status
		switch {
		case rc.Pending == OutcomeNone:
			r.PendingOutcome = OutcomeNone
			r.OutcomeClaimedBy = ""
			r.OutcomeClaimedAt = nil
		case rc.Pending != rc.FromPending:
			at := now
			r.PendingOutcome = rc.Pending
			r.OutcomeClaimedBy = c.ActorID
			r.OutcomeClaimedAt = &at
		}
		out.Recipients[idx] = r
		out.Changed = append(out.Changed, r)
	}

	base := b.Status
	if c.SetBet != "" {
		base = c.SetBet
	}
	next := EffectiveStatus(base, out.Recipients)
	// aposta liquidada: convites ainda sem resposta deixam de valer
	if next == BetCompleted {
		for i, r := range out.Recipients {
			if r.Status != RecipientPending {
				continue
			}
			r.Status = RecipientCancelled
			out.Recipients[i] = r
			out.Changed = append(out.Changed, r)
		}
	}
	if next != b.Status {
		if !CanTransitionBet(eff, next) {
			return Applied{}, Conflictf("bet %s cannot move from %s to %s", b.ID, eff, next)
		}
		at := now
		out.Bet.Status = next
		out.Bet.UpdatedAt = &at
		out.BetChanged = true
	}
	return out, nil
}

func authorize(b Bet, rs []Recipient, c Change) error {
	switch c.Role {
	case RoleCreator:
		if b.CreatorID != c.ActorID {
			return NotPermittedf("only the creator may %s bet %s", c.Op, b.ID)
		}
	case RoleRecipient:
		for _, rc := range c.Recipients {
			r := findRecipient(rs, rc.RecipientID)
			if r == nil || r.UserID != c.ActorID {
				return NotPermittedf("actor is not recipient %s", rc.RecipientID)
			}
		}
	default:
		if !IsParticipant(b, rs, c.ActorID) {
			return NotPermittedf("actor is not a participant of bet %s", b.ID)
		}
	}
	return nil
}

func findRecipient(rs []Recipient, id string) *Recipient {
	for i := range rs {
		if rs[i].ID == id {
			return &rs[i]
		}
	}
	return nil
}
