package engine

import (
	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

// Os planos são funções puras: a partir do snapshot montam a Change com as pré-condições
// esperadas (status e pending de cada registro). O store reavalia tudo atomicamente.

func planRespond(to domain.RecipientStatus) planFunc {
	return func(actor string, v View) (domain.Change, error) {
		r := domain.RecipientOf(v.Recipients, actor)
		if r == nil {
			return domain.Change{}, domain.NotPermittedf("actor is not a recipient of bet %s", v.Bet.ID)
		}
		if r.Status != domain.RecipientPending {
			return domain.Change{}, domain.Conflictf("recipient %s already %s", r.ID, r.Status)
		}
		c := domain.Change{
			Role:       domain.RoleRecipient,
			AllowedBet: []domain.BetStatus{domain.BetPending, domain.BetInProgress},
			Recipients: []domain.RecipientChange{{
				RecipientID: r.ID,
				FromStatus:  domain.RecipientPending,
				FromPending: domain.OutcomeNone,
				Status:      to,
			}},
		}
		if to == domain.RecipientInProgress {
			c.SetBet = domain.BetInProgress
		}
		return c, nil
	}
}

// side identifica de que lado da aposta o ator está e quais registros ele enxerga
type side struct {
	creator bool
	records []domain.Recipient
}

// sideOf resolve o ator: creator vê todos os registros, recipient só o próprio
func sideOf(actor string, v View) (side, error) {
	if v.Bet.CreatorID == actor {
		return side{creator: true, records: v.Recipients}, nil
	}
	if r := domain.RecipientOf(v.Recipients, actor); r != nil {
		return side{records: []domain.Recipient{*r}}, nil
	}
	return side{}, domain.NotPermittedf("actor is not a participant of bet %s", v.Bet.ID)
}

// recordOutcome converte o resultado do ator para a perspectiva do registro.
// O creator não tem registro próprio: o resultado dele é gravado invertido no registro do recipient.
func (s side) recordOutcome(o domain.Outcome) domain.Outcome {
	if s.creator {
		return o.Complement()
	}
	return o
}

func (s side) role() domain.Role {
	if s.creator {
		return domain.RoleCreator
	}
	return domain.RoleRecipient
}

// settling são os status efetivos em que registros in_progress ainda podem ser liquidados.
// Com vários recipients a aposta vira completed no primeiro registro liquidado; os demais
// continuam no protocolo de declaração até chegarem a won/lost.
var settling = []domain.BetStatus{domain.BetInProgress, domain.BetCompleted}

func planClaim(outcome domain.Outcome) planFunc {
	return func(actor string, v View) (domain.Change, error) {
		if !outcome.Valid() {
			return domain.Change{}, &domain.ValidationError{Field: "outcome", Message: "must be won or lost"}
		}
		s, err := sideOf(actor, v)
		if err != nil {
			return domain.Change{}, err
		}
		want := s.recordOutcome(outcome)

		c := domain.Change{Role: s.role(), AllowedBet: settling}
		for _, r := range s.records {
			if r.Status != domain.RecipientInProgress {
				continue
			}
			rc := domain.RecipientChange{
				RecipientID: r.ID,
				FromStatus:  r.Status,
				FromPending: r.PendingOutcome,
				Status:      domain.RecipientInProgress,
			}
			switch {
			case !r.AwaitingConfirmation():
				rc.Pending = want
			case r.OutcomeClaimedBy == actor:
				// já declarado por este ator, aguardando a contraparte
				continue
			case r.PendingOutcome == want:
				// a contraparte declarou o mesmo resultado: vira confirmação
				rc.Status = want.Status()
			default:
				// declarações contraditórias: vira disputa
			}
			c.Recipients = append(c.Recipients, rc)
		}
		if len(c.Recipients) == 0 {
			return domain.Change{}, domain.Conflictf("no open record to claim on bet %s", v.Bet.ID)
		}
		return c, nil
	}
}

// planConcede é a declaração direta de derrota: grava o status final sem fase pendente
func planConcede(actor string, v View) (domain.Change, error) {
	s, err := sideOf(actor, v)
	if err != nil {
		return domain.Change{}, err
	}
	final := s.recordOutcome(domain.OutcomeLost).Status()

	c := domain.Change{Role: s.role(), AllowedBet: settling}
	for _, r := range s.records {
		if r.Status != domain.RecipientInProgress {
			continue
		}
		c.Recipients = append(c.Recipients, domain.RecipientChange{
			RecipientID: r.ID,
			FromStatus:  r.Status,
			FromPending: r.PendingOutcome,
			Status:      final,
		})
	}
	if len(c.Recipients) == 0 {
		return domain.Change{}, domain.Conflictf("no open record to settle on bet %s", v.Bet.ID)
	}
	return c, nil
}

// planResolve confirma (accept=true) ou disputa declarações feitas pela contraparte do ator
func planResolve(recipientID string, accept bool) planFunc {
	return func(actor string, v View) (domain.Change, error) {
		s, err := sideOf(actor, v)
		if err != nil {
			return domain.Change{}, err
		}
		if !s.creator && recipientID != "" && s.records[0].ID != recipientID {
			return domain.Change{}, domain.NotPermittedf("actor is not recipient %s", recipientID)
		}

		c := domain.Change{Role: s.role(), AllowedBet: settling}
		for _, r := range s.records {
			if recipientID != "" && r.ID != recipientID {
				continue
			}
			if r.Status != domain.RecipientInProgress || !r.AwaitingConfirmation() || r.OutcomeClaimedBy == actor {
				continue
			}
			rc := domain.RecipientChange{
				RecipientID: r.ID,
				FromStatus:  r.Status,
				FromPending: r.PendingOutcome,
				Status:      domain.RecipientInProgress,
			}
			if accept {
				rc.Status = r.PendingOutcome.Status()
			}
			c.Recipients = append(c.Recipients, rc)
		}
		if len(c.Recipients) == 0 {
			return domain.Change{}, domain.Conflictf("no outcome awaiting confirmation on bet %s", v.Bet.ID)
		}
		return c, nil
	}
}

func planCancel(actor string, v View) (domain.Change, error) {
	if v.Bet.CreatorID != actor {
		return domain.Change{}, domain.NotPermittedf("only the creator may cancel bet %s", v.Bet.ID)
	}
	c := domain.Change{
		Role:       domain.RoleCreator,
		AllowedBet: []domain.BetStatus{domain.BetPending, domain.BetInProgress},
		SetBet:     domain.BetCancelled,
	}
	for _, r := range v.Recipients {
		if r.Status.Terminal() {
			continue
		}
		c.Recipients = append(c.Recipients, domain.RecipientChange{
			RecipientID: r.ID,
			FromStatus:  r.Status,
			FromPending: r.PendingOutcome,
			Status:      domain.RecipientCancelled,
		})
	}
	return c, nil
}
