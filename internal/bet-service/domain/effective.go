package domain

// EffectiveStatus recalcula o status da aposta a partir dos recipients.
// Qualquer recipient won/lost implica completed, independente do valor gravado.
func EffectiveStatus(stored BetStatus, rs []Recipient) BetStatus {
	allRejected := len(rs) > 0
	accepted := false
	for _, r := range rs {
		if r.Status.Settled() {
			return BetCompleted
		}
		if r.Status != RecipientRejected {
			allRejected = false
		}
		if r.Status == RecipientInProgress {
			accepted = true
		}
	}

	switch stored {
	case BetCompleted, BetCancelled:
		return stored
	}
	if allRejected {
		return BetRejected
	}
	// a aposta entra em andamento no primeiro aceite
	if stored == BetPending && accepted {
		return BetInProgress
	}
	return stored
}
