package domain

type BetStatus string

const (
	BetPending    BetStatus = "pending"
	BetInProgress BetStatus = "in_progress"
	BetRejected   BetStatus = "rejected"
	BetCompleted  BetStatus = "completed"
	BetCancelled  BetStatus = "cancelled"
)

func (s BetStatus) Terminal() bool {
	return s == BetRejected || s == BetCompleted || s == BetCancelled
}

type RecipientStatus string

const (
	RecipientPending    RecipientStatus = "pending"
	RecipientInProgress RecipientStatus = "in_progress"
	RecipientRejected   RecipientStatus = "rejected"
	RecipientWon        RecipientStatus = "won"
	RecipientLost       RecipientStatus = "lost"
	RecipientCancelled  RecipientStatus = "cancelled"
)

func (s RecipientStatus) Terminal() bool {
	switch s {
	case RecipientWon, RecipientLost, RecipientRejected, RecipientCancelled:
		return true
	}
	return false
}

// Settled indica won ou lost
func (s RecipientStatus) Settled() bool { return s == RecipientWon || s == RecipientLost }

// Outcome é o resultado declarado por uma das partes; OutcomeNone representa NULL
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

func (o Outcome) Valid() bool { return o == OutcomeWon || o == OutcomeLost }

// Complement inverte o resultado (won <-> lost). É a regra de inversão creator/recipient.
func (o Outcome) Complement() Outcome {
	switch o {
	case OutcomeWon:
		return OutcomeLost
	case OutcomeLost:
		return OutcomeWon
	}
	return OutcomeNone
}

// Status converte o resultado no status final do recipient
func (o Outcome) Status() RecipientStatus {
	if o == OutcomeWon {
		return RecipientWon
	}
	return RecipientLost
}

// recipientEdges lista as transições permitidas por status de origem
var recipientEdges = map[RecipientStatus][]RecipientStatus{
	RecipientPending:    {RecipientInProgress, RecipientRejected, RecipientCancelled},
	RecipientInProgress: {RecipientInProgress, RecipientWon, RecipientLost, RecipientCancelled},
}

// CanTransition verifica se a aresta from -> to existe na máquina de estados do recipient
func CanTransition(from, to RecipientStatus) bool {
	for _, s := range recipientEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

var betEdges = map[BetStatus][]BetStatus{
	BetPending:    {BetInProgress, BetRejected, BetCancelled, BetCompleted},
	BetInProgress: {BetCompleted, BetCancelled},
}

// CanTransitionBet verifica a aresta from -> to da aposta (from == to é sempre aceito)
func CanTransitionBet(from, to BetStatus) bool {
	if from == to {
		return true
	}
	for _, s := range betEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}
