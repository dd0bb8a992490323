package events

// Tipos de evento do ciclo de vida da aposta
const (
	TypeCreated   = "bet_created"
	TypeAccepted  = "bet_accepted"
	TypeRejected  = "bet_rejected"
	TypeClaimed   = "outcome_claimed"
	TypeConceded  = "outcome_conceded"
	TypeConfirmed = "outcome_confirmed"
	TypeDisputed  = "outcome_disputed"
	TypeCancelled = "bet_cancelled"
	TypeDeleted   = "bet_deleted"
)

var opTypes = map[string]string{
	"create":  TypeCreated,
	"accept":  TypeAccepted,
	"reject":  TypeRejected,
	"claim":   TypeClaimed,
	"concede": TypeConceded,
	"confirm": TypeConfirmed,
	"dispute": TypeDisputed,
	"cancel":  TypeCancelled,
	"delete":  TypeDeleted,
}

// LifecycleType traduz a operação do engine para o tipo do evento
func LifecycleType(op string) string {
	if t, ok := opTypes[op]; ok {
		return t
	}
	return "bet_" + op
}

// BetLifecycle é publicado pelo bet-service a cada transição aceita pelo store.
// Consumido pelo bet-notification-worker.
type BetLifecycle struct {
	BetID        string   `json:"bet_id"`
	Type         string   `json:"type"`
	ActorID      string   `json:"actor_id"`
	CreatorID    string   `json:"creator_id"`
	RecipientIDs []string `json:"recipient_ids"` // user ids dos recipients
	BetStatus    string   `json:"bet_status"`    // status efetivo após a transição
	Description  string   `json:"description"`
	Stake        string   `json:"stake"`
	TsUnixMs     int64    `json:"ts_unix_ms"`
}

// Audience retorna os participantes que devem ser avisados (todos menos o ator)
func (e BetLifecycle) Audience() []string {
	out := make([]string, 0, len(e.RecipientIDs)+1)
	if e.CreatorID != "" && e.CreatorID != e.ActorID {
		out = append(out, e.CreatorID)
	}
	for _, id := range e.RecipientIDs {
		if id != e.ActorID {
			out = append(out, id)
		}
	}
	return out
}
