package topics

const (
	// Bets
	BetLifecycle = "bet_lifecycle"

	// DLQs
	BetLifecycleDLQ = "bet_lifecycle_dlq"
)

// Canais Redis Pub/Sub
const (
	BetUpdatesBroadcast = "bet_updates_broadcast"
)
