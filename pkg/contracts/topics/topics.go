package topics

const (
	// Rodadas
	RoundStatus   = "round_status"
	RoundOutcomes = "round_outcomes"

	// DLQs
	RoundOutcomesDLQ = "round_outcomes_dlq"
)

// Canais Redis Pub/Sub consumidos pelo round-feed-service
const (
	ChannelRoundUpdates = "round_updates_broadcast"
)
