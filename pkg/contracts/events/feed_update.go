package events

import "encoding/json"

// Tipos de FeedUpdate
const (
	FeedRoundStatus = "round_status"
	FeedBetOutcome  = "bet_outcome"
)

// FeedUpdate é o envelope publicado no Redis Pub/Sub e repassado aos clientes WS.
// Topic segue "round:<id>" ou "user:<id>"; "rounds" recebe todas as transições.
type FeedUpdate struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func RoundTopic(roundID string) string { return "round:" + roundID }
func UserTopic(userID string) string   { return "user:" + userID }

const AllRoundsTopic = "rounds"
