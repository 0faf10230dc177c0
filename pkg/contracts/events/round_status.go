package events

import "time"

// Evento publicado no tópico "round_status" a cada transição confirmada
type RoundStatusChanged struct {
	RoundID   string    `json:"round_id"`
	Status    string    `json:"status"` // "scheduled" | "active" | "completed" | "cancelled"
	Result    *string   `json:"result,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	UpdatedAt time.Time `json:"updated_at"`
}
