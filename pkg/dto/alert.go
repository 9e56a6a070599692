package dto

import "github.com/google/uuid"

// WSAlert is the WebSocket alert feed envelope.
type WSAlert struct {
	Type       string        `json:"type"` // always "alert"
	CustomerID string        `json:"customer_id"`
	Data       AlertResponse `json:"data"`
}

type AlertResponse struct {
	ID            uuid.UUID `json:"id,omitempty"`
	CustomerID    string    `json:"customer_id"`
	CounterpartID string    `json:"counterpart_id"`
	Source        string    `json:"source"`
	HitCount      int       `json:"hit_count"`
	MaxSimilarity float64   `json:"max_similarity"`
	Message       string    `json:"message"`
	MessageID     string    `json:"message_id,omitempty"`
	CreatedAt     string    `json:"created_at,omitempty"`
}
