package models

import (
	"encoding/json"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/data"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message types.
const (
	// Client -> Server
	TypeStart = "start" // payload: StreamStart

	// Server -> Client
	TypeReady   = "ready"   // payload: ReadyPayload
	TypeDay     = "day"     // payload: dispatch.DailyResult
	TypeSummary = "summary" // payload: SimulateResponse without days
	TypeError   = "error"   // payload: ErrorPayload
)

type ReadyPayload struct {
	UploadID string          `json:"upload_id"`
	Info     data.SeriesInfo `json:"info"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals payload into a typed message.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
