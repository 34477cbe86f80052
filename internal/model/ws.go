package model

import "encoding/json"

// WSMessageType represents the type of WebSocket message
type WSMessageType string

const (
	MessageTypeBotEvent WSMessageType = "bot_event"
	MessageTypeError    WSMessageType = "error"
)

// WSMessage is the envelope for all WebSocket messages
type WSMessage struct {
	Type    WSMessageType   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
