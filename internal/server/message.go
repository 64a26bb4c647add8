package server

import (
	"encoding/json"
	"time"

	"github.com/idea-realm/one-card-limit/internal/game"
)

// MessageType identifies a WebSocket message
type MessageType string

const (
	// Server → client
	MessageTypeWelcome        MessageType = "welcome"
	MessageTypeHandStart      MessageType = "hand_start"
	MessageTypePlayerAction   MessageType = "player_action"
	MessageTypeActionRequired MessageType = "action_required"
	MessageTypeHandEnd        MessageType = "hand_end"
	MessageTypeMatchEnd       MessageType = "match_end"
	MessageTypeError          MessageType = "error"

	// Client → server
	MessageTypePlayerDecision MessageType = "player_decision"
)

// Message is the envelope every frame travels in
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Server → client payloads

type WelcomeData struct {
	PlayerName    string     `json:"playerName"`
	OpponentName  string     `json:"opponentName"`
	Rules         game.Rules `json:"rules"`
	Hands         int        `json:"hands"`
	StartingStack int        `json:"startingStack"`
}

type HandStartData struct {
	Hand     int    `json:"hand"`
	Position string `json:"position"`
	Card     string `json:"card"`
	Pot      int    `json:"pot"`
}

type PlayerActionData struct {
	Player   string `json:"player"`
	Position string `json:"position"`
	Action   string `json:"action"`
	PotAfter int    `json:"potAfter"`
}

type ActionRequiredData struct {
	Card           string   `json:"card"`
	Pot            int      `json:"pot"`
	ToCall         int      `json:"toCall"`
	ValidActions   []string `json:"validActions"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
}

type HandEndData struct {
	Record game.HandRecord `json:"record"`
	Stacks map[string]int  `json:"stacks"`
}

type MatchEndData struct {
	HandsPlayed int            `json:"handsPlayed"`
	Stacks      map[string]int `json:"stacks"`
	Net         map[string]int `json:"net"`
	Reason      string         `json:"reason,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client → server payloads

type PlayerDecisionData struct {
	Action string `json:"action"`
}
