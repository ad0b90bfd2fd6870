package models

import "time"

// Message types for WebSocket communication
const (
	MessageTypeSnapshot    = "snapshot"
	MessageTypeFact        = "fact"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeHeartbeat   = "heartbeat"
	MessageTypeError       = "error"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SnapshotUpdate is the broadcast shape for one appended snapshot
type SnapshotUpdate struct {
	EventID   string    `json:"event_id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	Snapshot  Snapshot  `json:"snapshot"`
	Terminal  bool      `json:"terminal"`
	PublishedAt time.Time `json:"published_at"`
}

// StreamUpdate is one message lifted off a Redis stream for WebSocket
// fan-out. Payload is the decoded SnapshotUpdate or Fact.
type StreamUpdate struct {
	Type    string
	EventID string
	Payload interface{}
}

// SubscriptionFilter represents client subscription preferences
type SubscriptionFilter struct {
	Events []string `json:"events,omitempty"` // Filter by event IDs
	Types  []string `json:"types,omitempty"`  // "snapshot", "fact"
}

// ConnectionStats represents WebSocket connection statistics
type ConnectionStats struct {
	ClientID         string    `json:"client_id"`
	ConnectedAt      time.Time `json:"connected_at"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	LastMessageAt    time.Time `json:"last_message_at"`
}

// ErrorResponse is the JSON error body returned by the read API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ErrorMessage represents a WebSocket error payload
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
