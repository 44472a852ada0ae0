// Package events defines the payloads published to Kafka.
package events

import "time"

// QueryAudit records one SQL statement executed on behalf of a chat session.
type QueryAudit struct {
	SessionID  string    `json:"session_id"`
	Database   string    `json:"database"`
	Question   string    `json:"question"`
	SQL        string    `json:"sql"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	ExecutedAt time.Time `json:"executed_at"`
}
