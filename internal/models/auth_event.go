package models

import "time"

// Auth event types. One record per meaningful attempt, success or failure.
const (
	EventLogin             = "login"
	EventResetRequest      = "reset_request"
	EventResetLinkRequest  = "reset_link_request"
	EventResetLinkComplete = "reset_link_complete"
	EventVerification      = "verification"
)

// AuthEvent is append-only; corrections are new events, never updates.
type AuthEvent struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Identifier string    `json:"identifier"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail"`
	AlertFlag  bool      `json:"alert_flag"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuthEventFilter struct {
	Type       string // exact match, empty = any
	Identifier string // substring match, empty = any
	Limit      int
}

// AuthEventStats holds aggregates over the filtered set, not the whole log.
type AuthEventStats struct {
	Total   int            `json:"total"`
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
	ByType  map[string]int `json:"by_type"`
}

type SuspiciousIdentifier struct {
	Identifier   string `json:"identifier"`
	FailureCount int    `json:"failure_count"`
}

type DetectorSnapshot struct {
	RecentFailures        int                    `json:"recent_failures"`
	LastHour              int                    `json:"last_hour"`
	LastDay               int                    `json:"last_day"`
	SuspiciousIdentifiers []SuspiciousIdentifier `json:"suspicious_identifiers"`
	GeneratedAt           time.Time              `json:"generated_at"`
}
