package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "bridge.authenticate", "login.password")
	Action string `json:"action"`

	// Outcome is the terminal state reached (e.g. "bridged", "suppressed")
	Outcome string `json:"outcome,omitempty"`

	// Reason is the error kind if the action did not succeed
	Reason ErrorKind `json:"reason,omitempty"`

	// Subject is the external subject (sub claim), if known
	Subject string `json:"subject,omitempty"`

	// Username is the internal account the action was performed for, if known
	Username string `json:"username,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// TokenFingerprint identifies an issued session token without revealing it
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	// Metadata contains additional details
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}
