package audit

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/sessionbridge/internal/core"
)

var _ core.Auditor = (*LogAuditor)(nil)

// LogAuditor writes audit entries as structured log events.
type LogAuditor struct {
	logger zerolog.Logger
}

// NewLogAuditor logs to logger, or to the global logger if logger is nil.
func NewLogAuditor(logger *zerolog.Logger) *LogAuditor {
	if logger == nil {
		logger = &log.Logger
	}
	return &LogAuditor{logger: logger.With().Str("component", "audit").Logger()}
}

func (l *LogAuditor) Log(entry core.AuditEntry) error {
	entry = stamp(entry)

	ev := l.logger.Info()
	if !entry.Success {
		ev = l.logger.Warn()
	}
	ev = ev.
		Str("correlation_id", entry.ID).
		Time("audit_time", entry.Time).
		Str("action", entry.Action).
		Bool("success", entry.Success)
	if entry.Outcome != "" {
		ev = ev.Str("outcome", entry.Outcome)
	}
	if entry.Reason != "" {
		ev = ev.Str("reason", string(entry.Reason))
	}
	if entry.Username != "" {
		ev = ev.Str("username", entry.Username)
	}
	if entry.Subject != "" {
		ev = ev.Str("subject", entry.Subject)
	}
	if entry.TokenFingerprint != "" {
		ev = ev.Str("token_fingerprint", entry.TokenFingerprint)
	}
	if entry.Error != "" {
		ev = ev.Str("error", entry.Error)
	}
	if len(entry.Metadata) > 0 {
		ev = ev.Interface("metadata", entry.Metadata)
	}
	ev.Msg("audit")
	return nil
}

func (l *LogAuditor) Close() error {
	return nil
}
