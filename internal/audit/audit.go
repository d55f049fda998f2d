// Package audit records bridge decisions, logins and registrations.
package audit

import (
	"fmt"
	"time"

	"github.com/darmiel/sessionbridge/internal/config"
	"github.com/darmiel/sessionbridge/internal/core"
)

const (
	ActionExchange      = "bridge.exchange"
	ActionLoginPassword = "login.password"
	ActionRegister      = "account.register"
)

// New builds the auditor selected by cfg. A disabled audit log yields a NoopAuditor.
func New(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "file", "":
		return NewFileAuditor(cfg.Path)
	case "memory":
		return NewBoundedInMemoryAuditor(cfg.Capacity), nil
	case "log":
		return NewLogAuditor(nil), nil
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Type)
	}
}

// stamp fills in the time of entries logged without one. Times are stored in UTC.
func stamp(entry core.AuditEntry) core.AuditEntry {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	entry.Time = entry.Time.UTC()
	return entry
}

var _ core.Auditor = (*NoopAuditor)(nil)

// NoopAuditor discards all entries. It is used when auditing is disabled.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (*NoopAuditor) Log(core.AuditEntry) error { return nil }

func (*NoopAuditor) Close() error { return nil }
