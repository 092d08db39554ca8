package filter

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/logging"
)

// LoggingFilterName is the configuration name of the logging filter.
const LoggingFilterName = "invocation_logging"

// LoggingFilter records every observation in an AuditLog. It never modifies content.
type LoggingFilter struct {
	audit  *AuditLog
	logger logging.Logger

	mu      sync.Mutex
	started map[string]time.Time
}

// NewLoggingFilter creates a logging filter writing to audit.
func NewLoggingFilter(audit *AuditLog, logger logging.Logger) *LoggingFilter {
	if audit == nil {
		audit = NewAuditLog()
	}

	return &LoggingFilter{
		audit:   audit,
		logger:  logging.OrNoOp(logger),
		started: make(map[string]time.Time),
	}
}

// Name implements Filter.
func (f *LoggingFilter) Name() string { return LoggingFilterName }

// Audit returns the underlying audit log.
func (f *LoggingFilter) Audit() *AuditLog { return f.audit }

// Abandon drops the start time recorded by the pre phase of fc.
func (f *LoggingFilter) Abandon(fc Context) {
	f.mu.Lock()
	delete(f.started, startKey(fc))
	f.mu.Unlock()
}

func startKey(fc Context) string {
	return fc.SessionID + "|" + string(fc.Target) + "|" + fc.Subject
}

// Apply implements Filter.
func (f *LoggingFilter) Apply(_ context.Context, fc Context, content string) (string, core.FilterDecision) {
	key := startKey(fc)

	var dur time.Duration

	f.mu.Lock()
	if fc.Phase == core.PhasePre {
		// User input has no post phase.
		if fc.Target != core.TargetUserInput {
			f.started[key] = time.Now()
		}
	} else if t, ok := f.started[key]; ok {
		dur = time.Since(t)
		delete(f.started, key)
	}
	f.mu.Unlock()

	entry, err := f.audit.Append(AuditEntry{
		SessionID: fc.SessionID,
		Phase:     fc.Phase,
		Target:    fc.Target,
		Subject:   fc.Subject,
		Length:    len(content),
		Duration:  dur,
	})
	if err != nil {
		f.logger.Warn("filter.audit.append_failed", "session_id", fc.SessionID, "error", err.Error())
		return content, core.FilterDecision{Verdict: core.VerdictAllow, Reason: err.Error()}
	}

	msg := "filter.invocation.invoking"
	if fc.Phase == core.PhasePost {
		msg = "filter.invocation.invoked"
	}

	f.logger.Info(msg, "seq", entry.Seq, "session_id", fc.SessionID, "target", fc.Target, "subject", fc.Subject, "duration_ms", dur.Milliseconds())

	return content, core.FilterDecision{Verdict: core.VerdictAllow}
}
