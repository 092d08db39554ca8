package filter

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/agentplay/core"
)

const defaultScannerMaxBytes = 4 * 1024 * 1024

// AuditEntry is one immutable line of the audit trail.
type AuditEntry struct {
	Seq       int64             `json:"seq"`
	SessionID string            `json:"session_id"`
	Phase     core.FilterPhase  `json:"phase"`
	Target    core.FilterTarget `json:"target"`
	Subject   string            `json:"subject"`
	Length    int               `json:"length"`
	Duration  time.Duration     `json:"duration_ns,omitempty"`
	Time      time.Time         `json:"ts"`
	// Outcome is OutcomeDiscarded for entries of a request whose turns were
	// never committed, and on the marker entry recording that discard.
	Outcome string `json:"outcome,omitempty"`
	// FromSeq is set on a discard marker: entries of the session from this
	// sequence number up to the marker belong to the discarded request.
	FromSeq int64 `json:"from_seq,omitempty"`
}

// OutcomeDiscarded tags audit entries of a discarded request.
const OutcomeDiscarded = "discarded"

// AuditOptions configures an AuditLog.
type AuditOptions struct {
	// Writer, when set, receives every entry as a JSON line.
	Writer io.Writer
	// NextSeq is the first sequence number (default 1).
	NextSeq int64
}

// ErrAuditClosed is returned when appending to a closed log.
var ErrAuditClosed = errors.New("audit log is closed")

// AuditLog is an append-only, sequenced record shared by all sessions of an
// engine. Sequence numbers increase by one per entry, across sessions.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	w       *bufio.Writer
	nextSeq int64
	closed  bool
}

// NewAuditLog creates an audit log.
func NewAuditLog(optFns ...func(o *AuditOptions)) *AuditLog {
	opts := AuditOptions{NextSeq: 1}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.NextSeq <= 0 {
		opts.NextSeq = 1
	}

	a := &AuditLog{nextSeq: opts.NextSeq}
	if opts.Writer != nil {
		a.w = bufio.NewWriter(opts.Writer)
	}

	return a
}

// Append assigns the next sequence number to e, stores it and mirrors it to
// the writer. The stored entry is returned.
func (a *AuditLog) Append(e AuditEntry) (AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return AuditEntry{}, ErrAuditClosed
	}

	return a.appendLocked(e)
}

func (a *AuditLog) appendLocked(e AuditEntry) (AuditEntry, error) {
	e.Seq = a.nextSeq
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	if a.w != nil {
		line, err := json.Marshal(e)
		if err != nil {
			return AuditEntry{}, fmt.Errorf("marshal audit entry: %w", err)
		}

		if _, err := a.w.Write(line); err != nil {
			return AuditEntry{}, fmt.Errorf("write audit entry: %w", err)
		}

		if err := a.w.WriteByte('\n'); err != nil {
			return AuditEntry{}, fmt.Errorf("write newline: %w", err)
		}
	}

	a.entries = append(a.entries, e)
	a.nextSeq++

	return e, nil
}

// NextSeq returns the sequence number the next entry will receive.
func (a *AuditLog) NextSeq() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.nextSeq
}

// Discard tags the session's entries from sequence number from onwards as
// discarded and, if any were tagged, appends a marker entry so readers of
// the mirrored stream see the same outcome. It returns the number of tagged
// entries.
func (a *AuditLog) Discard(sessionID string, from int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0

	for i := range a.entries {
		e := &a.entries[i]
		if e.SessionID == sessionID && e.Seq >= from && e.Outcome == "" {
			e.Outcome = OutcomeDiscarded
			n++
		}
	}

	if n == 0 {
		return 0, nil
	}

	if a.closed {
		return n, ErrAuditClosed
	}

	if _, err := a.appendLocked(AuditEntry{SessionID: sessionID, Outcome: OutcomeDiscarded, FromSeq: from}); err != nil {
		return n, err
	}

	return n, nil
}

// Entries returns a copy of all entries in sequence order.
func (a *AuditLog) Entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AuditEntry, len(a.entries))
	copy(out, a.entries)

	return out
}

// SessionEntries returns the entries recorded for one session.
func (a *AuditLog) SessionEntries(sessionID string) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []AuditEntry
	for _, e := range a.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}

	return out
}

// Flush writes buffered lines to the writer.
func (a *AuditLog) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return nil
	}

	return a.w.Flush()
}

// Close flushes and rejects further appends.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true

	if a.w == nil {
		return nil
	}

	return a.w.Flush()
}

// ReadAudit parses a JSON Lines audit stream.
func ReadAudit(r io.Reader) ([]AuditEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), defaultScannerMaxBytes)

	var (
		out  []AuditEntry
		line int
	)

	for scanner.Scan() {
		line++

		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		out = append(out, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
