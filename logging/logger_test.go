package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	msgs []string
	args [][]any
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.record(msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.record(msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.record(msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.record(msg, args) }

func (r *recordingLogger) record(msg string, args []any) {
	r.msgs = append(r.msgs, msg)
	r.args = append(r.args, args)
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer

	l := New(Config{Level: LogLevelDebug, Format: "json", Output: &buf, Component: "engine"})
	l.Info("engine.session.started", "session_id", "s1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine.session.started", entry["msg"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "s1", entry["session_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	l := New(Config{Level: LogLevelWarn, Format: "text", Output: &buf})
	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithWrapsForeignLogger(t *testing.T) {
	rec := &recordingLogger{}

	l := With(rec, "session_id", "abc")
	l.Info("hello", "k", 1)

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, []any{"session_id", "abc", "k", 1}, rec.args[0])
}

func TestWithNil(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, With(nil, "a", 1))
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelError, ParseLevel("ERROR"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}
