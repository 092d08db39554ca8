// Package agentplay is the entry point of the orchestration engine. It wires
// a model, the built-in plugins, memory and the transcript archive into an
// engine and exposes the session operations.
//
// Example:
//
//	ap, err := agentplay.New(func(o *agentplay.Options) {
//	    o.Model = openai.NewModel()
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	id, _, _ := ap.StartSession(ctx, agentplay.SessionConfig{Plugins: []string{"Weather"}})
//	res, _ := ap.PostMessage(ctx, id, "What's the weather in Paris?")
package agentplay

import (
	"context"
	"io"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/engine"
	"github.com/hupe1980/agentplay/filter"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/memory"
	"github.com/hupe1980/agentplay/model"
	"github.com/hupe1980/agentplay/plugin"
	"github.com/hupe1980/agentplay/session"
)

// Re-exported engine types so callers rarely need to import engine.
type (
	SessionConfig = engine.SessionConfig
	Result        = engine.Result
	Snapshot      = engine.Snapshot
	Mode          = engine.Mode
)

const (
	ModeSingle = engine.ModeSingle
	ModeTeam   = engine.ModeTeam
)

// Options configures an AgentPlay instance. Every dependency defaults to an
// in-memory implementation.
type Options struct {
	EngineConfig engine.Config

	// Model generates agent replies. Defaults to a MockModel.
	Model model.Model

	Memory core.MemoryStore

	// SeedData is loaded into Memory at start and after a memory-clearing
	// reset. Defaults to memory.SampleData(); set DisableSeed to skip.
	SeedData    map[string][]memory.Entry
	DisableSeed bool

	// Archive stores transcripts of reset sessions. Defaults to an in-memory archive.
	Archive core.Archive

	// AuditWriter, when set, receives invocation_logging entries as JSON Lines.
	AuditWriter io.Writer

	// Weather backs the Weather plugin. Nil uses a randomly seeded source.
	Weather *plugin.Weather

	// Limiter paces model calls.
	Limiter *rate.Limiter

	Callbacks *engine.CallbackManager

	Logger logging.Logger
}

// AgentPlay is the façade over the engine.
type AgentPlay struct {
	engine *engine.Engine
	audit  *filter.AuditLog
}

// New creates an AgentPlay and seeds its memory.
func New(optFns ...func(o *Options)) (*AgentPlay, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Model:        model.NewMockModel("mock", "mock"),
		Memory:       memory.NewInMemoryStore(),
		SeedData:     memory.SampleData(),
		Archive:      session.NewInMemoryArchive(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.DisableSeed {
		opts.SeedData = nil
	}

	audit := filter.NewAuditLog(func(o *filter.AuditOptions) { o.Writer = opts.AuditWriter })

	e, err := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Model = opts.Model
		o.Memory = opts.Memory
		o.SeedData = opts.SeedData
		o.Archive = opts.Archive
		o.Audit = audit
		o.Weather = opts.Weather
		o.Limiter = opts.Limiter
		o.Logger = opts.Logger

		if opts.Callbacks != nil {
			o.Callbacks = opts.Callbacks
		}
	})
	if err != nil {
		return nil, err
	}

	if err := e.Seed(context.Background()); err != nil {
		return nil, err
	}

	opts.Logger.Info("agentplay.started", "model", opts.Model.Info().Name, "plugins", e.Plugins())

	return &AgentPlay{engine: e, audit: audit}, nil
}

// StartSession creates a session and returns its id and initial turns.
func (a *AgentPlay) StartSession(ctx context.Context, cfg SessionConfig) (string, []core.Turn, error) {
	id, res, err := a.engine.StartSession(ctx, cfg)
	return id, res.NewTurns, err
}

// PostMessage sends user text to a session.
func (a *AgentPlay) PostMessage(ctx context.Context, sessionID, text string) (Result, error) {
	return a.engine.PostMessage(ctx, sessionID, text)
}

// AdvanceProcess sends an explicit process event to a session.
func (a *AgentPlay) AdvanceProcess(ctx context.Context, sessionID string, event core.EventID, payload string) (Result, error) {
	return a.engine.AdvanceProcess(ctx, sessionID, event, payload)
}

// ResetSession archives and removes a session, optionally clearing and
// re-seeding memory.
func (a *AgentPlay) ResetSession(ctx context.Context, sessionID string, clearMemory bool) error {
	return a.engine.ResetSession(ctx, sessionID, clearMemory)
}

// SearchMemory queries a memory collection.
func (a *AgentPlay) SearchMemory(ctx context.Context, collection, query string, k int) ([]core.SearchResult, error) {
	return a.engine.Memory().Search(ctx, collection, query, k)
}

// AddMemory stores text in a memory collection.
func (a *AgentPlay) AddMemory(ctx context.Context, collection, id, text string) error {
	return a.engine.Memory().Add(ctx, collection, id, text)
}

// Collections lists the memory collections.
func (a *AgentPlay) Collections(ctx context.Context) ([]string, error) {
	return a.engine.Memory().Collections(ctx)
}

// Snapshot returns a copy of a session's state.
func (a *AgentPlay) Snapshot(sessionID string) (Snapshot, error) {
	return a.engine.Snapshot(sessionID)
}

// Sessions lists live session ids.
func (a *AgentPlay) Sessions() []string { return a.engine.Sessions() }

// Transcript loads the archived transcript of a reset session.
func (a *AgentPlay) Transcript(ctx context.Context, sessionID string) (core.Transcript, error) {
	return a.engine.Archive().Load(ctx, sessionID)
}

// AuditTrail returns every audit entry recorded so far.
func (a *AgentPlay) AuditTrail() []filter.AuditEntry { return a.audit.Entries() }

// Close flushes the audit log.
func (a *AgentPlay) Close() error { return a.audit.Close() }
