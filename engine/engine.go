package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentplay/agent"
	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/filter"
	"github.com/hupe1980/agentplay/flow"
	"github.com/hupe1980/agentplay/logging"
	"github.com/hupe1980/agentplay/memory"
	"github.com/hupe1980/agentplay/model"
	"github.com/hupe1980/agentplay/plugin"
	"github.com/hupe1980/agentplay/process"
	"github.com/hupe1980/agentplay/session"
	"github.com/hupe1980/agentplay/tool"
)

// Messages synthesized by the built-in process actions.
const (
	IntroMessageFormat = "Welcome to the Process Framework Chatbot! Type '%s' to end the conversation."
	FarewellMessage    = "Goodbye! Chat session ended."
)

// Options configures an Engine using the functional options pattern. Every
// dependency has an in-memory default so an Engine works out of the box.
//
// Example:
//
//	e := engine.New(func(o *engine.Options) {
//	    o.Model = openai.NewModel()
//	    o.Archive = sqliteArchive
//	})
type Options struct {
	// Config contains engine-wide limits and session defaults.
	Config Config

	// Model generates agent replies. Defaults to a MockModel.
	Model model.Model

	// Registry holds the tools sessions can enable. The default plugins are
	// installed into it by New.
	Registry *tool.Registry

	// Catalog maps plugin names to tool names.
	Catalog *plugin.Catalog

	// Weather backs the Weather plugin. Tests inject a seeded instance.
	Weather *plugin.Weather

	// Memory is the memory capability handed to tools.
	Memory core.MemoryStore

	// SeedData is loaded into Memory by Seed and after a reset that clears memory.
	SeedData map[string][]memory.Entry

	// Archive receives transcripts of reset sessions.
	Archive core.Archive

	// Audit is shared by every invocation_logging filter.
	Audit *filter.AuditLog

	// Limiter paces model calls across all sessions. Nil means unpaced.
	Limiter *rate.Limiter

	Callbacks *CallbackManager

	Logger logging.Logger
}

// Engine owns the sessions and drives each request through the session's
// process graph, scheduler and filter pipeline.
//
// Concurrency Model:
//   - Requests of one session are serialized by the session lock
//   - Requests of different sessions run in parallel, capped by
//     Config.MaxConcurrentRequests
//   - All changes of a request are staged and committed at the end, so a
//     failed or cancelled request leaves the session untouched
type Engine struct {
	config    Config
	model     model.Model
	registry  *tool.Registry
	catalog   *plugin.Catalog
	memory    core.MemoryStore
	seedData  map[string][]memory.Entry
	archive   core.Archive
	audit     *filter.AuditLog
	limiter   *rate.Limiter
	callbacks *CallbackManager
	logger    logging.Logger

	// slots caps concurrent requests; nil when unbounded.
	slots chan struct{}

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an Engine and installs the default plugins.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Config:    DefaultConfig,
		Model:     model.NewMockModel("mock", "mock"),
		Registry:  tool.NewRegistry(),
		Catalog:   plugin.NewCatalog(),
		Memory:    memory.NewInMemoryStore(),
		Archive:   session.NewInMemoryArchive(),
		Callbacks: NewCallbackManager(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.Audit == nil {
		opts.Audit = filter.NewAuditLog()
	}

	if opts.Config.DefaultMaxIterations <= 0 {
		opts.Config.DefaultMaxIterations = agent.DefaultMaxIterations
	}

	if opts.Config.MaxToolRounds <= 0 {
		opts.Config.MaxToolRounds = flow.DefaultMaxToolRounds
	}

	for _, p := range plugin.Defaults(opts.Weather) {
		if err := opts.Catalog.Install(opts.Registry, p); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		config:    opts.Config,
		model:     opts.Model,
		registry:  opts.Registry,
		catalog:   opts.Catalog,
		memory:    opts.Memory,
		seedData:  opts.SeedData,
		archive:   opts.Archive,
		audit:     opts.Audit,
		limiter:   opts.Limiter,
		callbacks: opts.Callbacks,
		logger:    opts.Logger,
		sessions:  make(map[string]*Session),
	}

	if n := opts.Config.MaxConcurrentRequests; n > 0 {
		e.slots = make(chan struct{}, n)
	}

	return e, nil
}

// Result describes the effect of one request.
type Result struct {
	SessionID string `json:"session_id"`

	// NewTurns are the turns appended by the request in index order.
	NewTurns []core.Turn `json:"new_turns"`

	// ToolCalls are the calls made during the request in request order.
	ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`

	CurrentStep string `json:"current_step"`
	Ended       bool   `json:"ended"`

	// Iterations is the team iteration counter after the request.
	Iterations int `json:"iterations"`

	// StopReason tells why the scheduler stopped, empty if it did not run.
	StopReason agent.StopReason `json:"stop_reason,omitempty"`

	Process process.Result `json:"process"`
}

// Registry returns the tool registry shared by all sessions.
func (e *Engine) Registry() *tool.Registry { return e.registry }

// Memory returns the memory capability.
func (e *Engine) Memory() core.MemoryStore { return e.memory }

// Archive returns the transcript archive.
func (e *Engine) Archive() core.Archive { return e.archive }

// Audit returns the shared audit log.
func (e *Engine) Audit() *filter.AuditLog { return e.audit }

// Plugins returns the installed plugin names.
func (e *Engine) Plugins() []string { return e.catalog.Names() }

// Seed loads the configured seed data into memory.
func (e *Engine) Seed(ctx context.Context) error {
	if len(e.seedData) == 0 {
		return nil
	}

	return memory.Seed(ctx, e.memory, e.seedData)
}

// StartSession validates cfg, creates a session and, with AutoStart, sends
// StartProcess. It returns the session id and the turns produced so far.
func (e *Engine) StartSession(ctx context.Context, cfg SessionConfig) (string, Result, error) {
	cfg, err := cfg.normalize(e.config)
	if err != nil {
		return "", Result{}, err
	}

	graph, err := process.Builtin(cfg.Process)
	if err != nil {
		return "", Result{}, err
	}

	tools, err := e.catalog.Expand(e.registry, cfg.Plugins)
	if err != nil {
		return "", Result{}, err
	}

	id := core.NewID()
	logger := logging.With(e.logger, "session_id", id)

	filters, err := filter.FromConfig(cfg.Filters, e.audit, logger)
	if err != nil {
		return "", Result{}, err
	}

	s := &Session{
		id:      id,
		config:  cfg,
		tools:   tools,
		conv:    core.NewConversation(graph.Entry()),
		graph:   graph,
		filters: filters,
		lock:    make(chan struct{}, 1),
	}

	s.flow = flow.New(e.model, e.registry, func(o *flow.Options) {
		o.Logger = logger
		o.Filters = filters
		o.Memory = e.memory
		o.Tools = tools
		o.MaxToolRounds = e.config.MaxToolRounds
		o.Retry = e.config.Retry
		o.Limiter = e.limiter
		o.Temperature = cfg.Temperature
		o.HistoryLimit = cfg.HistoryLimit
		o.Vars = map[string]any{
			"mode": string(cfg.Mode),
			"team": cfg.AgentNames(),
		}
	})

	switch cfg.Mode {
	case ModeTeam:
		s.sched, err = agent.NewTeam(cfg.Agents, s.flow, func(o *agent.TeamOptions) {
			o.Logger = logger
			o.MaxIterations = cfg.MaxIterations
			o.TerminationMarker = cfg.TerminationMarker
		})
	default:
		s.sched, err = agent.NewSingle(cfg.Agents[0], s.flow)
	}

	if err != nil {
		return "", Result{}, err
	}

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	logger.Info("engine.session.started",
		"mode", cfg.Mode,
		"agents", cfg.AgentNames(),
		"process", graph.Name(),
		"tools", tools,
	)

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackSessionStarted, &CallbackContext{SessionID: id}); err != nil {
		e.remove(id)
		return "", Result{}, err
	}

	res := Result{SessionID: id, CurrentStep: graph.Entry()}

	if cfg.AutoStart {
		if entry, ok := graph.Step(graph.Entry()); ok && entry.Handles(core.EventStartProcess) {
			res, err = e.request(ctx, s, constEvent(core.Event{ID: core.EventStartProcess}))
			if err != nil {
				return id, Result{SessionID: id, CurrentStep: s.conv.Step()}, err
			}
		}
	}

	return id, res, nil
}

// PostMessage sends user text to a session. Text equal to the session's
// exit keyword becomes an Exit event when the current step handles one.
func (e *Engine) PostMessage(ctx context.Context, sessionID, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, &core.ValidationError{Field: "text", Message: "must not be empty"}
	}

	s, err := e.session(sessionID)
	if err != nil {
		return Result{}, err
	}

	return e.request(ctx, s, func(step process.Step) core.Event {
		kw := s.config.ExitKeyword
		if kw != "" && strings.EqualFold(strings.TrimSpace(text), kw) && step.Handles(core.EventExit) {
			return core.Event{ID: core.EventExit}
		}

		return core.Event{ID: core.EventUserInputReceived, Payload: text}
	})
}

// AdvanceProcess sends an explicit event to a session's process graph.
func (e *Engine) AdvanceProcess(ctx context.Context, sessionID string, event core.EventID, payload string) (Result, error) {
	if event == "" {
		return Result{}, &core.ValidationError{Field: "event", Message: "must not be empty"}
	}

	s, err := e.session(sessionID)
	if err != nil {
		return Result{}, err
	}

	return e.request(ctx, s, constEvent(core.Event{ID: event, Payload: payload}))
}

// ResetSession archives the session's transcript and removes the session.
// With clearMemory the memory capability is cleared and re-seeded. An
// in-flight request of the session completes first.
func (e *Engine) ResetSession(ctx context.Context, sessionID string, clearMemory bool) error {
	s, err := e.session(sessionID)
	if err != nil {
		return err
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if s.removed {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	transcript := s.transcript()
	if err := e.archive.Save(ctx, transcript); err != nil {
		return fmt.Errorf("archive session %s: %w", sessionID, err)
	}

	s.removed = true
	e.remove(sessionID)

	logger := logging.With(e.logger, "session_id", sessionID)
	logger.Info("engine.session.reset", "turns", len(transcript.Turns), "clear_memory", clearMemory)

	if clearMemory {
		if err := e.memory.Clear(ctx); err != nil {
			return fmt.Errorf("clear memory: %w", err)
		}

		if err := e.Seed(ctx); err != nil {
			return fmt.Errorf("seed memory: %w", err)
		}
	}

	return e.callbacks.ExecuteCallbacks(ctx, CallbackSessionReset, &CallbackContext{
		SessionID: sessionID,
		Turns:     transcript.Turns,
		Metadata:  map[string]any{"clear_memory": clearMemory},
	})
}

// Snapshot returns a copy of a session's state.
func (e *Engine) Snapshot(sessionID string) (Snapshot, error) {
	s, err := e.session(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	return s.snapshot(), nil
}

// Sessions returns the ids of live sessions in sorted order.
func (e *Engine) Sessions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

func (e *Engine) session(id string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}

	return s, nil
}

func (e *Engine) remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.sessions, id)
}

func constEvent(ev core.Event) func(process.Step) core.Event {
	return func(process.Step) core.Event { return ev }
}

// request runs one event through the session under its lock. The event is
// resolved against the current step once the lock is held.
func (e *Engine) request(ctx context.Context, s *Session, resolve func(step process.Step) core.Event) (Result, error) {
	if e.slots != nil {
		select {
		case e.slots <- struct{}{}:
			defer func() { <-e.slots }()
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	if err := s.acquire(ctx); err != nil {
		return Result{}, err
	}
	defer s.release()

	if s.removed {
		return Result{}, fmt.Errorf("%w: %s", core.ErrSessionNotFound, s.id)
	}

	tx := s.conv.Begin()
	auditFrom := e.audit.NextSeq()

	current, _ := s.graph.Step(tx.Step())
	ev := resolve(current)

	logger := logging.With(e.logger, "session_id", s.id, "event", string(ev.ID))

	fail := func(err error) (Result, error) {
		tx.Discard()
		logger.Warn("engine.request.failed", "step", current.ID, "error", err.Error())

		if _, aerr := e.audit.Discard(s.id, auditFrom); aerr != nil {
			logger.Warn("engine.audit.discard_failed", "error", aerr.Error())
		}

		_ = e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{
			SessionID: s.id,
			Event:     &ev,
			Metadata:  map[string]any{"error": err, "step": current.ID},
		})

		return Result{}, err
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeRequest, &CallbackContext{SessionID: s.id, Event: &ev}); err != nil {
		return fail(err)
	}

	runner := &stepRunner{session: s, tx: tx, logger: logger}

	pres, err := s.graph.Advance(ctx, tx.Step(), ev, runner)
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		return fail(err)
	}

	tx.SetStep(pres.To)

	res := Result{
		SessionID:   s.id,
		NewTurns:    tx.Staged(),
		CurrentStep: pres.To,
		Ended:       pres.Ended,
		Iterations:  tx.Iterations(),
		StopReason:  runner.reason,
		Process:     pres,
	}

	for _, t := range res.NewTurns {
		if t.ToolCall != nil {
			res.ToolCalls = append(res.ToolCalls, t.ToolCall.Clone())
		}
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterRequest, &CallbackContext{
		SessionID: s.id,
		Event:     &ev,
		Turns:     res.NewTurns,
		Metadata:  map[string]any{"step": pres.To},
	}); err != nil {
		return fail(err)
	}

	if err := tx.Commit(); err != nil {
		return fail(err)
	}

	logger.Info("engine.request.completed",
		"from", pres.From,
		"to", pres.To,
		"turns", len(res.NewTurns),
		"tool_calls", len(res.ToolCalls),
		"ended", pres.Ended,
	)

	return res, nil
}

// stepRunner executes process actions against the request's transaction.
type stepRunner struct {
	session *Session
	tx      *core.Tx
	logger  logging.Logger
	reason  agent.StopReason
}

// RunStep implements process.Runner.
func (r *stepRunner) RunStep(ctx context.Context, step process.Step, ev core.Event) error {
	switch step.Action {
	case process.ActionIntro:
		kw := r.session.config.ExitKeyword
		if kw == "" {
			kw = DefaultExitKeyword
		}

		r.say(fmt.Sprintf(IntroMessageFormat, kw))
	case process.ActionRespond:
		return r.respond(ctx, ev)
	case process.ActionFarewell:
		r.say(FarewellMessage)
	case "":
	default:
		return &core.ValidationError{Field: "action", Value: step.Action, Message: fmt.Sprintf("unknown action on step %q", step.ID)}
	}

	return nil
}

func (r *stepRunner) say(text string) {
	r.tx.Append(core.Turn{
		Role:        core.RoleAgent,
		Speaker:     core.OrchestratorSpeaker,
		Content:     text,
		Synthesized: true,
	})
}

// respond records the user input and lets the scheduler answer it. Without
// input the scheduler answers the existing history.
func (r *stepRunner) respond(ctx context.Context, ev core.Event) error {
	if strings.TrimSpace(ev.Payload) == "" {
		r.logger.Debug("engine.input.empty", "event", ev.ID)
		return r.schedule(ctx)
	}

	out := r.session.filters.RunPre(ctx, filter.Context{
		SessionID: r.session.id,
		Target:    core.TargetUserInput,
		Subject:   core.UserSpeaker,
	}, ev.Payload)

	turn := core.Turn{
		Role:      core.RoleUser,
		Speaker:   core.UserSpeaker,
		Content:   out.Content,
		Decisions: out.Decisions,
	}

	if d, blocked := out.BlockedBy(); blocked {
		turn.Content = fmt.Sprintf("[message withheld by the %s filter]", d.Filter)
		turn.Status = core.TurnBlocked
		r.tx.Append(turn)

		r.tx.Append(core.Turn{
			Role:        core.RoleAgent,
			Speaker:     core.OrchestratorSpeaker,
			Content:     fmt.Sprintf("Your message was blocked by the %s filter and was not processed.", d.Filter),
			Status:      core.TurnBlocked,
			Synthesized: true,
		})

		r.logger.Info("engine.input.blocked", "filter", d.Filter)

		return nil
	}

	r.tx.Append(turn)

	return r.schedule(ctx)
}

// schedule lets the session's agents answer the staged history.
func (r *stepRunner) schedule(ctx context.Context) error {
	outcome, err := r.session.sched.Run(ctx, r.tx, r.session.id)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("run scheduler: %w", err)
	}

	r.reason = outcome.Reason

	return nil
}
