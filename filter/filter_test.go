package filter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentplay/core"
)

var toolCtx = Context{SessionID: "s1", Target: core.TargetTool, Subject: "get_current_weather"}

func TestPIIFilter_RedactsCreditCard(t *testing.T) {
	p := NewPipeline([]Filter{NewPIIFilter(ModeAdvisory)})

	for _, run := range []func(context.Context, Context, string) Outcome{p.RunPre, p.RunPost} {
		out := run(context.Background(), toolCtx, "card 4111-1111-1111-1111 please")

		require.Len(t, out.Decisions, 1)
		d := out.Decisions[0]
		assert.Equal(t, core.VerdictModify, d.Verdict)
		require.NotEmpty(t, d.Redactions)
		assert.Equal(t, "credit_card", d.Redactions[0].Kind)
		assert.Equal(t, core.Span{Start: 5, End: 24}, d.Redactions[0].Span)
		assert.Equal(t, "card [REDACTED CREDIT_CARD] please", out.Content)
		assert.False(t, out.Blocked)
	}
}

func TestPIIFilter_DetectsAllKinds(t *testing.T) {
	f := NewPIIFilter("")
	text := "mail bob@example.com, call (555) 123-4567, ssn 123-45-6789, card 4111 1111 1111 1111"

	kinds := map[string]bool{}
	for _, r := range f.Detect(text) {
		kinds[r.Kind] = true
		assert.NotContains(t, r.Replacement, text[r.Span.Start:r.Span.End])
	}

	assert.True(t, kinds["email"])
	assert.True(t, kinds["phone"])
	assert.True(t, kinds["ssn"])
	assert.True(t, kinds["credit_card"])

	redacted, d := f.Apply(context.Background(), toolCtx, text)
	assert.Equal(t, core.VerdictModify, d.Verdict)
	assert.NotContains(t, redacted, "bob@example.com")
	assert.NotContains(t, redacted, "123-45-6789")
}

func TestPIIFilter_EarlierKindWinsOnOverlap(t *testing.T) {
	f := NewPIIFilter(ModeAdvisory)

	rs := f.Detect("4111111111111111")
	require.Len(t, rs, 1)
	assert.Equal(t, "credit_card", rs[0].Kind)
}

func TestPIIFilter_AllowsCleanContent(t *testing.T) {
	out := NewPipeline([]Filter{NewPIIFilter(ModeAdvisory)}).RunPre(context.Background(), toolCtx, `{"location":"Paris"}`)

	require.Len(t, out.Decisions, 1)
	assert.Equal(t, core.VerdictAllow, out.Decisions[0].Verdict)
	assert.Equal(t, `{"location":"Paris"}`, out.Content)
}

func TestPIIFilter_BlockModeStopsChain(t *testing.T) {
	audit := NewAuditLog()
	p := NewPipeline([]Filter{NewPIIFilter(ModeBlock), NewLoggingFilter(audit, nil)})

	out := p.RunPre(context.Background(), toolCtx, "email me at a@b.io")
	assert.True(t, out.Blocked)
	require.Len(t, out.Decisions, 1, "filters after a block must not run")

	d, ok := out.BlockedBy()
	require.True(t, ok)
	assert.Equal(t, PIIFilterName, d.Filter)
	assert.Equal(t, core.PhasePre, d.Phase)
	assert.Equal(t, core.TargetTool, d.Target)
	assert.Equal(t, "email", d.Redactions[0].Kind)
	assert.Empty(t, audit.Entries())
}

type upperFilter struct{}

func (upperFilter) Name() string { return "upper" }
func (upperFilter) Apply(_ context.Context, _ Context, s string) (string, core.FilterDecision) {
	return strings.ToUpper(s), core.FilterDecision{Verdict: core.VerdictModify}
}

type captureFilter struct{ seen []string }

func (c *captureFilter) Name() string { return "capture" }
func (c *captureFilter) Apply(_ context.Context, _ Context, s string) (string, core.FilterDecision) {
	c.seen = append(c.seen, s)
	return s, core.FilterDecision{}
}

func TestPipeline_EachFilterSeesPriorOutput(t *testing.T) {
	capture := &captureFilter{}
	p := NewPipeline([]Filter{upperFilter{}, capture})

	out := p.RunPost(context.Background(), Context{Target: core.TargetAgentOutput}, "hello")
	assert.Equal(t, "HELLO", out.Content)
	assert.Equal(t, []string{"HELLO"}, capture.seen)
	require.Len(t, out.Decisions, 2)
	assert.Equal(t, core.VerdictAllow, out.Decisions[1].Verdict)
	assert.Equal(t, []string{"upper", "capture"}, p.Names())
}

func TestPipeline_NilAndEmptyAllow(t *testing.T) {
	var p *Pipeline
	assert.Equal(t, "x", p.RunPre(context.Background(), toolCtx, "x").Content)
	assert.Empty(t, NewPipeline(nil).RunPost(context.Background(), toolCtx, "x").Decisions)
}

func TestLoggingFilter_SequencesAndMirrors(t *testing.T) {
	var buf bytes.Buffer

	audit := NewAuditLog(func(o *AuditOptions) { o.Writer = &buf })
	lf := NewLoggingFilter(audit, nil)
	p := NewPipeline([]Filter{lf})

	out := p.RunPre(context.Background(), toolCtx, "abc")
	assert.Equal(t, "abc", out.Content)
	assert.Equal(t, core.VerdictAllow, out.Decisions[0].Verdict)

	p.RunPost(context.Background(), toolCtx, "result")
	p.RunPre(context.Background(), Context{SessionID: "s2", Target: core.TargetAgentOutput, Subject: "Critic"}, "x")

	entries := audit.Entries()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, core.PhasePost, entries[1].Phase)
	assert.Equal(t, 6, entries[1].Length)
	assert.Len(t, audit.SessionEntries("s1"), 2)

	require.NoError(t, audit.Close())
	parsed, err := ReadAudit(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries[2].Seq, parsed[2].Seq)

	_, err = audit.Append(AuditEntry{})
	assert.ErrorIs(t, err, ErrAuditClosed)
}

func TestLoggingFilter_ForgetsUnfinishedInvocations(t *testing.T) {
	lf := NewLoggingFilter(NewAuditLog(), nil)
	blocker := NewPIIFilter(ModeBlock)
	p := NewPipeline([]Filter{lf, blocker})
	ctx := context.Background()

	p.RunPre(ctx, Context{SessionID: "s1", Target: core.TargetUserInput, Subject: core.UserSpeaker}, "hello")
	assert.Empty(t, lf.started)

	out := p.RunPre(ctx, toolCtx, "card 4111-1111-1111-1111")
	require.True(t, out.Blocked)
	assert.Len(t, lf.started, 1)

	p.Abandon(toolCtx)
	assert.Empty(t, lf.started)

	p.RunPre(ctx, toolCtx, "clean")
	p.RunPost(ctx, toolCtx, "result")
	assert.Empty(t, lf.started)

	p.Abandon(toolCtx)
	NewPipeline(nil).Abandon(toolCtx)

	var nilPipeline *Pipeline
	nilPipeline.Abandon(toolCtx)
	assert.Len(t, lf.Audit().Entries(), 4)
}

func TestAuditLog_DiscardTagsSessionEntries(t *testing.T) {
	var buf bytes.Buffer

	audit := NewAuditLog(func(o *AuditOptions) { o.Writer = &buf })

	_, err := audit.Append(AuditEntry{SessionID: "s1", Phase: core.PhasePre})
	require.NoError(t, err)

	from := audit.NextSeq()
	assert.Equal(t, int64(2), from)

	_, err = audit.Append(AuditEntry{SessionID: "s1", Phase: core.PhasePre})
	require.NoError(t, err)
	_, err = audit.Append(AuditEntry{SessionID: "s2", Phase: core.PhasePre})
	require.NoError(t, err)

	n, err := audit.Discard("s1", from)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries := audit.Entries()
	require.Len(t, entries, 4)
	assert.Empty(t, entries[0].Outcome)
	assert.Equal(t, OutcomeDiscarded, entries[1].Outcome)
	assert.Empty(t, entries[2].Outcome)
	assert.Equal(t, AuditEntry{Seq: 4, SessionID: "s1", Outcome: OutcomeDiscarded, FromSeq: from, Time: entries[3].Time}, entries[3])

	n, err = audit.Discard("s2", audit.NextSeq())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, audit.Flush())
	parsed, err := ReadAudit(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 4)
	assert.Equal(t, from, parsed[3].FromSeq)
}

func TestAuditLog_ConcurrentSequenceIsGapless(t *testing.T) {
	audit := NewAuditLog()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = audit.Append(AuditEntry{SessionID: "s"})
			}
		}()
	}
	wg.Wait()

	for i, e := range audit.Entries() {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestFromConfig(t *testing.T) {
	audit := NewAuditLog()

	p, err := FromConfig([]Config{{Name: LoggingFilterName}, {Name: PIIFilterName, Mode: ModeBlock}}, audit, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{LoggingFilterName, PIIFilterName}, p.Names())

	_, err = FromConfig([]Config{{Name: "profanity"}}, audit, nil)
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = FromConfig([]Config{{Name: PIIFilterName, Mode: "loud"}}, audit, nil)
	assert.True(t, errors.Is(err, core.ErrValidation))
}
