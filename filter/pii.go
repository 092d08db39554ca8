package filter

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/hupe1980/agentplay/core"
)

// Mode selects how a detection filter reacts to a match.
type Mode string

const (
	// ModeAdvisory redacts matches and lets the content through.
	ModeAdvisory Mode = "advisory"
	// ModeBlock rejects content containing any match.
	ModeBlock Mode = "block"
)

// PIIFilterName is the configuration name of the PII filter.
const PIIFilterName = "pii_detection"

// Pattern is one detectable class of sensitive data.
type Pattern struct {
	Kind string
	Re   *regexp.Regexp
}

// DefaultPatterns returns the built-in classes in precedence order. When two
// matches overlap the earlier class wins.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Kind: "credit_card", Re: regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
		{Kind: "email", Re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
		{Kind: "phone", Re: regexp.MustCompile(`(?:\+\d{1,3}[-\s]?)?(?:\(\d{3}\)|\b\d{3})[-\s]?\d{3}[-\s]?\d{4}\b`)},
		{Kind: "ssn", Re: regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)},
	}
}

// PIIFilter detects and redacts personally identifiable information.
type PIIFilter struct {
	mode     Mode
	patterns []Pattern
}

// NewPIIFilter creates a PII filter. An empty mode means advisory.
func NewPIIFilter(mode Mode, patterns ...Pattern) *PIIFilter {
	if mode == "" {
		mode = ModeAdvisory
	}

	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	return &PIIFilter{mode: mode, patterns: patterns}
}

// Name implements Filter.
func (f *PIIFilter) Name() string { return PIIFilterName }

// Mode returns the configured mode.
func (f *PIIFilter) Mode() Mode { return f.mode }

// Detect returns the non-overlapping matches in content ordered by position.
// Spans address content; the matched text is not returned.
func (f *PIIFilter) Detect(content string) []core.Redaction {
	var found []core.Redaction

	for _, p := range f.patterns {
		for _, loc := range p.Re.FindAllStringIndex(content, -1) {
			span := core.Span{Start: loc[0], End: loc[1]}
			if overlaps(found, span) {
				continue
			}

			found = append(found, core.Redaction{
				Kind:        p.Kind,
				Span:        span,
				Replacement: fmt.Sprintf("[REDACTED %s]", strings.ToUpper(p.Kind)),
			})
		}
	}

	slices.SortFunc(found, func(a, b core.Redaction) int { return a.Span.Start - b.Span.Start })

	return found
}

// Apply implements Filter.
func (f *PIIFilter) Apply(_ context.Context, _ Context, content string) (string, core.FilterDecision) {
	redactions := f.Detect(content)
	if len(redactions) == 0 {
		return content, core.FilterDecision{Verdict: core.VerdictAllow}
	}

	kinds := make([]string, 0, len(redactions))
	for _, r := range redactions {
		if !slices.Contains(kinds, r.Kind) {
			kinds = append(kinds, r.Kind)
		}
	}

	if f.mode == ModeBlock {
		return content, core.FilterDecision{
			Verdict:    core.VerdictBlock,
			Redactions: redactions,
			Reason:     "sensitive data detected: " + strings.Join(kinds, ", "),
		}
	}

	return Redact(content, redactions), core.FilterDecision{
		Verdict:    core.VerdictModify,
		Redactions: redactions,
		Reason:     "redacted: " + strings.Join(kinds, ", "),
	}
}

// Redact replaces the spans of content with their replacements. Redactions
// must be ordered by position and non-overlapping.
func Redact(content string, redactions []core.Redaction) string {
	var b strings.Builder

	last := 0
	for _, r := range redactions {
		b.WriteString(content[last:r.Span.Start])
		b.WriteString(r.Replacement)
		last = r.Span.End
	}

	b.WriteString(content[last:])

	return b.String()
}

func overlaps(existing []core.Redaction, s core.Span) bool {
	for _, r := range existing {
		if s.Start < r.Span.End && r.Span.Start < s.End {
			return true
		}
	}

	return false
}
