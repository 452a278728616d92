// Package classify turns sampled log context into a structured failure
// verdict using an OpenAI-compatible chat completions endpoint.
package classify

import (
	"context"
	"strings"

	"prowaudit/internal/taxonomy"
)

// Step statuses as reported by the analysis provider.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
	StatusError   = "ERROR"
	StatusUnknown = "UNKNOWN"
)

// StepContext is the log evidence presented to the provider for one step.
type StepContext struct {
	StepName        string
	StageName       string
	LogHead         string // head lines plus middle samples for large logs
	LogTail         string
	ExtractedErrors string
	TotalLines      int
}

// Verdict is a normalized analysis result for one step. FailureType and
// ErrorCategory are always canonical taxonomy members.
type Verdict struct {
	Status         string
	FailureType    taxonomy.FailureType
	ErrorCategory  taxonomy.ErrorCategory
	RootCause      string
	Analysis       string
	Confidence     float64
	NeedsAttention bool
}

// Usage reports token consumption for one provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Classifier analyzes one step's log context. Implementations return an
// error rather than a partial verdict when the provider cannot be reached;
// the caller decides how to degrade.
type Classifier interface {
	AnalyzeStep(ctx context.Context, step StepContext) (*Verdict, *Usage, error)
}

// rawVerdict is the provider's JSON shape before taxonomy normalization.
// needs_attention is optional; providers that omit it leave the flag unset.
type rawVerdict struct {
	Status         string  `json:"status"`
	FailureType    string  `json:"failure_type"`
	ErrorCategory  string  `json:"error_category"`
	RootCause      string  `json:"root_cause"`
	Analysis       string  `json:"analysis"`
	Confidence     float64 `json:"confidence"`
	NeedsAttention bool    `json:"needs_attention"`
}

func (r *rawVerdict) normalize() *Verdict {
	v := &Verdict{
		Status:         strings.ToUpper(strings.TrimSpace(r.Status)),
		FailureType:    taxonomy.NormalizeFailureType(r.FailureType),
		ErrorCategory:  taxonomy.NormalizeErrorCategory(r.ErrorCategory),
		RootCause:      strings.TrimSpace(r.RootCause),
		Analysis:       strings.TrimSpace(r.Analysis),
		Confidence:     r.Confidence,
		NeedsAttention: r.NeedsAttention,
	}
	if v.Status == "" {
		v.Status = StatusUnknown
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v
}

// ErrorVerdict is the degraded result recorded when analysis fails. The step
// still gets a row so reports and queries see it.
func ErrorVerdict(err error) *Verdict {
	return &Verdict{
		Status:        StatusError,
		FailureType:   taxonomy.FailureUnknown,
		ErrorCategory: taxonomy.CategoryUnknown,
		Analysis:      "Analysis failed: " + err.Error(),
		Confidence:    0,
	}
}
