package report

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"prowaudit/internal/format"
)

// CallRecord is one provider call.
type CallRecord struct {
	Timestamp    time.Time
	Model        string
	InputTokens  int
	OutputTokens int
	CallType     string
	Success      bool
	Error        string
}

// UsageStatistics aggregates provider usage over one audit.
type UsageStatistics struct {
	TotalCalls        int
	SuccessfulCalls   int
	FailedCalls       int
	TotalInputTokens  int
	TotalOutputTokens int
	EmbeddingCalls    int
	StartTime         time.Time
	EndTime           time.Time
	CallsByType       map[string]int
}

// TotalTokens is input plus output tokens across all calls.
func (s *UsageStatistics) TotalTokens() int {
	return s.TotalInputTokens + s.TotalOutputTokens
}

// SuccessRate is the fraction of calls that succeeded, 0 when none were made.
func (s *UsageStatistics) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.SuccessfulCalls) / float64(s.TotalCalls)
}

// Duration is the wall time between start and finalize.
func (s *UsageStatistics) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// UsageTracker records provider calls across the audit. Safe for concurrent
// use; parallel analysis workers share one tracker.
type UsageTracker struct {
	mu      sync.Mutex
	stats   UsageStatistics
	history []CallRecord
}

// NewUsageTracker starts a tracker with the clock running.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		stats: UsageStatistics{
			StartTime:   time.Now().UTC(),
			CallsByType: make(map[string]int),
		},
	}
}

// RecordCall records one provider call.
func (t *UsageTracker) RecordCall(model string, inputTokens, outputTokens int, callType string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := CallRecord{
		Timestamp:    time.Now().UTC(),
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CallType:     callType,
		Success:      err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	t.history = append(t.history, rec)

	t.stats.TotalCalls++
	if rec.Success {
		t.stats.SuccessfulCalls++
	} else {
		t.stats.FailedCalls++
	}
	t.stats.TotalInputTokens += inputTokens
	t.stats.TotalOutputTokens += outputTokens
	t.stats.CallsByType[callType]++
}

// RecordEmbeddingCall counts one embeddings request.
func (t *UsageTracker) RecordEmbeddingCall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.EmbeddingCalls++
}

// Finalize stops the clock and returns a snapshot of the statistics.
func (t *UsageTracker) Finalize() UsageStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.EndTime = time.Now().UTC()
	return t.snapshotLocked()
}

// Statistics returns a snapshot of the current statistics.
func (t *UsageTracker) Statistics() UsageStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *UsageTracker) snapshotLocked() UsageStatistics {
	s := t.stats
	s.CallsByType = make(map[string]int, len(t.stats.CallsByType))
	for k, v := range t.stats.CallsByType {
		s.CallsByType[k] = v
	}
	return s
}

// UsageReport renders the usage statistics as markdown.
func (t *UsageTracker) UsageReport() string {
	stats := t.Statistics()

	var b strings.Builder
	b.WriteString("# LLM Usage Report\n\n")
	b.WriteString("## Overall Statistics\n")
	fmt.Fprintf(&b, "- Total LLM Calls: %d\n", stats.TotalCalls)
	fmt.Fprintf(&b, "- Successful Calls: %d\n", stats.SuccessfulCalls)
	fmt.Fprintf(&b, "- Failed Calls: %d\n", stats.FailedCalls)
	fmt.Fprintf(&b, "- Success Rate: %s\n\n", format.FmtPercent(stats.SuccessRate()))

	b.WriteString("## Token Usage\n")
	fmt.Fprintf(&b, "- Input Tokens: %s\n", format.FmtTokens(stats.TotalInputTokens))
	fmt.Fprintf(&b, "- Output Tokens: %s\n", format.FmtTokens(stats.TotalOutputTokens))
	fmt.Fprintf(&b, "- Total Tokens: %s\n\n", format.FmtTokens(stats.TotalTokens()))

	b.WriteString("## Tool Usage\n")
	fmt.Fprintf(&b, "- Embedding Calls: %d\n\n", stats.EmbeddingCalls)

	b.WriteString("## Calls by Type\n")
	type typeCount struct {
		name  string
		count int
	}
	var types []typeCount
	for name, count := range stats.CallsByType {
		types = append(types, typeCount{name, count})
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].count != types[j].count {
			return types[i].count > types[j].count
		}
		return types[i].name < types[j].name
	})
	for _, tc := range types {
		fmt.Fprintf(&b, "- %s: %d\n", tc.name, tc.count)
	}

	fmt.Fprintf(&b, "\nDuration: %s\n", format.FmtDuration(stats.Duration()))
	return b.String()
}
