// Package report renders audit findings as markdown files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"prowaudit/internal/format"
	"prowaudit/internal/store"
	"prowaudit/internal/taxonomy"
)

// File names written into the output directory.
const (
	AuditReportName = "audit_report.md"
	UsageReportName = "usage_report.md"
)

// RootCauseEntry is one ranked root cause, optionally carrying cluster
// detail when semantic clustering grouped variants together.
type RootCauseEntry struct {
	RootCause     string
	Count         int
	ClusterSize   int
	AvgSimilarity float64
	Variants      []string
}

// RootCauseSection is the root-cause portion of the report data.
type RootCauseSection struct {
	TotalUniqueCauses int
	ClusteredCount    int
	Clustered         bool // semantic clustering grouped the causes
	Degraded          bool // clustering was requested but fell back to exact matching
	Causes            []RootCauseEntry
}

// Data is everything the audit report renders.
type Data struct {
	JobName      string
	Statistics   *store.FailureStatistics
	RootCauses   *RootCauseSection
	Categories   []store.CategoryCount
	StepFailures []store.StepFailureDetail
	StageStats   []store.StageStat
}

// Generator writes markdown reports into an output directory.
type Generator struct {
	outDir string
	now    func() time.Time
}

// NewGenerator creates the output directory and returns a Generator.
func NewGenerator(outDir string) (*Generator, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Generator{outDir: outDir, now: time.Now}, nil
}

// WriteAuditReport renders the audit report and returns its path.
func (g *Generator) WriteAuditReport(d *Data) (string, error) {
	path := filepath.Join(g.outDir, AuditReportName)
	if err := os.WriteFile(path, []byte(g.renderAudit(d)), 0644); err != nil {
		return "", fmt.Errorf("write audit report: %w", err)
	}
	return path, nil
}

// WriteUsageReport renders the provider usage report and returns its path.
func (g *Generator) WriteUsageReport(tracker *UsageTracker) (string, error) {
	path := filepath.Join(g.outDir, UsageReportName)
	if err := os.WriteFile(path, []byte(tracker.UsageReport()), 0644); err != nil {
		return "", fmt.Errorf("write usage report: %w", err)
	}
	return path, nil
}

func (g *Generator) renderAudit(d *Data) string {
	var b strings.Builder

	b.WriteString("# Prow CI/CD Pipeline Audit Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", g.now().UTC().Format("2006-01-02 15:04:05 UTC"))
	job := d.JobName
	if job == "" {
		job = "N/A"
	}
	fmt.Fprintf(&b, "**Job:** %s\n\n---\n\n", job)

	writeExecutiveSummary(&b, d.Statistics)
	writeStatistics(&b, d.Statistics, d.StageStats)
	if d.RootCauses != nil && len(d.RootCauses.Causes) > 0 {
		writeRootCauses(&b, d.RootCauses)
	}
	if len(d.Categories) > 0 {
		writeCategories(&b, d.Categories)
	}
	if len(d.StepFailures) > 0 {
		writeStepFailures(&b, d.StepFailures)
	}
	return b.String()
}

func writeExecutiveSummary(b *strings.Builder, stats *store.FailureStatistics) {
	b.WriteString("## Executive Summary\n\n")
	if stats == nil {
		b.WriteString("No runs were scanned.\n\n---\n\n")
		return
	}
	var rate float64
	if stats.TotalRuns > 0 {
		rate = float64(stats.FailedRuns) / float64(stats.TotalRuns)
	}
	fmt.Fprintf(b,
		"This audit analyzed **%d** CI/CD pipeline runs, of which **%d** failed and **%d** succeeded (%s failure rate).\n\n---\n\n",
		stats.TotalRuns, stats.FailedRuns, stats.SuccessfulRuns, format.FmtPercent(rate))
}

func writeStatistics(b *strings.Builder, stats *store.FailureStatistics, stages []store.StageStat) {
	if stats == nil {
		return
	}
	var rate float64
	if stats.TotalRuns > 0 {
		rate = float64(stats.FailedRuns) / float64(stats.TotalRuns)
	}
	b.WriteString("## Overall Statistics\n\n")
	b.WriteString("### Run Statistics\n")
	fmt.Fprintf(b, "- Total Runs Scanned: %d\n", stats.TotalRuns)
	fmt.Fprintf(b, "- Failed Runs: %d\n", stats.FailedRuns)
	fmt.Fprintf(b, "- Successful Runs: %d\n", stats.SuccessfulRuns)
	fmt.Fprintf(b, "- Failure Rate: %s\n\n", format.FmtPercent(rate))

	b.WriteString("### Stage Statistics\n")
	fmt.Fprintf(b, "- Total Stages: %d\n", stats.TotalStages)
	fmt.Fprintf(b, "- Failed Stages: %d\n\n", stats.FailedStages)

	if len(stages) > 0 {
		tb := format.NewTable(format.Markdown)
		tb.Header("Stage", "Total", "Failed", "Failure Rate")
		for _, st := range stages {
			tb.Row(st.StageName, st.Total, st.Failed, format.FmtPercent(st.FailureRate))
		}
		b.WriteString(tb.String())
		b.WriteString("\n\n")
	}
	b.WriteString("---\n\n")
}

func writeRootCauses(b *strings.Builder, section *RootCauseSection) {
	b.WriteString("## Top Root Causes of Failures\n\n")

	switch {
	case section.Clustered:
		b.WriteString("This section identifies the most common root causes using **semantic clustering** to group similar failures together.\n\n")
		fmt.Fprintf(b, "**Note:** %d unique root cause descriptions were clustered into %d semantic groups.\n\n",
			section.TotalUniqueCauses, section.ClusteredCount)
	case section.Degraded:
		b.WriteString("This section identifies the most common root causes across all analyzed failures.\n\n")
		b.WriteString("**Note:** Semantic clustering was unavailable; causes are grouped by exact text match.\n\n")
	default:
		b.WriteString("This section identifies the most common root causes across all analyzed failures.\n\n")
	}

	for i, cause := range section.Causes {
		if i >= 15 {
			break
		}
		fmt.Fprintf(b, "### %d. %s\n\n", i+1, format.Truncate(cause.RootCause, 200))
		fmt.Fprintf(b, "**Total Occurrences:** %d\n", cause.Count)
		if section.Clustered && cause.ClusterSize > 1 {
			fmt.Fprintf(b, "**Cluster Size:** %d similar failure descriptions\n", cause.ClusterSize)
			fmt.Fprintf(b, "**Avg. Similarity:** %s\n", format.FmtPercent(cause.AvgSimilarity))
			if len(cause.Variants) > 1 {
				b.WriteString("\n**Variants in this cluster:**\n")
				for _, v := range cause.Variants {
					if v != cause.RootCause {
						fmt.Fprintf(b, "- %s\n", v)
					}
				}
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
}

func writeCategories(b *strings.Builder, categories []store.CategoryCount) {
	b.WriteString("## Error Category Breakdown\n\n")
	var total int
	for _, c := range categories {
		total += c.Count
	}
	fmt.Fprintf(b, "**Total Failures Analyzed:** %d\n\n", total)

	tb := format.NewTable(format.Markdown)
	tb.Header("Category", "Count", "Share", "Description")
	for _, c := range categories {
		tb.Row(strings.ToUpper(c.Category), c.Count,
			fmt.Sprintf("%.1f%%", c.Percentage),
			taxonomy.ErrorCategory(c.Category).Describe())
	}
	b.WriteString(tb.String())
	b.WriteString("\n\n---\n\n")
}

func writeStepFailures(b *strings.Builder, steps []store.StepFailureDetail) {
	b.WriteString("## Most Frequently Failing Steps\n\n")
	b.WriteString("This section shows which steps fail most often and their common root causes.\n\n")

	for i, step := range steps {
		if i >= 10 {
			break
		}
		fmt.Fprintf(b, "### `%s`\n\n", step.StepName)
		fmt.Fprintf(b, "**Total Failures:** %d\n\n", step.TotalFailures)
		if len(step.TopRootCauses) > 0 {
			b.WriteString("**Top Root Causes:**\n")
			for j, cause := range step.TopRootCauses {
				if j >= 3 {
					break
				}
				fmt.Fprintf(b, "- (%dx) %s\n", cause.Count, cause.RootCause)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("---\n")
}
