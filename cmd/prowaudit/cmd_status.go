package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"prowaudit/internal/format"
	"prowaudit/internal/store"
)

var statusFlags struct {
	database string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a summary of an audit database",
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusFlags.database, "database", "", "SQLite database path (required)")

	_ = statusCmd.MarkFlagRequired("database")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(statusFlags.database); err != nil {
		return fmt.Errorf("database not found: %s", statusFlags.database)
	}
	st, err := store.Open(statusFlags.database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	meta, err := st.GetAuditMetadata()
	if err != nil {
		return err
	}
	if meta == nil {
		fmt.Fprintln(out, "No audit has been recorded in this database.")
		fmt.Fprintln(out, "Run 'prowaudit audit' to populate it.")
		return nil
	}

	fmt.Fprintf(out, "Audit:    %s\n", meta.ScanTimestamp)
	fmt.Fprintf(out, "Provider: %s (%s)\n", meta.LLMProvider, meta.LLMModel)
	if meta.FilterStage != "" {
		fmt.Fprintf(out, "Stage:    %s\n", meta.FilterStage)
	}
	fmt.Fprintf(out, "Runs:     %d scanned, %d failed, %d passed\n",
		meta.TotalRunsScanned, meta.FailedRunsAnalyzed, meta.SuccessfulRunsCount)
	fmt.Fprintf(out, "Duration: %s\n", format.FmtDuration(time.Duration(meta.AnalysisDurationSeconds)*time.Second))
	fmt.Fprintf(out, "Clustering: %s (threshold %.2f)\n\n",
		format.BoolMark(meta.SemanticClusteringEnabled), meta.SimilarityThreshold)

	stages, err := st.StageStatistics()
	if err != nil {
		return err
	}
	if len(stages) > 0 {
		tbl := format.NewTable(format.ASCII)
		tbl.Header("Stage", "Total", "Failed", "Failure Rate")
		tbl.Columns(
			format.ColumnConfig{Number: 2, Align: format.AlignRight},
			format.ColumnConfig{Number: 3, Align: format.AlignRight},
			format.ColumnConfig{Number: 4, Align: format.AlignRight},
		)
		for _, s := range stages {
			tbl.Row(s.StageName, s.Total, s.Failed, format.FmtPercent(s.FailureRate))
		}
		fmt.Fprintln(out, tbl.String())
	}

	categories, err := st.ErrorCategoryBreakdown()
	if err != nil {
		return err
	}
	if len(categories) > 0 {
		tbl := format.NewTable(format.ASCII)
		tbl.Header("Error Category", "Count", "Share")
		tbl.Columns(
			format.ColumnConfig{Number: 2, Align: format.AlignRight},
			format.ColumnConfig{Number: 3, Align: format.AlignRight},
		)
		for _, c := range categories {
			tbl.Row(c.Category, c.Count, fmt.Sprintf("%.1f%%", c.Percentage))
		}
		fmt.Fprintln(out, tbl.String())
	}
	return nil
}
