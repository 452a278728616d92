package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"prowaudit/internal/audit"
	"prowaudit/internal/cluster"
	"prowaudit/internal/embed"
	"prowaudit/internal/logging"
	"prowaudit/internal/store"
)

var reportFlags struct {
	database            string
	outputPath          string
	configPath          string
	semanticClustering  bool
	similarityThreshold float64
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Regenerate reports from an existing audit database",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.database, "database", "", "SQLite database path (required)")
	f.StringVar(&reportFlags.outputPath, "output-path", "./results", "Directory for regenerated reports")
	f.StringVar(&reportFlags.configPath, "config", "", "YAML config file overriding environment settings")
	f.BoolVar(&reportFlags.semanticClustering, "semantic-clustering", true, "Group similar root causes using embeddings")
	f.Float64Var(&reportFlags.similarityThreshold, "similarity-threshold", 0, "Cosine similarity cutoff for grouping (default from config, 0.75)")

	_ = reportCmd.MarkFlagRequired("database")
}

func runReport(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(reportFlags.database); err != nil {
		return fmt.Errorf("database not found: %s", reportFlags.database)
	}
	cfg, err := loadConfig(reportFlags.configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(reportFlags.database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	var clusterer *cluster.Clusterer
	if reportFlags.semanticClustering {
		if cfg.HasEmbedding() {
			clusterer = cluster.New(embed.NewClient(cfg.Embedding))
		} else {
			logging.New("cli").Warn("no embedding credentials configured, root causes group by exact text match")
		}
	}

	o := audit.New(audit.Options{
		OutputPath:          reportFlags.outputPath,
		SemanticClustering:  reportFlags.semanticClustering,
		SimilarityThreshold: reportFlags.similarityThreshold,
	}, cfg, st, nil, clusterer)

	tarPath, err := o.RegenerateReports(cmd.Context(), reportFlags.database)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Reports: %s\nTarball: %s\n", reportFlags.outputPath, tarPath)
	return nil
}
