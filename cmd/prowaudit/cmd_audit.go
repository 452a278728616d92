package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"prowaudit/internal/audit"
	"prowaudit/internal/classify"
	"prowaudit/internal/cluster"
	"prowaudit/internal/config"
	"prowaudit/internal/embed"
	"prowaudit/internal/logging"
	"prowaudit/internal/store"
)

var auditFlags struct {
	logPath             string
	outputPath          string
	stage               string
	database            string
	configPath          string
	reportOnly          bool
	semanticClustering  bool
	similarityThreshold float64
	parallel            int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Walk a Prow artifact tree, analyze failed runs, and write reports",
	Long: `Audit scans every run under --log-path, sends failed step logs to the
configured LLM provider for classification, stores the results in SQLite, and
writes audit_report.md, usage_report.md, and a results tarball.

Provider credentials come from the environment (LLM_API_KEY, LLM_BASE_URL,
EMBED_API_KEY) or a YAML file given with --config.`,
	RunE: runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditFlags.logPath, "log-path", "", "Root directory of Prow job artifacts (required)")
	f.StringVar(&auditFlags.outputPath, "output-path", "./results", "Directory for reports and the tarball")
	f.StringVar(&auditFlags.stage, "stage", "", "Restrict the audit to one stage name")
	f.StringVar(&auditFlags.database, "database", "", "SQLite database path (default <output-path>/prow_audit.db)")
	f.StringVar(&auditFlags.configPath, "config", "", "YAML config file overriding environment settings")
	f.BoolVar(&auditFlags.reportOnly, "report-only", false, "Regenerate reports from the existing database without re-analyzing logs")
	f.BoolVar(&auditFlags.semanticClustering, "semantic-clustering", true, "Group similar root causes using embeddings")
	f.Float64Var(&auditFlags.similarityThreshold, "similarity-threshold", 0, "Cosine similarity cutoff for grouping (default from config, 0.75)")
	f.IntVar(&auditFlags.parallel, "parallel", 4, "Concurrent step analyses")

	_ = auditCmd.MarkFlagRequired("log-path")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(auditFlags.configPath)
	if err != nil {
		return err
	}
	log := logging.New("cli")

	dbPath := auditFlags.database
	if dbPath == "" {
		dbPath = filepath.Join(auditFlags.outputPath, "prow_audit.db")
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	var classifier classify.Classifier
	if cfg.HasLLM() {
		classifier = classify.NewHTTPClassifier(cfg.LLM)
	} else {
		log.Warn("no LLM credentials configured, failed steps get error verdicts")
	}

	var clusterer *cluster.Clusterer
	if auditFlags.semanticClustering {
		if cfg.HasEmbedding() {
			clusterer = cluster.New(embed.NewClient(cfg.Embedding))
		} else {
			log.Warn("no embedding credentials configured, root causes group by exact text match")
		}
	}

	o := audit.New(audit.Options{
		LogPath:             auditFlags.logPath,
		OutputPath:          auditFlags.outputPath,
		FilterStage:         auditFlags.stage,
		Parallel:            auditFlags.parallel,
		SemanticClustering:  auditFlags.semanticClustering,
		SimilarityThreshold: auditFlags.similarityThreshold,
	}, cfg, st, classifier, clusterer)

	var tarPath string
	if auditFlags.reportOnly {
		tarPath, err = o.RegenerateReports(cmd.Context(), dbPath)
	} else {
		tarPath, err = o.Run(cmd.Context(), dbPath)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database: %s\n", dbPath)
	fmt.Fprintf(out, "Reports:  %s\n", auditFlags.outputPath)
	fmt.Fprintf(out, "Tarball:  %s\n", tarPath)
	return nil
}

// loadConfig reads the environment and, when given, overlays a YAML file.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
