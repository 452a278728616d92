// Package audit orchestrates the full pipeline: walk the Prow tree, analyze
// failed step logs, persist results, and render reports.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"prowaudit/internal/classify"
	"prowaudit/internal/cluster"
	"prowaudit/internal/config"
	"prowaudit/internal/format"
	"prowaudit/internal/logging"
	"prowaudit/internal/logsample"
	"prowaudit/internal/prow"
	"prowaudit/internal/report"
	"prowaudit/internal/store"
)

// Options configures one audit.
type Options struct {
	LogPath             string
	OutputPath          string
	FilterStage         string
	Parallel            int // concurrent step analyses; 1 when unset
	SemanticClustering  bool
	SimilarityThreshold float64
	Context             logsample.ContextOptions
}

// Orchestrator drives the audit phases against a store. The classifier and
// clusterer may be nil; analysis then records error verdicts and reports
// group causes by exact match.
type Orchestrator struct {
	opts       Options
	cfg        *config.Config
	store      *store.SqlStore
	classifier classify.Classifier
	clusterer  *cluster.Clusterer
	sampler    *logsample.Sampler
	tracker    *report.UsageTracker
	log        *slog.Logger
}

// New returns an Orchestrator over an open store.
func New(opts Options, cfg *config.Config, st *store.SqlStore, classifier classify.Classifier, clusterer *cluster.Clusterer) *Orchestrator {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.SimilarityThreshold == 0 {
		opts.SimilarityThreshold = cfg.SimilarityThreshold
	}
	if opts.Context == (logsample.ContextOptions{}) {
		opts.Context = logsample.DefaultContextOptions()
	}
	return &Orchestrator{
		opts:       opts,
		cfg:        cfg,
		store:      st,
		classifier: classifier,
		clusterer:  clusterer,
		sampler:    logsample.New(),
		tracker:    report.NewUsageTracker(),
		log:        logging.New("audit"),
	}
}

// Run executes the full audit and returns the results tarball path.
func (o *Orchestrator) Run(ctx context.Context, dbPath string) (string, error) {
	started := time.Now()

	failed, total, err := o.prefilter()
	if err != nil {
		return "", err
	}
	o.log.Info("prefilter complete", "total_runs", total, "failed_runs", len(failed))

	if err := o.processRuns(ctx, failed); err != nil {
		return "", err
	}

	if err := o.saveMetadata(total, len(failed), time.Since(started)); err != nil {
		return "", err
	}

	reportPath, err := o.generateReports(ctx)
	if err != nil {
		return "", err
	}
	o.log.Info("audit complete", "report", reportPath, "duration", time.Since(started).Round(time.Second))

	return o.createTarball(dbPath)
}

// RegenerateReports rebuilds reports from an existing database without
// re-analyzing logs, then repacks the tarball.
func (o *Orchestrator) RegenerateReports(ctx context.Context, dbPath string) (string, error) {
	if _, err := o.generateReports(ctx); err != nil {
		return "", err
	}
	return o.createTarball(dbPath)
}

// prefilter counts all runs and collects the failed ones.
func (o *Orchestrator) prefilter() ([]*prow.RunInfo, int, error) {
	walker, err := prow.NewWalker(o.opts.LogPath)
	if err != nil {
		return nil, 0, err
	}
	total := walker.CountRuns(o.opts.FilterStage)
	var failed []*prow.RunInfo
	for run := range walker.FailedRuns(o.opts.FilterStage) {
		failed = append(failed, run)
	}
	return failed, total, nil
}

// stepResult pairs a pending step with its verdict so parallel analysis can
// hand results back for sequential persistence.
type stepResult struct {
	run     *prow.RunInfo
	stage   *prow.StageInfo
	step    *prow.StepInfo
	logCtx  *logsample.Context
	verdict *classify.Verdict
}

func (o *Orchestrator) processRuns(ctx context.Context, runs []*prow.RunInfo) error {
	for i, run := range runs {
		if run.Metadata == nil {
			o.log.Warn("run has no metadata, skipping", "build", run.BuildNumber)
			continue
		}
		o.log.Info("analyzing run",
			"build", run.BuildNumber, "job", run.JobName,
			"progress", fmt.Sprintf("%d/%d", i+1, len(runs)))

		runID, err := o.store.CreateRun(&store.Run{
			PRNumber:      run.PRNumber,
			JobName:       run.JobName,
			BuildNumber:   run.BuildNumber,
			Timestamp:     run.Metadata.Timestamp.UTC().Format(time.RFC3339),
			OverallStatus: run.Metadata.Result,
			Result:        run.Metadata.Result,
			Passed:        run.Metadata.Passed,
			Revision:      run.Metadata.Revision,
		})
		if err != nil {
			return err
		}

		for j := range run.Stages {
			if err := o.processStage(ctx, runID, run, &run.Stages[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) processStage(ctx context.Context, runID int64, run *prow.RunInfo, stage *prow.StageInfo) error {
	st := &store.Stage{RunID: runID, StageName: stage.StageName, Status: "UNKNOWN"}
	if stage.Metadata != nil {
		st.Status = stage.Metadata.Result
		st.Passed = stage.Metadata.Passed
		if !stage.Metadata.Timestamp.IsZero() {
			st.Timestamp = stage.Metadata.Timestamp.UTC().Format(time.RFC3339)
		}
	}
	stageID, err := o.store.CreateStage(st)
	if err != nil {
		return err
	}

	// Passed steps are skipped; only failures and unknowns get analyzed.
	var pending []*prow.StepInfo
	for j := range stage.Steps {
		step := &stage.Steps[j]
		if step.Metadata != nil && step.Metadata.Passed {
			continue
		}
		pending = append(pending, step)
	}
	if len(pending) == 0 {
		return nil
	}

	results := make([]stepResult, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Parallel)
	for i, step := range pending {
		g.Go(func() error {
			results[i] = o.analyzeStep(gctx, run, stage, step)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// SQLite writes stay on one goroutine.
	for _, res := range results {
		if err := o.persistStep(stageID, res); err != nil {
			return err
		}
	}
	return nil
}

// analyzeStep builds the log context and asks the classifier for a verdict.
// Analysis failures degrade to an error verdict so the step is still recorded.
func (o *Orchestrator) analyzeStep(ctx context.Context, run *prow.RunInfo, stage *prow.StageInfo, step *prow.StepInfo) stepResult {
	res := stepResult{run: run, stage: stage, step: step}

	logCtx := o.sampler.BuildContext(step.LogPath, o.opts.Context)
	res.logCtx = logCtx
	o.log.Debug("step log sampled",
		"step", step.StepName, "lines", logCtx.TotalLines,
		"size", format.FmtBytes(logCtx.FileSizeBytes))

	if o.classifier == nil {
		res.verdict = classify.ErrorVerdict(fmt.Errorf("no analysis provider configured"))
		return res
	}

	head := strings.Join(logCtx.HeadLines, "\n")
	if logCtx.HasSamples {
		head += "\n--- RANDOM MIDDLE SAMPLES ---\n" + strings.Join(logCtx.MiddleSamples, "\n")
	}
	verdict, usage, err := o.classifier.AnalyzeStep(ctx, classify.StepContext{
		StepName:        step.StepName,
		StageName:       stage.StageName,
		LogHead:         head,
		LogTail:         strings.Join(logCtx.TailLines, "\n"),
		ExtractedErrors: strings.Join(logCtx.ExtractedErrors, "\n"),
		TotalLines:      logCtx.TotalLines,
	})
	if err != nil {
		o.log.Warn("step analysis failed", "step", step.StepName, "error", err)
		o.tracker.RecordCall(o.cfg.LLM.Model, 0, 0, "step_analysis", err)
		res.verdict = classify.ErrorVerdict(err)
		return res
	}
	var in, out int
	if usage != nil {
		in, out = usage.PromptTokens, usage.CompletionTokens
	}
	o.tracker.RecordCall(o.cfg.LLM.Model, in, out, "step_analysis", nil)
	res.verdict = verdict
	return res
}

func (o *Orchestrator) persistStep(stageID int64, res stepResult) error {
	var logSize int64
	if res.logCtx != nil {
		logSize = res.logCtx.FileSizeBytes
	}
	stepID, err := o.store.CreateStep(&store.Step{
		StageID:        stageID,
		StepName:       res.step.StepName,
		Status:         res.verdict.Status,
		FailureType:    string(res.verdict.FailureType),
		LogPath:        res.step.LogPath,
		LogSizeBytes:   logSize,
		HasSidecarLogs: res.step.HasSidecar,
	})
	if err != nil {
		return err
	}
	_, err = o.store.CreateStepAnalysis(&store.StepAnalysis{
		StepID:         stepID,
		AnalysisText:   res.verdict.Analysis,
		RootCause:      res.verdict.RootCause,
		ErrorCategory:  string(res.verdict.ErrorCategory),
		Confidence:     res.verdict.Confidence,
		NeedsAttention: res.verdict.NeedsAttention,
	})
	return err
}

func (o *Orchestrator) saveMetadata(total, failed int, duration time.Duration) error {
	return o.store.SaveAuditMetadata(&store.AuditMetadata{
		TotalRunsScanned:          total,
		FailedRunsAnalyzed:        failed,
		SuccessfulRunsCount:       total - failed,
		FilterStage:               o.opts.FilterStage,
		LLMModel:                  o.cfg.LLM.Model,
		LLMProvider:               o.cfg.LLM.Provider,
		AnalysisDurationSeconds:   int64(duration.Seconds()),
		SemanticClusteringEnabled: o.opts.SemanticClustering,
		SimilarityThreshold:       o.opts.SimilarityThreshold,
	})
}

func (o *Orchestrator) generateReports(ctx context.Context) (string, error) {
	gen, err := report.NewGenerator(o.opts.OutputPath)
	if err != nil {
		return "", err
	}

	stats, err := o.store.GetFailureStatistics()
	if err != nil {
		return "", err
	}
	causes, err := o.store.RootCauseDistribution(100)
	if err != nil {
		return "", err
	}
	categories, err := o.store.ErrorCategoryBreakdown()
	if err != nil {
		return "", err
	}
	stepFailures, err := o.store.StepFailureAnalysis(10)
	if err != nil {
		return "", err
	}
	stageStats, err := o.store.StageStatistics()
	if err != nil {
		return "", err
	}

	data := &report.Data{
		JobName:      "Analyzed Jobs",
		Statistics:   stats,
		RootCauses:   o.buildRootCauseSection(ctx, causes),
		Categories:   categories,
		StepFailures: stepFailures,
		StageStats:   stageStats,
	}

	path, err := gen.WriteAuditReport(data)
	if err != nil {
		return "", err
	}
	o.tracker.Finalize()
	if _, err := gen.WriteUsageReport(o.tracker); err != nil {
		return "", err
	}
	return path, nil
}

// buildRootCauseSection groups root causes semantically when clustering is
// enabled, falling back to exact-match counts otherwise. A degraded fallback
// is always disclosed in the section, never hidden.
func (o *Orchestrator) buildRootCauseSection(ctx context.Context, causes []store.RootCauseCount) *report.RootCauseSection {
	section := &report.RootCauseSection{TotalUniqueCauses: len(causes)}
	if len(causes) == 0 {
		return section
	}

	if !o.opts.SemanticClustering || o.clusterer == nil || len(causes) < 2 {
		section.Degraded = o.opts.SemanticClustering && o.clusterer == nil
		for _, c := range causes {
			section.Causes = append(section.Causes, report.RootCauseEntry{
				RootCause: c.RootCause, Count: c.Count,
			})
		}
		return section
	}

	items := make([]cluster.Item, len(causes))
	for i, c := range causes {
		items[i] = cluster.Item{Text: c.RootCause, Count: c.Count}
	}
	clusters, degraded := o.clusterer.ClusterFailures(ctx, items, o.opts.SimilarityThreshold)
	if !degraded {
		o.tracker.RecordEmbeddingCall()
	}
	section.Clustered = !degraded
	section.Degraded = degraded
	section.ClusteredCount = len(clusters)

	for _, cl := range clusters {
		entry := report.RootCauseEntry{
			RootCause:     cl.RepresentativeText,
			Count:         cl.TotalCount,
			ClusterSize:   len(cl.Members),
			AvgSimilarity: cl.AvgSimilarity,
		}
		for i, m := range cl.Members {
			if i >= 5 {
				break
			}
			entry.Variants = append(entry.Variants, m.Text)
		}
		section.Causes = append(section.Causes, entry)
	}
	return section
}
