// Package mcp exposes the audit database to MCP clients over stdio. Every
// tool is a read-only query; the database is produced by a prior audit run.
package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"prowaudit/internal/cluster"
	"prowaudit/internal/config"
	"prowaudit/internal/store"
)

// Defaults applied when a tool call omits the corresponding argument.
const (
	DefaultRootCauseLimit   = 15
	DefaultStepLimit        = 15
	DefaultSimilarLimit     = 10
	DefaultClusterThreshold = config.DefaultSimilarityThreshold
)

// Server wraps the MCP SDK server around an open audit store. The clusterer
// is optional; without it root-cause distribution falls back to exact-match
// grouping and says so in the response.
type Server struct {
	MCPServer *sdkmcp.Server

	store     *store.SqlStore
	clusterer *cluster.Clusterer
	version   string
}

// NewServer registers all analytics tools over the given store.
func NewServer(st *store.SqlStore, clusterer *cluster.Clusterer, version string) *Server {
	s := &Server{store: st, clusterer: clusterer, version: version}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "prowaudit", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over the given transport until the context is canceled.
func (s *Server) Run(ctx context.Context, transport sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, transport)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_root_cause_distribution",
		Description: "Get the distribution of root causes across all analyzed failures, optionally grouped by semantic similarity.",
	}, s.handleRootCauseDistribution)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_error_category_breakdown",
		Description: "Get failure counts and percentages per error category.",
	}, s.handleErrorCategoryBreakdown)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_step_failure_analysis",
		Description: "Get the most frequently failing steps with their top root causes.",
	}, s.handleStepFailureAnalysis)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_stage_statistics",
		Description: "Get per-stage totals, failure counts, and failure rates.",
	}, s.handleStageStatistics)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_run_details",
		Description: "Get full details for one run including its stages.",
	}, s.handleRunDetails)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "find_similar_failures",
		Description: "Find failures matching an error category and/or failure type.",
	}, s.handleFindSimilarFailures)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "analyze_trends",
		Description: "Get failure counts and rates over time, grouped by day.",
	}, s.handleAnalyzeTrends)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "correlate_failures",
		Description: "List all analyzed failures within one stage to spot shared causes.",
	}, s.handleCorrelateFailures)
}

// --- Tool input/output types ---

type rootCauseInput struct {
	Limit               int      `json:"limit,omitempty" jsonschema:"maximum number of groups to return (default 15)"`
	UseClustering       *bool    `json:"use_semantic_clustering,omitempty" jsonschema:"group causes by semantic similarity (default true)"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty" jsonschema:"cosine similarity cutoff for grouping (default 0.75)"`
}

type rootCauseGroup struct {
	RootCause     string   `json:"root_cause"`
	Count         int      `json:"count"`
	ClusterSize   int      `json:"cluster_size,omitempty"`
	AvgSimilarity float64  `json:"avg_similarity,omitempty"`
	Variants      []string `json:"variants,omitempty"`
}

type rootCauseOutput struct {
	TotalUniqueCauses int              `json:"total_unique_causes"`
	Clustered         bool             `json:"clustered"`
	Note              string           `json:"note,omitempty"`
	Groups            []rootCauseGroup `json:"groups"`
}

type emptyInput struct{}

type categoryBreakdownOutput struct {
	Categories []store.CategoryCount `json:"categories"`
}

type stepAnalysisInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of steps to return (default 15)"`
}

type stepAnalysisOutput struct {
	Steps []store.StepFailureDetail `json:"steps"`
}

type stageStatisticsOutput struct {
	Stages []store.StageStat `json:"stages"`
}

type runDetailsInput struct {
	RunID int64 `json:"run_id" jsonschema:"database ID of the run"`
}

type runDetailsOutput struct {
	Run    *store.Run     `json:"run"`
	Stages []*store.Stage `json:"stages"`
}

type similarFailuresInput struct {
	ErrorCategory string `json:"error_category,omitempty" jsonschema:"error category to match (e.g. network, timeout)"`
	FailureType   string `json:"failure_type,omitempty" jsonschema:"failure type to match (e.g. e2e_test_failure)"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum number of failures to return (default 10)"`
}

type similarFailuresOutput struct {
	Failures []store.SimilarFailure `json:"failures"`
	Total    int                    `json:"total"`
}

type trendsOutput struct {
	Statistics *store.FailureStatistics `json:"statistics"`
	Daily      []store.TrendPoint       `json:"daily"`
}

type correlateInput struct {
	StageName string `json:"stage_name" jsonschema:"exact stage name to inspect"`
}

type correlateOutput struct {
	StageName string                    `json:"stage_name"`
	Failures  []store.CorrelatedFailure `json:"failures"`
	Total     int                       `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleRootCauseDistribution(ctx context.Context, _ *sdkmcp.CallToolRequest, input rootCauseInput) (*sdkmcp.CallToolResult, rootCauseOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultRootCauseLimit
	}
	threshold := DefaultClusterThreshold
	if input.SimilarityThreshold != nil {
		threshold = *input.SimilarityThreshold
	}
	wantClustering := input.UseClustering == nil || *input.UseClustering

	causes, err := s.store.RootCauseDistribution(limit)
	if err != nil {
		return nil, rootCauseOutput{}, fmt.Errorf("query root causes: %w", err)
	}

	out := rootCauseOutput{TotalUniqueCauses: len(causes)}
	if !wantClustering || s.clusterer == nil || len(causes) < 2 {
		if wantClustering && s.clusterer == nil {
			out.Note = "semantic clustering unavailable; grouped by exact text match"
		}
		for _, c := range causes {
			out.Groups = append(out.Groups, rootCauseGroup{RootCause: c.RootCause, Count: c.Count})
		}
		return nil, out, nil
	}

	items := make([]cluster.Item, len(causes))
	for i, c := range causes {
		items[i] = cluster.Item{Text: c.RootCause, Count: c.Count}
	}
	clusters, degraded := s.clusterer.ClusterFailures(ctx, items, threshold)
	if degraded {
		out.Note = "semantic clustering unavailable; grouped by exact text match"
	}
	out.Clustered = !degraded
	for _, cl := range clusters {
		g := rootCauseGroup{
			RootCause:     cl.RepresentativeText,
			Count:         cl.TotalCount,
			ClusterSize:   len(cl.Members),
			AvgSimilarity: cl.AvgSimilarity,
		}
		for _, m := range cl.Members {
			if m.Text != cl.RepresentativeText {
				g.Variants = append(g.Variants, m.Text)
			}
		}
		out.Groups = append(out.Groups, g)
	}
	return nil, out, nil
}

func (s *Server) handleErrorCategoryBreakdown(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, categoryBreakdownOutput, error) {
	categories, err := s.store.ErrorCategoryBreakdown()
	if err != nil {
		return nil, categoryBreakdownOutput{}, fmt.Errorf("query categories: %w", err)
	}
	return nil, categoryBreakdownOutput{Categories: categories}, nil
}

func (s *Server) handleStepFailureAnalysis(_ context.Context, _ *sdkmcp.CallToolRequest, input stepAnalysisInput) (*sdkmcp.CallToolResult, stepAnalysisOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultStepLimit
	}
	steps, err := s.store.StepFailureAnalysis(limit)
	if err != nil {
		return nil, stepAnalysisOutput{}, fmt.Errorf("query step failures: %w", err)
	}
	return nil, stepAnalysisOutput{Steps: steps}, nil
}

func (s *Server) handleStageStatistics(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, stageStatisticsOutput, error) {
	stages, err := s.store.StageStatistics()
	if err != nil {
		return nil, stageStatisticsOutput{}, fmt.Errorf("query stage statistics: %w", err)
	}
	return nil, stageStatisticsOutput{Stages: stages}, nil
}

func (s *Server) handleRunDetails(_ context.Context, _ *sdkmcp.CallToolRequest, input runDetailsInput) (*sdkmcp.CallToolResult, runDetailsOutput, error) {
	if input.RunID <= 0 {
		return nil, runDetailsOutput{}, fmt.Errorf("run_id is required")
	}
	run, err := s.store.GetRun(input.RunID)
	if err != nil {
		return nil, runDetailsOutput{}, fmt.Errorf("query run: %w", err)
	}
	if run == nil {
		return nil, runDetailsOutput{}, fmt.Errorf("run %d not found", input.RunID)
	}
	stages, err := s.store.StagesByRun(run.ID)
	if err != nil {
		return nil, runDetailsOutput{}, fmt.Errorf("query stages: %w", err)
	}
	return nil, runDetailsOutput{Run: run, Stages: stages}, nil
}

func (s *Server) handleFindSimilarFailures(_ context.Context, _ *sdkmcp.CallToolRequest, input similarFailuresInput) (*sdkmcp.CallToolResult, similarFailuresOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	failures, err := s.store.FindSimilarFailures(input.ErrorCategory, input.FailureType, limit)
	if err != nil {
		return nil, similarFailuresOutput{}, fmt.Errorf("query similar failures: %w", err)
	}
	return nil, similarFailuresOutput{Failures: failures, Total: len(failures)}, nil
}

func (s *Server) handleAnalyzeTrends(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, trendsOutput, error) {
	stats, err := s.store.GetFailureStatistics()
	if err != nil {
		return nil, trendsOutput{}, fmt.Errorf("query statistics: %w", err)
	}
	daily, err := s.store.FailureTrends()
	if err != nil {
		return nil, trendsOutput{}, fmt.Errorf("query trends: %w", err)
	}
	return nil, trendsOutput{Statistics: stats, Daily: daily}, nil
}

func (s *Server) handleCorrelateFailures(_ context.Context, _ *sdkmcp.CallToolRequest, input correlateInput) (*sdkmcp.CallToolResult, correlateOutput, error) {
	if input.StageName == "" {
		return nil, correlateOutput{}, fmt.Errorf("stage_name is required")
	}
	failures, err := s.store.CorrelateFailures(input.StageName)
	if err != nil {
		return nil, correlateOutput{}, fmt.Errorf("query correlated failures: %w", err)
	}
	return nil, correlateOutput{
		StageName: input.StageName,
		Failures:  failures,
		Total:     len(failures),
	}, nil
}
