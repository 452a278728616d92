package mcp_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	mcpserver "prowaudit/internal/mcp"
	"prowaudit/internal/store"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

// seededStore opens a temp database with one failed run across two stages.
func seededStore(t *testing.T) *store.SqlStore {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	runID, err := st.CreateRun(&store.Run{
		PRNumber:      "42",
		JobName:       "periodic-e2e",
		BuildNumber:   "1001",
		Timestamp:     "2026-08-01T10:00:00Z",
		OverallStatus: "FAILURE",
		Result:        "FAILURE",
	})
	if err != nil {
		t.Fatal(err)
	}

	stageID, err := st.CreateStage(&store.Stage{
		RunID: runID, StageName: "tests", Status: "FAILURE",
		Timestamp: "2026-08-01T10:05:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateStage(&store.Stage{
		RunID: runID, StageName: "build", Status: "SUCCESS", Passed: true,
		Timestamp: "2026-08-01T10:01:00Z",
	}); err != nil {
		t.Fatal(err)
	}

	for _, step := range []struct {
		name, cause, category, ftype string
	}{
		{"e2e", "connection refused to registry", "network", "e2e_test_failure"},
		{"e2e", "connection refused to registry", "network", "e2e_test_failure"},
		{"unit", "assertion mismatch in parser", "assertion", "unit_test_failure"},
	} {
		stepID, err := st.CreateStep(&store.Step{
			StageID: stageID, StepName: step.name,
			Status: "FAILURE", FailureType: step.ftype,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := st.CreateStepAnalysis(&store.StepAnalysis{
			StepID: stepID, RootCause: step.cause,
			ErrorCategory: step.category, Confidence: 0.9,
			AnalysisText: "analyzed",
		}); err != nil {
			t.Fatal(err)
		}
	}

	if err := st.SaveAuditMetadata(&store.AuditMetadata{
		TotalRunsScanned: 5, FailedRunsAnalyzed: 1, SuccessfulRunsCount: 4,
	}); err != nil {
		t.Fatal(err)
	}
	return st
}

func newTestServer(t *testing.T) *mcpserver.Server {
	t.Helper()
	return mcpserver.NewServer(seededStore(t), nil, "test")
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		for _, c := range res.Content {
			if tc, ok := c.(*sdkmcp.TextContent); ok {
				t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
			}
		}
		t.Fatalf("CallTool(%s) returned error", name)
	}
	result := make(map[string]any)
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), &result); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return result
		}
	}
	t.Fatalf("no text content in tool result")
	return nil
}

func callToolExpectError(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return
	}
	if !res.IsError {
		t.Fatalf("CallTool(%s) succeeded, want error", name)
	}
}

func TestServer_ToolDiscovery(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	want := map[string]bool{
		"get_root_cause_distribution":  false,
		"get_error_category_breakdown": false,
		"get_step_failure_analysis":    false,
		"get_stage_statistics":         false,
		"get_run_details":              false,
		"find_similar_failures":        false,
		"analyze_trends":               false,
		"correlate_failures":           false,
	}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not found in ListTools", name)
		}
	}
}

func TestServer_RootCauseDistribution_NoClusterer(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "get_root_cause_distribution", nil)

	if clustered, _ := result["clustered"].(bool); clustered {
		t.Error("clustered = true without a clusterer")
	}
	note, _ := result["note"].(string)
	if note == "" {
		t.Error("expected a degradation note when clustering is unavailable")
	}
	groups, _ := result["groups"].([]any)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	top, _ := groups[0].(map[string]any)
	if top["root_cause"] != "connection refused to registry" {
		t.Errorf("top cause = %v", top["root_cause"])
	}
	if count, _ := top["count"].(float64); count != 2 {
		t.Errorf("top count = %v, want 2", top["count"])
	}
}

func TestServer_ErrorCategoryBreakdown(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "get_error_category_breakdown", nil)
	categories, _ := result["categories"].([]any)
	if len(categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(categories))
	}
	first, _ := categories[0].(map[string]any)
	if first["Category"] != "network" {
		t.Errorf("top category = %v, want network", first["Category"])
	}
}

func TestServer_RunDetails(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "get_run_details", map[string]any{"run_id": 1})
	run, _ := result["run"].(map[string]any)
	if run["JobName"] != "periodic-e2e" {
		t.Errorf("job name = %v", run["JobName"])
	}
	stages, _ := result["stages"].([]any)
	if len(stages) != 2 {
		t.Errorf("got %d stages, want 2", len(stages))
	}

	callToolExpectError(t, ctx, session, "get_run_details", map[string]any{"run_id": 999})
}

func TestServer_FindSimilarFailures(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "find_similar_failures", map[string]any{
		"error_category": "network",
	})
	if total, _ := result["total"].(float64); total != 2 {
		t.Errorf("total = %v, want 2", result["total"])
	}

	result = callTool(t, ctx, session, "find_similar_failures", map[string]any{
		"failure_type": "unit_test_failure",
	})
	if total, _ := result["total"].(float64); total != 1 {
		t.Errorf("total = %v, want 1", result["total"])
	}
}

func TestServer_AnalyzeTrends(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "analyze_trends", nil)
	stats, _ := result["statistics"].(map[string]any)
	if total, _ := stats["TotalRuns"].(float64); total != 5 {
		t.Errorf("TotalRuns = %v, want 5 (from audit metadata)", stats["TotalRuns"])
	}
	daily, _ := result["daily"].([]any)
	if len(daily) != 1 {
		t.Errorf("got %d daily points, want 1", len(daily))
	}
}

func TestServer_CorrelateFailures(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	result := callTool(t, ctx, session, "correlate_failures", map[string]any{
		"stage_name": "tests",
	})
	if total, _ := result["total"].(float64); total != 3 {
		t.Errorf("total = %v, want 3", result["total"])
	}

	callToolExpectError(t, ctx, session, "correlate_failures", nil)
}
