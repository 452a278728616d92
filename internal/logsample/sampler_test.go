package logsample

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeLog(t *testing.T, lines int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	path := filepath.Join(t.TempDir(), "build-log.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSummarize_SmallFile(t *testing.T) {
	path := writeLog(t, 10)
	s := NewSeeded(1, 2)

	head, tail, total := s.Summarize(path, 50, 100)
	if total != 10 {
		t.Fatalf("total = %d, want 10", total)
	}
	if len(head) != 10 {
		t.Fatalf("head has %d lines, want 10", len(head))
	}
	if len(tail) != 0 {
		t.Fatalf("tail has %d lines, want 0 (file fits in head)", len(tail))
	}
	if head[0] != "line 0" || head[9] != "line 9" {
		t.Errorf("head content wrong: %v", head)
	}
}

func TestSummarize_SplitsHeadAndTail(t *testing.T) {
	path := writeLog(t, 30)
	s := NewSeeded(1, 2)

	head, tail, total := s.Summarize(path, 5, 10)
	if total != 30 {
		t.Fatalf("total = %d, want 30", total)
	}
	wantHead := []string{"line 0", "line 1", "line 2", "line 3", "line 4"}
	if diff := cmp.Diff(wantHead, head); diff != "" {
		t.Errorf("head mismatch (-want +got):\n%s", diff)
	}
	wantTail := []string{
		"line 20", "line 21", "line 22", "line 23", "line 24",
		"line 25", "line 26", "line 27", "line 28", "line 29",
	}
	if diff := cmp.Diff(wantTail, tail); diff != "" {
		t.Errorf("tail mismatch (-want +got):\n%s", diff)
	}
}

// When total <= head+tail, head and tail together must cover the file with no
// line lost or duplicated.
func TestSummarize_NoLossNoDup(t *testing.T) {
	path := writeLog(t, 15)
	s := NewSeeded(1, 2)

	head, tail, total := s.Summarize(path, 10, 10)
	if total != 15 {
		t.Fatalf("total = %d, want 15", total)
	}
	all := append(append([]string{}, head...), tail...)
	if len(all) != 15 {
		t.Fatalf("head+tail has %d lines, want 15", len(all))
	}
	for i, line := range all {
		if want := fmt.Sprintf("line %d", i); line != want {
			t.Fatalf("line %d = %q, want %q", i, line, want)
		}
	}
}

func TestSummarize_MissingFile(t *testing.T) {
	s := NewSeeded(1, 2)
	head, tail, total := s.Summarize(filepath.Join(t.TempDir(), "nope.txt"), 10, 10)
	if len(head) != 0 || len(tail) != 0 || total != 0 {
		t.Errorf("missing file: got head=%d tail=%d total=%d, want all zero", len(head), len(tail), total)
	}
}

func TestExtractErrors(t *testing.T) {
	content := strings.Join([]string{
		"starting build",
		"ERROR: compilation failed",
		"some progress",
		"fatal: repository not found",
		"panic: runtime error: index out of range",
		"Error: timeout AND exception: both markers, counts once",
		"all done",
	}, "\n")
	path := filepath.Join(t.TempDir(), "build-log.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSeeded(1, 2)
	got := s.ExtractErrors(path, 50)
	want := []string{
		"ERROR: compilation failed",
		"fatal: repository not found",
		"panic: runtime error: index out of range",
		"Error: timeout AND exception: both markers, counts once",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractErrors_StopsAtBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "error: number %d\n", i)
	}
	path := filepath.Join(t.TempDir(), "build-log.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSeeded(1, 2)
	got := s.ExtractErrors(path, 5)
	if len(got) != 5 {
		t.Fatalf("got %d errors, want 5", len(got))
	}
	if got[0] != "error: number 0" || got[4] != "error: number 4" {
		t.Errorf("budget should keep earliest lines: %v", got)
	}
}

func TestBuildContext_SmallFileNoSampling(t *testing.T) {
	path := writeLog(t, 100)
	s := NewSeeded(1, 2)

	ctx := s.BuildContext(path, ContextOptions{
		MaxHeadLines: 50, MaxTailLines: 100, MaxSampleLines: 100, SampleThreshold: 500,
	})
	if ctx.HasSamples {
		t.Error("HasSamples = true for file below threshold")
	}
	if len(ctx.MiddleSamples) != 0 {
		t.Errorf("MiddleSamples = %d lines, want 0", len(ctx.MiddleSamples))
	}
	if ctx.IsTruncated {
		t.Error("IsTruncated = true for 100 lines within head+tail of 150")
	}
	if ctx.TotalLines != 100 {
		t.Errorf("TotalLines = %d, want 100", ctx.TotalLines)
	}
	if ctx.FileSizeBytes == 0 {
		t.Error("FileSizeBytes = 0, want > 0")
	}
}

func TestBuildContext_MiddleSampling(t *testing.T) {
	const total, head, tail = 1000, 50, 100
	path := writeLog(t, total)
	s := NewSeeded(7, 11)

	ctx := s.BuildContext(path, ContextOptions{
		MaxHeadLines: head, MaxTailLines: tail, MaxSampleLines: 40, SampleThreshold: 500,
	})
	if !ctx.HasSamples {
		t.Fatal("HasSamples = false, want true")
	}
	if !ctx.IsTruncated {
		t.Error("IsTruncated = false, want true")
	}
	if len(ctx.MiddleSamples) != 40 {
		t.Fatalf("MiddleSamples = %d lines, want 40", len(ctx.MiddleSamples))
	}
	// Every sample must come from strictly between head and tail windows,
	// and appear in ascending file order with no duplicates.
	prev := -1
	for _, line := range ctx.MiddleSamples {
		var n int
		if _, err := fmt.Sscanf(line, "line %d", &n); err != nil {
			t.Fatalf("unexpected sample line %q", line)
		}
		if n < head || n >= total-tail {
			t.Errorf("sample index %d outside middle region [%d, %d)", n, head, total-tail)
		}
		if n <= prev {
			t.Errorf("samples out of order or duplicated: %d after %d", n, prev)
		}
		prev = n
	}
}

// When the middle region is smaller than the sample budget, every middle line
// is captured exactly once.
func TestBuildContext_SampleCountClampedToRegion(t *testing.T) {
	const total, head, tail = 600, 250, 300
	path := writeLog(t, total)
	s := NewSeeded(3, 5)

	ctx := s.BuildContext(path, ContextOptions{
		MaxHeadLines: head, MaxTailLines: tail, MaxSampleLines: 100, SampleThreshold: 500,
	})
	if want := total - head - tail; len(ctx.MiddleSamples) != want {
		t.Fatalf("MiddleSamples = %d lines, want %d", len(ctx.MiddleSamples), want)
	}
}

func TestBuildContext_DeterministicWithSeed(t *testing.T) {
	path := writeLog(t, 2000)
	opts := ContextOptions{MaxHeadLines: 50, MaxTailLines: 100, MaxSampleLines: 25, SampleThreshold: 500}

	a := NewSeeded(42, 43).BuildContext(path, opts)
	b := NewSeeded(42, 43).BuildContext(path, opts)
	if diff := cmp.Diff(a.MiddleSamples, b.MiddleSamples); diff != "" {
		t.Errorf("same seed produced different samples:\n%s", diff)
	}
}

func TestBuildContext_MissingFile(t *testing.T) {
	s := NewSeeded(1, 2)
	ctx := s.BuildContext(filepath.Join(t.TempDir(), "gone.txt"), DefaultContextOptions())
	if ctx.TotalLines != 0 || ctx.FileSizeBytes != 0 || ctx.HasSamples {
		t.Errorf("missing file context not empty: %+v", ctx)
	}
}
