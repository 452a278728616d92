package format_test

import (
	"strings"
	"testing"
	"time"

	"prowaudit/internal/format"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Stage", "Total", "Failed")
	tb.Row("e2e", 42, 7)
	tb.Row("build", 42, 1)
	out := tb.String()

	if !strings.Contains(out, "Stage") {
		t.Errorf("expected header 'Stage' in output:\n%s", out)
	}
	if !strings.Contains(out, "e2e") {
		t.Errorf("expected 'e2e' in output:\n%s", out)
	}
	// ASCII mode uses StyleLight which has box-drawing chars
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_BasicTable(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Root Cause", "Count")
	tb.Row("DNS resolution failure", 12)
	tb.Row("Image pull backoff", 5)
	out := tb.String()

	if !strings.Contains(out, "| Root Cause") {
		t.Errorf("expected markdown header with '| Root Cause':\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator '---':\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Category", "Count")
	tb.Row("network", 10)
	tb.Row("timeout", 4)
	tb.Footer("TOTAL", 14)
	out := tb.String()

	if !strings.Contains(out, "TOTAL") {
		t.Errorf("expected footer 'TOTAL' in output:\n%s", out)
	}
}

func TestColumns_MaxWidth(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Step", "Analysis")
	tb.Columns(format.ColumnConfig{Number: 2, MaxWidth: 10, Align: format.AlignLeft})
	tb.Row("deploy", "a very long analysis line that needs wrapping")
	out := tb.String()

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "a very long analysis line that needs wrapping") {
			t.Errorf("analysis column not width-limited:\n%s", out)
		}
	}
}

func TestFmtTokens(t *testing.T) {
	cases := map[int]string{
		950:       "950",
		1500:      "1.5K",
		2_300_000: "2.3M",
	}
	for in, want := range cases {
		if got := format.FmtTokens(in); got != want {
			t.Errorf("FmtTokens(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFmtBytes(t *testing.T) {
	cases := map[int64]string{
		512:            "512B",
		2048:           "2.0KB",
		5 << 20:        "5.0MB",
		3 * (1 << 30):  "3.0GB",
	}
	for in, want := range cases {
		if got := format.FmtBytes(in); got != want {
			t.Errorf("FmtBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFmtPercent(t *testing.T) {
	if got := format.FmtPercent(0.375); got != "37.5%" {
		t.Errorf("FmtPercent(0.375) = %q", got)
	}
}

func TestFmtDuration(t *testing.T) {
	if got := format.FmtDuration(45 * time.Second); got != "45s" {
		t.Errorf("FmtDuration(45s) = %q", got)
	}
	if got := format.FmtDuration(125 * time.Second); got != "2m 5s" {
		t.Errorf("FmtDuration(125s) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := format.Truncate("short", 10); got != "short" {
		t.Errorf("Truncate(short, 10) = %q", got)
	}
	if got := format.Truncate("a longer string", 9); got != "a long..." {
		t.Errorf("Truncate = %q", got)
	}
}
