package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeEmbedder returns pre-baked vectors keyed by text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	short   bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vectors[t])
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestClusterFailuresGroupsSimilarTexts(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"connection refused to registry": {1, 0, 0},
		"connection refused to quay":     {0.95, 0.05, 0},
		"out of memory in builder":       {0, 1, 0},
	}}
	c := New(emb)

	clusters, degraded := c.ClusterFailures(context.Background(), []Item{
		{Text: "connection refused to registry", Count: 3},
		{Text: "connection refused to quay", Count: 2},
		{Text: "out of memory in builder", Count: 1},
	}, 0.8)

	if degraded {
		t.Fatal("unexpected degraded clustering")
	}
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
	if clusters[0].RepresentativeText != "connection refused to registry" {
		t.Errorf("representative = %q, want seed text", clusters[0].RepresentativeText)
	}
	if clusters[0].TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5", clusters[0].TotalCount)
	}
	if len(clusters[0].Members) != 2 {
		t.Errorf("members = %d, want 2", len(clusters[0].Members))
	}
	if clusters[0].AvgSimilarity <= 0.8 || clusters[0].AvgSimilarity > 1.0 {
		t.Errorf("AvgSimilarity = %v, want in (0.8, 1.0]", clusters[0].AvgSimilarity)
	}
	if clusters[1].AvgSimilarity != 1.0 {
		t.Errorf("singleton AvgSimilarity = %v, want 1.0", clusters[1].AvgSimilarity)
	}
}

func TestClusterFailuresNonTransitive(t *testing.T) {
	// b is similar to seed a, c is similar to b but not to a. The greedy
	// pass compares against the seed only, so c must land in its own
	// cluster even though a chain a-b-c exists.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0.8, 0.6},
		"c": {0.3, 0.95},
	}}
	c := New(emb)

	clusters, _ := c.ClusterFailures(context.Background(), []Item{
		{Text: "a", Count: 1},
		{Text: "b", Count: 1},
		{Text: "c", Count: 1},
	}, 0.75)

	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
	var texts []string
	for _, cl := range clusters {
		for _, m := range cl.Members {
			texts = append(texts, m.Text)
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, texts); diff != "" {
		t.Errorf("member texts mismatch (-want +got):\n%s", diff)
	}
}

func TestClusterFailuresCountConservation(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"w": {1, 0, 0}, "x": {0.9, 0.1, 0}, "y": {0, 1, 0}, "z": {0, 0, 1},
	}}
	c := New(emb)
	items := []Item{{"w", 4}, {"x", 3}, {"y", 2}, {"z", 7}}

	clusters, _ := c.ClusterFailures(context.Background(), items, 0.8)

	var total, members int
	for _, cl := range clusters {
		total += cl.TotalCount
		members += len(cl.Members)
	}
	if total != 16 {
		t.Errorf("total count = %d, want 16", total)
	}
	if members != len(items) {
		t.Errorf("member count = %d, want %d", members, len(items))
	}
}

func TestClusterFailuresThresholdMonotonicity(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"a": {1, 0}, "b": {0.9, 0.44}, "c": {0.7, 0.71}, "d": {0, 1},
	}}
	c := New(emb)
	items := []Item{{"a", 1}, {"b", 1}, {"c", 1}, {"d", 1}}

	prev := 0
	for _, th := range []float64{0.5, 0.7, 0.9, 0.99} {
		clusters, _ := c.ClusterFailures(context.Background(), items, th)
		if len(clusters) < prev {
			t.Errorf("threshold %v produced %d clusters, fewer than %d at a lower threshold",
				th, len(clusters), prev)
		}
		prev = len(clusters)
	}
}

func TestClusterFailuresSortedByTotalCount(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"rare": {1, 0}, "common": {0, 1},
	}}
	c := New(emb)

	clusters, _ := c.ClusterFailures(context.Background(), []Item{
		{Text: "rare", Count: 1},
		{Text: "common", Count: 10},
	}, 0.8)

	if clusters[0].RepresentativeText != "common" {
		t.Errorf("first cluster = %q, want highest-count first", clusters[0].RepresentativeText)
	}
}

func TestClusterFailuresEmbedErrorDegrades(t *testing.T) {
	c := New(&fakeEmbedder{err: errors.New("provider unavailable")})

	clusters, degraded := c.ClusterFailures(context.Background(), []Item{
		{Text: "a", Count: 2},
		{Text: "b", Count: 5},
	}, 0.8)

	if !degraded {
		t.Fatal("expected degraded clustering on embed error")
	}
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want one singleton per item", len(clusters))
	}
	if clusters[0].RepresentativeText != "b" {
		t.Errorf("fallback not sorted by count: first = %q", clusters[0].RepresentativeText)
	}
	for _, cl := range clusters {
		if cl.AvgSimilarity != 1.0 {
			t.Errorf("singleton AvgSimilarity = %v, want 1.0", cl.AvgSimilarity)
		}
	}
}

func TestClusterFailuresVectorCountMismatchDegrades(t *testing.T) {
	c := New(&fakeEmbedder{
		vectors: map[string][]float32{"a": {1, 0}, "b": {0, 1}},
		short:   true,
	})

	_, degraded := c.ClusterFailures(context.Background(), []Item{
		{Text: "a", Count: 1},
		{Text: "b", Count: 1},
	}, 0.8)

	if !degraded {
		t.Fatal("expected degraded clustering on vector count mismatch")
	}
}

func TestClusterFailuresNilEmbedderDegrades(t *testing.T) {
	c := New(nil)

	clusters, degraded := c.ClusterFailures(context.Background(), []Item{{Text: "a", Count: 1}}, 0.8)

	if !degraded {
		t.Fatal("expected degraded clustering with nil embedder")
	}
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
}

func TestClusterFailuresEmptyInput(t *testing.T) {
	c := New(&fakeEmbedder{})
	clusters, degraded := c.ClusterFailures(context.Background(), nil, 0.8)
	if clusters != nil || degraded {
		t.Errorf("empty input: clusters = %v, degraded = %v, want nil/false", clusters, degraded)
	}
}

func TestClusterFailuresZeroVectorNeverAbsorbed(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"a": {1, 0}, "zero": {0, 0},
	}}
	c := New(emb)

	clusters, _ := c.ClusterFailures(context.Background(), []Item{
		{Text: "a", Count: 1},
		{Text: "zero", Count: 1},
	}, 0.5)

	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2 (zero vector is dissimilar to everything)", len(clusters))
	}
}
