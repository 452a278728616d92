// Package cluster groups near-duplicate failure descriptions by embedding
// similarity, reducing dozens of worded variants of the same root cause to
// one representative entry for reporting.
package cluster

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"prowaudit/internal/logging"
)

// Embedder produces one fixed-dimension vector per input text, order
// preserved. Implementations make a single batched call where possible.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Item is one distinct failure text with its occurrence count.
type Item struct {
	Text  string
	Count int
}

// SemanticCluster is one group of near-duplicate texts. Built once per
// clustering call; immutable afterward.
type SemanticCluster struct {
	RepresentativeText string  // the seed item's text, first-encountered
	Members            []Item  // includes the representative
	TotalCount         int     // sum of member counts
	AvgSimilarity      float64 // mean pairwise similarity among members; 1.0 for singletons
}

// Clusterer groups items using an injected embedding provider.
type Clusterer struct {
	embedder Embedder
	log      *slog.Logger
}

// New returns a Clusterer backed by the given embedder. A nil embedder is
// allowed; every call then degrades to exact-match grouping.
func New(embedder Embedder) *Clusterer {
	return &Clusterer{embedder: embedder, log: logging.New("cluster")}
}

// ClusterFailures groups items whose embedding cosine similarity to a cluster
// seed meets threshold. The grouping is a greedy single pass in input order:
// each unassigned item seeds a cluster and absorbs every later unassigned
// item similar enough to the seed. It is deliberately non-transitive; the
// seed/scan/threshold semantics are part of the observable contract and must
// not be swapped for a fancier algorithm.
//
// If the embedding provider fails, every distinct text becomes its own
// singleton cluster and degraded is true so callers can disclose that
// semantic clustering was disabled. Clustering is never silently skipped.
func (c *Clusterer) ClusterFailures(ctx context.Context, items []Item, threshold float64) (clusters []SemanticCluster, degraded bool) {
	if len(items) == 0 {
		return nil, false
	}

	if c.embedder == nil {
		c.log.Warn("no embedding provider configured, falling back to exact-match grouping")
		return c.Singletons(items), true
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		c.log.Warn("embedding failed, falling back to exact-match grouping", "error", err)
		return c.Singletons(items), true
	}
	if len(vectors) != len(items) {
		c.log.Warn("embedding count mismatch, falling back to exact-match grouping",
			"want", len(items), "got", len(vectors))
		return c.Singletons(items), true
	}

	sim := similarityMatrix(vectors)

	assigned := make([]bool, len(items))
	for i := range items {
		if assigned[i] {
			continue
		}
		indices := []int{i}
		assigned[i] = true
		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}
			if sim[i][j] >= threshold {
				indices = append(indices, j)
				assigned[j] = true
			}
		}
		clusters = append(clusters, buildCluster(items, indices, sim))
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].TotalCount > clusters[b].TotalCount
	})
	return clusters, false
}

// Singletons is the exact-match fallback: every distinct text is its own
// cluster, sorted by count descending.
func (c *Clusterer) Singletons(items []Item) []SemanticCluster {
	clusters := make([]SemanticCluster, 0, len(items))
	for _, it := range items {
		clusters = append(clusters, SemanticCluster{
			RepresentativeText: it.Text,
			Members:            []Item{it},
			TotalCount:         it.Count,
			AvgSimilarity:      1.0,
		})
	}
	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].TotalCount > clusters[b].TotalCount
	})
	return clusters
}

func buildCluster(items []Item, indices []int, sim [][]float64) SemanticCluster {
	cl := SemanticCluster{
		RepresentativeText: items[indices[0]].Text,
		Members:            make([]Item, 0, len(indices)),
	}
	for _, idx := range indices {
		cl.Members = append(cl.Members, items[idx])
		cl.TotalCount += items[idx].Count
	}
	if len(indices) == 1 {
		cl.AvgSimilarity = 1.0
		return cl
	}
	var sum float64
	var pairs int
	for a := 0; a < len(indices); a++ {
		for b := a + 1; b < len(indices); b++ {
			sum += sim[indices[a]][indices[b]]
			pairs++
		}
	}
	cl.AvgSimilarity = sum / float64(pairs)
	return cl
}

// similarityMatrix computes the full pairwise cosine similarity matrix.
// Vectors are L2-normalized first, so the similarity is a plain dot product.
func similarityMatrix(vectors [][]float32) [][]float64 {
	normalized := make([][]float64, len(vectors))
	for i, v := range vectors {
		normalized[i] = l2Normalize(v)
	}
	sim := make([][]float64, len(vectors))
	for i := range normalized {
		sim[i] = make([]float64, len(vectors))
		sim[i][i] = 1.0
	}
	for i := 0; i < len(normalized); i++ {
		for j := i + 1; j < len(normalized); j++ {
			d := dot(normalized[i], normalized[j])
			sim[i][j] = d
			sim[j][i] = d
		}
	}
	return sim
}

func l2Normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return out // zero vector: similarity to everything is 0
	}
	for i, x := range v {
		out[i] = float64(x) / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
