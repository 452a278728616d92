package logsample

import (
	"bufio"
	"os"
	"sort"
)

// Context is the bounded excerpt of one log file handed to the classifier.
// Built fresh per step; never persisted as-is.
type Context struct {
	Path            string
	TotalLines      int
	FileSizeBytes   int64
	HeadLines       []string
	TailLines       []string
	MiddleSamples   []string // only populated for large files
	HasSamples      bool
	IsTruncated     bool
	ExtractedErrors []string
}

// ContextOptions bounds what BuildContext reads.
type ContextOptions struct {
	MaxHeadLines    int
	MaxTailLines    int
	MaxSampleLines  int
	SampleThreshold int // middle sampling triggers above this many total lines
	IncludeErrors   bool
	MaxErrors       int
}

// DefaultContextOptions mirrors the bounds the audit pipeline uses.
func DefaultContextOptions() ContextOptions {
	return ContextOptions{
		MaxHeadLines:    50,
		MaxTailLines:    100,
		MaxSampleLines:  100,
		SampleThreshold: 500,
		IncludeErrors:   true,
		MaxErrors:       30,
	}
}

// BuildContext summarizes the log in one pass and, for files larger than the
// sample threshold, makes a second streaming pass that captures uniformly
// random lines from the region strictly between the head and tail windows.
// This gives a classifier start, end, error lines, and a cross-section of the
// middle at constant memory cost.
func (s *Sampler) BuildContext(path string, opts ContextOptions) *Context {
	head, tail, total := s.Summarize(path, opts.MaxHeadLines, opts.MaxTailLines)

	ctx := &Context{
		Path:          path,
		TotalLines:    total,
		FileSizeBytes: s.FileSize(path),
		HeadLines:     head,
		TailLines:     tail,
		IsTruncated:   total > opts.MaxHeadLines+opts.MaxTailLines,
	}

	if total > opts.SampleThreshold {
		ctx.HasSamples = true
		middleStart := opts.MaxHeadLines
		middleEnd := total - opts.MaxTailLines
		if regionSize := middleEnd - middleStart; regionSize > 0 {
			count := min(opts.MaxSampleLines, regionSize)
			positions := s.samplePositions(middleStart, middleEnd, count)
			ctx.MiddleSamples = s.collectLines(path, positions)
		}
	}

	if opts.IncludeErrors {
		ctx.ExtractedErrors = s.ExtractErrors(path, opts.MaxErrors)
	}
	return ctx
}

// samplePositions picks count distinct line indices uniformly at random from
// [start, end), sorted ascending. For a dense request it shuffles the whole
// region; for a sparse one it rejection-samples so huge middles never get
// materialized.
func (s *Sampler) samplePositions(start, end, count int) []int {
	size := end - start
	if count >= size {
		out := make([]int, size)
		for i := range out {
			out[i] = start + i
		}
		return out
	}

	var picks []int
	if count*2 >= size {
		all := make([]int, size)
		for i := range all {
			all[i] = start + i
		}
		s.rng.Shuffle(size, func(i, j int) { all[i], all[j] = all[j], all[i] })
		picks = all[:count]
	} else {
		seen := make(map[int]bool, count)
		picks = make([]int, 0, count)
		for len(picks) < count {
			p := start + s.rng.IntN(size)
			if !seen[p] {
				seen[p] = true
				picks = append(picks, p)
			}
		}
	}
	sorted := append([]int(nil), picks...)
	sort.Ints(sorted)
	return sorted
}

// collectLines streams the file once, emitting the line at each pending
// position. positions must be sorted ascending.
func (s *Sampler) collectLines(path string, positions []int) []string {
	if len(positions) == 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	lines := make([]string, 0, len(positions))
	next := 0
	current := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if next >= len(positions) {
			break
		}
		if current == positions[next] {
			lines = append(lines, trimEOL(sc.Text()))
			next++
		}
		current++
	}
	return lines
}
