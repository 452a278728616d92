// Package logsample extracts bounded excerpts from CI log files of unknown
// size. Everything streams: memory use is proportional to the requested
// windows, never to the file.
package logsample

import (
	"bufio"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"prowaudit/internal/logging"
)

// errorMarkers are the diagnostic substrings matched (case-insensitively)
// by ExtractErrors. A line matching several markers counts once.
var errorMarkers = []string{
	"error:",
	"error ",
	"exception:",
	"exception ",
	"failed:",
	"failed ",
	"failure:",
	"failure ",
	"fatal:",
	"fatal ",
	"panic:",
	"panic ",
	"traceback",
}

// Scanner buffer sizing: CI tools emit very long lines (kubectl dumps,
// base64 blobs), so the default 64K token limit is not enough.
const maxLineBytes = 4 * 1024 * 1024

// Sampler reads log excerpts. It is stateless per call apart from the random
// source used for middle sampling.
type Sampler struct {
	rng *rand.Rand
	log *slog.Logger
}

// New returns a Sampler with a time-seeded random source. Middle-sample
// selection is therefore not reproducible run to run; tests that need
// determinism use NewSeeded.
func New() *Sampler {
	now := uint64(time.Now().UnixNano())
	return NewSeeded(now, now>>32)
}

// NewSeeded returns a Sampler whose middle sampling is deterministic for the
// given seed pair.
func NewSeeded(seed1, seed2 uint64) *Sampler {
	return &Sampler{
		rng: rand.New(rand.NewPCG(seed1, seed2)),
		log: logging.New("logsample"),
	}
}

// Summarize reads path once and returns the first headLines lines, a sliding
// window of the last tailLines lines, and the total line count. A missing
// file yields empty slices and zero, not an error: absent logs are a
// data-quality condition, not a failure.
func (s *Sampler) Summarize(path string, headLines, tailLines int) (head, tail []string, total int) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0
	}
	defer f.Close()

	// Ring buffer for the tail so arbitrarily long files cost O(tailLines).
	ring := make([]string, tailLines)
	ringLen, ringPos := 0, 0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := trimEOL(sc.Text())
		if total < headLines {
			head = append(head, line)
		} else if tailLines > 0 {
			ring[ringPos] = line
			ringPos = (ringPos + 1) % tailLines
			if ringLen < tailLines {
				ringLen++
			}
		}
		total++
	}
	if err := sc.Err(); err != nil {
		s.log.Warn("log read stopped early", "path", path, "error", err)
	}

	tail = make([]string, 0, ringLen)
	start := (ringPos - ringLen + tailLines) % max(tailLines, 1)
	for i := 0; i < ringLen; i++ {
		tail = append(tail, ring[(start+i)%tailLines])
	}
	return head, tail, total
}

// ExtractErrors scans path for lines containing any diagnostic marker and
// returns up to maxErrors of them in file order. Matching is case-insensitive
// and stops as soon as the budget is filled.
func (s *Sampler) ExtractErrors(path string, maxErrors int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var errorLines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if len(errorLines) >= maxErrors {
			break
		}
		line := trimEOL(sc.Text())
		lower := strings.ToLower(line)
		for _, marker := range errorMarkers {
			if strings.Contains(lower, marker) {
				errorLines = append(errorLines, line)
				break
			}
		}
	}
	return errorLines
}

// FileSize returns the size of path in bytes, or 0 if it does not exist.
func (s *Sampler) FileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\n\r")
}
