package prow

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"prowaudit/internal/logging"
)

// Walker enumerates runs under a log root. Each call to Runs or FailedRuns
// re-walks the filesystem; the sequences are lazy and restartable, not
// resumable cursors.
type Walker struct {
	root    string
	jobName string
	log     *slog.Logger
}

// NewWalker validates the root directory and returns a walker. A missing
// root is a configuration error and the only condition the walker treats as
// fatal; every per-entry problem during a walk degrades to a warning.
func NewWalker(root string) (*Walker, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("log root does not exist: %s", root)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("log root is not a directory: %s", root)
	}
	return &Walker{
		root:    root,
		jobName: filepath.Base(root),
		log:     logging.New("walker"),
	}, nil
}

// Runs returns a lazy sequence of all runs under the root, optionally
// restricted to stages named filterStage (empty = all stages). A run whose
// stage list is empty after filtering is excluded. Build identifiers are
// deduplicated: a directory (or symlink) resolving to an already-seen build
// is skipped with a warning so downstream counts stay honest.
func (w *Walker) Runs(filterStage string) iter.Seq[*RunInfo] {
	return func(yield func(*RunInfo) bool) {
		entries, err := os.ReadDir(w.root)
		if err != nil {
			w.log.Warn("cannot list log root", "root", w.root, "error", err)
			return
		}

		seen := make(map[string]bool)
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") || name == latestBuildFile {
				continue
			}
			path := filepath.Join(w.root, name)
			fi, err := os.Stat(path) // follows symlinks
			if err != nil || !fi.IsDir() {
				continue
			}

			buildID := w.resolveBuildID(path, name)
			if seen[buildID] {
				w.log.Warn("duplicate build directory skipped",
					"build", buildID, "entry", name)
				continue
			}
			seen[buildID] = true

			run := w.parseRun(path, buildID)
			if run == nil {
				continue
			}
			if filterStage != "" {
				var kept []StageInfo
				for _, st := range run.Stages {
					if st.StageName == filterStage {
						kept = append(kept, st)
					}
				}
				if len(kept) == 0 {
					continue
				}
				run.Stages = kept
			}
			if !yield(run) {
				return
			}
		}
	}
}

// FailedRuns is Runs restricted to runs exhibiting failure: run-level
// metadata non-pass, or at least one retained stage non-pass.
func (w *Walker) FailedRuns(filterStage string) iter.Seq[*RunInfo] {
	return func(yield func(*RunInfo) bool) {
		for run := range w.Runs(filterStage) {
			if !run.Failed() {
				continue
			}
			if !yield(run) {
				return
			}
		}
	}
}

// CountRuns consumes the run sequence purely for its length.
func (w *Walker) CountRuns(filterStage string) int {
	n := 0
	for range w.Runs(filterStage) {
		n++
	}
	return n
}

// CountFailedRuns consumes the failed-run sequence purely for its length.
func (w *Walker) CountFailedRuns(filterStage string) int {
	n := 0
	for range w.FailedRuns(filterStage) {
		n++
	}
	return n
}

// resolveBuildID maps a directory entry to its build identifier. A symlink
// pointing at another run directory under the same root resolves to the
// target's name, so symlinked duplicates collapse onto one identifier.
func (w *Walker) resolveBuildID(path, name string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return name
	}
	if filepath.Dir(resolved) == mustResolve(w.root) {
		return filepath.Base(resolved)
	}
	return name
}

func mustResolve(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// parseRun builds a RunInfo from one build directory. The PR number is not
// recoverable from the on-disk layout, so it is recorded as "unknown".
func (w *Walker) parseRun(runPath, buildID string) *RunInfo {
	run := &RunInfo{
		PRNumber:    "unknown",
		JobName:     w.jobName,
		BuildNumber: buildID,
		RunPath:     runPath,
		Stages:      w.findStages(runPath),
	}
	markerPath := filepath.Join(runPath, FinishedMarker)
	if fileExists(markerPath) {
		run.MarkerPath = markerPath
		run.Metadata = w.parseFinished(markerPath)
	}
	return run
}

// findStages enumerates the artifacts directory. A stage is kept only if it
// has at least one step or its own marker; anything else is noise.
func (w *Walker) findStages(runPath string) []StageInfo {
	artifactsPath := filepath.Join(runPath, artifactsDir)
	entries, err := os.ReadDir(artifactsPath)
	if err != nil {
		return nil
	}

	var stages []StageInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		stagePath := filepath.Join(artifactsPath, entry.Name())
		stage := StageInfo{
			StageName: entry.Name(),
			StagePath: stagePath,
			Steps:     w.findSteps(stagePath, entry.Name()),
		}
		markerPath := filepath.Join(stagePath, FinishedMarker)
		if fileExists(markerPath) {
			stage.MarkerPath = markerPath
			stage.Metadata = w.parseFinished(markerPath)
		}
		if len(stage.Steps) > 0 || stage.MarkerPath != "" {
			stages = append(stages, stage)
		}
	}
	return stages
}

// findSteps enumerates step directories within a stage. A directory without
// the conventional log file is not a step and is ignored.
func (w *Walker) findSteps(stagePath, stageName string) []StepInfo {
	entries, err := os.ReadDir(stagePath)
	if err != nil {
		return nil
	}

	var steps []StepInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		stepPath := filepath.Join(stagePath, entry.Name())
		logPath := filepath.Join(stepPath, BuildLogName)
		if !fileExists(logPath) {
			continue
		}

		step := StepInfo{
			StepName:  entry.Name(),
			StageName: stageName,
			LogPath:   logPath,
		}
		if markerPath := filepath.Join(stepPath, FinishedMarker); fileExists(markerPath) {
			step.MarkerPath = markerPath
			step.HasMarker = true
			step.Metadata = w.parseFinished(markerPath)
		}
		if sidecarPath := filepath.Join(stepPath, SidecarLogsName); fileExists(sidecarPath) {
			step.SidecarPath = sidecarPath
			step.HasSidecar = true
		}
		steps = append(steps, step)
	}
	return steps
}

// finishedDoc is the on-disk shape of finished.json.
type finishedDoc struct {
	Timestamp int64             `json:"timestamp"`
	Passed    bool              `json:"passed"`
	Result    string            `json:"result"`
	Revision  string            `json:"revision"`
	Metadata  map[string]string `json:"metadata"`
}

// parseFinished reads a finished.json marker. Any parse failure is logged as
// a warning and reported as absent metadata; a malformed marker never aborts
// the walk.
func (w *Walker) parseFinished(path string) *FinishedMetadata {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("cannot read marker file", "path", path, "error", err)
		return nil
	}
	var doc finishedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		w.log.Warn("malformed marker file", "path", path, "error", err)
		return nil
	}
	result := doc.Result
	if result == "" {
		result = "UNKNOWN"
	}
	return &FinishedMetadata{
		Timestamp: time.Unix(doc.Timestamp, 0).UTC(),
		Passed:    doc.Passed,
		Result:    result,
		Revision:  doc.Revision,
		Extra:     doc.Metadata,
	}
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
