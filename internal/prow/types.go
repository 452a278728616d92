// Package prow parses Prow-style CI artifact trees into typed run, stage,
// and step records. The expected layout is
// root/<build-id>/artifacts/<stage>/<step>/build-log.txt with optional
// finished.json markers at the build, stage, and step levels.
package prow

import "time"

// Marker and log filename conventions inside a run directory.
const (
	FinishedMarker  = "finished.json"
	BuildLogName    = "build-log.txt"
	SidecarLogsName = "sidecar-logs.json"
	latestBuildFile = "latest-build.txt"
	artifactsDir    = "artifacts"
)

// FinishedMetadata is the parsed content of a finished.json marker.
// A nil *FinishedMetadata means "no metadata": absence and parse failure are
// deliberately indistinguishable from each other but distinguishable from a
// recorded failure.
type FinishedMetadata struct {
	Timestamp time.Time
	Passed    bool
	Result    string
	Revision  string            // optional
	Extra     map[string]string // optional free-form metadata
}

// StepInfo describes one step: the smallest unit of execution, owning one
// primary log file. Identity within a run is (StageName, StepName).
type StepInfo struct {
	StepName    string
	StageName   string
	LogPath     string
	MarkerPath  string // empty when absent
	SidecarPath string // empty when absent
	HasMarker   bool
	HasSidecar  bool
	Metadata    *FinishedMetadata
}

// StageInfo describes one named phase of a run and its steps, in filesystem
// enumeration order.
type StageInfo struct {
	StageName  string
	StagePath  string
	MarkerPath string // empty when absent
	Steps      []StepInfo
	Metadata   *FinishedMetadata
}

// RunInfo describes one CI job run identified by its build number.
type RunInfo struct {
	PRNumber    string
	JobName     string
	BuildNumber string
	RunPath     string
	Stages      []StageInfo
	MarkerPath  string // empty when absent
	Metadata    *FinishedMetadata
}

// Failed reports whether this run should be treated as failed: its own
// metadata reports non-pass, or any stage does. A run whose own marker is
// absent but whose stages show failure still counts.
func (r *RunInfo) Failed() bool {
	if r.Metadata != nil && !r.Metadata.Passed {
		return true
	}
	for i := range r.Stages {
		if m := r.Stages[i].Metadata; m != nil && !m.Passed {
			return true
		}
	}
	return false
}

// Failed reports whether the step's own marker records a non-pass. Steps
// without a marker are not considered passed.
func (s *StepInfo) Failed() bool {
	return s.Metadata == nil || !s.Metadata.Passed
}
