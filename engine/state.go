package engine

import (
	"time"
)

// BuildStatus is the outcome of a project's most recent build.
type BuildStatus int

const (
	// StatusAbsent means the project has not been built yet.
	StatusAbsent BuildStatus = iota
	// StatusSuccess means every script command exited zero.
	StatusSuccess
	// StatusFailure means a script command failed or could not start.
	StatusFailure
)

func (s BuildStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "absent"
	}
}

// Phase is where a project is in its build cycle.
type Phase int

const (
	// PhaseIdle indicates no build is pending or running.
	PhaseIdle Phase = iota
	// PhaseScheduled indicates a build is waiting for the debounce window.
	PhaseScheduled
	// PhaseBuilding indicates the script is running.
	PhaseBuilding
)

func (p Phase) String() string {
	switch p {
	case PhaseScheduled:
		return "scheduled"
	case PhaseBuilding:
		return "building"
	default:
		return "idle"
	}
}

// ProjectStatus is a snapshot of one project, safe to hand to other
// goroutines and to encode on the wire.
type ProjectStatus struct {
	Name   string      `json:"name"`
	Dir    string      `json:"dir"`
	Phase  Phase       `json:"phase"`
	Status BuildStatus `json:"status"`
	// Command is the command that decided the last build: the failing one,
	// or the final one on success.
	Command    string        `json:"command,omitempty"`
	ExitCode   int           `json:"exit_code"`
	Output     string        `json:"output,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration"`
	Builds     int           `json:"builds"`
}

// Succeeded reports whether the last build passed.
func (s ProjectStatus) Succeeded() bool {
	return s.Status == StatusSuccess
}
