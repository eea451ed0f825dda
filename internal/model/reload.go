package model

import "time"

// ReloadState is the orchestrator's lifecycle state
type ReloadState int

const (
	Stopped ReloadState = iota
	Watching
	Reloading
)

func (s ReloadState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Watching:
		return "watching"
	case Reloading:
		return "reloading"
	default:
		return "unknown"
	}
}

// RunKind tells which reload path a run took
type RunKind string

const (
	RunIncremental RunKind = "incremental"
	RunReset       RunKind = "reset"
	RunHUP         RunKind = "hup"
	RunManualReset RunKind = "manual-reset"
)

// RunRecord is one finished reload or reset, as kept in the journal.
type RunRecord struct {
	ID        string
	Kind      RunKind
	Path      string
	StartedAt time.Time
	Duration  time.Duration
	ExitCode  int
	FellBack  bool // incremental apply failed and a full reset ran instead
}

// OK reports whether the run ended with a zero exit code
func (r RunRecord) OK() bool {
	return r.ExitCode == 0
}
