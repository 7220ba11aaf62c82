// Package scheduler implements the in-memory priority-aware job queue and
// its single-consumer worker (spec §4.D): submission, ordering, execution,
// lookup, cancellation, and age-based retirement.
package scheduler

import (
	"time"

	"github.com/ssuji15/wolf/internal/compiler"
)

// State is a Job's lifecycle stage (spec §3: Job).
type State uint8

const (
	StateQueued State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
	StateTimeout
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the job's terminal states.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimeout:
		return true
	default:
		return false
	}
}

// Mode is the job's execution mode (spec §3: Job).
type Mode uint8

const (
	ModeCompileOnly Mode = iota
	ModeCompileAndRun
	ModeInterpret
	ModeSyntaxCheck
)

// Job is the scheduler's unit of work. The session handler holds only the
// id; the scheduler owns the Job value from submission through
// retirement (spec §3).
type Job struct {
	ID          uint32
	SessionID   uint32
	Language    compiler.Language
	Mode        Mode
	Priority    int
	Filename    string
	CompilerArgs string
	ExecutionArgs string

	SubmittedAt time.Time
	StartedAt   time.Time
	EndedAt     time.Time

	State      State
	Pid        int
	ExitCode   int
	StdoutSize int
	StderrSize int

	SandboxDir string

	// source holds the assembled upload bytes until the worker places
	// them into the sandbox; cleared once written.
	source []byte

	// seq breaks FIFO ties within equal priority; assigned at submit time.
	seq uint64

	// cancelRequested is set by Cancel() while the job is still queued or
	// running; the worker checks it before and during execution.
	cancelRequested bool
}

// Snapshot returns a value copy safe to hand to callers outside the
// scheduler's lock (spec §4.D: "find/list return an immutable snapshot").
// The raw source bytes are not copied out; callers never need them.
func (j *Job) Snapshot() Job {
	cp := *j
	cp.source = nil
	return cp
}

// SetSource attaches the uploaded source bytes to the job descriptor
// before Submit; the worker writes them into the sandbox once it picks
// the job up.
func (j *Job) SetSource(data []byte) {
	j.source = data
}
