package model

import (
	"time"

	"github.com/pkg/errors"
)

// ErrUnknownValue is returned when a state, kind or status cannot be parsed.
var ErrUnknownValue = errors.New("unknown value")

// State is the run-state of a node.
type State int

const (
	Unstarted State = iota
	Running
	Paused
	Completed
	Failed
)

var stateNames = map[State]string{
	Unstarted: "UNSTARTED",
	Running:   "RUNNING",
	Paused:    "PAUSED",
	Completed: "COMPLETED",
	Failed:    "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, errors.Wrapf(ErrUnknownValue, "state %d", int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state

			return nil
		}
	}

	return errors.Wrapf(ErrUnknownValue, "state %q", string(text))
}

// Terminal reports whether the state ends a node's execution pass.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// CanTransition reports whether a node may move from s to next.
func (s State) CanTransition(next State) bool {
	if next == Failed {
		return true
	}
	switch s {
	case Unstarted:
		return next == Running
	case Running:
		return next == Completed || next == Paused
	case Paused:
		return next == Running
	default:
		return false
	}
}

// Kind is the capability variant of a stage.
type Kind int

const (
	Reader Kind = iota
	PatternDetector
	Action
	Writer
)

var kindNames = map[Kind]string{
	Reader:          "reader",
	PatternDetector: "pattern",
	Action:          "action",
	Writer:          "writer",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind

			return nil
		}
	}

	return errors.Wrapf(ErrUnknownValue, "kind %q", string(text))
}

// NodeInfo describes a node to observers.
type NodeInfo struct {
	ID    string
	Type  string
	Kind  Kind
	State State
	// Err is set when State is Failed.
	Err error
}

// RunStatus is the overall status of a graph run.
type RunStatus int

const (
	RunIdle RunStatus = iota
	RunRunning
	RunPaused
	RunCompleted
	RunFailed
	RunAborted
)

var runStatusNames = map[RunStatus]string{
	RunIdle:      "IDLE",
	RunRunning:   "RUNNING",
	RunPaused:    "PAUSED",
	RunCompleted: "COMPLETED",
	RunFailed:    "FAILED",
	RunAborted:   "ABORTED",
}

func (s RunStatus) String() string {
	if name, ok := runStatusNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (s RunStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RunStatus) UnmarshalText(text []byte) error {
	for status, name := range runStatusNames {
		if name == string(text) {
			*s = status

			return nil
		}
	}

	return errors.Wrapf(ErrUnknownValue, "run status %q", string(text))
}

// RunInfo describes a run to observers.
type RunInfo struct {
	GraphID string
	Status  RunStatus
	Start   time.Time
	// PausedAt is the id of the paused node when Status is RunPaused.
	PausedAt string
	// Failed lists the ids of failed nodes.
	Failed []string
}
