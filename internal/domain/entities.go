package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

// SchemaFile represents a schema source file found under the source root
type SchemaFile struct {
	Name string
	Path string
	Dir  string
}

// NewSchemaFile builds a SchemaFile from an absolute path
func NewSchemaFile(path string) SchemaFile {
	return SchemaFile{
		Name: filepath.Base(path),
		Path: path,
		Dir:  filepath.Dir(path),
	}
}

// Outcome is the result classification of a single compile
type Outcome int

const (
	// OutcomeSkipped means the compiler was never invoked for the path
	OutcomeSkipped Outcome = iota
	OutcomeSucceeded
	// OutcomeWarnings means the compiler exited 0 but wrote to stderr
	OutcomeWarnings
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeWarnings:
		return "succeeded-with-warnings"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// CompileJob is a single prepared compiler invocation
type CompileJob struct {
	Source    string
	OutputDir string
	Args      []string
}

// CompileResult represents the result of compiling one path
type CompileResult struct {
	Source    string
	OutputDir string
	Args      []string
	Outcome   Outcome
	ExitCode  int
	Stdout    string
	Stderr    string
	Error     error
	Duration  time.Duration
}

// Attempted reports whether a compile was attempted for the path.
// Failed compiles count as attempted.
func (r CompileResult) Attempted() bool {
	return r.Outcome != OutcomeSkipped
}

// BatchResult represents the result of one triggered set of compiles
type BatchResult struct {
	Results       []CompileResult
	RefreshNeeded bool
}

// Count returns the number of results with the given outcome
func (b BatchResult) Count(outcome Outcome) int {
	n := 0
	for _, r := range b.Results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Attempted returns the number of results that invoked the compiler
func (b BatchResult) Attempted() int {
	return len(b.Results) - b.Count(OutcomeSkipped)
}

// HasFailures reports whether any compile in the batch failed
func (b BatchResult) HasFailures() bool {
	return b.Count(OutcomeFailed) > 0
}

// ChangeKind classifies a change notification
type ChangeKind int

const (
	// ChangeImported covers created and modified files
	ChangeImported ChangeKind = iota
	ChangeDeleted
	ChangeMoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeImported:
		return "imported"
	case ChangeDeleted:
		return "deleted"
	case ChangeMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// ChangeEvent is a single path reported by a change-notification source
type ChangeEvent struct {
	Path string
	Kind ChangeKind
}

// ImportedEvents wraps plain paths as imported change events
func ImportedEvents(paths []string) []ChangeEvent {
	events := make([]ChangeEvent, 0, len(paths))
	for _, p := range paths {
		events = append(events, ChangeEvent{Path: p, Kind: ChangeImported})
	}
	return events
}

// RunOutput holds the captured result of a finished subprocess
type RunOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}
