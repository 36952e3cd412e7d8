// Package session holds per-browser application state. State changes only
// through Reduce, and views render the latest snapshot.
package session

import (
	"errors"
	"fmt"

	"github.com/RAHUL-DevelopeRR/QP/internal/generate"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
	"github.com/RAHUL-DevelopeRR/QP/internal/paper"
	"github.com/RAHUL-DevelopeRR/QP/internal/samples"
)

var (
	// ErrGenerating rejects actions that would race an in-flight generation.
	ErrGenerating = errors.New("generation already in progress")
	// ErrNotGenerating rejects a generation outcome with no generation started.
	ErrNotGenerating = errors.New("no generation in progress")
)

// Tab is the active view.
type Tab string

const (
	TabInput Tab = "input"
	TabBank  Tab = "bank"
	TabPaper Tab = "paper"
)

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabInput, TabBank, TabPaper:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tab %q", s)
	}
}

// State is an immutable snapshot. Slices and pointers in a State are never
// mutated after the snapshot is published; Reduce replaces them instead.
type State struct {
	Inputs      model.Inputs
	Bank        []model.Question
	Rejections  []model.Rejection
	PaperText   string
	Paper       *model.QuestionPaperData
	Rendered    *paper.Rendered
	Generating  bool
	Error       string
	ExportError string
	Tab         Tab
}

// Initial returns the state of a new session.
func Initial() State {
	return State{
		Inputs: model.Inputs{Selection: model.FacultySelection{CIAType: model.CIA1, QPType: model.QP1}},
		Tab:    TabInput,
	}
}

// HasResults reports whether a generation has completed in this session.
func (s State) HasResults() bool {
	return s.Bank != nil && s.Paper != nil
}

// Action is an event applied by Reduce.
type Action interface {
	isAction()
}

// SetInputs replaces the faculty inputs.
type SetInputs struct{ Inputs model.Inputs }

// LoadSample fills the inputs from a subject sample.
type LoadSample struct{ Sample samples.Sample }

// GenerationStarted marks the start of a run.
type GenerationStarted struct{}

// GenerationSucceeded publishes the results of a run.
type GenerationSucceeded struct{ Result *generate.Result }

// GenerationFailed ends a run with a user-facing message.
type GenerationFailed struct{ Message string }

// SelectTab switches the active view.
type SelectTab struct{ Tab Tab }

// ExportFailed reports a document export failure on the paper view.
type ExportFailed struct{ Message string }

// DismissError clears the error banners.
type DismissError struct{}

func (SetInputs) isAction()           {}
func (LoadSample) isAction()          {}
func (GenerationStarted) isAction()   {}
func (GenerationSucceeded) isAction() {}
func (GenerationFailed) isAction()    {}
func (SelectTab) isAction()           {}
func (ExportFailed) isAction()        {}
func (DismissError) isAction()        {}

// Reduce returns the state after applying a. It never modifies s; on error
// the returned state equals s.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case SetInputs:
		if s.Generating {
			return s, ErrGenerating
		}
		s.Inputs = a.Inputs
	case LoadSample:
		if s.Generating {
			return s, ErrGenerating
		}
		s.Inputs = a.Sample.Inputs()
	case GenerationStarted:
		if s.Generating {
			return s, ErrGenerating
		}
		s.Generating = true
		s.Error = ""
	case GenerationSucceeded:
		if !s.Generating {
			return s, ErrNotGenerating
		}
		if a.Result == nil || a.Result.Paper == nil {
			return s, errors.New("generation result is incomplete")
		}
		rendered := a.Result.Rendered
		s.Bank = a.Result.Bank
		s.Rejections = a.Result.Rejections
		s.PaperText = a.Result.PaperText
		s.Paper = a.Result.Paper
		s.Rendered = &rendered
		s.Generating = false
		s.Error = ""
		s.ExportError = ""
		s.Tab = TabBank
	case GenerationFailed:
		if !s.Generating {
			return s, ErrNotGenerating
		}
		// Previously displayed results stay untouched.
		s.Generating = false
		s.Error = a.Message
	case SelectTab:
		if _, err := ParseTab(string(a.Tab)); err != nil {
			return s, err
		}
		s.Tab = a.Tab
	case ExportFailed:
		s.ExportError = a.Message
	case DismissError:
		s.Error = ""
		s.ExportError = ""
	default:
		return s, fmt.Errorf("unknown action %T", a)
	}
	return s, nil
}
