// Package generate runs the three sequential generation requests for one set of
// faculty inputs: question bank, printable paper text, and structured paper data.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/extract"
	"github.com/RAHUL-DevelopeRR/QP/internal/llm"
	"github.com/RAHUL-DevelopeRR/QP/internal/llm/prompts"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
	"github.com/RAHUL-DevelopeRR/QP/internal/paper"
)

// DefaultTemperature is the sampling temperature of every request.
const DefaultTemperature = 0.4

// ErrInvalidInput marks inputs rejected before any network call.
var ErrInvalidInput = errors.New("invalid input")

// MissingInputError lists the required inputs left blank.
type MissingInputError struct {
	Fields []string
}

func (e *MissingInputError) Error() string {
	return "missing required input: " + strings.Join(e.Fields, ", ")
}

func (e *MissingInputError) Unwrap() error {
	return ErrInvalidInput
}

// CheckInputs reports blank required inputs as a *MissingInputError and
// out-of-range selectors as an error wrapping ErrInvalidInput.
func CheckInputs(in model.Inputs) error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"cdap", in.CDAP},
		{"syllabus", in.Syllabus},
		{"template", in.Template},
		{"courseCode", in.Selection.CourseCode},
		{"courseTitle", in.Selection.CourseTitle},
		{"ciaType", string(in.Selection.CIAType)},
		{"qpType", string(in.Selection.QPType)},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &MissingInputError{Fields: missing}
	}
	if err := extract.Validate(in.Selection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// Recorder stores an audit entry per generation request.
type Recorder interface {
	RecordRun(ctx context.Context, run model.GenerationRun) error
}

// Result holds everything one successful run produced.
type Result struct {
	Bank       []model.Question
	Rejections []model.Rejection
	PaperText  string
	Paper      *model.QuestionPaperData
	Rendered   paper.Rendered
}

// Generator drives the generation service through the prompt builder and extractor.
type Generator struct {
	llm         llm.Completer
	recorder    Recorder
	opts        prompts.Options
	temperature float32
	jsonMode    bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithRecorder audits every request.
func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithPromptOptions sets the prompt options, e.g. the institution name.
func WithPromptOptions(o prompts.Options) Option {
	return func(g *Generator) { g.opts = o }
}

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float32) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithJSONMode asks the service to constrain the structured paper reply to a JSON object.
// Leave it off for services that do not support response formats.
func WithJSONMode(on bool) Option {
	return func(g *Generator) { g.jsonMode = on }
}

// New creates a Generator.
func New(c llm.Completer, opts ...Option) *Generator {
	g := &Generator{llm: c, temperature: DefaultTemperature}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Run executes bank, paper text and paper data generation in order. The first
// failure aborts the run and no partial result is returned.
func (g *Generator) Run(ctx context.Context, in model.Inputs) (*Result, error) {
	if err := CheckInputs(in); err != nil {
		return nil, err
	}

	bank, err := g.Bank(ctx, in)
	if err != nil {
		return nil, err
	}
	text, err := g.PaperText(ctx, in, bank.Questions)
	if err != nil {
		return nil, err
	}
	rendered, err := g.PaperData(ctx, in, bank.Questions)
	if err != nil {
		return nil, err
	}

	return &Result{
		Bank:       bank.Questions,
		Rejections: bank.Rejections,
		PaperText:  text,
		Paper:      &rendered.Paper,
		Rendered:   *rendered,
	}, nil
}

// Bank generates and screens the question bank.
func (g *Generator) Bank(ctx context.Context, in model.Inputs) (*extract.BankResult, error) {
	if err := CheckInputs(in); err != nil {
		return nil, err
	}
	prompt, err := prompts.BuildBankPromptWith(in, g.opts)
	if err != nil {
		return nil, err
	}
	raw, err := g.complete(ctx, model.StepBank, prompt, false)
	if err != nil {
		return nil, err
	}
	res, err := extract.Bank(raw, exam.For(in.Selection))
	g.record(ctx, model.StepBank, prompt, raw, err)
	if err != nil {
		g.formatFailure(ctx, model.StepBank, raw, err)
		return nil, err
	}
	if len(res.Rejections) > 0 {
		slog.Warn("question bank records rejected",
			"session", model.SessionIDFromContext(ctx),
			"accepted", len(res.Questions),
			"rejected", len(res.Rejections))
	}
	return res, nil
}

// PaperText generates the printable question paper.
func (g *Generator) PaperText(ctx context.Context, in model.Inputs, bank []model.Question) (string, error) {
	if err := CheckInputs(in); err != nil {
		return "", err
	}
	prompt, err := prompts.BuildPaperTextPromptWith(in, bank, g.opts)
	if err != nil {
		return "", err
	}
	raw, err := g.complete(ctx, model.StepPaperText, prompt, false)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		err := &extract.DataFormatError{Stage: "paper text", Raw: raw, Err: errors.New("empty reply")}
		g.record(ctx, model.StepPaperText, prompt, raw, err)
		g.formatFailure(ctx, model.StepPaperText, raw, err)
		return "", err
	}
	g.record(ctx, model.StepPaperText, prompt, raw, nil)
	return text, nil
}

// PaperData generates the structured question paper and lays it out for the
// faculty's selection. Rendered.Paper carries the selection's course code, CIA
// period and paper type whatever the reply said.
func (g *Generator) PaperData(ctx context.Context, in model.Inputs, bank []model.Question) (*paper.Rendered, error) {
	if err := CheckInputs(in); err != nil {
		return nil, err
	}
	prompt, err := prompts.BuildPaperDataPromptWith(in, bank, g.opts)
	if err != nil {
		return nil, err
	}
	raw, err := g.complete(ctx, model.StepPaperData, prompt, g.jsonMode)
	if err != nil {
		return nil, err
	}
	data, err := extract.PaperData(raw)
	g.record(ctx, model.StepPaperData, prompt, raw, err)
	if err != nil {
		g.formatFailure(ctx, model.StepPaperData, raw, err)
		return nil, err
	}
	rendered := paper.RenderFor(*data, in.Selection)
	if n := len(rendered.Warnings); n > 0 {
		slog.Warn("paper data does not match the layout",
			"session", model.SessionIDFromContext(ctx),
			"qp_type", in.Selection.QPType,
			"warnings", n)
	}
	return &rendered, nil
}

func (g *Generator) complete(ctx context.Context, step model.GenerationStep, prompt string, jsonMode bool) (string, error) {
	system, err := prompts.SystemPrompt()
	if err != nil {
		return "", err
	}
	slog.Info("generation request", "session", model.SessionIDFromContext(ctx), "step", step, "prompt_chars", utf8.RuneCountInString(prompt))

	raw, err := g.llm.Complete(ctx, llm.Request{
		System:      system,
		User:        prompt,
		JSON:        jsonMode,
		Temperature: g.temperature,
	})
	if err != nil {
		slog.Error("generation request failed", "session", model.SessionIDFromContext(ctx), "step", step, "error", err)
		g.record(ctx, step, prompt, "", err)
		return "", err
	}
	return raw, nil
}

// formatFailure logs a reply that could not be extracted, raw text included.
func (g *Generator) formatFailure(ctx context.Context, step model.GenerationStep, raw string, err error) {
	slog.Error("generation reply not usable",
		"session", model.SessionIDFromContext(ctx),
		"step", step,
		"error", err,
		"raw", raw)
}

func (g *Generator) record(ctx context.Context, step model.GenerationStep, prompt, raw string, callErr error) {
	if g.recorder == nil {
		return
	}
	run := model.GenerationRun{
		SessionID:   model.SessionIDFromContext(ctx),
		Step:        step,
		PromptChars: utf8.RuneCountInString(prompt),
		Raw:         raw,
	}
	if callErr != nil {
		run.Error = callErr.Error()
	}
	// Audit failures never fail the generation itself.
	if err := g.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("failed to record generation run", "step", step, "error", err)
	}
}
