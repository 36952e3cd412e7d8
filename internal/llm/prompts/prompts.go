package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// maxInputRunes caps each faculty-supplied text block.
const maxInputRunes = 20000

// DefaultInstitution is printed in the paper header when none is configured.
const DefaultInstitution = "M.Kumarasamy College of Engineering, NAAC Accredited Autonomous Institution"

var referenceTagRegex = regexp.MustCompile(`(?i)</?\s*(cdap|syllabus|template|system-instructions)\b[^>]*>`)

// Task names one of the three generation requests.
type Task string

const (
	TaskBank      Task = "bank"
	TaskPaperText Task = "paper_text"
	TaskPaperData Task = "paper_data"
)

var (
	loadOnce  sync.Once
	loadErr   error
	system    string
	templates map[Task]*template.Template
)

var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"mul": func(a, b int) int { return a * b },
}

// Load parses the prompt templates from fsys. Only the first call has any effect;
// later calls return the outcome of the first one.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		content, err := fs.ReadFile(fsys, "templates/system.tmpl")
		if err != nil {
			loadErr = errors.New("failed to read prompt file templates/system.tmpl: " + err.Error())
			return
		}
		system = strings.TrimSpace(string(content))

		shared, err := fs.ReadFile(fsys, "templates/constraints.tmpl")
		if err != nil {
			loadErr = errors.New("failed to read prompt file templates/constraints.tmpl: " + err.Error())
			return
		}

		templates = make(map[Task]*template.Template)
		for _, task := range []Task{TaskBank, TaskPaperText, TaskPaperData} {
			file := "templates/" + string(task) + ".tmpl"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(string(task)).Funcs(funcs).Parse(string(content))
			if err == nil {
				_, err = tmpl.Parse(string(shared))
			}
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			templates[task] = tmpl
		}
	})
	return loadErr
}

func loaded() error {
	return Load(templateFS)
}

// SystemPrompt returns the system directive sent with every request.
func SystemPrompt() (string, error) {
	if err := loaded(); err != nil {
		return "", err
	}
	return system, nil
}

// Options tune prompt content that is not part of the faculty inputs.
type Options struct {
	Institution string
}

// Data is the template data shared by all three prompts.
type Data struct {
	CDAP        string
	Syllabus    string
	Template    string
	Selection   model.FacultySelection
	Scope       exam.Scope
	Layout      exam.Layout
	Label       string
	Institution string
	TotalMarks  int
	ShortMarks  int
	LongMarks   int
	MinShort    int
	MinLong     int
	UnitsList   string
	UnitsOr     string
	COsList     string
	COsOr       string
	COsAnd      string
	BankJSON    string
	ORRow       string
	Skeleton    string
	Sections    []TextSection
}

// TextSection is a paper section pre-rendered as fixed-width text rows.
type TextSection struct {
	Title string
	Rows  []string
}

func newData(in model.Inputs, opts Options) Data {
	cfg := exam.For(in.Selection)
	units := fmt.Sprintf("%d, %d", cfg.Scope.Units[0], cfg.Scope.Units[1])
	institution := opts.Institution
	if institution == "" {
		institution = DefaultInstitution
	}
	or, _ := json.Marshal(orRow())
	return Data{
		CDAP:        sanitize(in.CDAP),
		Syllabus:    sanitize(in.Syllabus),
		Template:    sanitize(in.Template),
		Selection:   in.Selection,
		Scope:       cfg.Scope,
		Layout:      cfg.Layout,
		Label:       exam.Label(in.Selection.CIAType),
		Institution: institution,
		TotalMarks:  cfg.Layout.TotalMarks(),
		ShortMarks:  exam.ShortAnswerMarks,
		LongMarks:   cfg.Layout.LongMarks(),
		MinShort:    exam.MinShortQuestions,
		MinLong:     exam.MinLongQuestions,
		UnitsList:   units,
		UnitsOr:     fmt.Sprintf("%d or %d", cfg.Scope.Units[0], cfg.Scope.Units[1]),
		COsList:     cfg.Scope.COs[0] + ", " + cfg.Scope.COs[1],
		COsOr:       cfg.Scope.COs[0] + " or " + cfg.Scope.COs[1],
		COsAnd:      cfg.Scope.COs[0] + " and " + cfg.Scope.COs[1],
		ORRow:       string(or),
	}
}

// BuildBankPrompt builds the question bank request.
func BuildBankPrompt(in model.Inputs) (string, error) {
	return BuildBankPromptWith(in, Options{})
}

// BuildBankPromptWith is BuildBankPrompt with explicit options.
func BuildBankPromptWith(in model.Inputs, opts Options) (string, error) {
	return execute(TaskBank, newData(in, opts))
}

// BuildPaperTextPrompt builds the request for the printable paper text.
func BuildPaperTextPrompt(in model.Inputs, bank []model.Question) (string, error) {
	return BuildPaperTextPromptWith(in, bank, Options{})
}

// BuildPaperTextPromptWith is BuildPaperTextPrompt with explicit options.
func BuildPaperTextPromptWith(in model.Inputs, bank []model.Question, opts Options) (string, error) {
	data := newData(in, opts)
	bankJSON, err := json.Marshal(bank)
	if err != nil {
		return "", fmt.Errorf("marshal question bank: %w", err)
	}
	data.BankJSON = string(bankJSON)
	data.Sections = textSections(skeleton(in.Selection), data.Layout)
	return execute(TaskPaperText, data)
}

// BuildPaperDataPrompt builds the request for structured paper data.
func BuildPaperDataPrompt(in model.Inputs, bank []model.Question) (string, error) {
	return BuildPaperDataPromptWith(in, bank, Options{})
}

// BuildPaperDataPromptWith is BuildPaperDataPrompt with explicit options.
func BuildPaperDataPromptWith(in model.Inputs, bank []model.Question, opts Options) (string, error) {
	data := newData(in, opts)
	bankJSON, err := json.Marshal(bank)
	if err != nil {
		return "", fmt.Errorf("marshal question bank: %w", err)
	}
	data.BankJSON = string(bankJSON)
	data.Skeleton, err = skeletonJSON(skeleton(in.Selection))
	if err != nil {
		return "", fmt.Errorf("render paper skeleton: %w", err)
	}
	return execute(TaskPaperData, data)
}

func execute(task Task, data Data) (string, error) {
	if err := loaded(); err != nil {
		return "", err
	}
	tmpl, ok := templates[task]
	if !ok {
		return "", errors.New("unknown prompt task: " + string(task))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", task, err)
	}
	return buf.String(), nil
}

func sanitize(text string) string {
	text = referenceTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[Not provided]"
	}

	if utf8.RuneCountInString(text) > maxInputRunes {
		runes := []rune(text)
		runes = runes[:maxInputRunes]
		text = string(runes) + "\n\n[Truncated due to length]"
	}

	return text
}
