// Package views renders the HTML pages of the generator UI as templ components.
//
//go:generate templ generate
package views

import (
	"context"

	"github.com/a-h/templ"

	"github.com/RAHUL-DevelopeRR/QP/internal/bank"
	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	appI18n "github.com/RAHUL-DevelopeRR/QP/internal/i18n"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
	"github.com/RAHUL-DevelopeRR/QP/internal/samples"
	"github.com/RAHUL-DevelopeRR/QP/internal/session"
	"github.com/RAHUL-DevelopeRR/QP/internal/store"
)

// path prefixes an application path with the deployment base path.
func path(ctx context.Context, p string) templ.SafeURL {
	return templ.URL(model.BasePathFromContext(ctx) + p)
}

func scopeHint(ctx context.Context, s exam.Scope) string {
	return appI18n.Td(ctx, "ScopeHint", map[string]any{
		"Units": s.UnitNumerals(),
		"COs":   s.COs[0] + ", " + s.COs[1],
	})
}

func maxMarks(ctx context.Context, marks int) string {
	return appI18n.Td(ctx, "MaxMarks", map[string]any{"Marks": marks})
}

func diagramNote(q model.Question) string {
	if q.DiagramDescription == "" {
		return q.DiagramType
	}
	return q.DiagramType + ": " + q.DiagramDescription
}

// TabLink is one entry of the tab bar.
type TabLink struct {
	Name     session.Tab
	Label    string
	Active   bool
	Disabled bool
}

func tabs(s session.State) []TabLink {
	return []TabLink{
		{Name: session.TabInput, Label: "TabInput", Active: s.Tab == session.TabInput},
		{Name: session.TabBank, Label: "TabBank", Active: s.Tab == session.TabBank, Disabled: !s.HasResults()},
		{Name: session.TabPaper, Label: "TabPaper", Active: s.Tab == session.TabPaper, Disabled: !s.HasResults()},
	}
}

// FilterForm echoes the bank filter as submitted.
type FilterForm struct {
	Unit    string
	Marks   string
	Diagram string
}

// IndexData is everything the generator page shows.
type IndexData struct {
	State     session.State
	Samples   []samples.Sample
	Scope     *exam.Scope
	Filter    FilterForm
	Questions []model.Question
	Units     []int
	Marks     []int
	Stats     bank.Stats
	CSVURL    string
	XLSXURL   string
}

// RunsData is the audit log summary.
type RunsData struct {
	Runs  []model.GenerationRun
	Stats []store.StepStats
}
