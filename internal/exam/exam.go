// Package exam derives the constraints implied by a CIA period and paper type:
// which syllabus units and course outcomes are legal, and how the paper is laid out.
package exam

import (
	"fmt"
	"slices"
	"strings"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

// TotalMarks is the declared maximum of every CIA paper.
const TotalMarks = 60

// ShortAnswerMarks is the weight of every Part A question.
const ShortAnswerMarks = 2

// Minimum question counts requested from the generation service per bank.
const (
	MinShortQuestions = 8
	MinLongQuestions  = 6
)

// Part identifies a section of the question paper.
type Part string

const (
	PartA Part = "A"
	PartB Part = "B"
	PartC Part = "C"
)

// Section describes one part of the paper.
// For paired sections Count is the number of OR groups; each group is answered once.
type Section struct {
	Part   Part
	Count  int
	Marks  int
	Paired bool
}

// Subtotal returns the marks a candidate can score in the section.
func (s Section) Subtotal() int {
	return s.Count * s.Marks
}

// Title renders the section heading, e.g. "PART - B (4 x 12 = 48 Marks)".
func (s Section) Title() string {
	return fmt.Sprintf("PART - %s (%d x %d = %d Marks)", s.Part, s.Count, s.Marks, s.Subtotal())
}

// Rows is the number of rows the section occupies in structured paper data:
// one per question, or (a), OR marker and (b) per paired group.
func (s Section) Rows() int {
	if s.Paired {
		return s.Count * 3
	}
	return s.Count
}

// Layout is the ordered list of sections for a paper type.
type Layout struct {
	QPType   model.QPType
	Sections []Section
}

// TotalMarks sums the subtotals of all sections.
func (l Layout) TotalMarks() int {
	total := 0
	for _, s := range l.Sections {
		total += s.Subtotal()
	}
	return total
}

// Section returns the section for a part, if the layout has it.
func (l Layout) Section(p Part) (Section, bool) {
	for _, s := range l.Sections {
		if s.Part == p {
			return s, true
		}
	}
	return Section{}, false
}

// HasPartC reports whether the layout has a third section.
func (l Layout) HasPartC() bool {
	_, ok := l.Section(PartC)
	return ok
}

// LongMarks is the per-question weight of the OR-paired sections.
func (l Layout) LongMarks() int {
	s, _ := l.Section(PartB)
	return s.Marks
}

var layouts = map[model.QPType]Layout{
	model.QP1: {
		QPType: model.QP1,
		Sections: []Section{
			{Part: PartA, Count: 6, Marks: ShortAnswerMarks},
			{Part: PartB, Count: 4, Marks: 12, Paired: true},
		},
	},
	model.QP2: {
		QPType: model.QP2,
		Sections: []Section{
			{Part: PartA, Count: 6, Marks: ShortAnswerMarks},
			{Part: PartB, Count: 2, Marks: 16, Paired: true},
			{Part: PartC, Count: 1, Marks: 16, Paired: true},
		},
	},
}

// LayoutFor returns the section layout of a paper type.
// It panics on a value outside the enumeration; parse user input with ParseQP first.
func LayoutFor(qp model.QPType) Layout {
	l, ok := layouts[qp]
	if !ok {
		panic(fmt.Sprintf("exam: unknown paper type %q", qp))
	}
	l.Sections = slices.Clone(l.Sections)
	return l
}

// Scope is the pair of syllabus units and course outcomes a CIA period may draw on.
type Scope struct {
	Units [2]int
	COs   [2]string
}

// HasUnit reports whether u is one of the allowed units.
func (s Scope) HasUnit(u int) bool {
	return s.Units[0] == u || s.Units[1] == u
}

// HasCO reports whether co is one of the allowed course outcomes.
func (s Scope) HasCO(co string) bool {
	return s.COs[0] == co || s.COs[1] == co
}

// UnitNumerals renders the units the way syllabi name them, e.g. "Unit I and Unit II".
func (s Scope) UnitNumerals() string {
	return "Unit " + roman(s.Units[0]) + " and Unit " + roman(s.Units[1])
}

// ScopeFor returns the units and course outcomes of a CIA period.
// It panics on a value outside the enumeration; parse user input with ParseCIA first.
func ScopeFor(cia model.CIAType) Scope {
	switch cia {
	case model.CIA1:
		return Scope{Units: [2]int{1, 2}, COs: [2]string{"CO1", "CO2"}}
	case model.CIA2:
		return Scope{Units: [2]int{3, 4}, COs: [2]string{"CO3", "CO4"}}
	default:
		panic(fmt.Sprintf("exam: unknown CIA type %q", cia))
	}
}

// Label returns the short period label printed on the paper ("CIA-1", "CIA-2").
func Label(cia model.CIAType) string {
	if cia == model.CIA2 {
		return "CIA-2"
	}
	return "CIA-1"
}

// ParseCIA validates a user-supplied CIA selector.
func ParseCIA(s string) (model.CIAType, error) {
	switch v := model.CIAType(strings.TrimSpace(s)); v {
	case model.CIA1, model.CIA2:
		return v, nil
	default:
		return "", fmt.Errorf("unknown CIA type %q (want %s or %s)", s, model.CIA1, model.CIA2)
	}
}

// ParseQP validates a user-supplied paper type selector.
func ParseQP(s string) (model.QPType, error) {
	switch v := model.QPType(strings.TrimSpace(s)); v {
	case model.QP1, model.QP2:
		return v, nil
	default:
		return "", fmt.Errorf("unknown paper type %q (want %s or %s)", s, model.QP1, model.QP2)
	}
}

// Config is the full set of derived constraints for one exam configuration.
type Config struct {
	CIA    model.CIAType
	QP     model.QPType
	Scope  Scope
	Layout Layout
}

// For derives the constraints of a faculty selection.
func For(sel model.FacultySelection) Config {
	return Config{
		CIA:    sel.CIAType,
		QP:     sel.QPType,
		Scope:  ScopeFor(sel.CIAType),
		Layout: LayoutFor(sel.QPType),
	}
}

// ViolationError lists every constraint a question breaks.
type ViolationError struct {
	ID      string
	Reasons []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("question %q violates exam constraints: %s", e.ID, strings.Join(e.Reasons, "; "))
}

// Allows checks a question against the configuration: unit and course outcome must
// belong to the CIA period, and marks must be a weight the paper type can use.
func (c Config) Allows(q model.Question) error {
	var reasons []string
	if !c.Scope.HasUnit(q.Unit) {
		reasons = append(reasons, fmt.Sprintf("unit %d not in %v", q.Unit, c.Scope.Units))
	}
	if !c.Scope.HasCO(q.CO) {
		reasons = append(reasons, fmt.Sprintf("course outcome %q not in %v", q.CO, c.Scope.COs))
	}
	if q.Marks != ShortAnswerMarks && q.Marks != c.Layout.LongMarks() {
		reasons = append(reasons, fmt.Sprintf("marks %d not used by %s (want %d or %d)",
			q.Marks, c.QP, ShortAnswerMarks, c.Layout.LongMarks()))
	}
	if len(reasons) > 0 {
		return &ViolationError{ID: q.ID, Reasons: reasons}
	}
	return nil
}

func roman(n int) string {
	numerals := []string{"", "I", "II", "III", "IV", "V"}
	if n > 0 && n < len(numerals) {
		return numerals[n]
	}
	return fmt.Sprint(n)
}
