// Package bank filters, summarizes and exports a question bank.
package bank

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

// Filter holds optional equality predicates. A nil field matches every question.
type Filter struct {
	Unit       *int
	Marks      *int
	HasDiagram *bool
}

// IsZero reports whether the filter has no predicates.
func (f Filter) IsZero() bool {
	return f.Unit == nil && f.Marks == nil && f.HasDiagram == nil
}

// Match reports whether q satisfies every predicate.
func (f Filter) Match(q model.Question) bool {
	if f.Unit != nil && q.Unit != *f.Unit {
		return false
	}
	if f.Marks != nil && q.Marks != *f.Marks {
		return false
	}
	if f.HasDiagram != nil && q.HasDiagram != *f.HasDiagram {
		return false
	}
	return true
}

// Apply returns the questions matching f in their original order.
// An empty filter returns qs unchanged.
func (f Filter) Apply(qs []model.Question) []model.Question {
	if f.IsZero() {
		return qs
	}
	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if f.Match(q) {
			out = append(out, q)
		}
	}
	return out
}

// Units returns the distinct units in qs, ascending.
func Units(qs []model.Question) []int {
	return distinct(qs, func(q model.Question) int { return q.Unit })
}

// Marks returns the distinct mark weights in qs, ascending.
func Marks(qs []model.Question) []int {
	return distinct(qs, func(q model.Question) int { return q.Marks })
}

func distinct(qs []model.Question, key func(model.Question) int) []int {
	var out []int
	for _, q := range qs {
		if k := key(q); !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Stats counts a bank by mark weight and diagram presence.
type Stats struct {
	Total        int
	ByMarks      map[int]int
	WithDiagrams int
}

// Summarize returns the counts shown above the bank table.
func Summarize(qs []model.Question) Stats {
	s := Stats{Total: len(qs), ByMarks: make(map[int]int)}
	for _, q := range qs {
		s.ByMarks[q.Marks]++
		if q.HasDiagram {
			s.WithDiagrams++
		}
	}
	return s
}

// Columns is the header row of every tabular export.
var Columns = []string{"ID", "Unit", "Marks", "CO", "BTL", "Type", "Difficulty", "HasDiagram", "DiagramType", "Question"}

// QuestionColumn is the index of the question text in Columns.
const QuestionColumn = 9

func row(q model.Question) []string {
	return []string{
		q.ID,
		strconv.Itoa(q.Unit),
		strconv.Itoa(q.Marks),
		q.CO,
		q.BTL,
		string(q.Type),
		string(q.Difficulty),
		strconv.FormatBool(q.HasDiagram),
		q.DiagramType,
		q.Text,
	}
}

// WriteCSV writes qs as RFC 4180 CSV with a header row. The question column is
// always quoted; the others only when they need it.
func WriteCSV(w io.Writer, qs []model.Question) error {
	if err := writeRecord(w, Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, q := range qs {
		if err := writeRecord(w, row(q)); err != nil {
			return fmt.Errorf("write csv row %s: %w", q.ID, err)
		}
	}
	return nil
}

func writeRecord(w io.Writer, rec []string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(rec[:QuestionColumn]); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	buf.WriteString(`,"`)
	buf.WriteString(strings.ReplaceAll(rec[QuestionColumn], `"`, `""`))
	buf.WriteString("\"\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Question Bank"

// WriteXLSX writes qs as a single-sheet workbook with the same columns as WriteCSV.
func WriteXLSX(w io.Writer, qs []model.Question) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, q := range qs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{q.ID, q.Unit, q.Marks, q.CO, q.BTL, string(q.Type), string(q.Difficulty), q.HasDiagram, q.DiagramType, q.Text}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %s: %w", q.ID, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, last, last, 80); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
