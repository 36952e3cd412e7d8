package prompts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

const placeholder = "..."

func orRow() model.QuestionItem {
	return model.QuestionItem{QNo: model.AlternativeMarker, Question: model.AlternativeMarker}
}

// skeleton builds an example paper for the selection with placeholder question text.
// Part A questions and the first half of every paired section use the first course
// outcome; a single-group section splits its (a) and (b) across both outcomes.
func skeleton(sel model.FacultySelection) model.QuestionPaperData {
	cfg := exam.For(sel)
	cos := cfg.Scope.COs
	paper := model.QuestionPaperData{
		Department:  "CSE",
		Section:     "A",
		Semester:    "IV",
		DateSession: "2025-02-27 (FN)",
		CourseCode:  sel.CourseCode,
		CourseName:  sel.CourseTitle,
		CIAType:     sel.CIAType,
		QPType:      sel.QPType,
	}

	qno := 1
	for _, s := range cfg.Layout.Sections {
		var rows []model.QuestionItem
		marks := model.Text(strconv.Itoa(s.Marks))
		if !s.Paired {
			for i := 0; i < s.Count; i++ {
				rows = append(rows, model.QuestionItem{
					QNo: fmt.Sprintf("%d.", qno), Question: placeholder,
					CO: coFor(cos, i, s.Count), BTL: "BTL2", Marks: marks,
				})
				qno++
			}
		} else {
			for i := 0; i < s.Count; i++ {
				coA, coB := coFor(cos, i, s.Count), coFor(cos, i, s.Count)
				btlA, btlB := "BTL3", "BTL4"
				if s.Count == 1 {
					coA, coB = cos[0], cos[1]
					btlA, btlB = "BTL4", "BTL5"
				}
				rows = append(rows,
					model.QuestionItem{QNo: fmt.Sprintf("%d.(a)", qno), Question: placeholder, CO: coA, BTL: btlA, Marks: marks},
					orRow(),
					model.QuestionItem{QNo: fmt.Sprintf("%d.(b)", qno), Question: placeholder, CO: coB, BTL: btlB, Marks: marks},
				)
				qno++
			}
		}
		switch s.Part {
		case exam.PartA:
			paper.PartAQuestions = rows
		case exam.PartB:
			paper.PartBQuestions = rows
		case exam.PartC:
			paper.PartCQuestions = rows
		}
	}
	return paper
}

func coFor(cos [2]string, i, n int) string {
	if i < (n+1)/2 {
		return cos[0]
	}
	return cos[1]
}

// skeletonJSON renders the skeleton one row per line so the example stays readable.
func skeletonJSON(p model.QuestionPaperData) (string, error) {
	var sb strings.Builder
	sb.WriteString("{\n")
	fields := []struct {
		key   string
		value any
	}{
		{"department", p.Department},
		{"section", p.Section},
		{"semester", p.Semester},
		{"dateSession", p.DateSession},
		{"courseCode", p.CourseCode},
		{"courseName", p.CourseName},
		{"ciaType", p.CIAType},
		{"qpType", p.QPType},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.value)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "  %q: %s,\n", f.key, b)
	}

	parts := []struct {
		key  string
		rows []model.QuestionItem
	}{
		{"partAQuestions", p.PartAQuestions},
		{"partBQuestions", p.PartBQuestions},
	}
	if len(p.PartCQuestions) > 0 {
		parts = append(parts, struct {
			key  string
			rows []model.QuestionItem
		}{"partCQuestions", p.PartCQuestions})
	}
	for i, part := range parts {
		fmt.Fprintf(&sb, "  %q: [\n", part.key)
		for j, row := range part.rows {
			b, err := json.Marshal(row)
			if err != nil {
				return "", err
			}
			sb.WriteString("    ")
			sb.Write(b)
			if j < len(part.rows)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("  ]")
		if i < len(parts)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String(), nil
}

// textSections lays the skeleton out as the fixed-width rows of the printed paper.
func textSections(p model.QuestionPaperData, layout exam.Layout) []TextSection {
	var out []TextSection
	for _, s := range layout.Sections {
		var rows []model.QuestionItem
		switch s.Part {
		case exam.PartA:
			rows = p.PartAQuestions
		case exam.PartB:
			rows = p.PartBQuestions
		case exam.PartC:
			rows = p.PartCQuestions
		}
		ts := TextSection{Title: s.Title()}
		for _, r := range rows {
			if r.IsAlternative() {
				ts.Rows = append(ts.Rows, strings.Repeat(" ", 30)+model.AlternativeMarker)
				continue
			}
			ts.Rows = append(ts.Rows, fmt.Sprintf("%-8s%-54s%-6s%-6s%s",
				strings.TrimSuffix(strings.ReplaceAll(r.QNo, "(", ""), ")"), "[Question]", r.CO, r.BTL, r.Marks))
		}
		out = append(out, ts)
	}
	return out
}
