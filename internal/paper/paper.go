// Package paper lays structured paper data out in the institutional template and
// reports where the data drifts from the layout its paper type requires.
package paper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

// Row is one printed line of a section. Separator rows stand between the two
// alternatives of an OR pair and carry no question.
type Row struct {
	QNo       string
	Question  string
	CO        string
	BTL       string
	Marks     string
	Separator bool
}

// Section is a titled block of rows.
type Section struct {
	Part  exam.Part
	Title string
	Rows  []Row
}

// Rendered is a paper ready for display, print or export.
type Rendered struct {
	Paper      model.QuestionPaperData
	Label      string
	TotalMarks int
	Sections   []Section
	Warnings   []string
}

// Section returns the rendered section for a part, if present.
func (r Rendered) Section(p exam.Part) (Section, bool) {
	for _, s := range r.Sections {
		if s.Part == p {
			return s, true
		}
	}
	return Section{}, false
}

// Render lays data out using the layout of its own paper type. Section titles are
// recomputed from the layout rather than taken from the data, and Part C is
// rendered only for QP-II. Any paper type other than QP-II renders as QP-I.
func Render(data model.QuestionPaperData) Rendered {
	r := Rendered{Paper: data, Label: exam.Label(data.CIAType)}

	qp := data.QPType
	if qp != model.QP2 {
		if qp != model.QP1 {
			r.warnf("unknown paper type %q, rendered as %s", qp, model.QP1)
		}
		qp = model.QP1
	}
	layout := exam.LayoutFor(qp)
	r.TotalMarks = layout.TotalMarks()

	if !layout.HasPartC() && len(data.PartCQuestions) > 0 {
		r.warnf("%s has no Part C; %d rows ignored", qp, len(data.PartCQuestions))
	}

	for _, s := range layout.Sections {
		items := partRows(data, s.Part)
		sec := Section{Part: s.Part, Title: s.Title()}
		for _, it := range items {
			sec.Rows = append(sec.Rows, toRow(it))
		}
		r.check(s, sec.Rows)
		r.Sections = append(r.Sections, sec)
	}
	return r
}

// RenderFor lays data out for the faculty's selection. The course code, CIA
// period and paper type always come from sel; each value the data disagrees on
// is replaced and reported as the first warnings.
func RenderFor(data model.QuestionPaperData, sel model.FacultySelection) Rendered {
	notes := Align(&data, sel)
	r := Render(data)
	r.Warnings = append(notes, r.Warnings...)
	return r
}

// Align overwrites the identifying fields of data with the selection and
// returns one note per replaced value. A blank course name takes the title.
func Align(data *model.QuestionPaperData, sel model.FacultySelection) []string {
	var notes []string
	if code := strings.TrimSpace(sel.CourseCode); code != "" && !strings.EqualFold(strings.TrimSpace(data.CourseCode), code) {
		notes = append(notes, fmt.Sprintf("paper data names course %q, using selected %s", data.CourseCode, code))
		data.CourseCode = code
	}
	if strings.TrimSpace(data.CourseName) == "" {
		data.CourseName = sel.CourseTitle
	}
	if sel.CIAType != "" && data.CIAType != sel.CIAType {
		notes = append(notes, fmt.Sprintf("paper data says %q, using selected %s", data.CIAType, sel.CIAType))
		data.CIAType = sel.CIAType
	}
	if sel.QPType != "" && data.QPType != sel.QPType {
		notes = append(notes, fmt.Sprintf("paper data says %q, using selected %s", data.QPType, sel.QPType))
		data.QPType = sel.QPType
	}
	return notes
}

func partRows(data model.QuestionPaperData, p exam.Part) []model.QuestionItem {
	switch p {
	case exam.PartA:
		return data.PartAQuestions
	case exam.PartB:
		return data.PartBQuestions
	case exam.PartC:
		return data.PartCQuestions
	}
	return nil
}

func toRow(it model.QuestionItem) Row {
	if it.IsAlternative() {
		return Row{Separator: true}
	}
	return Row{
		QNo:      strings.TrimSpace(it.QNo),
		Question: it.Question,
		CO:       it.CO,
		BTL:      it.BTL,
		Marks:    strings.TrimSpace(string(it.Marks)),
	}
}

// check compares a section's rows with its layout.
func (r *Rendered) check(s exam.Section, rows []Row) {
	if len(rows) == 0 {
		r.warnf("Part %s is empty", s.Part)
		return
	}

	questions, separators := 0, 0
	for _, row := range rows {
		if row.Separator {
			separators++
			continue
		}
		questions++
		if m, err := strconv.Atoi(row.Marks); err != nil || m != s.Marks {
			r.warnf("Part %s question %s declares %q marks, layout expects %d", s.Part, row.QNo, row.Marks, s.Marks)
		}
	}

	if !s.Paired {
		if questions != s.Count {
			r.warnf("Part %s has %d questions, layout expects %d", s.Part, questions, s.Count)
		}
		if separators > 0 {
			r.warnf("Part %s has %d OR rows but its questions are not paired", s.Part, separators)
		}
		return
	}
	if questions != 2*s.Count || separators != s.Count {
		r.warnf("Part %s has %d questions and %d OR rows, layout expects %d pairs", s.Part, questions, separators, s.Count)
	}
}

func (r *Rendered) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
