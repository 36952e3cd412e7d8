package bank

import (
	"bytes"
	"encoding/csv"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func testBank() []model.Question {
	return []model.Question{
		{ID: "Q1", Text: "Define a class.", Marks: 2, Unit: 1, CO: "CO1", BTL: "BTL1", Difficulty: model.DifficultyEasy, Type: model.TypeTheory},
		{ID: "Q2", Text: `Explain the "diamond" problem, with a diagram.`, Marks: 12, Unit: 2, CO: "CO2", BTL: "BTL3", Difficulty: model.DifficultyMedium, Type: model.TypeDiagram, HasDiagram: true, DiagramType: "class diagram"},
		{ID: "Q3", Text: "List\nthree, access \"specifiers\".", Marks: 2, Unit: 2, CO: "CO2", BTL: "BTL1", Difficulty: model.DifficultyEasy, Type: model.TypeTheory},
		{ID: "Q4", Text: "Design a bank system.", Marks: 12, Unit: 1, CO: "CO1", BTL: "BTL6", Difficulty: model.DifficultyHard, Type: model.TypeProblem},
	}
}

func ids(qs []model.Question) []string {
	out := []string{}
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func TestFilterScenario(t *testing.T) {
	qs := []model.Question{
		{ID: "A", Unit: 1, Marks: 2, CO: "CO1"},
		{ID: "B", Unit: 3, Marks: 16, CO: "CO3"},
	}
	got := Filter{Unit: intp(1)}.Apply(qs)
	if !reflect.DeepEqual(got, qs[:1]) {
		t.Errorf("filter unit=1 = %+v, want only the first record", got)
	}
}

func TestFilterApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty", Filter{}, []string{"Q1", "Q2", "Q3", "Q4"}},
		{"unit", Filter{Unit: intp(2)}, []string{"Q2", "Q3"}},
		{"marks", Filter{Marks: intp(12)}, []string{"Q2", "Q4"}},
		{"diagram", Filter{HasDiagram: boolp(true)}, []string{"Q2"}},
		{"no diagram", Filter{HasDiagram: boolp(false)}, []string{"Q1", "Q3", "Q4"}},
		{"unit and marks", Filter{Unit: intp(1), Marks: intp(12)}, []string{"Q4"}},
		{"no match", Filter{Unit: intp(4)}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(tt.filter.Apply(testBank())); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterNarrowsMonotonically(t *testing.T) {
	qs := testBank()
	steps := []Filter{
		{},
		{Unit: intp(2)},
		{Unit: intp(2), Marks: intp(12)},
		{Unit: intp(2), Marks: intp(12), HasDiagram: boolp(true)},
	}
	prev := len(qs)
	for i, f := range steps {
		n := len(f.Apply(qs))
		if n > prev {
			t.Errorf("step %d: %d results, previous step had %d", i, n, prev)
		}
		prev = n
	}
	var none Filter
	if got := none.Apply(qs); !reflect.DeepEqual(got, qs) {
		t.Error("empty filter should return the collection unchanged")
	}
}

func TestUnitsAndMarks(t *testing.T) {
	qs := []model.Question{{Unit: 10, Marks: 16}, {Unit: 2, Marks: 2}, {Unit: 1, Marks: 12}, {Unit: 2, Marks: 2}}
	if got := Units(qs); !reflect.DeepEqual(got, []int{1, 2, 10}) {
		t.Errorf("Units() = %v, want numeric order [1 2 10]", got)
	}
	if got := Marks(qs); !reflect.DeepEqual(got, []int{2, 12, 16}) {
		t.Errorf("Marks() = %v, want [2 12 16]", got)
	}
	if got := Units(nil); len(got) != 0 {
		t.Errorf("Units(nil) = %v, want empty", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(testBank())
	if s.Total != 4 || s.ByMarks[2] != 2 || s.ByMarks[12] != 2 || s.WithDiagrams != 1 {
		t.Errorf("Summarize() = %+v", s)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	qs := testBank()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, qs); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.SplitN(buf.String(), "\n", 3)
	if !strings.HasSuffix(lines[0], `,"Question"`) || lines[1] != `Q1,1,2,CO1,BTL1,Theory,Easy,false,,"Define a class."` {
		t.Errorf("question column should always be quoted:\n%s\n%s", lines[0], lines[1])
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != len(qs)+1 {
		t.Fatalf("got %d records, want %d", len(records), len(qs)+1)
	}
	if !reflect.DeepEqual(records[0], Columns) {
		t.Errorf("header = %v", records[0])
	}
	for i, q := range qs {
		rec := records[i+1]
		if rec[QuestionColumn] != q.Text {
			t.Errorf("row %d text = %q, want %q", i, rec[QuestionColumn], q.Text)
		}
		if rec[0] != q.ID {
			t.Errorf("row %d id = %q, want %q", i, rec[0], q.ID)
		}
	}
	if records[2][7] != "true" || records[2][8] != "class diagram" {
		t.Errorf("diagram columns = %v", records[2][7:9])
	}
}

func TestWriteXLSX(t *testing.T) {
	qs := testBank()
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, qs); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != len(qs)+1 {
		t.Fatalf("got %d rows, want %d", len(rows), len(qs)+1)
	}
	if !reflect.DeepEqual(rows[0], Columns) {
		t.Errorf("header = %v", rows[0])
	}
	if rows[2][QuestionColumn] != qs[1].Text {
		t.Errorf("question cell = %q, want %q", rows[2][QuestionColumn], qs[1].Text)
	}
	if rows[4][1] != "1" || rows[4][2] != "12" {
		t.Errorf("numeric cells = %v", rows[4][1:3])
	}
}
