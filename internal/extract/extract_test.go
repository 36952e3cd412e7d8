package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

const q1 = `{"id":"Q1","text":"Define a class.","marks":2,"unit":1,"topic":"Classes","subtopic":"Basics","co":"CO1","btl":"BTL1","difficulty":"Easy","type":"Theory"}`

const q2 = `{"id":"Q2","text":"Explain \"virtual\" functions with [example].","marks":12,"unit":2,"topic":"Polymorphism","subtopic":"Virtual","co":"CO2","btl":"BTL3","difficulty":"Medium","type":"Diagram","hasDiagram":true,"diagramType":"flowchart","diagramDescription":"vtable lookup","diagramRole":"draw"}`

func cia1QP1() exam.Config {
	return exam.For(model.FacultySelection{CourseCode: "CS201", CourseTitle: "OOP", CIAType: model.CIA1, QPType: model.QP1})
}

func TestCandidate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		shape Shape
		want  string
	}{
		{"fenced block", "Here you go:\n```json\n[" + q1 + "]\n```\nEnjoy", ShapeArray, "[" + q1 + "]"},
		{"fence label is case-insensitive", "```JSON\n{\"a\":1}\n```", ShapeObject, `{"a":1}`},
		{"bare array in prose", "Sure! [" + q1 + "] Hope this helps.", ShapeArray, "[" + q1 + "]"},
		{"skips citation markers", "Based on [1] and [2]: [" + q1 + "]", ShapeArray, "[" + q1 + "]"},
		{"brackets inside strings", `x [{"text":"a ] b [ c"}] y`, ShapeArray, `[{"text":"a ] b [ c"}]`},
		{"escaped quote inside string", `x [{"text":"say \"]\""}] y`, ShapeArray, `[{"text":"say \"]\""}]`},
		{"array shape falls back to object", `Result: {"questions":null} done`, ShapeArray, `{"questions":null}`},
		{"object shape ignores arrays", `note [1] then {"partAQuestions":[{"qno":"1."}]}`, ShapeObject, `{"partAQuestions":[{"qno":"1."}]}`},
		{"skips invalid span", `{not json} {"ok":true}`, ShapeObject, `{"ok":true}`},
		{"unbalanced falls back to text", "  [{\"id\":\"Q1\"  ", ShapeArray, `[{"id":"Q1"`},
		{"no payload", "sorry, I cannot help", ShapeObject, "sorry, I cannot help"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Candidate(tt.text, tt.shape); got != tt.want {
				t.Errorf("Candidate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuestionsFencedScenario(t *testing.T) {
	text := "Here you go:\n```json\n[" + q1 + "]\n```\nEnjoy"
	qs, err := Questions(text)
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(qs) != 1 || qs[0].ID != "Q1" {
		t.Fatalf("got %+v, want the single Q1 record", qs)
	}
}

func TestQuestionsIdempotentUnderWrapping(t *testing.T) {
	bare := "[" + q1 + "," + q2 + "]"
	want, err := Questions(bare)
	if err != nil {
		t.Fatalf("bare literal: %v", err)
	}

	wrappers := map[string]string{
		"leading prose":      "Here is the bank you asked for:\n" + bare,
		"trailing prose":     bare + "\nLet me know if you need more [1].",
		"both":               "Sure.\n\n" + bare + "\n\nThanks!",
		"fenced":             "```json\n" + bare + "\n```",
		"fenced with prose":  "Output:\n```json\n" + bare + "\n```\nDone.",
		"wrapped object":     `{"questions": ` + bare + `}`,
		"object in prose":    `Here: {"questions": ` + bare + `} bye`,
		"surrounding spaces": "\n\t " + bare + " \n",
	}
	for name, text := range wrappers {
		t.Run(name, func(t *testing.T) {
			got, err := Questions(text)
			if err != nil {
				t.Fatalf("Questions: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %+v, want %+v", got, want)
			}
		})
	}
}

func TestQuestionsFormatErrors(t *testing.T) {
	tests := map[string]string{
		"no json":            "The service is busy.",
		"truncated":          "[" + q1 + `,{"id":"Q2","text":"cut off`,
		"object without key": `{"items": "none"}`,
		"wrong field type":   `[{"id":"Q1","marks":"two"}]`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Questions(text)
			if !errors.Is(err, ErrDataFormat) {
				t.Fatalf("error = %v, want ErrDataFormat", err)
			}
			var dfe *DataFormatError
			if !errors.As(err, &dfe) || dfe.Raw != text {
				t.Errorf("DataFormatError should carry the raw reply, got %+v", dfe)
			}
		})
	}
}

func TestBankScreensRecords(t *testing.T) {
	outOfScope := `{"id":"Q3","text":"Explain paging.","marks":12,"unit":3,"co":"CO3","btl":"BTL2","difficulty":"Easy","type":"Theory"}`
	badSchema := `{"id":"Q4","text":"","marks":5,"unit":1,"co":"CO1","btl":"BTL9","difficulty":"Trivial","type":"Theory"}`
	wrongMarks := `{"id":"Q5","text":"Long answer.","marks":16,"unit":1,"co":"CO1","btl":"BTL2","difficulty":"Hard","type":"Theory"}`
	dup := strings.Replace(q1, "Define a class.", "Define an object.", 1)

	res, err := Bank("["+q1+","+outOfScope+","+q2+","+badSchema+","+wrongMarks+","+dup+"]", cia1QP1())
	if err != nil {
		t.Fatalf("Bank: %v", err)
	}

	var ids []string
	for _, q := range res.Questions {
		ids = append(ids, q.ID)
	}
	if !reflect.DeepEqual(ids, []string{"Q1", "Q2"}) {
		t.Errorf("accepted %v, want [Q1 Q2]", ids)
	}

	wantRejected := []struct {
		index   int
		id      string
		reasons int
	}{
		{1, "Q3", 2},
		{3, "Q4", 4},
		{4, "Q5", 1},
		{5, "Q1", 1},
	}
	if len(res.Rejections) != len(wantRejected) {
		t.Fatalf("got %d rejections, want %d: %+v", len(res.Rejections), len(wantRejected), res.Rejections)
	}
	for i, w := range wantRejected {
		r := res.Rejections[i]
		if r.Index != w.index || r.ID != w.id || len(r.Reasons) != w.reasons {
			t.Errorf("rejection %d = %+v, want index %d id %s with %d reasons", i, r, w.index, w.id, w.reasons)
		}
	}
	if !strings.Contains(strings.Join(res.Rejections[1].Reasons, "\n"), "btl must be one of") {
		t.Errorf("schema reasons should use JSON names and translated messages: %v", res.Rejections[1].Reasons)
	}
}

func TestBankKeepsScopeInvariant(t *testing.T) {
	for _, cia := range []model.CIAType{model.CIA1, model.CIA2} {
		cfg := exam.For(model.FacultySelection{CourseCode: "X", CourseTitle: "Y", CIAType: cia, QPType: model.QP2})
		var recs []string
		for unit := 1; unit <= 4; unit++ {
			for _, co := range []string{"CO1", "CO2", "CO3", "CO4"} {
				recs = append(recs, `{"id":"`+co+string(rune('0'+unit))+`","text":"t","marks":16,"unit":`+string(rune('0'+unit))+`,"co":"`+co+`","btl":"BTL2","difficulty":"Easy","type":"Theory"}`)
			}
		}
		res, err := Bank("["+strings.Join(recs, ",")+"]", cfg)
		if err != nil {
			t.Fatalf("%s: Bank: %v", cia, err)
		}
		if len(res.Questions) != 4 {
			t.Errorf("%s: accepted %d records, want 4", cia, len(res.Questions))
		}
		for _, q := range res.Questions {
			if !cfg.Scope.HasUnit(q.Unit) || !cfg.Scope.HasCO(q.CO) {
				t.Errorf("%s: accepted out-of-scope record %+v", cia, q)
			}
		}
	}
}

func TestBankFailsWhenNothingSurvives(t *testing.T) {
	tests := map[string]string{
		"empty array":  "[]",
		"all rejected": `[{"id":"Q9","text":"t","marks":12,"unit":4,"co":"CO4","btl":"BTL2","difficulty":"Easy","type":"Theory"}]`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Bank(text, cia1QP1()); !errors.Is(err, ErrDataFormat) {
				t.Errorf("error = %v, want ErrDataFormat", err)
			}
		})
	}
}

const paperJSON = `{
  "department": "CSE", "section": "A", "semester": "IV", "dateSession": "2025-02-27 (FN)",
  "courseCode": "CS201", "courseName": "OOP", "ciaType": "CIA-I", "qpType": "QP-II",
  "partAQuestions": [{"qno":"1.","question":"Define class.","co":"CO1","btl":"BTL1","marks":2}],
  "partBQuestions": [
    {"qno":"7.(a)","question":"Explain inheritance.","co":"CO1","btl":"BTL3","marks":"16"},
    {"qno":"(OR)","question":"(OR)","co":"","btl":"","marks":""},
    {"qno":"7.(b)","question":"Explain polymorphism.","co":"CO2","btl":"BTL4","marks":"16"}
  ],
  "partCQuestions": [{"qno":"9.(a)","question":"Design a system.","co":"CO2","btl":"BTL5","marks":"16"}]
}`

func TestPaperData(t *testing.T) {
	for name, text := range map[string]string{
		"bare":   paperJSON,
		"fenced": "Here is the paper:\n```json\n" + paperJSON + "\n```",
		"prose":  "Paper [draft]:\n" + paperJSON + "\nGood luck!",
	} {
		t.Run(name, func(t *testing.T) {
			p, err := PaperData(text)
			if err != nil {
				t.Fatalf("PaperData: %v", err)
			}
			if p.QPType != model.QP2 || len(p.PartBQuestions) != 3 || len(p.PartCQuestions) != 1 {
				t.Errorf("unexpected paper %+v", p)
			}
			if p.PartAQuestions[0].Marks != "2" {
				t.Errorf("numeric marks should decode as text, got %q", p.PartAQuestions[0].Marks)
			}
			if !p.PartBQuestions[1].IsAlternative() {
				t.Error("second part B row should be the OR marker")
			}
		})
	}
}

func TestPaperDataSchemaErrors(t *testing.T) {
	tests := map[string]string{
		"bad selector":   strings.Replace(paperJSON, `"QP-II"`, `"QP-III"`, 1),
		"missing part B": `{"courseCode":"CS201","courseName":"OOP","ciaType":"CIA-I","qpType":"QP-I","partAQuestions":[{"qno":"1.","question":"q"}]}`,
		"empty question": strings.Replace(paperJSON, `"Define class."`, `""`, 1),
		"not an object":  "no paper today",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := PaperData(text)
			if !errors.Is(err, ErrDataFormat) {
				t.Errorf("error = %v, want ErrDataFormat", err)
			}
		})
	}

	_, err := PaperData(tests["empty question"])
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("want *SchemaError, got %T", err)
	}
	if !strings.Contains(se.Error(), "partAQuestions[0].question") {
		t.Errorf("schema error should name the field path: %v", se)
	}
}
