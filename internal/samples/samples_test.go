package samples

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

func TestAll(t *testing.T) {
	list := All()
	if len(list) != 8 {
		t.Fatalf("got %d samples, want 8", len(list))
	}
	seen := map[string]bool{}
	for _, s := range list {
		if s.CourseCode == "" || s.CourseTitle == "" || s.CDAP == "" || s.Syllabus == "" || s.Template == "" {
			t.Errorf("sample %q has blank fields", s.Key)
		}
		if seen[s.CourseCode] {
			t.Errorf("duplicate course code %s", s.CourseCode)
		}
		seen[s.CourseCode] = true
		if !strings.Contains(s.Syllabus, "UNIT IV") {
			t.Errorf("sample %s syllabus should cover four units", s.CourseCode)
		}
	}

	list[0].CourseCode = "changed"
	if All()[0].CourseCode == "changed" {
		t.Error("All should return a copy")
	}
}

func TestByCode(t *testing.T) {
	tests := []struct {
		code  string
		title string
		ok    bool
	}{
		{"CS201", "Object-Oriented Programming", true},
		{" cs301 ", "Database Management Systems", true},
		{"dbms", "Database Management Systems", true},
		{"CS999", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s, ok := ByCode(tt.code)
			if ok != tt.ok || s.CourseTitle != tt.title {
				t.Errorf("ByCode(%q) = %q, %v; want %q, %v", tt.code, s.CourseTitle, ok, tt.title, tt.ok)
			}
		})
	}
}

func TestRandomIsDeterministicWithSeed(t *testing.T) {
	a := Random(rand.New(rand.NewPCG(1, 2)))
	b := Random(rand.New(rand.NewPCG(1, 2)))
	if a.Key != b.Key {
		t.Errorf("same seed gave %s and %s", a.Key, b.Key)
	}
	if Random(nil).CourseCode == "" {
		t.Error("Random(nil) should pick a sample")
	}
}

func TestInputsResetSelectors(t *testing.T) {
	s, _ := ByCode("CS303")
	in := s.Inputs()
	if in.Selection.CIAType != model.CIA1 || in.Selection.QPType != model.QP1 {
		t.Errorf("selection = %+v, want CIA-I / QP-I", in.Selection)
	}
	if in.Selection.CourseCode != "CS303" || in.CDAP != s.CDAP {
		t.Errorf("inputs not copied from sample: %+v", in.Selection)
	}
}
