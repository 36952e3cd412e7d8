// Package samples ships example course material for trying the generator
// without preparing inputs by hand.
package samples

import (
	_ "embed"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

//go:embed data/subjects.json
var subjectsJSON []byte

// Sample is the course material of one subject.
type Sample struct {
	Key         string `json:"key"`
	CourseCode  string `json:"courseCode"`
	CourseTitle string `json:"courseTitle"`
	CDAP        string `json:"cdap"`
	Syllabus    string `json:"syllabus"`
	Template    string `json:"template"`
}

// Inputs returns generation inputs for the sample. Loading a sample always
// resets the selectors to CIA-I and QP-I.
func (s Sample) Inputs() model.Inputs {
	return model.Inputs{
		CDAP:     s.CDAP,
		Syllabus: s.Syllabus,
		Template: s.Template,
		Selection: model.FacultySelection{
			CourseCode:  s.CourseCode,
			CourseTitle: s.CourseTitle,
			CIAType:     model.CIA1,
			QPType:      model.QP1,
		},
	}
}

var (
	loadOnce sync.Once
	all      []Sample
)

func load() []Sample {
	loadOnce.Do(func() {
		// The file is embedded at build time; a decode failure is a build defect.
		if err := json.Unmarshal(subjectsJSON, &all); err != nil {
			panic("samples: decode embedded subjects: " + err.Error())
		}
	})
	return all
}

// All returns every sample in a stable order.
func All() []Sample {
	return append([]Sample(nil), load()...)
}

// Random picks a sample using r, or the global source when r is nil.
func Random(r *rand.Rand) Sample {
	list := load()
	if r == nil {
		return list[rand.IntN(len(list))]
	}
	return list[r.IntN(len(list))]
}

// ByCode finds a sample by course code or key, case-insensitively.
func ByCode(code string) (Sample, bool) {
	code = strings.TrimSpace(code)
	for _, s := range load() {
		if strings.EqualFold(s.CourseCode, code) || strings.EqualFold(s.Key, code) {
			return s, true
		}
	}
	return Sample{}, false
}
