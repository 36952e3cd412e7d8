// Package extract isolates the JSON payload embedded in a generation-service reply
// and strict-parses it into typed records.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

// ErrDataFormat marks replies whose payload could not be located, parsed or validated.
var ErrDataFormat = errors.New("response format failure")

// DataFormatError carries the raw reply of a failed extraction for diagnosis.
type DataFormatError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Stage, e.Err)
}

func (e *DataFormatError) Unwrap() []error {
	return []error{ErrDataFormat, e.Err}
}

// Shape is the kind of JSON value a caller expects.
type Shape int

const (
	// ShapeArray expects a list of records.
	ShapeArray Shape = iota
	// ShapeObject expects a single record.
	ShapeObject
)

var fenceRegex = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// Candidate returns the substring of text most likely to hold the payload.
// In order: the interior of a ```json fenced block; for ShapeArray, the first
// balanced array of records; the first balanced object that is valid JSON;
// otherwise the whole text, which will fail the subsequent parse.
func Candidate(text string, shape Shape) string {
	if m := fenceRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if shape == ShapeArray {
		if s, ok := balanced(text, '[', ']', isRecordArray); ok {
			return s
		}
	}
	if s, ok := balanced(text, '{', '}', json.Valid); ok {
		return s
	}
	return strings.TrimSpace(text)
}

// balanced returns the first span opened by open and closed by its matching close
// that satisfies accept. Brackets inside string literals are ignored.
func balanced(text string, open, close byte, accept func([]byte) bool) (string, bool) {
	for start := strings.IndexByte(text, open); start >= 0; {
		if end := matching(text, start, open, close); end > 0 {
			if span := text[start : end+1]; accept([]byte(span)) {
				return span, true
			}
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matching returns the index of the bracket closing the one at start, or -1.
func matching(text string, start int, open, close byte) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// isRecordArray accepts a JSON array that is empty or holds only objects, so
// citation markers such as "[1]" in surrounding prose are skipped.
func isRecordArray(b []byte) bool {
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return false
	}
	for _, e := range elems {
		if len(e) == 0 || e[0] != '{' {
			return false
		}
	}
	return true
}

// Questions parses a question bank reply. The payload may be a bare array or an
// object with a "questions" array. Records are returned as parsed, unvalidated.
func Questions(text string) ([]model.Question, error) {
	candidate := Candidate(text, ShapeArray)
	qs, err := decodeQuestions(candidate)
	if err != nil {
		return nil, &DataFormatError{Stage: "question bank", Raw: text, Err: err}
	}
	return qs, nil
}

func decodeQuestions(candidate string) ([]model.Question, error) {
	if strings.HasPrefix(candidate, "{") {
		var wrapped struct {
			Questions []model.Question `json:"questions"`
		}
		if err := json.Unmarshal([]byte(candidate), &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Questions == nil {
			return nil, errors.New(`object has no "questions" array`)
		}
		return wrapped.Questions, nil
	}
	var qs []model.Question
	if err := json.Unmarshal([]byte(candidate), &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// PaperData parses and schema-validates a structured question paper reply.
func PaperData(text string) (*model.QuestionPaperData, error) {
	candidate := Candidate(text, ShapeObject)
	var p model.QuestionPaperData
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		return nil, &DataFormatError{Stage: "paper data", Raw: text, Err: err}
	}
	if err := validateStruct(p); err != nil {
		return nil, &DataFormatError{Stage: "paper data", Raw: text, Err: err}
	}
	return &p, nil
}
