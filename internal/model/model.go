package model

import (
	"context"
	"encoding/json"
	"strings"
)

// CIAType selects which half of the syllabus a continuous internal assessment covers.
type CIAType string

const (
	// CIA1 covers units I and II with CO1 and CO2.
	CIA1 CIAType = "CIA-I"
	// CIA2 covers units III and IV with CO3 and CO4.
	CIA2 CIAType = "CIA-II"
)

// QPType selects the institutional question paper layout.
type QPType string

const (
	// QP1 is the two-part layout (Part A + Part B).
	QP1 QPType = "QP-I"
	// QP2 is the three-part layout (Part A + Part B + Part C).
	QP2 QPType = "QP-II"
)

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// QuestionType is the kind of answer a question expects.
type QuestionType string

const (
	TypeTheory    QuestionType = "Theory"
	TypeProblem   QuestionType = "Problem"
	TypeDiagram   QuestionType = "Diagram"
	TypeNumerical QuestionType = "Numerical"
)

// DiagramRole tells whether a diagram is handed to the student or must be drawn.
type DiagramRole string

const (
	DiagramProvided DiagramRole = "provided"
	DiagramDraw     DiagramRole = "draw"
)

// AlternativeMarker is the literal label of an OR separator row.
const AlternativeMarker = "(OR)"

// FacultySelection holds the exam parameters chosen by the faculty member.
type FacultySelection struct {
	CourseCode  string  `json:"courseCode" validate:"required"`
	CourseTitle string  `json:"courseTitle" validate:"required"`
	CIAType     CIAType `json:"ciaType" validate:"required,oneof=CIA-I CIA-II"`
	QPType      QPType  `json:"qpType" validate:"required,oneof=QP-I QP-II"`
}

// Inputs is everything the prompt builder needs for a generation run.
type Inputs struct {
	CDAP      string           `json:"cdap"`
	Syllabus  string           `json:"syllabus"`
	Template  string           `json:"template"`
	Selection FacultySelection `json:"facultySelection"`
}

// Question is a single question bank entry as returned by the generation service.
type Question struct {
	ID                 string       `json:"id" validate:"required"`
	Text               string       `json:"text" validate:"required"`
	Marks              int          `json:"marks" validate:"oneof=2 12 16"`
	Unit               int          `json:"unit" validate:"min=1,max=4"`
	Topic              string       `json:"topic"`
	Subtopic           string       `json:"subtopic"`
	CO                 string       `json:"co" validate:"oneof=CO1 CO2 CO3 CO4"`
	BTL                string       `json:"btl" validate:"oneof=BTL1 BTL2 BTL3 BTL4 BTL5 BTL6"`
	Difficulty         Difficulty   `json:"difficulty" validate:"oneof=Easy Medium Hard"`
	Type               QuestionType `json:"type" validate:"oneof=Theory Problem Diagram Numerical"`
	HasDiagram         bool         `json:"hasDiagram,omitempty"`
	DiagramType        string       `json:"diagramType,omitempty"`
	DiagramDescription string       `json:"diagramDescription,omitempty"`
	DiagramRole        DiagramRole  `json:"diagramRole,omitempty" validate:"omitempty,oneof=provided draw"`
}

// QuestionItem is a rendering-ready row of a question paper.
type QuestionItem struct {
	QNo      string `json:"qno" validate:"required"`
	Question string `json:"question" validate:"required"`
	CO       string `json:"co"`
	BTL      string `json:"btl"`
	Marks    Text   `json:"marks"`
}

// Text is display text that also accepts a bare JSON number, since the
// generation service sometimes emits marks as 12 instead of "12".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] != '"' {
		if string(b) == "null" {
			*t = ""
			return nil
		}
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*t = Text(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// IsAlternative reports whether the row is an OR separator rather than a question.
func (i QuestionItem) IsAlternative() bool {
	return isMarker(i.QNo) || isMarker(i.Question)
}

// QuestionPaperData is the structured paper consumed by the document renderer.
type QuestionPaperData struct {
	Department     string         `json:"department"`
	Section        string         `json:"section"`
	Semester       string         `json:"semester"`
	DateSession    string         `json:"dateSession"`
	CourseCode     string         `json:"courseCode" validate:"required"`
	CourseName     string         `json:"courseName" validate:"required"`
	CIAType        CIAType        `json:"ciaType" validate:"required,oneof=CIA-I CIA-II"`
	QPType         QPType         `json:"qpType" validate:"required,oneof=QP-I QP-II"`
	PartAQuestions []QuestionItem `json:"partAQuestions" validate:"required,min=1,dive"`
	PartBQuestions []QuestionItem `json:"partBQuestions" validate:"required,min=1,dive"`
	PartCQuestions []QuestionItem `json:"partCQuestions,omitempty" validate:"omitempty,dive"`
}

type sessionCtxKey struct{}

// ContextWithSessionID stores the UI session identifier in the request context.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext retrieves the UI session identifier (empty string if not set).
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the form token of the current response in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the form token (empty string if not set).
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

func isMarker(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), AlternativeMarker)
}
