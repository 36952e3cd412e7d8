package model

import "time"

// GenerationStep names one of the three sequential calls to the generation service.
type GenerationStep string

const (
	StepBank      GenerationStep = "bank"
	StepPaperText GenerationStep = "paper_text"
	StepPaperData GenerationStep = "paper_data"
)

// GenerationRun is one audited call to the generation service.
type GenerationRun struct {
	ID          int64          `json:"id"`
	SessionID   string         `json:"session_id"`
	Step        GenerationStep `json:"step"`
	PromptChars int            `json:"prompt_chars"`
	Raw         string         `json:"raw"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Rejection reports a question bank record dropped because it broke a rule.
type Rejection struct {
	Index   int      `json:"index"`
	ID      string   `json:"id"`
	Reasons []string `json:"reasons"`
}
