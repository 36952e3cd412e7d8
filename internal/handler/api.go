package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/RAHUL-DevelopeRR/QP/internal/docgen"
	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/extract"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
	"github.com/RAHUL-DevelopeRR/QP/internal/samples"
	"github.com/RAHUL-DevelopeRR/QP/internal/store"
)

// maxRequestBytes caps API request bodies: three capped text inputs plus a bank.
const maxRequestBytes = 4 << 20

// generateRequest is the body of the generation endpoints. Bank is only read
// by the paper endpoints.
type generateRequest struct {
	model.Inputs
	Bank []model.Question `json:"bank"`
}

type diagramRequest struct {
	DiagramType string `json:"diagramType"`
	Description string `json:"description"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidPayload, err.Error())
		return false
	}
	return true
}

// apiContext tags audit entries of API calls with the request ID, since API
// callers have no UI session.
func apiContext(r *http.Request) context.Context {
	id := "api"
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		id += ":" + reqID
	}
	return model.ContextWithSessionID(r.Context(), id)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"message":        "Server is running",
		"api_configured": h.config.APIConfigured,
	})
}

func (h *Handler) handleGenerateBank(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.gen.Bank(apiContext(r), req.Inputs)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"questions":  res.Questions,
		"rejections": res.Rejections,
	})
}

func (h *Handler) handleGeneratePaper(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Bank) == 0 {
		writeError(w, http.StatusBadRequest, ErrValidation, "bank is required")
		return
	}
	text, err := h.gen.PaperText(apiContext(r), req.Inputs, req.Bank)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paper": text})
}

func (h *Handler) handleGeneratePaperData(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Bank) == 0 {
		writeError(w, http.StatusBadRequest, ErrValidation, "bank is required")
		return
	}
	rendered, err := h.gen.PaperData(apiContext(r), req.Inputs, req.Bank)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paperData": rendered.Paper,
		"warnings":  rendered.Warnings,
	})
}

func (h *Handler) handleGenerateDocx(w http.ResponseWriter, r *http.Request) {
	var data model.QuestionPaperData
	if !decodeJSON(w, r, &data) {
		return
	}
	if err := extract.Validate(data); err != nil {
		var details []string
		var se *extract.SchemaError
		if errors.As(err, &se) {
			details = se.Errors
		}
		writeError(w, http.StatusBadRequest, ErrValidation, details...)
		return
	}
	doc, name, err := h.docs.RenderDocx(r.Context(), data)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	attachment(w, docgen.DocxContentType, name, doc)
}

func (h *Handler) handleGenerateDiagram(w http.ResponseWriter, r *http.Request) {
	var req diagramRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, ErrValidation, "description is required")
		return
	}
	url, err := h.docs.RenderDiagram(r.Context(), req.DiagramType, req.Description)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"imageUrl": url})
}

type sectionJSON struct {
	Part   exam.Part `json:"part"`
	Title  string    `json:"title"`
	Count  int       `json:"count"`
	Marks  int       `json:"marks"`
	Paired bool      `json:"paired"`
	Rows   int       `json:"rows"`
}

type scopeJSON struct {
	Label string    `json:"label"`
	Units [2]int    `json:"units"`
	COs   [2]string `json:"cos"`
}

type layoutJSON struct {
	QPType     model.QPType  `json:"qpType"`
	TotalMarks int           `json:"totalMarks"`
	Sections   []sectionJSON `json:"sections"`
	Scope      *scopeJSON    `json:"scope,omitempty"`
}

// handleLayout describes the paper layout of ?qpType= and, with ?ciaType=,
// the units and course outcomes that period covers.
func (h *Handler) handleLayout(w http.ResponseWriter, r *http.Request) {
	qp, err := exam.ParseQP(r.URL.Query().Get("qpType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrValidation, err.Error())
		return
	}
	layout := exam.LayoutFor(qp)
	out := layoutJSON{QPType: qp, TotalMarks: layout.TotalMarks()}
	for _, s := range layout.Sections {
		out.Sections = append(out.Sections, sectionJSON{
			Part: s.Part, Title: s.Title(), Count: s.Count, Marks: s.Marks, Paired: s.Paired, Rows: s.Rows(),
		})
	}
	if v := r.URL.Query().Get("ciaType"); v != "" {
		cia, err := exam.ParseCIA(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrValidation, err.Error())
			return
		}
		scope := exam.ScopeFor(cia)
		out.Scope = &scopeJSON{Label: exam.Label(cia), Units: scope.Units, COs: scope.COs}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSamples(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusOK, map[string]any{"samples": samples.All()})
		return
	}
	s, ok := samples.ByCode(code)
	if !ok {
		writeError(w, http.StatusNotFound, ErrUnknownSample)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs := []model.GenerationRun{}
	if h.runs != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := h.runs.ListRuns(r.Context(), r.URL.Query().Get("session"), limit)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		runs = append(runs, list...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) handleRunStats(w http.ResponseWriter, r *http.Request) {
	stats := []store.StepStats{}
	if h.runs != nil {
		list, err := h.runs.RunStats(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		stats = append(stats, list...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
