package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/bcrypt"

	"github.com/RAHUL-DevelopeRR/QP/internal/bank"
	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/generate"
	"github.com/RAHUL-DevelopeRR/QP/internal/handler/views"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
	"github.com/RAHUL-DevelopeRR/QP/internal/samples"
	"github.com/RAHUL-DevelopeRR/QP/internal/session"
	"github.com/RAHUL-DevelopeRR/QP/internal/store"
)

// DocRenderer renders finished papers through the document service.
type DocRenderer interface {
	RenderDocx(ctx context.Context, p model.QuestionPaperData) ([]byte, string, error)
	RenderDiagram(ctx context.Context, diagramType, description string) (string, error)
}

// RunLog reads the generation audit log.
type RunLog interface {
	ListRuns(ctx context.Context, sessionID string, limit int) ([]model.GenerationRun, error)
	RunStats(ctx context.Context) ([]store.StepStats, error)
}

// Config holds the HTTP-facing settings.
type Config struct {
	BasePath       string
	SecureCookies  bool
	AccessHash     string // bcrypt hash required as X-Access-Key on the API; empty disables the check
	APIConfigured  bool
	AllowedOrigins []string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sessions *session.Store
	gen      *generate.Generator
	docs     DocRenderer
	runs     RunLog
	config   Config
}

// New creates a new Handler.
func New(sessions *session.Store, gen *generate.Generator, docs DocRenderer, runs RunLog, cfg Config) (*Handler, error) {
	if cfg.AccessHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.AccessHash)); err != nil {
			return nil, fmt.Errorf("access hash: %w", err)
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Handler{sessions: sessions, gen: gen, docs: docs, runs: runs, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(ui chi.Router) {
		ui.Use(h.sessionMiddleware, h.csrfMiddleware)
		ui.Get("/", h.handleIndex)
		ui.Post("/inputs", h.handleSaveInputs)
		ui.Post("/sample", h.handleLoadSample)
		ui.Post("/generate", h.handleGenerate)
		ui.Post("/tab", h.handleSelectTab)
		ui.Post("/dismiss", h.handleDismiss)
		ui.Get("/bank.csv", h.handleBankCSV)
		ui.Get("/bank.xlsx", h.handleBankXLSX)
		ui.Post("/paper/docx", h.handlePaperDocx)
		ui.Get("/runs", h.handleRunsPage)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.config.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", accessKeyHeader},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
		api.Get("/health", h.handleHealth)
		api.Get("/layout", h.handleLayout)
		api.Get("/samples", h.handleSamples)

		api.Group(func(p chi.Router) {
			p.Use(h.requireAccessKey)
			p.Post("/generate-bank", h.handleGenerateBank)
			p.Post("/generate-paper", h.handleGeneratePaper)
			p.Post("/generate-paper-data", h.handleGeneratePaperData)
			p.Post("/generate-docx", h.handleGenerateDocx)
			p.Post("/generate-diagram", h.handleGenerateDiagram)
			p.Get("/runs", h.handleRuns)
			p.Get("/runs/stats", h.handleRunStats)
		})
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// snapshot returns the state of the request's session.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (session.State, bool) {
	st, ok := h.sessions.Snapshot(model.SessionIDFromContext(r.Context()))
	if !ok {
		// Expired between the middleware and here; a reload starts a new one.
		h.redirectHome(w, r)
	}
	return st, ok
}

// dispatch applies a to the request's session and answers the request itself
// when the action is refused.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, a session.Action) bool {
	_, err := h.sessions.Dispatch(model.SessionIDFromContext(r.Context()), a)
	switch {
	case err == nil:
		return true
	case errors.Is(err, session.ErrUnknownSession):
		h.redirectHome(w, r)
	case errors.Is(err, session.ErrGenerating):
		http.Error(w, GetMessage(ErrGenerationBusy), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
	return false
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	st, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	filter, form := parseFilter(r.URL.Query())
	data := views.IndexData{
		State:   st,
		Samples: samples.All(),
		Filter:  form,
	}
	if cia, err := exam.ParseCIA(string(st.Inputs.Selection.CIAType)); err == nil {
		scope := exam.ScopeFor(cia)
		data.Scope = &scope
	}
	if st.Bank != nil {
		data.Questions = filter.Apply(st.Bank)
		data.Units = bank.Units(st.Bank)
		data.Marks = bank.Marks(st.Bank)
		data.Stats = bank.Summarize(st.Bank)
		query := filterQuery(form)
		data.CSVURL = h.path("/bank.csv") + query
		data.XLSXURL = h.path("/bank.xlsx") + query
	}
	h.render(w, r, views.Index(data))
}

func inputsFromForm(r *http.Request) model.Inputs {
	return model.Inputs{
		CDAP:     r.FormValue("cdap"),
		Syllabus: r.FormValue("syllabus"),
		Template: r.FormValue("template"),
		Selection: model.FacultySelection{
			CourseCode:  strings.TrimSpace(r.FormValue("courseCode")),
			CourseTitle: strings.TrimSpace(r.FormValue("courseTitle")),
			CIAType:     model.CIAType(strings.TrimSpace(r.FormValue("ciaType"))),
			QPType:      model.QPType(strings.TrimSpace(r.FormValue("qpType"))),
		},
	}
}

func (h *Handler) handleSaveInputs(w http.ResponseWriter, r *http.Request) {
	if h.dispatch(w, r, session.SetInputs{Inputs: inputsFromForm(r)}) {
		h.redirectHome(w, r)
	}
}

func (h *Handler) handleLoadSample(w http.ResponseWriter, r *http.Request) {
	var s samples.Sample
	if code := r.FormValue("code"); code == "" {
		s = samples.Random(nil)
	} else {
		var ok bool
		if s, ok = samples.ByCode(code); !ok {
			http.Error(w, GetMessage(ErrUnknownSample), http.StatusBadRequest)
			return
		}
	}
	if h.dispatch(w, r, session.LoadSample{Sample: s}) {
		slog.Info("loaded sample", "session", model.SessionIDFromContext(r.Context()), "course", s.CourseCode)
		h.redirectHome(w, r)
	}
}

// handleGenerate runs the whole pipeline for the submitted inputs. The session
// is marked as generating for the duration, which keeps a second tab from
// starting a concurrent run.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	in := inputsFromForm(r)
	if !h.dispatch(w, r, session.SetInputs{Inputs: in}) {
		return
	}
	if !h.dispatch(w, r, session.GenerationStarted{}) {
		return
	}

	id := model.SessionIDFromContext(r.Context())
	finished := false
	defer func() {
		if !finished {
			_, _ = h.sessions.Dispatch(id, session.GenerationFailed{Message: GetMessage(ErrInternal)})
		}
	}()

	res, err := h.gen.Run(r.Context(), in)
	if err != nil {
		slog.Warn("generation failed", "session", id, "error", err)
		_, err = h.sessions.Dispatch(id, session.GenerationFailed{Message: userMessage(err)})
	} else {
		slog.Info("generation finished", "session", id, "questions", len(res.Bank), "rejected", len(res.Rejections))
		_, err = h.sessions.Dispatch(id, session.GenerationSucceeded{Result: res})
	}
	finished = true
	if err != nil {
		slog.Error("failed to publish generation outcome", "session", id, "error", err)
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	tab, err := session.ParseTab(r.FormValue("tab"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.dispatch(w, r, session.SelectTab{Tab: tab}) {
		h.redirectHome(w, r)
	}
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if h.dispatch(w, r, session.DismissError{}) {
		h.redirectHome(w, r)
	}
}

// parseFilter reads the bank filter from query parameters. Values that do not
// parse are dropped, leaving that dimension unfiltered.
func parseFilter(q url.Values) (bank.Filter, views.FilterForm) {
	var f bank.Filter
	var form views.FilterForm
	if n, err := strconv.Atoi(q.Get("unit")); err == nil {
		f.Unit = &n
		form.Unit = strconv.Itoa(n)
	}
	if n, err := strconv.Atoi(q.Get("marks")); err == nil {
		f.Marks = &n
		form.Marks = strconv.Itoa(n)
	}
	switch q.Get("diagram") {
	case "yes":
		v := true
		f.HasDiagram = &v
		form.Diagram = "yes"
	case "no":
		v := false
		f.HasDiagram = &v
		form.Diagram = "no"
	}
	return f, form
}

func filterQuery(form views.FilterForm) string {
	q := url.Values{}
	if form.Unit != "" {
		q.Set("unit", form.Unit)
	}
	if form.Marks != "" {
		q.Set("marks", form.Marks)
	}
	if form.Diagram != "" {
		q.Set("diagram", form.Diagram)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
