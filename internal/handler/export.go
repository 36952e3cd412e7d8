package handler

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/RAHUL-DevelopeRR/QP/internal/bank"
	"github.com/RAHUL-DevelopeRR/QP/internal/docgen"
	"github.com/RAHUL-DevelopeRR/QP/internal/handler/views"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
	"github.com/RAHUL-DevelopeRR/QP/internal/session"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	runsPageSize    = 50
)

func attachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if _, err := w.Write(body); err != nil {
		slog.Warn("write attachment", "file", filename, "error", err)
	}
}

func bankFilename(st session.State, ext string) string {
	if st.Inputs.Selection.CourseCode == "" {
		return "question_bank" + ext
	}
	return "question_bank_" + st.Inputs.Selection.CourseCode + ext
}

// exportBank writes the filtered bank of the session with write.
func (h *Handler) exportBank(w http.ResponseWriter, r *http.Request, contentType, ext string, write func(io.Writer, []model.Question) error) {
	st, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if st.Bank == nil {
		http.Error(w, GetMessage(ErrNoResults), http.StatusNotFound)
		return
	}
	filter, _ := parseFilter(r.URL.Query())
	var buf bytes.Buffer
	if err := write(&buf, filter.Apply(st.Bank)); err != nil {
		slog.Error("bank export failed", "format", ext, "error", err)
		http.Error(w, GetMessage(ErrInternal), http.StatusInternalServerError)
		return
	}
	attachment(w, contentType, bankFilename(st, ext), buf.Bytes())
}

func (h *Handler) handleBankCSV(w http.ResponseWriter, r *http.Request) {
	h.exportBank(w, r, csvContentType, ".csv", bank.WriteCSV)
}

func (h *Handler) handleBankXLSX(w http.ResponseWriter, r *http.Request) {
	h.exportBank(w, r, xlsxContentType, ".xlsx", bank.WriteXLSX)
}

// handlePaperDocx downloads the rendered paper. A failure is reported on the
// paper view and is never retried.
func (h *Handler) handlePaperDocx(w http.ResponseWriter, r *http.Request) {
	st, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if st.Paper == nil {
		http.Error(w, GetMessage(ErrNoResults), http.StatusNotFound)
		return
	}

	doc, name, err := h.docs.RenderDocx(r.Context(), *st.Paper)
	if err != nil {
		slog.Error("document export failed", "session", model.SessionIDFromContext(r.Context()), "error", err)
		if h.dispatch(w, r, session.ExportFailed{Message: err.Error()}) && h.dispatch(w, r, session.SelectTab{Tab: session.TabPaper}) {
			h.redirectHome(w, r)
		}
		return
	}
	if st.ExportError != "" {
		_, _ = h.sessions.Dispatch(model.SessionIDFromContext(r.Context()), session.ExportFailed{})
	}
	attachment(w, docgen.DocxContentType, name, doc)
}

func (h *Handler) handleRunsPage(w http.ResponseWriter, r *http.Request) {
	var data views.RunsData
	if h.runs != nil {
		var err error
		if data.Runs, err = h.runs.ListRuns(r.Context(), "", runsPageSize); err != nil {
			slog.Error("failed to list runs", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if data.Stats, err = h.runs.RunStats(r.Context()); err != nil {
			slog.Error("failed to summarize runs", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	h.render(w, r, views.Runs(data))
}
