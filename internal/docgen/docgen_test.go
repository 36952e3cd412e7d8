package docgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

func testPaper() model.QuestionPaperData {
	return model.QuestionPaperData{
		CourseCode: "CS201", CourseName: "OOP", CIAType: model.CIA1, QPType: model.QP2,
		PartAQuestions: []model.QuestionItem{{QNo: "1.", Question: "Define class.", CO: "CO1", BTL: "BTL1", Marks: "2"}},
		PartBQuestions: []model.QuestionItem{{QNo: "(OR)", Question: "(OR)"}},
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(testPaper()); got != "CIA_Paper_CS201_CIA-I_QP-II.docx" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestRenderDocx(t *testing.T) {
	var got model.QuestionPaperData
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate-docx" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", DocxContentType)
		_, _ = w.Write([]byte("PK\x03\x04docx"))
	}))
	defer srv.Close()

	doc, name, err := New(srv.URL+"/", time.Second).RenderDocx(context.Background(), testPaper())
	if err != nil {
		t.Fatalf("RenderDocx: %v", err)
	}
	if string(doc) != "PK\x03\x04docx" || name != "CIA_Paper_CS201_CIA-I_QP-II.docx" {
		t.Errorf("got %q, %q", doc, name)
	}
	if got.CourseCode != "CS201" || got.QPType != model.QP2 || len(got.PartBQuestions) != 1 {
		t.Errorf("service received %+v", got)
	}
}

func TestRenderDocxErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"service error message", http.StatusInternalServerError, `{"error": "template missing"}`, "template missing"},
		{"plain text error", http.StatusBadGateway, "upstream down", "upstream down"},
		{"empty document", http.StatusOK, "", "empty document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, _, err := New(srv.URL, time.Second).RenderDocx(context.Background(), testPaper())
			if !errors.Is(err, ErrExport) {
				t.Fatalf("error = %v, want ErrExport", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestRenderDocxUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, _, err := New(url, time.Second).RenderDocx(context.Background(), testPaper())
	var ee *ExportError
	if !errors.As(err, &ee) || ee.Status != 0 {
		t.Errorf("want transport *ExportError, got %v", err)
	}
}

func TestRenderDiagram(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req diagramRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/api/generate-diagram" || req.DiagramType != "flowchart" {
			t.Errorf("unexpected request %s %+v", r.URL.Path, req)
		}
		if req.Description == "missing url" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"imageUrl": "https://img.example/d1.png"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	url, err := c.RenderDiagram(context.Background(), "flowchart", "exception propagation")
	if err != nil || url != "https://img.example/d1.png" {
		t.Errorf("RenderDiagram = %q, %v", url, err)
	}
	if _, err := c.RenderDiagram(context.Background(), "flowchart", "missing url"); !errors.Is(err, ErrExport) {
		t.Errorf("missing URL: error = %v, want ErrExport", err)
	}
	if _, err := c.RenderDiagram(context.Background(), "flowchart", " "); !errors.Is(err, ErrExport) {
		t.Errorf("blank description: error = %v, want ErrExport", err)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	if err := New(srv.URL, time.Second).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := New(srv.URL+"/nope", time.Second).Ping(context.Background()); !errors.Is(err, ErrExport) {
		t.Errorf("Ping error = %v, want ErrExport", err)
	}
}
