package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/RAHUL-DevelopeRR/QP/internal/docgen"
	"github.com/RAHUL-DevelopeRR/QP/internal/generate"
	appI18n "github.com/RAHUL-DevelopeRR/QP/internal/i18n"
	"github.com/RAHUL-DevelopeRR/QP/internal/llm"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
	"github.com/RAHUL-DevelopeRR/QP/internal/session"
	"github.com/RAHUL-DevelopeRR/QP/internal/store"
)

const bankReply = "Here is the bank:\n```json\n[" +
	`{"id":"Q1","text":"Define a class.","marks":2,"unit":1,"topic":"Classes","subtopic":"Basics","co":"CO1","btl":"BTL1","difficulty":"Easy","type":"Theory"},` +
	`{"id":"Q2","text":"Explain virtual functions with an example.","marks":12,"unit":2,"topic":"Polymorphism","subtopic":"Virtual","co":"CO2","btl":"BTL3","difficulty":"Medium","type":"Diagram","hasDiagram":true,"diagramType":"flowchart","diagramDescription":"vtable lookup","diagramRole":"draw"}` +
	"]\n```"

const paperTextReply = "M.KUMARASAMY COLLEGE OF ENGINEERING\nPART - A\n1. Define a class."

const paperDataReply = `{
	"department": "CSBS", "section": "A", "semester": "IV", "dateSession": "2025-02-27 (FN)",
	"courseCode": "CS201", "courseName": "Object Oriented Programming", "ciaType": "CIA-I", "qpType": "QP-I",
	"partAQuestions": [{"qno": "1.", "question": "Define a class.", "co": "CO1", "btl": "BTL1", "marks": "2"}],
	"partBQuestions": [
		{"qno": "7. (a)", "question": "Explain virtual functions.", "co": "CO2", "btl": "BTL3", "marks": 12},
		{"qno": "(OR)", "question": "(OR)", "co": "", "btl": "", "marks": ""},
		{"qno": "7. (b)", "question": "Explain function templates.", "co": "CO2", "btl": "BTL3", "marks": "12"}
	]
}`

// scriptedLLM answers completions from a fixed list of replies, in order.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.calls >= len(s.replies) {
		return "", errors.New("unexpected completion request")
	}
	reply := s.replies[s.calls]
	s.calls++
	return reply, nil
}

type fakeDocs struct {
	doc []byte
	err error
}

func (f *fakeDocs) RenderDocx(ctx context.Context, p model.QuestionPaperData) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.doc, docgen.Filename(p), nil
}

func (f *fakeDocs) RenderDiagram(ctx context.Context, diagramType, description string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://img.example/" + diagramType + ".png", nil
}

type testEnv struct {
	h    *Handler
	llm  *scriptedLLM
	docs *fakeDocs
	runs *store.Store
	srv  *httptest.Server
}

func newTestEnv(t *testing.T, cfg Config, replies ...string) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("init i18n: %v", err)
	}
	runs, err := store.New(store.MemoryDSN)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { runs.Close() })

	env := &testEnv{llm: &scriptedLLM{replies: replies}, docs: &fakeDocs{doc: []byte("PK\x03\x04docx")}, runs: runs}
	gen := generate.New(env.llm, generate.WithRecorder(runs))
	env.h, err = New(session.NewStore(0), gen, env.docs, runs, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appI18n.Middleware("en"))
	if cfg.BasePath != "" {
		r.Route(cfg.BasePath, func(sub chi.Router) {
			sub.Use(env.h.BasePathMiddleware)
			env.h.Routes(sub)
		})
	} else {
		r.Use(env.h.BasePathMiddleware)
		env.h.Routes(r)
	}
	env.srv = httptest.NewServer(r)
	t.Cleanup(env.srv.Close)
	return env
}

// browser keeps cookies between requests and does not follow redirects.
type browser struct {
	t      *testing.T
	env    *testEnv
	client *http.Client
}

func (e *testEnv) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &browser{t: t, env: e, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, b.env.srv.URL+path, nil)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get(csrfFormField) == "" {
		form.Set(csrfFormField, b.cookie(csrfCookieName))
	}
	req, _ := http.NewRequest(http.MethodPost, b.env.srv.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.env.srv.URL + b.env.h.config.BasePath + "/")
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) state() session.State {
	b.t.Helper()
	st, ok := b.env.h.sessions.Snapshot(b.cookie(sessionCookieName))
	if !ok {
		b.t.Fatal("browser has no live session")
	}
	return st
}

func generateForm() url.Values {
	return url.Values{
		"cdap":        {"CO1: understand classes. CO2: apply polymorphism."},
		"syllabus":    {"Unit I: Classes. Unit II: Polymorphism."},
		"template":    {"Part A short answers, Part B OR pairs."},
		"courseCode":  {"CS201"},
		"courseTitle": {"Object Oriented Programming"},
		"ciaType":     {"CIA-I"},
		"qpType":      {"QP-I"},
	}
}

func TestIndexStartsSession(t *testing.T) {
	env := newTestEnv(t, Config{})
	b := env.browser(t)

	resp, body := b.get("/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{"CIA Question Paper Generator", `name="cdap"`, `action="/generate"`, "Questions will cover Unit I and Unit II (CO1, CO2)."} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q", want)
		}
	}
	if b.cookie(sessionCookieName) == "" || b.cookie(csrfCookieName) == "" {
		t.Fatal("session and CSRF cookies should be set")
	}
	if !strings.Contains(body, b.cookie(csrfCookieName)) {
		t.Error("forms should carry the CSRF token")
	}

	b.get("/")
	if n := env.h.sessions.Len(); n != 1 {
		t.Errorf("a returning browser should keep its session, got %d sessions", n)
	}
}

func TestPostRequiresCSRFToken(t *testing.T) {
	env := newTestEnv(t, Config{})
	b := env.browser(t)
	b.get("/")

	resp, _ := b.post("/inputs", url.Values{csrfFormField: {"forged"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("forged token: status = %d, want 403", resp.StatusCode)
	}

	fresh := env.browser(t)
	resp, _ = fresh.post("/inputs", url.Values{csrfFormField: {"anything"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("missing cookie: status = %d, want 403", resp.StatusCode)
	}
}

func TestGenerateFlow(t *testing.T) {
	env := newTestEnv(t, Config{}, bankReply, paperTextReply, paperDataReply)
	b := env.browser(t)
	b.get("/")

	resp, _ := b.post("/generate", generateForm())
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("POST /generate = %d to %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	st := b.state()
	if st.Generating || st.Error != "" {
		t.Fatalf("unexpected state after generation: generating=%v error=%q", st.Generating, st.Error)
	}
	if len(st.Bank) != 2 || st.Paper == nil || st.PaperText != paperTextReply || st.Tab != session.TabBank {
		t.Fatalf("generation results not published: %+v", st)
	}

	_, body := b.get("/")
	for _, want := range []string{"2 questions in the bank.", "Define a class.", "Explain virtual functions with an example.", "vtable lookup", `href="/bank.csv"`} {
		if !strings.Contains(body, want) {
			t.Errorf("bank view missing %q", want)
		}
	}

	_, body = b.get("/?unit=2")
	if strings.Contains(body, "Define a class.") || !strings.Contains(body, "Showing 1 question.") {
		t.Error("unit filter should leave only the unit 2 question")
	}
	if !strings.Contains(body, `href="/bank.csv?unit=2"`) {
		t.Error("export links should carry the active filter")
	}

	resp, body = b.get("/bank.csv?unit=2")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
		t.Fatalf("GET /bank.csv = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename=question_bank_CS201.csv` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID,Unit,Marks") || !strings.HasPrefix(lines[1], "Q2,2,12") {
		t.Errorf("unexpected CSV:\n%s", body)
	}

	resp, body = b.get("/bank.xlsx")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != xlsxContentType || !strings.HasPrefix(body, "PK") {
		t.Errorf("GET /bank.xlsx = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	b.post("/tab", url.Values{"tab": {"paper"}})
	_, body = b.get("/")
	for _, want := range []string{"PART - A (6 x 2 = 12 Marks)", "PART - B (4 x 12 = 48 Marks)", "(OR)", "Explain function templates.", "Maximum marks: 60", "Part A has 1 questions"} {
		if !strings.Contains(body, want) {
			t.Errorf("paper view missing %q", want)
		}
	}

	runs, err := env.runs.ListRuns(context.Background(), b.cookie(sessionCookieName), 0)
	if err != nil || len(runs) != 3 {
		t.Errorf("expected three audited requests for the session, got %d (%v)", len(runs), err)
	}
}

func TestGenerateFailureKeepsInputs(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		llmErr  error
		replies []string
		want    string
	}{
		{
			name: "missing inputs",
			form: url.Values{"courseCode": {"CS201"}, "ciaType": {"CIA-I"}, "qpType": {"QP-I"}},
			want: "Required inputs are missing. cdap, syllabus, template, courseTitle",
		},
		{
			name:   "service failure",
			form:   generateForm(),
			llmErr: &llm.ServiceError{Op: "LLM API call", Err: errors.New("status 500")},
			want:   GetMessage(ErrServiceFailed),
		},
		{
			name:    "unreadable reply",
			form:    generateForm(),
			replies: []string{"I cannot help with that."},
			want:    GetMessage(ErrBadReply),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{}, tt.replies...)
			env.llm.err = tt.llmErr
			b := env.browser(t)
			b.get("/")

			resp, _ := b.post("/generate", tt.form)
			if resp.StatusCode != http.StatusSeeOther {
				t.Fatalf("POST /generate = %d", resp.StatusCode)
			}
			st := b.state()
			if st.Generating || st.Error != tt.want {
				t.Errorf("state error = %q (generating=%v), want %q", st.Error, st.Generating, tt.want)
			}
			if st.Inputs.Selection.CourseCode != "CS201" || st.Bank != nil {
				t.Errorf("inputs should be kept and no results published: %+v", st)
			}

			_, body := b.get("/")
			if !strings.Contains(body, `role="alert"`) {
				t.Error("the error banner should be shown")
			}
			b.post("/dismiss", nil)
			if st := b.state(); st.Error != "" {
				t.Errorf("dismiss should clear the banner, got %q", st.Error)
			}
		})
	}
}

func TestGenerateRejectedWhileGenerating(t *testing.T) {
	env := newTestEnv(t, Config{})
	b := env.browser(t)
	b.get("/")
	if _, err := env.h.sessions.Dispatch(b.cookie(sessionCookieName), session.GenerationStarted{}); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/generate", "/inputs"} {
		resp, _ := b.post(path, generateForm())
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("POST %s while generating = %d, want 409", path, resp.StatusCode)
		}
	}
	if env.llm.calls != 0 {
		t.Errorf("no completion should be requested, got %d", env.llm.calls)
	}
}

func TestLoadSample(t *testing.T) {
	env := newTestEnv(t, Config{})
	b := env.browser(t)
	b.get("/")

	resp, _ := b.post("/sample", url.Values{"code": {"cs301"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("POST /sample = %d", resp.StatusCode)
	}
	st := b.state()
	if st.Inputs.Selection.CourseCode != "CS301" || st.Inputs.CDAP == "" || st.Inputs.Selection.QPType != model.QP1 {
		t.Errorf("sample not loaded: %+v", st.Inputs.Selection)
	}

	resp, _ = b.post("/sample", nil)
	if resp.StatusCode != http.StatusSeeOther || b.state().Inputs.Syllabus == "" {
		t.Error("an empty code should load a random sample")
	}

	resp, _ = b.post("/sample", url.Values{"code": {"XX999"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown sample: status = %d, want 400", resp.StatusCode)
	}
}

func TestPaperDocxExport(t *testing.T) {
	env := newTestEnv(t, Config{}, bankReply, paperTextReply, paperDataReply)
	b := env.browser(t)
	b.get("/")

	resp, _ := b.post("/paper/docx", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("export before generation = %d, want 404", resp.StatusCode)
	}

	b.post("/generate", generateForm())

	env.docs.err = &docgen.ExportError{Op: "render docx", Status: 500, Err: errors.New("template missing")}
	resp, _ = b.post("/paper/docx", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("failed export = %d, want a redirect", resp.StatusCode)
	}
	st := b.state()
	if !strings.Contains(st.ExportError, "template missing") || st.Tab != session.TabPaper || st.Error != "" {
		t.Errorf("export failure should only surface on the paper view: %+v", st)
	}

	env.docs.err = nil
	resp, body := b.post("/paper/docx", nil)
	if resp.StatusCode != http.StatusOK || body != "PK\x03\x04docx" {
		t.Fatalf("export = %d %q", resp.StatusCode, body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "CIA_Paper_CS201_CIA-I_QP-I.docx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if st := b.state(); st.ExportError != "" {
		t.Errorf("a successful export should clear the previous failure, got %q", st.ExportError)
	}
}

func TestBasePath(t *testing.T) {
	env := newTestEnv(t, Config{BasePath: "/qp"})
	b := env.browser(t)

	resp, body := b.get("/qp/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /qp/ = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `action="/qp/generate"`) || !strings.Contains(body, `href="/qp/runs"`) {
		t.Error("links should carry the base path")
	}
	for _, c := range resp.Cookies() {
		if c.Path != "/qp/" {
			t.Errorf("cookie %s path = %q, want /qp/", c.Name, c.Path)
		}
	}
	resp, _ = b.post("/qp/tab", url.Values{"tab": {"input"}})
	if resp.Header.Get("Location") != "/qp/" {
		t.Errorf("redirect = %q, want /qp/", resp.Header.Get("Location"))
	}
}

func TestRunsPage(t *testing.T) {
	env := newTestEnv(t, Config{}, bankReply, paperTextReply, paperDataReply)
	b := env.browser(t)
	b.get("/")
	b.post("/generate", generateForm())

	resp, body := b.get("/runs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /runs = %d", resp.StatusCode)
	}
	for _, want := range []string{"Generation requests", "paper_data", "paper_text"} {
		if !strings.Contains(body, want) {
			t.Errorf("runs page missing %q", want)
		}
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		query     string
		wantQuery string
	}{
		{"", ""},
		{"unit=2", "?unit=2"},
		{"unit=2&marks=12&diagram=yes", "?diagram=yes&marks=12&unit=2"},
		{"unit=two&marks=&diagram=maybe", ""},
		{"diagram=no", "?diagram=no"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			f, form := parseFilter(q)
			if got := filterQuery(form); got != tt.wantQuery {
				t.Errorf("filterQuery = %q, want %q", got, tt.wantQuery)
			}
			if (tt.wantQuery == "") != f.IsZero() {
				t.Errorf("IsZero = %v for %q", f.IsZero(), tt.query)
			}
		})
	}
}

func TestNewRejectsMalformedAccessHash(t *testing.T) {
	if _, err := New(session.NewStore(0), nil, nil, nil, Config{AccessHash: "plaintext"}); err == nil {
		t.Error("expected an error for a hash that is not bcrypt")
	}
}

func apiPost(t *testing.T, env *testEnv, path string, body any, header http.Header) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var payload io.Reader
	switch b := body.(type) {
	case string:
		payload = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		payload = strings.NewReader(string(data))
	}
	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+path, payload)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	out := map[string]json.RawMessage{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp, out
}

func apiInputs() model.Inputs {
	return model.Inputs{
		CDAP:     "CO1, CO2",
		Syllabus: "Unit I, Unit II",
		Template: "Part A, Part B",
		Selection: model.FacultySelection{
			CourseCode: "CS201", CourseTitle: "Object Oriented Programming", CIAType: model.CIA1, QPType: model.QP1,
		},
	}
}

func errorCode(t *testing.T, out map[string]json.RawMessage) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(out["error"], &body); err != nil {
		t.Fatalf("no error body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{APIConfigured: true, AccessHash: mustHash(t, "secret")})

	resp, err := http.Get(env.srv.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Status        string `json:"status"`
		APIConfigured bool   `json:"api_configured"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || out.Status != "ok" || !out.APIConfigured {
		t.Errorf("health = %d %+v", resp.StatusCode, out)
	}
}

func TestAPIGenerate(t *testing.T) {
	env := newTestEnv(t, Config{}, bankReply, paperTextReply, paperDataReply)

	resp, out := apiPost(t, env, "/api/generate-bank", apiInputs(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate-bank = %d %s", resp.StatusCode, out["error"])
	}
	var bank []model.Question
	if err := json.Unmarshal(out["questions"], &bank); err != nil || len(bank) != 2 {
		t.Fatalf("questions = %s (%v)", out["questions"], err)
	}

	req := map[string]any{
		"cdap": "CO1", "syllabus": "Unit I", "template": "Part A",
		"facultySelection": apiInputs().Selection,
		"bank":             bank,
	}
	resp, out = apiPost(t, env, "/api/generate-paper", req, nil)
	var text string
	_ = json.Unmarshal(out["paper"], &text)
	if resp.StatusCode != http.StatusOK || text != paperTextReply {
		t.Errorf("generate-paper = %d %q", resp.StatusCode, text)
	}

	resp, out = apiPost(t, env, "/api/generate-paper-data", req, nil)
	var data model.QuestionPaperData
	if err := json.Unmarshal(out["paperData"], &data); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("generate-paper-data = %d (%v)", resp.StatusCode, err)
	}
	if data.CourseCode != "CS201" || len(data.PartBQuestions) != 3 || data.PartBQuestions[0].Marks != "12" {
		t.Errorf("paperData = %+v", data)
	}
	if len(out["warnings"]) == 0 || string(out["warnings"]) == "null" {
		t.Error("layout warnings should be reported")
	}

	runs, _ := env.runs.ListRuns(context.Background(), "", 0)
	if len(runs) != 3 || !strings.HasPrefix(runs[0].SessionID, "api:") {
		t.Errorf("API requests should be audited under the request ID, got %+v", runs)
	}
}

func TestAPIErrors(t *testing.T) {
	missing := apiInputs()
	missing.CDAP = ""
	badSelector := apiInputs()
	badSelector.Selection.CIAType = "CIA-III"

	tests := []struct {
		name       string
		path       string
		body       any
		llmErr     error
		replies    []string
		wantStatus int
		wantCode   ErrCode
	}{
		{"malformed JSON", "/api/generate-bank", "{not json", nil, nil, http.StatusBadRequest, ErrInvalidPayload},
		{"missing input", "/api/generate-bank", missing, nil, nil, http.StatusBadRequest, ErrMissingInput},
		{"unknown selector", "/api/generate-bank", badSelector, nil, nil, http.StatusBadRequest, ErrValidation},
		{"paper without bank", "/api/generate-paper", apiInputs(), nil, nil, http.StatusBadRequest, ErrValidation},
		{"service failure", "/api/generate-bank", apiInputs(), &llm.ServiceError{Op: "LLM API call", Err: errors.New("401")}, nil, http.StatusBadGateway, ErrServiceFailed},
		{"unreadable reply", "/api/generate-bank", apiInputs(), nil, []string{"no json here"}, http.StatusBadGateway, ErrBadReply},
		{"diagram without description", "/api/generate-diagram", map[string]string{"diagramType": "flowchart"}, nil, nil, http.StatusBadRequest, ErrValidation},
		{"docx schema", "/api/generate-docx", map[string]string{"courseCode": "CS201"}, nil, nil, http.StatusBadRequest, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{}, tt.replies...)
			env.llm.err = tt.llmErr

			resp, out := apiPost(t, env, tt.path, tt.body, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body := errorCode(t, out)
			if body.Code != tt.wantCode || body.Message != GetMessage(tt.wantCode) {
				t.Errorf("error = %+v, want code %s", body, tt.wantCode)
			}
		})
	}
}

func TestAPIMissingInputDetails(t *testing.T) {
	env := newTestEnv(t, Config{})
	in := apiInputs()
	in.Syllabus = "  "
	in.Selection.CourseCode = ""

	_, out := apiPost(t, env, "/api/generate-bank", in, nil)
	body := errorCode(t, out)
	if strings.Join(body.Details, ",") != "syllabus,courseCode" {
		t.Errorf("details = %v", body.Details)
	}
}

func TestAPIDocxAndDiagram(t *testing.T) {
	env := newTestEnv(t, Config{})
	var data model.QuestionPaperData
	if err := json.Unmarshal([]byte(paperDataReply), &data); err != nil {
		t.Fatal(err)
	}

	resp, _ := apiPost(t, env, "/api/generate-docx", data, nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != docgen.DocxContentType {
		t.Errorf("generate-docx = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, out := apiPost(t, env, "/api/generate-diagram", map[string]string{"diagramType": "flowchart", "description": "login flow"}, nil)
	if resp.StatusCode != http.StatusOK || string(out["imageUrl"]) != `"https://img.example/flowchart.png"` {
		t.Errorf("generate-diagram = %d %s", resp.StatusCode, out["imageUrl"])
	}

	env.docs.err = &docgen.ExportError{Op: "render docx", Err: errors.New("connection refused")}
	resp, out = apiPost(t, env, "/api/generate-docx", data, nil)
	if resp.StatusCode != http.StatusBadGateway || errorCode(t, out).Code != ErrExportFailed {
		t.Errorf("failed export = %d %s", resp.StatusCode, out["error"])
	}
}

func mustHash(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func TestAccessKey(t *testing.T) {
	env := newTestEnv(t, Config{AccessHash: mustHash(t, "secret")}, bankReply)

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{"no key", "", http.StatusUnauthorized},
		{"wrong key", "guess", http.StatusUnauthorized},
		{"right key", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.key != "" {
				header.Set(accessKeyHeader, tt.key)
			}
			resp, out := apiPost(t, env, "/api/generate-bank", apiInputs(), header)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, out["error"])
			}
		})
	}
}

func TestLayoutAPI(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp, err := http.Get(env.srv.URL + "/api/layout?qpType=QP-II&ciaType=CIA-II")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out layoutJSON
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.TotalMarks != 60 || len(out.Sections) != 3 || out.Sections[2].Title != "PART - C (1 x 16 = 16 Marks)" {
		t.Errorf("layout = %+v", out)
	}
	if out.Scope == nil || out.Scope.Units != [2]int{3, 4} || out.Scope.COs != [2]string{"CO3", "CO4"} {
		t.Errorf("scope = %+v", out.Scope)
	}

	resp, err = http.Get(env.srv.URL + "/api/layout?qpType=QP-III")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown paper type: status = %d, want 400", resp.StatusCode)
	}
}

func TestSamplesAPI(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp, err := http.Get(env.srv.URL + "/api/samples?code=CS201")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var s struct {
		CourseCode string `json:"courseCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil || s.CourseCode != "CS201" {
		t.Errorf("sample = %+v (%v)", s, err)
	}

	resp, err = http.Get(env.srv.URL + "/api/samples?code=nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown sample: status = %d, want 404", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Config{AllowedOrigins: []string{"https://faculty.example.edu"}})

	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/generate-bank", nil)
	req.Header.Set("Origin", "https://faculty.example.edu")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Access-Key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://faculty.example.edu" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
