// Package docgen talks to the document-rendering service that turns structured
// paper data into a Word document and synthesizes diagram images.
package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

// ErrExport marks failures of the document-rendering service.
var ErrExport = errors.New("document export failure")

// ExportError reports a failed rendering request.
type ExportError struct {
	Op     string
	Status int
	Err    error
}

func (e *ExportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() []error {
	return []error{ErrExport, e.Err}
}

// DocxContentType is the media type of rendered documents.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// maxDocumentBytes caps a rendered document read into memory.
const maxDocumentBytes = 32 << 20

// Client calls the rendering service at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client. timeout bounds each request; zero means no limit.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Filename returns the download name of a rendered paper.
func Filename(p model.QuestionPaperData) string {
	return fmt.Sprintf("CIA_Paper_%s_%s_%s.docx", p.CourseCode, p.CIAType, p.QPType)
}

// RenderDocx renders paper data into a .docx document.
func (c *Client) RenderDocx(ctx context.Context, p model.QuestionPaperData) ([]byte, string, error) {
	const op = "render docx"
	resp, err := c.post(ctx, op, "/api/generate-docx", p)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, "", &ExportError{Op: op, Err: err}
	}
	if len(body) > maxDocumentBytes {
		return nil, "", &ExportError{Op: op, Err: fmt.Errorf("document larger than %d bytes", maxDocumentBytes)}
	}
	if len(body) == 0 {
		return nil, "", &ExportError{Op: op, Err: errors.New("empty document")}
	}
	slog.Debug("document rendered", "course", p.CourseCode, "bytes", len(body))
	return body, Filename(p), nil
}

type diagramRequest struct {
	DiagramType string `json:"diagramType"`
	Description string `json:"description"`
}

type diagramResponse struct {
	ImageURL string `json:"imageUrl"`
}

// RenderDiagram asks the service for an image of a diagram and returns its URL.
func (c *Client) RenderDiagram(ctx context.Context, diagramType, description string) (string, error) {
	const op = "render diagram"
	if strings.TrimSpace(description) == "" {
		return "", &ExportError{Op: op, Err: errors.New("diagram description is required")}
	}
	resp, err := c.post(ctx, op, "/api/generate-diagram", diagramRequest{DiagramType: diagramType, Description: description})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out diagramResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ExportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.ImageURL == "" {
		return "", &ExportError{Op: op, Err: errors.New("response has no image URL")}
	}
	return out.ImageURL, nil
}

// Ping checks that the service answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	const op = "health check"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return &ExportError{Op: op, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &ExportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &ExportError{Op: op, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return nil
}

// post sends v as JSON and returns a 200 response. Other statuses become an
// *ExportError carrying the service's error message when it sent one.
func (c *Client) post(ctx context.Context, op, path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, &ExportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &ExportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ExportError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, &ExportError{Op: op, Status: resp.StatusCode, Err: errors.New(serviceMessage(resp))}
	}
	return resp, nil
}

func serviceMessage(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
