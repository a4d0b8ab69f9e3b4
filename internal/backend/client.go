// Package backend talks to the video pipeline over HTTP. The same client
// shape serves the gateway's /api routes, which mirror the backend's /v1 ones.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paperreel/internal/models"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("backend status %d: %s", e.Code, body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

type Client struct {
	base        string
	prefix      string
	uploadField string
	http        *http.Client
}

// NewClient targets the pipeline backend directly.
func NewClient(baseURL string) *Client {
	return newClient(baseURL, "/v1", "file")
}

// NewGatewayClient targets a paperreel gateway.
func NewGatewayClient(baseURL string) *Client {
	return newClient(baseURL, "/api", "pdf")
}

func newClient(baseURL, prefix, field string) *Client {
	return &Client{
		base:        strings.TrimRight(baseURL, "/"),
		prefix:      prefix,
		uploadField: field,
		http:        &http.Client{Timeout: 60 * time.Second},
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) BaseURL() string { return c.base }

// Response is a raw backend reply, passed through by the gateway.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Forward sends one request to path (relative to the prefix) and returns the
// reply verbatim, whatever its status.
func (c *Client) Forward(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) (Response, error) {
	u := c.base + c.prefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read %s response: %w", path, err)
	}
	return Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: raw}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	resp, err := c.Forward(ctx, method, path, query, contentType, body)
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return &StatusError{Code: resp.Status, Body: string(resp.Body)}
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func jobPath(jobID string, rest ...string) string {
	p := "/jobs/" + url.PathEscape(jobID)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// UploadResult holds the job id when the backend returned one, plus the raw body.
type UploadResult struct {
	JobID string
	Raw   []byte
}

// ForwardUpload posts r as a single-file multipart form and returns the reply verbatim.
func (c *Client) ForwardUpload(ctx context.Context, filename string, r io.Reader) (Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(c.uploadField, filename)
	if err != nil {
		return Response{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Response{}, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Response{}, fmt.Errorf("close multipart: %w", err)
	}
	return c.Forward(ctx, http.MethodPost, "/upload", nil, mw.FormDataContentType(), &buf)
}

func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	resp, err := c.ForwardUpload(ctx, filename, r)
	if err != nil {
		return UploadResult{}, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return UploadResult{}, &StatusError{Code: resp.Status, Body: string(resp.Body)}
	}
	var parsed struct {
		JobID string `json:"job_id"`
	}
	_ = json.Unmarshal(resp.Body, &parsed)
	return UploadResult{JobID: parsed.JobID, Raw: resp.Body}, nil
}

func (c *Client) Run(ctx context.Context, req models.RunRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/run", nil, req, nil)
}

func (c *Client) Job(ctx context.Context, jobID string) (models.JobDocument, error) {
	var doc models.JobDocument
	if err := c.doJSON(ctx, http.MethodGet, jobPath(jobID), nil, nil, &doc); err != nil {
		return models.JobDocument{}, err
	}
	if doc.JobID == "" {
		doc.JobID = jobID
	}
	return doc, nil
}

// SignedURL asks for a short-lived playable URL. expiresSeconds <= 0 leaves
// the lifetime to the backend.
func (c *Client) SignedURL(ctx context.Context, jobID, key string, expiresSeconds int) (string, error) {
	q := url.Values{}
	q.Set("key", key)
	if expiresSeconds > 0 {
		q.Set("expires_seconds", strconv.Itoa(expiresSeconds))
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, jobPath(jobID, "signed-url"), q, nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("signed-url response missing url")
	}
	return out.URL, nil
}

func (c *Client) StepPreview(ctx context.Context, jobID, step string) (models.StepPreview, error) {
	q := url.Values{}
	q.Set("step", step)
	var p models.StepPreview
	if err := c.doJSON(ctx, http.MethodGet, jobPath(jobID, "step-preview"), q, nil, &p); err != nil {
		return models.StepPreview{}, err
	}
	if p.Step == "" {
		p.Step = step
	}
	return p, nil
}

// Chat is only served by the gateway.
func (c *Client) Chat(ctx context.Context, req models.ChatRequest) (models.ChatReply, error) {
	var out models.ChatReply
	if err := c.doJSON(ctx, http.MethodPost, "/chat", nil, req, &out); err != nil {
		return models.ChatReply{}, err
	}
	return out, nil
}
