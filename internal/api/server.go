package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"paperreel/internal/backend"
	"paperreel/internal/chat"
	"paperreel/internal/config"
	"paperreel/internal/models"
	"paperreel/internal/pdfmeta"
	"paperreel/internal/progress"
	"paperreel/internal/providers"
	"paperreel/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

const backendMissing = "BACKEND_BASE_URL not set"

type Server struct {
	cfg      config.Config
	backend  *backend.Client
	chat     *chat.Service
	temporal tclient.Client
	weights  progress.Weights
	log      *slog.Logger
}

// Options wires a Server by hand. A nil Temporal client disables the watch
// endpoints; a nil Backend is built from Config.BackendBaseURL.
type Options struct {
	Config   config.Config
	Backend  *backend.Client
	Chat     *chat.Service
	Temporal tclient.Client
	Logger   *slog.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Backend == nil && opts.Config.BackendBaseURL != "" {
		opts.Backend = backend.NewClient(opts.Config.BackendBaseURL)
	}
	if opts.Chat == nil {
		opts.Chat = chat.NewService(providers.NewManagerWith(providers.NamedChatProvider{
			Ref:      providers.ProviderRef{Raw: "mock", Name: "mock"},
			Provider: providers.NewMockProvider(),
		}), opts.Logger)
	}
	return &Server{
		cfg:      opts.Config,
		backend:  opts.Backend,
		chat:     opts.Chat,
		temporal: opts.Temporal,
		weights:  progress.WeightsFromConfig(opts.Config.Progress),
		log:      opts.Logger,
	}
}

// NewServer builds the gateway from configuration, dialing Temporal when an
// address is configured.
func NewServer(cfg config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("chat providers: %w", err)
	}
	var tc tclient.Client
	if cfg.TemporalAddress != "" {
		tc, err = tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(log)})
		if err != nil {
			return nil, fmt.Errorf("dial temporal: %w", err)
		}
	}
	return New(Options{
		Config:   cfg,
		Chat:     chat.NewService(pm, log),
		Temporal: tc,
		Logger:   log,
	}), nil
}

func (s *Server) Close() {
	if s.temporal != nil {
		s.temporal.Close()
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/jobs/", s.handleJobsScoped)
	return withCORS(s.withLogging(mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"backend":  s.backend != nil,
		"temporal": s.temporal != nil,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.backend == nil {
		writeText(w, http.StatusInternalServerError, backendMissing)
		return
	}
	maxBytes := int64(s.cfg.UploadMaxMB) << 20
	if maxBytes <= 0 {
		maxBytes = 128 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload too large: %w", err))
			return
		}
		writeText(w, http.StatusBadRequest, `Missing "pdf" in form-data`)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["pdf"]
	if len(files) == 0 {
		writeText(w, http.StatusBadRequest, `Missing "pdf" in form-data`)
		return
	}
	fh := files[0]
	raw, err := readUpload(fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	meta, err := pdfmeta.Inspect(bytes.NewReader(raw), int64(len(raw)))
	switch {
	case err == nil:
		s.log.Info("upload accepted", "filename", fh.Filename, "pages", meta.PageCount, "sha256", meta.Fingerprint)
	case pdfmeta.HasHeader(raw):
		s.log.Warn("upload not parseable, forwarding anyway", "filename", fh.Filename, "err", err)
	default:
		s.log.Info("upload rejected", "filename", fh.Filename, "err", err)
		writeText(w, http.StatusBadRequest, "Invalid file type. Only PDF files are accepted.")
		return
	}

	resp, err := s.backend.ForwardUpload(r.Context(), filepath.Base(fh.Filename), bytes.NewReader(raw))
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	passThrough(w, resp)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.backend == nil {
		writeText(w, http.StatusInternalServerError, backendMissing)
		return
	}
	resp, err := s.backend.Forward(r.Context(), http.MethodPost, "/run", nil, "application/json", r.Body)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	passThrough(w, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Error("chat request decode failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process chat message"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message is required"})
		return
	}
	reply, err := s.chat.Reply(r.Context(), req)
	if err != nil {
		s.log.Error("chat failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process chat message"})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleJobsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.EscapedPath(), "/api/jobs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" || len(parts) > 2 {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	jobID, err := url.PathUnescape(parts[0])
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid job id: %w", err))
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		if !allowMethod(w, r, http.MethodGet) || !s.requireBackend(w) {
			return
		}
		s.forward(w, r, "/jobs/"+url.PathEscape(jobID), nil)
	case "signed-url":
		if !allowMethod(w, r, http.MethodGet) || !s.requireBackend(w) {
			return
		}
		key := r.URL.Query().Get("key")
		if key == "" {
			writeText(w, http.StatusBadRequest, `Missing required query param "key"`)
			return
		}
		q := url.Values{}
		q.Set("key", key)
		if exp := r.URL.Query().Get("expires_seconds"); exp != "" {
			q.Set("expires_seconds", exp)
		} else if s.cfg.SignedURLExpiresSecs > 0 {
			q.Set("expires_seconds", strconv.Itoa(s.cfg.SignedURLExpiresSecs))
		}
		s.forward(w, r, "/jobs/"+url.PathEscape(jobID)+"/signed-url", q)
	case "step-preview":
		if !allowMethod(w, r, http.MethodGet) || !s.requireBackend(w) {
			return
		}
		step := r.URL.Query().Get("step")
		if step == "" {
			writeText(w, http.StatusBadRequest, `Missing required query param "step"`)
			return
		}
		q := url.Values{}
		q.Set("step", step)
		s.forward(w, r, "/jobs/"+url.PathEscape(jobID)+"/step-preview", q)
	case "progress":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		s.handleProgress(w, r, jobID)
	case "watch":
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		s.handleWatch(w, r, jobID)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.temporal != nil {
		resp, err := s.temporal.QueryWorkflow(r.Context(), workflows.WatchWorkflowID(jobID), "", workflows.QueryGetJobProgress)
		if err == nil {
			var prog workflows.JobProgress
			if err := resp.Get(&prog); err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, prog)
			return
		}
		s.log.Debug("progress query unavailable, estimating from job document", "job_id", jobID, "err", err)
	}
	// Fallback to an on-the-spot estimate when no watch is running.
	if !s.requireBackend(w) {
		return
	}
	doc, err := s.backend.Job(r.Context(), jobID)
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			writeErr(w, se.Code, err)
			return
		}
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	est := progress.Estimate(&doc, s.weights)
	writeJSON(w, http.StatusOK, workflows.JobProgress{
		JobID:       jobID,
		Status:      string(doc.JobStatus()),
		CurrentStep: doc.CurrentStep,
		Percent:     est.Percent,
		Label:       est.Label,
		Message:     est.Message,
		Known:       est.Known,
	})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.temporal == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("temporal not configured"))
		return
	}
	var body struct {
		Target string `json:"target"`
		Force  bool   `json:"force"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	we, err := s.temporal.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       workflows.WatchWorkflowID(jobID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.JobWatchWorkflow, workflows.JobWatchInput{
		JobID:       jobID,
		Target:      body.Target,
		Force:       body.Force,
		PollSeconds: s.cfg.PollSeconds,
		MaxRetries:  s.cfg.WatchMaxRetries,
		Progress:    s.cfg.Progress,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) requireBackend(w http.ResponseWriter) bool {
	if s.backend == nil {
		writeText(w, http.StatusInternalServerError, backendMissing)
		return false
	}
	return true
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request, path string, q url.Values) {
	resp, err := s.backend.Forward(r.Context(), r.Method, path, q, "", nil)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	passThrough(w, resp)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return false
	}
	return true
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return b, nil
}

func passThrough(w http.ResponseWriter, resp backend.Response) {
	ct := resp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, msg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PR-API-4000"

	switch {
	case status == http.StatusBadGateway:
		return apiError{
			Code:    "PR-API-5020",
			Message: "Backend unavailable. Retry shortly.",
		}
	case status == http.StatusServiceUnavailable:
		return apiError{
			Code:    "PR-API-5030",
			Message: "Job watch is not available. Configure PAPERREEL_TEMPORAL_ADDRESS and retry.",
		}
	case status >= 500:
		return apiError{
			Code:    "PR-API-5000",
			Message: "Internal server error. Please retry or check service logs.",
		}
	case status == http.StatusBadRequest:
		code = "PR-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PR-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "PR-API-4009"
		msg = "A watch for this job is already running."
	case status == http.StatusMethodNotAllowed:
		code = "PR-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusRequestEntityTooLarge:
		code = "PR-API-4013"
		msg = "Uploaded file is too large."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(low, "invalid job id"):
			msg = "Job id is not valid."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
