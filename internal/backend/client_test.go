package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paperreel/internal/models"

	"github.com/stretchr/testify/require"
)

func TestJobDecodesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/jobs/job%201", r.URL.EscapedPath())
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{"status":"RUNNING","current_step":"claim","steps_done":["doc_ir"]}`)
	}))
	defer srv.Close()

	doc, err := NewClient(srv.URL).Job(context.Background(), "job 1")
	require.NoError(t, err)
	require.Equal(t, "job 1", doc.JobID)
	require.Equal(t, "claim", doc.CurrentStep)
	require.Equal(t, []string{"doc_ir"}, doc.StepsDone)
}

func TestStepPreviewNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sketch", r.URL.Query().Get("step"))
		http.Error(w, "not ready", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).StepPreview(context.Background(), "j", "sketch")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.Code)
}

func TestSignedURLPassesExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/jobs/j/signed-url", r.URL.Path)
		require.Equal(t, "out/merged.mp4", r.URL.Query().Get("key"))
		require.Equal(t, "600", r.URL.Query().Get("expires_seconds"))
		_, _ = io.WriteString(w, `{"url":"https://cdn/merged.mp4?sig=1"}`)
	}))
	defer srv.Close()

	u, err := NewClient(srv.URL).SignedURL(context.Background(), "j", "out/merged.mp4", 600)
	require.NoError(t, err)
	require.Equal(t, "https://cdn/merged.mp4?sig=1", u)
}

func TestSignedURLMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.URL.Query().Get("expires_seconds"))
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SignedURL(context.Background(), "j", "k", 0)
	require.ErrorContains(t, err, "missing url")
}

func TestRunPostsRequest(t *testing.T) {
	var got models.RunRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/run", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).Run(context.Background(), models.NewRunRequest("job-9")))
	require.Equal(t, "job-9", got.JobID)
	require.Equal(t, "merge", got.Target)
	require.True(t, got.VideoRequest.SavePrompts)
}

func TestUploadUsesGatewayField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/upload", r.URL.Path)
		f, fh, err := r.FormFile("pdf")
		require.NoError(t, err)
		defer f.Close()
		require.Equal(t, "paper.pdf", fh.Filename)
		_, _ = io.WriteString(w, `{"job_id":"abc"}`)
	}))
	defer srv.Close()

	res, err := NewGatewayClient(srv.URL).Upload(context.Background(), "paper.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "abc", res.JobID)
}

func TestForwardReturnsNon2xxVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Forward(context.Background(), http.MethodGet, "/jobs/x", nil, "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusTeapot, resp.Status)
	require.Equal(t, "text/plain", resp.ContentType)
	require.Equal(t, "short and stout", string(resp.Body))
}

func TestChatAgainstGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req models.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = io.WriteString(w, `{"message":"echo: `+req.Message+`"}`)
	}))
	defer srv.Close()

	reply, err := NewGatewayClient(srv.URL).Chat(context.Background(), models.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "echo: hi", reply.Message)
}
