package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperreel/internal/models"
	"paperreel/internal/pdfmeta/pdfmetatest"
	"paperreel/internal/session"
)

type gatewayFake struct {
	uploads int
	runs    int
	chats   []models.ChatRequest
}

func (g *gatewayFake) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("pdf")
		if !assert.NoError(t, err) {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer f.Close()
		assert.Equal(t, "paper.pdf", hdr.Filename)
		g.uploads++
		_, _ = io.WriteString(w, `{"job_id":"job-42"}`)
	})
	mux.HandleFunc("/api/run", func(w http.ResponseWriter, r *http.Request) {
		g.runs++
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	mux.HandleFunc("/api/jobs/job-42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"RUNNING","current_step":"claim","steps_done":["doc_ir","sketch"],"video_done":0,"video_total":0,"message":"extracting"}`)
	})
	mux.HandleFunc("/api/jobs/job-42/step-preview", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		g.chats = append(g.chats, req)
		_, _ = io.WriteString(w, `{"message":"It compares two encoders."}`)
	})
	return mux
}

func setup(t *testing.T) (*gatewayFake, string, *bytes.Buffer) {
	t.Helper()
	g := &gatewayFake{}
	srv := httptest.NewServer(g.handler(t))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("PAPERREEL_GATEWAY_URL", srv.URL)
	t.Setenv("PAPERREEL_SESSION_DIR", filepath.Join(dir, "session"))
	t.Setenv("PAPERREEL_CONFIG", "")

	var out bytes.Buffer
	prev := stdout
	stdout = &out
	t.Cleanup(func() { stdout = prev })
	return g, dir, &out
}

func TestUploadPrintsJobAndRemembersIt(t *testing.T) {
	g, dir, out := setup(t)
	pdfPath := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(pdfPath, pdfmetatest.Minimal("Sparse Attention"), 0o644))

	require.NoError(t, Run([]string{"upload", pdfPath}))

	require.Equal(t, 1, g.uploads)
	require.Contains(t, out.String(), "job: job-42")
	require.Contains(t, out.String(), "title: Sparse Attention")

	store := session.NewStore(filepath.Join(dir, "session"))
	require.Equal(t, "job-42", store.LastJobID())
	info, ok := store.PDFInfo("job-42")
	require.True(t, ok)
	require.Equal(t, "Sparse Attention", info.Title)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	g, dir, _ := setup(t)
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	require.Error(t, Run([]string{"upload", path}))
	require.Zero(t, g.uploads)
}

func TestUploadForwardsPDFTheParserCannotRead(t *testing.T) {
	g, dir, out := setup(t)
	path := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 garbage"), 0o644))

	require.NoError(t, Run([]string{"upload", path}))
	require.Equal(t, 1, g.uploads)
	require.Contains(t, out.String(), "job: job-42")
	require.NotContains(t, out.String(), "pages:")
}

func TestUploadRejectsTextRenamedToPDF(t *testing.T) {
	g, dir, _ := setup(t)
	path := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some notes"), 0o644))

	require.Error(t, Run([]string{"upload", path}))
	require.Zero(t, g.uploads)
}

func TestStatusPrintsProgressOnce(t *testing.T) {
	g, _, out := setup(t)

	require.NoError(t, Run([]string{"status", "--job", "job-42"}))

	require.Equal(t, 1, g.runs)
	require.Contains(t, out.String(), "job-42 [5%] Extracting claims")
	require.Contains(t, out.String(), "extracting")
}

func TestStatusJSONUsesLastJob(t *testing.T) {
	_, dir, out := setup(t)
	require.NoError(t, session.NewStore(filepath.Join(dir, "session")).SaveLastJobID("job-42"))

	require.NoError(t, Run([]string{"status", "--last", "--json"}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Equal(t, "job-42", got["job_id"])
	require.EqualValues(t, 5, got["pct"])
	require.Equal(t, "RUNNING", got["status"])
	require.Equal(t, false, got["finished"])
}

func TestStatusNeedsJob(t *testing.T) {
	setup(t)
	require.Error(t, Run([]string{"status"}))
}

func TestAskPrintsReply(t *testing.T) {
	g, dir, out := setup(t)
	store := session.NewStore(filepath.Join(dir, "session"))
	require.NoError(t, store.SaveVideos("job-42", []models.VideoClip{{ID: "merged", Title: "Merged Video", URL: "https://cdn/x.mp4"}}))

	require.NoError(t, Run([]string{"ask", "--job", "job-42", "--at", "12", "what", "is", "compared?"}))

	require.Len(t, g.chats, 1)
	require.Equal(t, "what is compared?", g.chats[0].Message)
	require.Equal(t, "merged", g.chats[0].VideoID)
	require.Equal(t, 12.0, g.chats[0].CurrentTime)
	require.Contains(t, out.String(), "It compares two encoders.")
}

func TestAskIgnoresVideosOfAnotherJob(t *testing.T) {
	g, dir, _ := setup(t)
	store := session.NewStore(filepath.Join(dir, "session"))
	require.NoError(t, store.SaveVideos("job-41", []models.VideoClip{{ID: "merged", Title: "Merged Video"}}))

	require.NoError(t, Run([]string{"ask", "--job", "job-42", "hi"}))
	require.Len(t, g.chats, 1)
	require.Empty(t, g.chats[0].VideoID)
}

func TestAskNeedsQuestion(t *testing.T) {
	setup(t)
	require.Error(t, Run([]string{"ask", "--job", "job-42"}))
}

func TestUnknownCommand(t *testing.T) {
	_, _, out := setup(t)
	require.Error(t, Run([]string{"frobnicate"}))
	require.Contains(t, out.String(), "Commands:")
}
