// Package session is the client's best-effort cache between runs: the last
// job id, the last video list and the cached document info. The video list
// and document info only apply to the job they were saved for. Nothing here is
// authoritative and concurrent writers simply race.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"paperreel/internal/models"
	"paperreel/internal/util"
)

const (
	KeyVideos    = "videos"
	KeyPDFInfo   = "pdfInfo"
	KeyLastJobID = "last_job_id"
)

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(key, ext string) string {
	return filepath.Join(s.dir, key+ext)
}

// jobEntry tags a cached value with the job it belongs to, so reopening a
// different job never shows another job's output.
type jobEntry[T any] struct {
	JobID string `json:"job_id"`
	Value T      `json:"value"`
}

func (s *Store) SaveVideos(jobID string, videos []models.VideoClip) error {
	return util.WriteJSONAtomic(s.path(KeyVideos, ".json"), jobEntry[[]models.VideoClip]{JobID: strings.TrimSpace(jobID), Value: videos})
}

// Videos returns nil when nothing usable is cached for jobID.
func (s *Store) Videos(jobID string) []models.VideoClip {
	var e jobEntry[[]models.VideoClip]
	if !s.readJSON(KeyVideos, &e) || e.JobID == "" || e.JobID != strings.TrimSpace(jobID) {
		return nil
	}
	return e.Value
}

func (s *Store) SavePDFInfo(jobID string, info models.PDFInfo) error {
	return util.WriteJSONAtomic(s.path(KeyPDFInfo, ".json"), jobEntry[models.PDFInfo]{JobID: strings.TrimSpace(jobID), Value: info})
}

// PDFInfo reports the cached document info for jobID.
func (s *Store) PDFInfo(jobID string) (models.PDFInfo, bool) {
	var e jobEntry[models.PDFInfo]
	if !s.readJSON(KeyPDFInfo, &e) || e.JobID == "" || e.JobID != strings.TrimSpace(jobID) {
		return models.PDFInfo{}, false
	}
	return e.Value, true
}

func (s *Store) SaveLastJobID(jobID string) error {
	return util.WriteTextAtomic(s.path(KeyLastJobID, ".txt"), strings.TrimSpace(jobID)+"\n")
}

func (s *Store) LastJobID() string {
	b, err := os.ReadFile(s.path(KeyLastJobID, ".txt"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (s *Store) readJSON(key string, v any) bool {
	b, err := os.ReadFile(s.path(key, ".json"))
	if err != nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}
