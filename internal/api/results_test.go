package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avscribe/av-engine/internal/database"
)

type fakeStore struct {
	results map[string]*database.TranscriptionResult
	deleted []string
	fail    bool
}

func (s *fakeStore) ListResults(ctx context.Context, filter database.ResultFilter) ([]database.TranscriptionResult, error) {
	if s.fail {
		return nil, fmt.Errorf("store down")
	}
	out := []database.TranscriptionResult{}
	for _, r := range s.results {
		if filter.FileType != "" && r.FileType != filter.FileType {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *fakeStore) SearchResults(ctx context.Context, query string, filter database.ResultFilter) ([]database.TranscriptionResult, error) {
	return s.ListResults(ctx, filter)
}

func (s *fakeStore) GetResult(ctx context.Context, filePath string) (*database.TranscriptionResult, error) {
	if s.fail {
		return nil, fmt.Errorf("store down")
	}
	return s.results[filePath], nil
}

func (s *fakeStore) DeleteResult(ctx context.Context, filePath string) error {
	s.deleted = append(s.deleted, filePath)
	return nil
}

func (s *fakeStore) Stats(ctx context.Context) (*database.ResultStats, error) {
	return &database.ResultStats{TotalFiles: int64(len(s.results))}, nil
}

func testRouter(store ResultsStore) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		NewResultsHandler(store).Routes(r)
	})
	return r
}

func seededStore() *fakeStore {
	return &fakeStore{results: map[string]*database.TranscriptionResult{
		"/media/a.mp3": {
			FilePath:               "/media/a.mp3",
			FileName:               "a.mp3",
			FileType:               "mp3",
			Transcript:             "hello",
			SRTContent:             "1\n00:00:00,000 --> 00:00:02,000\nhello\n\n",
			SRTWithSpeakers:        "1\n00:00:00,000 --> 00:00:02,000\n[SPEAKER_00] hello\n\n",
			TranscriptionTimestamp: time.Now(),
		},
		"/media/b.mp4": {
			FilePath: "/media/b.mp4",
			FileName: "b.mp4",
			FileType: "mp4",
		},
	}}
}

func TestListResults(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(seededStore()).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/results?file_type=mp3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 {
		t.Errorf("total = %d, want 1", body.Total)
	}
}

func TestListResultsBadPagination(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(seededStore()).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/results?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetResult(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(seededStore()).ServeHTTP(rec,
		httptest.NewRequest("GET", "/api/v1/results/file?path=/media/a.mp3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var r database.TranscriptionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatal(err)
	}
	if r.Transcript != "hello" {
		t.Errorf("transcript = %q", r.Transcript)
	}
}

func TestGetResultNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(seededStore()).ServeHTTP(rec,
		httptest.NewRequest("GET", "/api/v1/results/file?path=/media/missing.mp3", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetResultMissingPath(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(seededStore()).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/results/file", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetSRTVariants(t *testing.T) {
	router := testRouter(seededStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/results/file/srt?path=/media/a.mp3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got == "" || got[0] != '1' {
		t.Errorf("plain srt = %q", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/results/file/srt?path=/media/a.mp3&speakers=true", nil))
	if body := rec.Body.String(); !strings.Contains(body, "[SPEAKER_00]") {
		t.Errorf("speaker srt missing label: %q", body)
	}
}

func TestDeleteResult(t *testing.T) {
	store := seededStore()
	rec := httptest.NewRecorder()
	testRouter(store).ServeHTTP(rec,
		httptest.NewRequest("DELETE", "/api/v1/results/file?path=/media/a.mp3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "/media/a.mp3" {
		t.Errorf("deleted = %v", store.deleted)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(seededStore()).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/results/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStoreFailureIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(&fakeStore{fail: true}).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/results", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
