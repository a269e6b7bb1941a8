package diarize

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avscribe/av-engine/internal/media"
)

func testAudio(t *testing.T) *media.AudioBuffer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("fake wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &media.AudioBuffer{Path: path, DurationSeconds: 30}
}

func TestDiarizeOrdersTurns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"turns": []map[string]any{
				{"speaker": "SPEAKER_01", "start": 10.0, "end": 20.0},
				{"speaker": "SPEAKER_00", "start": 0.0, "end": 10.0},
			},
		})
	}))
	defer srv.Close()

	turns, err := NewClient(srv.URL, time.Minute).Diarize(t.Context(), testAudio(t))
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Speaker != "SPEAKER_00" || turns[1].Speaker != "SPEAKER_01" {
		t.Errorf("turns not ordered by start: %+v", turns)
	}
}

func TestDiarizeServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Minute).Diarize(t.Context(), testAudio(t))
	var de *DiarizationError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DiarizationError, got %v", err)
	}
}

func TestDiarizeEmptyTurns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"turns":[]}`))
	}))
	defer srv.Close()

	turns, err := NewClient(srv.URL, time.Minute).Diarize(t.Context(), testAudio(t))
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("turns = %d, want 0", len(turns))
	}
}
