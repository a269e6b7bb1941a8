package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/avscribe/av-engine/internal/media"
)

// DiarizationError indicates the diarization service failed. The pipeline
// degrades to null speaker labels rather than failing the file.
type DiarizationError struct {
	Err error
}

func (e *DiarizationError) Error() string { return fmt.Sprintf("diarization: %v", e.Err) }
func (e *DiarizationError) Unwrap() error { return e.Err }

// Turn is a time interval attributed to one speaker. Turns are ordered by
// start time; turns of different speakers may overlap (cross-talk).
type Turn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Engine is the interface for speaker diarization backends.
type Engine interface {
	Diarize(ctx context.Context, audio *media.AudioBuffer) ([]Turn, error)
}

// Client calls a pyannote-style HTTP diarization service: audio in,
// JSON speaker turns out.
type Client struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

type diarizeResponse struct {
	Turns []Turn `json:"turns"`
}

// NewClient creates a diarization HTTP client.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Diarize sends the decoded audio to the service and returns speaker turns
// ordered by start time.
func (c *Client) Diarize(ctx context.Context, audio *media.AudioBuffer) ([]Turn, error) {
	f, err := os.Open(audio.Path)
	if err != nil {
		return nil, &DiarizationError{Err: fmt.Errorf("open audio: %w", err)}
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(audio.Path))
	if err != nil {
		return nil, &DiarizationError{Err: fmt.Errorf("create form file: %w", err)}
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, &DiarizationError{Err: fmt.Errorf("copy audio data: %w", err)}
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, &DiarizationError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &DiarizationError{Err: fmt.Errorf("diarize request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DiarizationError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &DiarizationError{Err: fmt.Errorf("diarize API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var parsed diarizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &DiarizationError{Err: fmt.Errorf("decode response: %w", err)}
	}

	turns := parsed.Turns
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Start < turns[j].Start })
	return turns, nil
}
