package transcribe

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
	"strings"
	"time"

	"github.com/avscribe/av-engine/internal/media"
)

// whisperModels maps the size selector to OpenAI-compatible model names.
var whisperModels = map[string]string{
	"tiny":   "whisper-tiny",
	"base":   "whisper-base",
	"small":  "whisper-small",
	"medium": "whisper-medium",
	"large":  "whisper-large-v3",
}

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint.
// Implements the Provider interface.
type WhisperClient struct {
	url        string
	model      string
	minSeconds float64
	timeout    time.Duration
	client     *http.Client
}

// whisperResponse is the verbose_json response from the Whisper API.
type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// NewWhisperClient creates a Whisper HTTP client for the given model size
// selector (tiny/base/small/medium/large). Audio shorter than minSeconds
// yields an explicit empty Result instead of a service call.
func NewWhisperClient(url, modelSize string, minSeconds float64, timeout time.Duration) (*WhisperClient, error) {
	model, ok := whisperModels[modelSize]
	if !ok {
		return nil, fmt.Errorf("unknown model size %q", modelSize)
	}
	return &WhisperClient{
		url:        url,
		model:      model,
		minSeconds: minSeconds,
		timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider name.
func (wc *WhisperClient) Name() string { return "whisper" }

// Model returns the resolved model identifier.
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe sends the decoded audio to the Whisper API and returns language,
// full text, and ordered segments. Audio below the minimum duration returns
// an empty Result, not an error.
func (wc *WhisperClient) Transcribe(ctx context.Context, audio *media.AudioBuffer, opts Opts) (*Result, error) {
	if audio.DurationSeconds < wc.minSeconds {
		return &Result{Duration: audio.DurationSeconds, Segments: []Segment{}}, nil
	}

	f, err := os.Open(audio.Path)
	if err != nil {
		return nil, &TranscriptionError{Err: fmt.Errorf("open audio: %w", err)}
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audio.Path))
	if err != nil {
		return nil, &TranscriptionError{Err: fmt.Errorf("create form file: %w", err)}
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, &TranscriptionError{Err: fmt.Errorf("copy audio data: %w", err)}
	}

	w.WriteField("model", wc.model)
	if opts.Language != "" {
		w.WriteField("language", opts.Language)
	}
	w.WriteField("temperature", fmt.Sprintf("%.2f", opts.Temperature))
	if opts.BeamSize > 0 {
		w.WriteField("beam_size", fmt.Sprintf("%d", opts.BeamSize))
	}

	// verbose_json carries segment-level timestamps.
	w.WriteField("response_format", "verbose_json")
	w.WriteField("timestamp_granularities[]", "segment")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, &buf)
	if err != nil {
		return nil, &TranscriptionError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := wc.client.Do(req)
	if err != nil {
		return nil, &TranscriptionError{Err: fmt.Errorf("whisper request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TranscriptionError{Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || isModelError(body):
		return nil, &ModelLoadError{Model: wc.model, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	default:
		return nil, &TranscriptionError{Err: fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var parsed whisperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &TranscriptionError{Err: fmt.Errorf("decode response: %w", err)}
	}

	segments := make([]Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: text})
	}
	// Providers emit segments in order, but it is an invariant downstream
	// (the merger assumes non-decreasing starts), so enforce it here.
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })

	return &Result{
		Language: parsed.Language,
		Text:     strings.TrimSpace(parsed.Text),
		Segments: segments,
		Duration: parsed.Duration,
	}, nil
}

// isModelError detects "model not found" style bodies from OpenAI-compatible
// servers that answer 400 rather than 404 for unknown weights.
func isModelError(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "model") &&
		(strings.Contains(s, "not found") || strings.Contains(s, "does not exist") || strings.Contains(s, "could not be loaded"))
}
