package transcribe

import (
	"context"
	"fmt"

	"github.com/avscribe/av-engine/internal/media"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audio *media.AudioBuffer, opts Opts) (*Result, error)
	Name() string
	Model() string // model identifier for DB/logs
}

// Opts are per-request decoding options. Beam settings are fixed by config
// so a given (weights, audio, opts) triple is deterministic.
type Opts struct {
	Language    string // ISO-639 hint; empty = autodetect
	BeamSize    int    // 0 = server default
	Temperature float64
}

// Result is the common transcription result from any provider.
type Result struct {
	Language string
	Text     string
	Segments []Segment
	Duration float64 // audio duration as reported by the provider, seconds
}

// Segment is a time-stamped transcript segment. Providers emit segments
// ordered by start time and temporally disjoint.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Empty reports whether the result carries no recognized speech.
func (r *Result) Empty() bool {
	return r == nil || (r.Text == "" && len(r.Segments) == 0)
}

// TranscriptionError indicates the speech model failed to process audio.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// ModelLoadError indicates the requested model weights could not be acquired.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("model %s unavailable: %v", e.Model, e.Err)
}
func (e *ModelLoadError) Unwrap() error { return e.Err }
