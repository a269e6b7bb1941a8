package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// ProbeError indicates the container could not be parsed (corrupt or
// truncated file, unrecognized format). It never aborts a batch; the
// orchestrator records it as a row-level failure.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string { return fmt.Sprintf("probe %s: %v", e.Path, e.Err) }
func (e *ProbeError) Unwrap() error { return e.Err }

// ProbeResult is the container metadata for a media file.
type ProbeResult struct {
	DurationSeconds float64
	SizeBytes       int64
	ContainerType   string
}

// ffprobeOutput is the subset of `ffprobe -print_format json -show_format`
// output this package reads.
type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
}

// Probe extracts duration, size, and container type from a media file
// using ffprobe.
func Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if !Supported(path) {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("unrecognized extension %q", Ext(path))}
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("ffprobe: %w", err)}
	}

	result, err := parseProbeOutput(out)
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}

	// ffprobe may omit size for piped input; stat is authoritative anyway.
	if fi, err := os.Stat(path); err == nil {
		result.SizeBytes = fi.Size()
	}
	return result, nil
}

func parseProbeOutput(out []byte) (*ProbeResult, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if parsed.Format.FormatName == "" {
		return nil, fmt.Errorf("ffprobe returned no format")
	}

	// Some containers (matroska/webm streams) carry no format.duration.
	// A missing value is not an error; the decoded WAV duration fills it
	// downstream. Only a present-but-garbage value is.
	var dur float64
	if parsed.Format.Duration != "" {
		var err error
		dur, err = strconv.ParseFloat(parsed.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", parsed.Format.Duration, err)
		}
	}

	var size int64
	if parsed.Format.Size != "" {
		size, _ = strconv.ParseInt(parsed.Format.Size, 10, 64)
	}

	return &ProbeResult{
		DurationSeconds: dur,
		SizeBytes:       size,
		ContainerType:   parsed.Format.FormatName,
	}, nil
}
