package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Target decode format. Whisper models expect 16 kHz mono PCM.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// DecodeError indicates the audio stream could not be demuxed or resampled.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Path, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// AudioBuffer is the decoded mono PCM stream for one pipeline run. The
// samples live in a scratch WAV file owned by that run; the cleanup func
// returned by ExtractAudio must be called on every exit path.
type AudioBuffer struct {
	Path            string
	SampleRate      int
	Channels        int
	DurationSeconds float64
}

// ExtractAudio demuxes and resamples any supported container to a 16 kHz
// mono PCM WAV in scratchDir (os.TempDir() when empty). Returns the buffer
// and a cleanup func that removes the scratch file; cleanup is safe to call
// whether or not extraction succeeded.
func ExtractAudio(ctx context.Context, path, scratchDir string) (*AudioBuffer, func(), error) {
	noop := func() {}

	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	tmp, err := os.CreateTemp(scratchDir, "av-engine-*.wav")
	if err != nil {
		return nil, noop, &DecodeError{Path: path, Err: fmt.Errorf("create scratch file: %w", err)}
	}
	outPath := tmp.Name()
	tmp.Close()
	cleanup := func() { os.Remove(outPath) }

	// -vn drops any video stream; pcm_s16le keeps the samples uncompressed
	// for the model services.
	args := []string{
		"-y",
		"-i", path,
		"-vn",
		"-ac", fmt.Sprintf("%d", TargetChannels),
		"-ar", fmt.Sprintf("%d", TargetSampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if err := cmd.Run(); err != nil {
		cleanup()
		return nil, noop, &DecodeError{Path: path, Err: fmt.Errorf("ffmpeg: %w", err)}
	}

	dur, err := wavDuration(outPath)
	if err != nil {
		cleanup()
		return nil, noop, &DecodeError{Path: path, Err: err}
	}

	return &AudioBuffer{
		Path:            outPath,
		SampleRate:      TargetSampleRate,
		Channels:        TargetChannels,
		DurationSeconds: dur,
	}, cleanup, nil
}

// wavDuration computes the duration of a canonical PCM WAV file from its
// header: data bytes / byte rate.
func wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	header := make([]byte, 44)
	if _, err := f.Read(header); err != nil {
		return 0, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	byteRate := binary.LittleEndian.Uint32(header[28:32])
	if byteRate == 0 {
		return 0, fmt.Errorf("wav header has zero byte rate")
	}

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	dataBytes := fi.Size() - 44
	if dataBytes < 0 {
		dataBytes = 0
	}
	return float64(dataBytes) / float64(byteRate), nil
}
