// Package batch runs the per-file pipeline over every media file a source
// lists: probe, extract, transcribe, diarize, merge, format, summarize,
// persist. Files are independent; a failure in one never aborts the run.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/avscribe/av-engine/internal/database"
	"github.com/avscribe/av-engine/internal/diarize"
	"github.com/avscribe/av-engine/internal/media"
	"github.com/avscribe/av-engine/internal/merge"
	"github.com/avscribe/av-engine/internal/metrics"
	"github.com/avscribe/av-engine/internal/source"
	"github.com/avscribe/av-engine/internal/subtitle"
	"github.com/avscribe/av-engine/internal/summarize"
	"github.com/avscribe/av-engine/internal/transcribe"
)

// Pipeline stage names, used in failure reasons and metrics labels.
const (
	StageFetch      = "fetch"
	StageProbe      = "probe"
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageDiarize    = "diarize"
	StageSummarize  = "summarize"
	StagePersist    = "persist"
	StageTimeout    = "timeout"
)

// ResultStore is the persistence surface the orchestrator needs.
type ResultStore interface {
	HasResult(ctx context.Context, filePath string) (bool, error)
	UpsertResult(ctx context.Context, r *database.TranscriptionResult) error
}

// ProbeFunc inspects a media file's container metadata.
type ProbeFunc func(ctx context.Context, path string) (*media.ProbeResult, error)

// ExtractFunc decodes a media file to a scratch PCM buffer.
type ExtractFunc func(ctx context.Context, path, scratchDir string) (*media.AudioBuffer, func(), error)

// Options configures a batch run. Diarizer and Summarizer are optional;
// nil disables the stage.
type Options struct {
	Source     source.Source
	Store      ResultStore
	Provider   transcribe.Provider
	Diarizer   diarize.Engine
	Summarizer summarize.Summarizer

	ScratchDir        string
	LanguageHint      string
	BeamSize          int
	SpeakerPolicy     merge.Policy
	SkipExisting      bool
	ForceRetranscribe bool
	Workers           int
	ProgressInterval  int
	FileTimeout       time.Duration // 0 = no per-file budget

	// Probe and Extract default to the ffmpeg-backed implementations.
	Probe   ProbeFunc
	Extract ExtractFunc

	Log zerolog.Logger
}

// Summary is the outcome of one batch run.
type Summary struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// FileFailure records why one file failed.
type FileFailure struct {
	Key    string
	Stage  string
	Reason string
}

// Orchestrator drives batch runs. Safe for overlapping Run calls: an
// in-memory claim set ensures no key is processed by two workers at once.
type Orchestrator struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	claimed map[string]bool
}

// New creates an orchestrator. Workers and ProgressInterval are clamped to
// at least 1.
func New(opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ProgressInterval < 1 {
		opts.ProgressInterval = 1
	}
	if opts.Probe == nil {
		opts.Probe = media.Probe
	}
	if opts.Extract == nil {
		opts.Extract = media.ExtractAudio
	}
	return &Orchestrator{
		opts:    opts,
		log:     opts.Log.With().Str("component", "batch").Logger(),
		claimed: make(map[string]bool),
	}
}

// Run lists the source and processes every file through the pipeline with
// a bounded worker pool. Returns the run summary; the error is non-nil only
// when the listing itself fails or the context is cancelled before any work.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	files, err := o.opts.Source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source: %w", err)
	}

	o.logInventory(files)

	var summary Summary
	summary.Total = int64(len(files))
	if len(files) == 0 {
		o.log.Info().Msg("no media files found")
		return &summary, nil
	}

	var succeeded, skipped, failed, processed atomic.Int64
	var failures []FileFailure
	var failMu sync.Mutex

	jobs := make(chan source.MediaFile)
	var wg sync.WaitGroup
	for i := 0; i < o.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				switch fail := o.processOne(ctx, f); {
				case fail == nil:
					succeeded.Add(1)
				case fail.Stage == "skipped":
					skipped.Add(1)
				default:
					failed.Add(1)
					failMu.Lock()
					failures = append(failures, *fail)
					failMu.Unlock()
				}
				if n := processed.Add(1); n%int64(o.opts.ProgressInterval) == 0 {
					o.log.Info().
						Int64("processed", n).
						Int64("total", summary.Total).
						Int64("failed", failed.Load()).
						Msg("batch progress")
				}
			}
		}()
	}

	for _, f := range files {
		select {
		case jobs <- f:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	summary.Succeeded = succeeded.Load()
	summary.Skipped = skipped.Load()
	summary.Failed = failed.Load()

	for _, f := range failures {
		o.log.Warn().
			Str("file", f.Key).
			Str("stage", f.Stage).
			Str("reason", f.Reason).
			Msg("file failed")
	}
	o.log.Info().
		Int64("total", summary.Total).
		Int64("succeeded", summary.Succeeded).
		Int64("skipped", summary.Skipped).
		Int64("failed", summary.Failed).
		Msg("batch run complete")

	if err := ctx.Err(); err != nil {
		return &summary, err
	}
	return &summary, nil
}

// claim marks the key as in-flight. Returns false when another worker or
// an overlapping run already holds it.
func (o *Orchestrator) claim(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.claimed[key] {
		return false
	}
	o.claimed[key] = true
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	delete(o.claimed, key)
	o.mu.Unlock()
}

// processOne runs the full pipeline for one file. Returns nil on success,
// a FileFailure with Stage "skipped" for dedup/claim skips, and a stage
// failure otherwise.
func (o *Orchestrator) processOne(ctx context.Context, f source.MediaFile) *FileFailure {
	log := o.log.With().Str("file", f.Key).Logger()

	if !o.claim(f.Key) {
		log.Debug().Msg("already claimed, skipping")
		metrics.FilesSkipped.Inc()
		return &FileFailure{Key: f.Key, Stage: "skipped", Reason: "claimed"}
	}
	defer o.release(f.Key)

	if o.opts.SkipExisting && !o.opts.ForceRetranscribe {
		exists, err := o.opts.Store.HasResult(ctx, f.Key)
		if err != nil {
			metrics.FilesFailed.WithLabelValues(StagePersist).Inc()
			return &FileFailure{Key: f.Key, Stage: StagePersist, Reason: err.Error()}
		}
		if exists {
			log.Debug().Msg("result exists, skipping")
			metrics.FilesSkipped.Inc()
			return &FileFailure{Key: f.Key, Stage: "skipped", Reason: "already transcribed"}
		}
	}

	if o.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.FileTimeout)
		defer cancel()
	}

	start := time.Now()
	fail := o.pipeline(ctx, log, f, start)
	metrics.FileDuration.Observe(time.Since(start).Seconds())

	if fail != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			fail.Stage = StageTimeout
		}
		metrics.FilesFailed.WithLabelValues(fail.Stage).Inc()
		return fail
	}

	metrics.FilesSucceeded.Inc()
	log.Info().Dur("elapsed", time.Since(start)).Msg("file processed")
	return nil
}

func (o *Orchestrator) pipeline(ctx context.Context, log zerolog.Logger, f source.MediaFile, start time.Time) *FileFailure {
	path, cleanup, err := o.opts.Source.Fetch(ctx, f.Key, o.opts.ScratchDir)
	if err != nil {
		return &FileFailure{Key: f.Key, Stage: StageFetch, Reason: err.Error()}
	}
	defer cleanup()

	result := &database.TranscriptionResult{
		FilePath:      f.Key,
		FileName:      f.Name,
		FileType:      media.Ext(f.Name),
		FileSizeBytes: f.Size,
	}
	stageStart := time.Now()
	probe, err := o.opts.Probe(ctx, path)
	metrics.StageDuration.WithLabelValues(StageProbe).Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return &FileFailure{Key: f.Key, Stage: StageProbe, Reason: err.Error()}
	}
	result.AudioDurationSeconds = probe.DurationSeconds
	if probe.SizeBytes > 0 {
		result.FileSizeBytes = probe.SizeBytes
	}

	stageStart = time.Now()
	audio, audioCleanup, err := o.opts.Extract(ctx, path, o.opts.ScratchDir)
	metrics.StageDuration.WithLabelValues(StageExtract).Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return &FileFailure{Key: f.Key, Stage: StageExtract, Reason: err.Error()}
	}
	defer audioCleanup()
	if result.AudioDurationSeconds == 0 {
		result.AudioDurationSeconds = audio.DurationSeconds
	}

	stageStart = time.Now()
	tr, err := o.opts.Provider.Transcribe(ctx, audio, transcribe.Opts{
		Language: o.opts.LanguageHint,
		BeamSize: o.opts.BeamSize,
	})
	metrics.StageDuration.WithLabelValues(StageTranscribe).Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return &FileFailure{Key: f.Key, Stage: StageTranscribe, Reason: err.Error()}
	}
	result.DetectedLanguage = tr.Language

	// Diarization degrades to null speaker labels on failure.
	var turns []diarize.Turn
	diarized := false
	if o.opts.Diarizer != nil && !tr.Empty() {
		stageStart = time.Now()
		turns, err = o.opts.Diarizer.Diarize(ctx, audio)
		metrics.StageDuration.WithLabelValues(StageDiarize).Observe(time.Since(stageStart).Seconds())
		if err != nil {
			log.Warn().Err(err).Msg("diarization failed, labels degraded to null")
			metrics.DegradedStages.WithLabelValues(StageDiarize).Inc()
			turns = nil
		} else {
			diarized = true
		}
	}

	merged := merge.Merge(tr.Segments, turns, o.opts.SpeakerPolicy)
	result.Transcript = merge.PlainText(merged)
	result.SpeakerCount = merge.SpeakerCount(merged)
	result.SRTContent = subtitle.FormatSRT(merged, false)
	if diarized {
		doc, err := json.Marshal(merge.Transcript{Speakers: merged})
		if err != nil {
			return &FileFailure{Key: f.Key, Stage: StageDiarize, Reason: err.Error()}
		}
		result.TranscriptWithSpeakers = doc
		result.SRTWithSpeakers = subtitle.FormatSRT(merged, true)
	}

	// Summarization degrades to a null summary on failure.
	if o.opts.Summarizer != nil && result.Transcript != "" {
		stageStart = time.Now()
		summary, err := o.opts.Summarizer.Summarize(ctx, result.Transcript)
		metrics.StageDuration.WithLabelValues(StageSummarize).Observe(time.Since(stageStart).Seconds())
		if err != nil {
			log.Warn().Err(err).Msg("summarization failed, summary degraded to null")
			metrics.DegradedStages.WithLabelValues(StageSummarize).Inc()
		} else {
			result.SummaryMarkdown = &summary
		}
	}

	result.ProcessingTimeSeconds = time.Since(start).Seconds()
	result.TranscriptionTimestamp = time.Now().UTC()

	stageStart = time.Now()
	err = o.opts.Store.UpsertResult(ctx, result)
	metrics.StageDuration.WithLabelValues(StagePersist).Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return &FileFailure{Key: f.Key, Stage: StagePersist, Reason: err.Error()}
	}
	return nil
}

// logInventory logs how many files of each extension the listing holds.
func (o *Orchestrator) logInventory(files []source.MediaFile) {
	byExt := make(map[string]int)
	for _, f := range files {
		byExt[media.Ext(f.Name)]++
	}
	evt := o.log.Info().Int("files", len(files))
	for ext, n := range byExt {
		evt = evt.Int(ext, n)
	}
	evt.Msg("source inventory")
}
