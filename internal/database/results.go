package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// TranscriptionResult is one persisted record per processed media file,
// keyed by file_path. Immutable once written except by a force-retranscribe
// overwrite.
type TranscriptionResult struct {
	FilePath               string          `json:"file_path"`
	FileName               string          `json:"file_name"`
	FileType               string          `json:"file_type"`
	DetectedLanguage       string          `json:"detected_language"`
	Transcript             string          `json:"transcript"`
	TranscriptWithSpeakers json.RawMessage `json:"transcript_with_speakers,omitempty"`
	ProcessingTimeSeconds  float64         `json:"processing_time_seconds"`
	TranscriptionTimestamp time.Time       `json:"transcription_timestamp"`
	FileSizeBytes          int64           `json:"file_size_bytes"`
	AudioDurationSeconds   float64         `json:"audio_duration_seconds"`
	SpeakerCount           int             `json:"speaker_count"`
	SRTContent             string          `json:"srt_content"`
	SRTWithSpeakers        string          `json:"srt_with_speakers"`
	SummaryMarkdown        *string         `json:"summary_markdown,omitempty"`
}

// ResultFilter narrows list and search queries.
type ResultFilter struct {
	FileType string
	Language string
	Limit    int
	Offset   int
}

// ResultStats are the dashboard aggregates over all results.
type ResultStats struct {
	TotalFiles        int64   `json:"total_files"`
	TotalAudioHours   float64 `json:"total_audio_hours"`
	AvgProcessingSecs float64 `json:"avg_processing_seconds"`
	Languages         int64   `json:"languages"`
	FilesWithSpeakers int64   `json:"files_with_speakers"`
	AvgSpeakers       float64 `json:"avg_speakers"`
}

const resultColumns = `file_path, file_name, file_type, detected_language, transcript,
	transcript_with_speakers, processing_time_seconds, transcription_timestamp,
	file_size_bytes, audio_duration_seconds, speaker_count,
	srt_content, srt_with_speakers, summary_markdown`

// UpsertResult inserts the result, fully replacing any existing row for the
// same file_path. The replacement is whole-record: a re-run never merges
// with stale fields.
func (db *DB) UpsertResult(ctx context.Context, r *TranscriptionResult) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO transcription_results (`+resultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (file_path) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			file_type = EXCLUDED.file_type,
			detected_language = EXCLUDED.detected_language,
			transcript = EXCLUDED.transcript,
			transcript_with_speakers = EXCLUDED.transcript_with_speakers,
			processing_time_seconds = EXCLUDED.processing_time_seconds,
			transcription_timestamp = EXCLUDED.transcription_timestamp,
			file_size_bytes = EXCLUDED.file_size_bytes,
			audio_duration_seconds = EXCLUDED.audio_duration_seconds,
			speaker_count = EXCLUDED.speaker_count,
			srt_content = EXCLUDED.srt_content,
			srt_with_speakers = EXCLUDED.srt_with_speakers,
			summary_markdown = EXCLUDED.summary_markdown
	`,
		r.FilePath, r.FileName, r.FileType, r.DetectedLanguage, r.Transcript,
		r.TranscriptWithSpeakers, r.ProcessingTimeSeconds, r.TranscriptionTimestamp,
		r.FileSizeBytes, r.AudioDurationSeconds, r.SpeakerCount,
		r.SRTContent, r.SRTWithSpeakers, r.SummaryMarkdown,
	)
	if err != nil {
		return &StoreError{Op: "upsert", Err: err}
	}
	return nil
}

// HasResult reports whether a result exists for the identity key.
func (db *DB) HasResult(ctx context.Context, filePath string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transcription_results WHERE file_path = $1)`,
		filePath,
	).Scan(&exists)
	if err != nil {
		return false, &StoreError{Op: "exists", Err: err}
	}
	return exists, nil
}

// GetResult returns the result for the identity key, or (nil, nil) when
// none exists.
func (db *DB) GetResult(ctx context.Context, filePath string) (*TranscriptionResult, error) {
	var r TranscriptionResult
	err := db.Pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM transcription_results WHERE file_path = $1`,
		filePath,
	).Scan(
		&r.FilePath, &r.FileName, &r.FileType, &r.DetectedLanguage, &r.Transcript,
		&r.TranscriptWithSpeakers, &r.ProcessingTimeSeconds, &r.TranscriptionTimestamp,
		&r.FileSizeBytes, &r.AudioDurationSeconds, &r.SpeakerCount,
		&r.SRTContent, &r.SRTWithSpeakers, &r.SummaryMarkdown,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return &r, nil
}

// DeleteResult removes the result for the identity key.
func (db *DB) DeleteResult(ctx context.Context, filePath string) error {
	_, err := db.Pool.Exec(ctx,
		`DELETE FROM transcription_results WHERE file_path = $1`, filePath)
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

// ListResults returns results ordered by completion time, newest first.
func (db *DB) ListResults(ctx context.Context, filter ResultFilter) ([]TranscriptionResult, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+resultColumns+`
		FROM transcription_results
		WHERE ($1 = '' OR file_type = $1)
		  AND ($2 = '' OR detected_language = $2)
		ORDER BY transcription_timestamp DESC
		LIMIT $3 OFFSET $4
	`, filter.FileType, filter.Language, limit, filter.Offset)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	return scanResults(rows)
}

// SearchResults returns results whose transcript matches the query
// (case-insensitive substring), newest first.
func (db *DB) SearchResults(ctx context.Context, query string, filter ResultFilter) ([]TranscriptionResult, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+resultColumns+`
		FROM transcription_results
		WHERE transcript ILIKE '%' || $1 || '%'
		  AND ($2 = '' OR file_type = $2)
		  AND ($3 = '' OR detected_language = $3)
		ORDER BY transcription_timestamp DESC
		LIMIT $4 OFFSET $5
	`, query, filter.FileType, filter.Language, limit, filter.Offset)
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}
	defer rows.Close()

	return scanResults(rows)
}

// Stats returns the aggregate statistics the dashboard reads.
func (db *DB) Stats(ctx context.Context) (*ResultStats, error) {
	var s ResultStats
	err := db.Pool.QueryRow(ctx, `
		SELECT
			count(*),
			COALESCE(sum(audio_duration_seconds) / 3600, 0),
			COALESCE(avg(processing_time_seconds), 0),
			count(DISTINCT detected_language) FILTER (WHERE detected_language <> ''),
			count(*) FILTER (WHERE speaker_count > 0),
			COALESCE(avg(speaker_count) FILTER (WHERE speaker_count > 0), 0)
		FROM transcription_results
	`).Scan(
		&s.TotalFiles, &s.TotalAudioHours, &s.AvgProcessingSecs,
		&s.Languages, &s.FilesWithSpeakers, &s.AvgSpeakers,
	)
	if err != nil {
		return nil, &StoreError{Op: "stats", Err: err}
	}
	return &s, nil
}

func scanResults(rows pgx.Rows) ([]TranscriptionResult, error) {
	var results []TranscriptionResult
	for rows.Next() {
		var r TranscriptionResult
		if err := rows.Scan(
			&r.FilePath, &r.FileName, &r.FileType, &r.DetectedLanguage, &r.Transcript,
			&r.TranscriptWithSpeakers, &r.ProcessingTimeSeconds, &r.TranscriptionTimestamp,
			&r.FileSizeBytes, &r.AudioDurationSeconds, &r.SpeakerCount,
			&r.SRTContent, &r.SRTWithSpeakers, &r.SummaryMarkdown,
		); err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}
		results = append(results, r)
	}
	if results == nil {
		results = []TranscriptionResult{}
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "rows", Err: err}
	}
	return results, nil
}
