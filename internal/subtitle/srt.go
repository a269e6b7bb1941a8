// Package subtitle renders merged transcript segments as SubRip (SRT)
// timed text and parses SRT back into cues.
package subtitle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avscribe/av-engine/internal/merge"
)

// Cue is a single parsed subtitle entry.
type Cue struct {
	Index   int
	Start   float64
	End     float64
	Speaker string // from a leading [speaker] prefix, if any
	Text    string
}

// FormatSRT renders segments as sequentially numbered SRT cue blocks.
// With withSpeakers set, each cue's text is prefixed with
// "[speaker_label] "; segments without a label never get a prefix.
// Zero segments yield the empty string.
func FormatSRT(segments []merge.Segment, withSpeakers bool) string {
	if len(segments) == 0 {
		return ""
	}

	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", Timestamp(seg.Start), Timestamp(seg.End))
		if withSpeakers && seg.Speaker != "" {
			fmt.Fprintf(&b, "[%s] %s\n", seg.Speaker, seg.Text)
		} else {
			fmt.Fprintf(&b, "%s\n", seg.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Timestamp converts seconds to an SRT timestamp "HH:MM:SS,mmm" by exact
// integer conversion of the millisecond total.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int64(seconds*1000 + 0.5)
	ms := totalMs % 1000
	totalSec := totalMs / 1000
	s := totalSec % 60
	m := (totalSec / 60) % 60
	h := totalSec / 3600
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ParseSRT parses SRT content into ordered cues. A leading "[label] " on a
// cue's first text line is split out as the speaker. Used by tests and the
// export round-trip.
func ParseSRT(content string) ([]Cue, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var cues []Cue
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("malformed cue block: %q", block)
		}

		idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("cue index %q: %w", lines[0], err)
		}

		start, end, err := parseTimeRange(lines[1])
		if err != nil {
			return nil, err
		}

		text := strings.Join(lines[2:], "\n")
		speaker := ""
		if strings.HasPrefix(text, "[") {
			if close := strings.Index(text, "] "); close > 0 {
				speaker = text[1:close]
				text = text[close+2:]
			}
		}

		cues = append(cues, Cue{Index: idx, Start: start, End: end, Speaker: speaker, Text: text})
	}
	return cues, nil
}

func parseTimeRange(line string) (float64, float64, error) {
	parts := strings.Split(line, " --> ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed time range: %q", line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(ts string) (float64, error) {
	var h, m, s, ms int
	if _, err := fmt.Sscanf(ts, "%02d:%02d:%02d,%03d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("malformed timestamp %q: %w", ts, err)
	}
	return float64(h)*3600 + float64(m)*60 + float64(s) + float64(ms)/1000, nil
}
