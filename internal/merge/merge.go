// Package merge aligns ASR transcript segments with diarization speaker
// turns into a single ordered transcript.
package merge

import (
	"github.com/avscribe/av-engine/internal/diarize"
	"github.com/avscribe/av-engine/internal/transcribe"
)

// Policy controls speaker assignment for transcript segments that overlap
// no diarization turn.
type Policy string

const (
	// PolicyNone leaves unmatched segments with no speaker label.
	PolicyNone Policy = "none"
	// PolicyCarry reuses the previous merged segment's speaker.
	PolicyCarry Policy = "carry"
)

// Segment is one merged transcript record. Speaker is empty when
// diarization is disabled or no turn could be attributed.
type Segment struct {
	Speaker string  `json:"speaker,omitempty"`
	Start   float64 `json:"start_time"`
	End     float64 `json:"end_time"`
	Text    string  `json:"text"`
}

// Transcript is the JSON document persisted in the
// transcript_with_speakers column.
type Transcript struct {
	Speakers []Segment `json:"speakers"`
}

// Merge assigns each transcript segment the speaker of the turn with
// maximum temporal overlap, breaking ties toward the earliest-starting
// turn. The merge is total: every input segment yields exactly one output
// segment, in input order. With no turns every speaker label is empty.
func Merge(segments []transcribe.Segment, turns []diarize.Turn, policy Policy) []Segment {
	merged := make([]Segment, 0, len(segments))
	prev := ""
	for _, seg := range segments {
		speaker := assignSpeaker(seg, turns)
		if speaker == "" && policy == PolicyCarry {
			speaker = prev
		}
		if speaker != "" {
			prev = speaker
		}
		merged = append(merged, Segment{
			Speaker: speaker,
			Start:   seg.Start,
			End:     seg.End,
			Text:    seg.Text,
		})
	}
	return merged
}

// assignSpeaker picks the turn with maximum overlap against [seg.Start,
// seg.End). Turns are ordered by start time, so scanning in order and
// requiring a strict improvement resolves ties to the earliest turn.
func assignSpeaker(seg transcribe.Segment, turns []diarize.Turn) string {
	best := ""
	bestOverlap := 0.0
	for _, turn := range turns {
		if turn.Start >= seg.End {
			break
		}
		ov := overlap(seg.Start, seg.End, turn.Start, turn.End)
		if ov > bestOverlap {
			bestOverlap = ov
			best = turn.Speaker
		}
	}
	return best
}

// overlap returns the length of the intersection of [aStart,aEnd) and
// [bStart,bEnd), zero when disjoint.
func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// SpeakerCount returns the number of distinct non-empty speaker labels.
func SpeakerCount(segments []Segment) int {
	seen := make(map[string]bool)
	for _, s := range segments {
		if s.Speaker != "" {
			seen[s.Speaker] = true
		}
	}
	return len(seen)
}

// PlainText joins the merged segment texts into the full transcript text,
// separated by single spaces.
func PlainText(segments []Segment) string {
	total := 0
	for _, s := range segments {
		total += len(s.Text) + 1
	}
	buf := make([]byte, 0, total)
	for i, s := range segments {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}
