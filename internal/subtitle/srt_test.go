package subtitle

import (
	"math"
	"strings"
	"testing"

	"github.com/avscribe/av-engine/internal/merge"
)

func TestTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.001, "00:01:01,001"},
		{3599.999, "00:59:59,999"},
		{3661.042, "01:01:01,042"},
		{7325.5, "02:02:05,500"},
		{-1, "00:00:00,000"},
	}
	for _, c := range cases {
		if got := Timestamp(c.seconds); got != c.want {
			t.Errorf("Timestamp(%v) = %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestFormatSRT(t *testing.T) {
	segments := []merge.Segment{
		{Speaker: "SPEAKER_00", Start: 0, End: 2.5, Text: "Hello there."},
		{Speaker: "SPEAKER_01", Start: 2.5, End: 5, Text: "General Kenobi."},
	}

	plain := FormatSRT(segments, false)
	if strings.Contains(plain, "[SPEAKER_00]") {
		t.Error("plain output must not contain speaker prefixes")
	}
	if !strings.Contains(plain, "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n") {
		t.Errorf("unexpected plain output:\n%s", plain)
	}

	labeled := FormatSRT(segments, true)
	if !strings.Contains(labeled, "[SPEAKER_00] Hello there.") {
		t.Errorf("labeled output missing prefix:\n%s", labeled)
	}
	if !strings.Contains(labeled, "[SPEAKER_01] General Kenobi.") {
		t.Errorf("labeled output missing second prefix:\n%s", labeled)
	}
}

func TestFormatSRTEmptySegments(t *testing.T) {
	if got := FormatSRT(nil, true); got != "" {
		t.Errorf("FormatSRT(nil) = %q, want empty string", got)
	}
}

func TestFormatSRTNullSpeakerOmitsPrefix(t *testing.T) {
	segments := []merge.Segment{{Start: 0, End: 1, Text: "unattributed"}}
	got := FormatSRT(segments, true)
	if strings.Contains(got, "[") {
		t.Errorf("unattributed cue must have no bracket prefix:\n%s", got)
	}
	if !strings.Contains(got, "unattributed") {
		t.Errorf("cue text missing:\n%s", got)
	}
}

func TestSRTRoundTrip(t *testing.T) {
	segments := []merge.Segment{
		{Speaker: "A", Start: 0.004, End: 2.499, Text: "first"},
		{Speaker: "B", Start: 2.5, End: 10.123, Text: "second"},
		{Start: 10.2, End: 3671.042, Text: "third"},
	}

	cues, err := ParseSRT(FormatSRT(segments, true))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(cues) != len(segments) {
		t.Fatalf("cue count = %d, want %d", len(cues), len(segments))
	}
	for i, c := range cues {
		if c.Index != i+1 {
			t.Errorf("cue %d index = %d, want %d", i, c.Index, i+1)
		}
		if math.Abs(c.Start-segments[i].Start) > 0.01 {
			t.Errorf("cue %d start = %v, want %v within 10ms", i, c.Start, segments[i].Start)
		}
		if math.Abs(c.End-segments[i].End) > 0.01 {
			t.Errorf("cue %d end = %v, want %v within 10ms", i, c.End, segments[i].End)
		}
		if c.Speaker != segments[i].Speaker {
			t.Errorf("cue %d speaker = %q, want %q", i, c.Speaker, segments[i].Speaker)
		}
		if c.Text != segments[i].Text {
			t.Errorf("cue %d text = %q, want %q", i, c.Text, segments[i].Text)
		}
	}
}

func TestParseSRTEmpty(t *testing.T) {
	cues, err := ParseSRT("")
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(cues) != 0 {
		t.Errorf("cues = %d, want 0", len(cues))
	}
}

func TestParseSRTMalformed(t *testing.T) {
	if _, err := ParseSRT("1\nnot a timestamp\ntext\n"); err == nil {
		t.Error("expected error for malformed time range")
	}
	if _, err := ParseSRT("x\n00:00:00,000 --> 00:00:01,000\ntext\n"); err == nil {
		t.Error("expected error for non-numeric index")
	}
}
