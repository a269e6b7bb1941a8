package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

var testCategories = []string{"action", "decision", "question"}

func newTestSummarizer(gen generator) *Gemini {
	return &Gemini{gen: gen, categories: testCategories}
}

func TestSummarizeCanonicalizesTags(t *testing.T) {
	gen := &fakeGenerator{response: `The team discussed the Q3 roadmap and agreed on priorities.

## Follow-ups
- [Action] Ship the beta by Friday.
- [DECISION] Postpone the migration.
- [guess] Something with an unknown tag.
- No tag at all here.`}

	md, err := newTestSummarizer(gen).Summarize(t.Context(), "some transcript")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(md, "- [action] Ship the beta by Friday.") {
		t.Errorf("tag not canonicalized:\n%s", md)
	}
	if !strings.Contains(md, "- [decision] Postpone the migration.") {
		t.Errorf("uppercase tag not canonicalized:\n%s", md)
	}
	if !strings.Contains(md, "- [action] [guess] Something with an unknown tag.") {
		t.Errorf("unknown tag not re-prefixed:\n%s", md)
	}
	if !strings.Contains(md, "- [action] No tag at all here.") {
		t.Errorf("untagged bullet not prefixed:\n%s", md)
	}
}

func TestSummarizePromptNamesCategories(t *testing.T) {
	gen := &fakeGenerator{response: "Overview text.\n\n## Follow-ups\n- [action] x"}
	if _, err := newTestSummarizer(gen).Summarize(t.Context(), "transcript"); err != nil {
		t.Fatal(err)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(gen.prompts))
	}
	for _, c := range testCategories {
		if !strings.Contains(gen.prompts[0], "["+c+"]") {
			t.Errorf("prompt missing category tag [%s]", c)
		}
	}
	if !strings.Contains(gen.prompts[0], "transcript") {
		t.Error("prompt missing transcript body")
	}
}

func TestSummarizeServiceError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("service unavailable")}
	_, err := newTestSummarizer(gen).Summarize(t.Context(), "transcript")
	var se *SummarizationError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SummarizationError, got %v", err)
	}
}

func TestSummarizeMalformedResponse(t *testing.T) {
	cases := map[string]string{
		"blank":        "",
		"whitespace":   "   \n  ",
		"headers_only": "# Title\n## Follow-ups\n- [action] x",
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			gen := &fakeGenerator{response: resp}
			_, err := newTestSummarizer(gen).Summarize(t.Context(), "transcript")
			var se *SummarizationError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SummarizationError, got %v", err)
			}
		})
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	gen := &fakeGenerator{response: "should not be called"}
	_, err := newTestSummarizer(gen).Summarize(t.Context(), "   ")
	var se *SummarizationError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SummarizationError, got %v", err)
	}
	if len(gen.prompts) != 0 {
		t.Error("generator must not be called for empty transcript")
	}
}

func TestKeyRotationConcurrent(t *testing.T) {
	keys := []string{"k0", "k1", "k2"}
	gg := &geminiGenerator{apiKeys: keys, model: "m"}
	valid := map[string]bool{}
	for _, k := range keys {
		valid[k] = true
	}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if k := gg.activeKey(); !valid[k] {
					errs <- k
					return
				}
				gg.rotateKey()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for k := range errs {
		t.Errorf("activeKey returned invalid key %q", k)
	}
	if idx := gg.currentKey; idx < 0 || idx >= len(keys) {
		t.Errorf("currentKey = %d, out of range", idx)
	}
}

func TestSplitTag(t *testing.T) {
	tag, rest := splitTag("[action] do the thing")
	if tag != "action" || rest != "do the thing" {
		t.Errorf("splitTag = (%q, %q)", tag, rest)
	}
	tag, rest = splitTag("no brackets")
	if tag != "" || rest != "no brackets" {
		t.Errorf("splitTag = (%q, %q)", tag, rest)
	}
}
