// Package summarize produces markdown meeting summaries with categorized
// follow-up items from a transcript, using a Gemini text-generation model.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// SummarizationError indicates the summary service was unavailable or
// returned a malformed response. The summary field is nullable, so this
// degrades the result instead of failing the file.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string { return fmt.Sprintf("summarization: %v", e.Err) }
func (e *SummarizationError) Unwrap() error { return e.Err }

// Summarizer turns a plain-text transcript into a markdown summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

const promptTemplate = `You are an expert meeting and media analyst. Summarize the transcript below.

Requirements:
- Start with a freeform overview of the content (a few sentences or short paragraphs).
- End with a section titled "## Follow-ups" containing a bulleted list of follow-up items.
- Prefix every follow-up bullet with exactly one category tag in square brackets.
- Allowed category tags: %s.
- Use markdown. Do not invent content that is not in the transcript.

Transcript:
---
%s
---`

// generator abstracts the text-generation call for testing.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Gemini is a Summarizer backed by the Gemini API. It rotates through the
// configured API keys when a key is rate limited.
type Gemini struct {
	gen        generator
	categories []string
}

// geminiGenerator is shared across the orchestrator's workers, so the key
// index is guarded.
type geminiGenerator struct {
	apiKeys []string
	model   string

	mu         sync.Mutex
	currentKey int
}

// NewGemini creates a Gemini-backed summarizer. categories is the ordered
// set of recognized follow-up tags.
func NewGemini(apiKeys []string, model string, categories []string) *Gemini {
	return &Gemini{
		gen:        &geminiGenerator{apiKeys: apiKeys, model: model},
		categories: categories,
	}
}

// Summarize sends the transcript to the model and returns validated
// markdown: a freeform overview plus a follow-up list where every bullet
// carries one recognized bracketed category tag.
func (g *Gemini) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", &SummarizationError{Err: fmt.Errorf("empty transcript")}
	}

	prompt := fmt.Sprintf(promptTemplate, tagList(g.categories), transcript)
	raw, err := g.gen.generate(ctx, prompt)
	if err != nil {
		return "", &SummarizationError{Err: err}
	}

	md, err := normalize(raw, g.categories)
	if err != nil {
		return "", &SummarizationError{Err: err}
	}
	return md, nil
}

func (gg *geminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	if len(gg.apiKeys) == 0 {
		return "", fmt.Errorf("no API keys configured")
	}

	attempts := len(gg.apiKeys)
	var lastErr error

	for range attempts {
		key := gg.activeKey()

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			gg.rotateKey()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, gg.model, genai.Text(prompt), nil)
		if err != nil {
			if isQuotaError(err) {
				lastErr = err
				gg.rotateKey()
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
			var text strings.Builder
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				return text.String(), nil
			}
		}
		return "", fmt.Errorf("empty response from model")
	}

	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (gg *geminiGenerator) activeKey() string {
	gg.mu.Lock()
	defer gg.mu.Unlock()
	return gg.apiKeys[gg.currentKey]
}

func (gg *geminiGenerator) rotateKey() {
	gg.mu.Lock()
	gg.currentKey = (gg.currentKey + 1) % len(gg.apiKeys)
	gg.mu.Unlock()
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// normalize validates the model output and canonicalizes follow-up bullets:
// bullets whose bracketed tag is not in categories (or that have no tag)
// are re-prefixed with the first category. A response with no usable text
// is malformed.
func normalize(raw string, categories []string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("blank summary")
	}

	recognized := make(map[string]string, len(categories))
	for _, c := range categories {
		recognized[strings.ToLower(c)] = c
	}

	lines := strings.Split(raw, "\n")
	inFollowups := false
	sawOverview := false
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "##") && strings.Contains(strings.ToLower(trimmed), "follow") {
			inFollowups = true
			out = append(out, line)
			continue
		}

		if !inFollowups {
			if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
				sawOverview = true
			}
			out = append(out, line)
			continue
		}

		if !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "*") {
			out = append(out, line)
			continue
		}

		item := strings.TrimSpace(strings.TrimLeft(trimmed, "-* "))
		tag, rest := splitTag(item)
		if canonical, ok := recognized[strings.ToLower(tag)]; ok {
			out = append(out, fmt.Sprintf("- [%s] %s", canonical, rest))
		} else if len(categories) > 0 {
			out = append(out, fmt.Sprintf("- [%s] %s", categories[0], item))
		} else {
			out = append(out, "- "+item)
		}
	}

	if !sawOverview {
		return "", fmt.Errorf("summary has no overview text")
	}
	return strings.Join(out, "\n"), nil
}

// splitTag splits "[tag] rest" into (tag, rest); returns ("", item) when no
// leading bracket tag is present.
func splitTag(item string) (string, string) {
	if !strings.HasPrefix(item, "[") {
		return "", item
	}
	close := strings.Index(item, "]")
	if close < 1 {
		return "", item
	}
	return item[1:close], strings.TrimSpace(item[close+1:])
}

func tagList(categories []string) string {
	tags := make([]string, len(categories))
	for i, c := range categories {
		tags[i] = "[" + c + "]"
	}
	return strings.Join(tags, ", ")
}
