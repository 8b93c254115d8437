package openai

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	summaryInputLimit = 12000
	keywordInputLimit = 3000
	maxKeywords       = 25
)

const summarySystemPrompt = "You are an assistant that writes faithful, well organized summaries " +
	"of video transcripts. Capture the main topics, claims, and any practical " +
	"recommendations. Write 200-400 words of plain prose."

const keywordSystemPrompt = "You are an assistant that extracts searchable keywords and key phrases " +
	"from text. Respond with a single comma-separated list of 15-25 terms. " +
	"No numbering, no explanations."

// Derive reads a VTT transcript artifact and produces the cleaned transcript
// text, a summary, and a keyword list. A transcript that cleans down to
// nothing yields empty results without error. API failures after retries are
// returned to the caller.
func (c *Client) Derive(ctx context.Context, title, vttPath string) (transcript, summary string, keywords []string, err error) {
	raw, err := os.ReadFile(vttPath)
	if err != nil {
		return "", "", nil, fmt.Errorf("openai: read transcript %s: %w", vttPath, err)
	}

	transcript = CleanVTT(string(raw))
	if transcript == "" {
		return "", "", nil, nil
	}

	summary, err = c.summarize(ctx, title, transcript)
	if err != nil {
		return "", "", nil, err
	}

	source := summary
	if source == "" {
		source = truncate(transcript, keywordInputLimit)
	}
	keywords, err = c.extractKeywords(ctx, title, source)
	if err != nil {
		return "", "", nil, err
	}
	return transcript, summary, keywords, nil
}

func (c *Client) summarize(ctx context.Context, title, transcript string) (string, error) {
	user := fmt.Sprintf("Video title: %s\n\nTranscript:\n%s",
		title, truncate(transcript, summaryInputLimit))
	reply, err := c.chatCompletion(ctx, summarySystemPrompt, user, 800, 0.3)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (c *Client) extractKeywords(ctx context.Context, title, source string) ([]string, error) {
	user := fmt.Sprintf("Video title: %s\n\nText:\n%s", title, source)
	reply, err := c.chatCompletion(ctx, keywordSystemPrompt, user, 300, 0.2)
	if err != nil {
		return nil, err
	}
	return parseKeywords(reply), nil
}

// parseKeywords splits a comma-separated reply into normalized keywords.
// Entries of two characters or fewer and phrases longer than four words are
// dropped, duplicates keep their first position, and the list caps at 25.
func parseKeywords(reply string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(reply, ",") {
		kw := strings.TrimSpace(part)
		kw = strings.Trim(kw, `"'`)
		kw = strings.TrimSpace(kw)
		if len(kw) <= 2 || len(strings.Fields(kw)) > 4 {
			continue
		}
		lower := strings.ToLower(kw)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, kw)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
