package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// WebFetchSkill retrieves a web page and extracts its text content.
type WebFetchSkill struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewWebFetchSkill() *WebFetchSkill {
	return &WebFetchSkill{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

func (t *WebFetchSkill) Name() string { return "web_fetch" }

func (t *WebFetchSkill) Description() string {
	return "Fetches a web page and extracts its text content."
}

func (t *WebFetchSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to fetch",
			},
			"max_length": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum text length (default: 5000)",
			},
		},
		"required": []string{"url"},
	}
}

var (
	htmlTagStripper   = regexp.MustCompile(`(?is)<(script|style|nav|footer|header)[^>]*>.*?</(script|style|nav|footer|header)>`)
	htmlAnyTag        = regexp.MustCompile(`(?s)<[^>]+>`)
	htmlWhitespaceRun = regexp.MustCompile(`[ \t]+`)
)

func (t *WebFetchSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	url, _ := args["url"].(string)
	maxLength := 5000
	if v, ok := args["max_length"].(float64); ok && v > 0 {
		maxLength = int(v)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Sprintf("error fetching %s: %s", url, err), nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; clara-assistant/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("error fetching %s: %s", url, err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Sprintf("error reading response from %s: %s", url, err), nil
	}

	text := extractText(string(body), maxLength)
	return fmt.Sprintf("content from %s:\n\n%s", url, text), nil
}

func extractText(html string, maxLength int) string {
	stripped := htmlTagStripper.ReplaceAllString(html, "")
	stripped = htmlAnyTag.ReplaceAllString(stripped, "\n")
	lines := strings.Split(stripped, "\n")
	var out []string
	for _, l := range lines {
		l = htmlWhitespaceRun.ReplaceAllString(strings.TrimSpace(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	text := strings.Join(out, "\n")
	if len(text) > maxLength {
		text = text[:maxLength] + "\n... (truncated)"
	}
	return text
}
