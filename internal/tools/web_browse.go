package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// WebBrowseSkill drives a headless browser to visit a page and read its
// rendered text, for pages that need JavaScript execution (unlike
// WebFetchSkill's plain HTTP GET).
type WebBrowseSkill struct {
	launcherTimeout time.Duration
}

func NewWebBrowseSkill() *WebBrowseSkill {
	return &WebBrowseSkill{launcherTimeout: 20 * time.Second}
}

func (t *WebBrowseSkill) Name() string { return "web_browse" }

func (t *WebBrowseSkill) Description() string {
	return "Opens a page in a headless browser and returns its rendered text, for pages that require JavaScript."
}

func (t *WebBrowseSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to visit",
			},
			"wait_selector": map[string]interface{}{
				"type":        "string",
				"description": "Optional CSS selector to wait for before reading the page",
			},
		},
		"required": []string{"url"},
	}
}

func (t *WebBrowseSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	url, _ := args["url"].(string)
	waitSelector, _ := args["wait_selector"].(string)

	runCtx, cancel := context.WithTimeout(ctx, t.launcherTimeout)
	defer cancel()

	browser := rod.New().Context(runCtx)
	if err := browser.Connect(); err != nil {
		return fmt.Sprintf("error launching browser: %s", err), nil
	}
	defer browser.Close()

	page, err := browser.Page(rod.PageInfo{URL: url})
	if err != nil {
		return fmt.Sprintf("error opening %s: %s", url, err), nil
	}
	defer page.Close()

	if waitSelector != "" {
		if el, err := page.Element(waitSelector); err == nil {
			_ = el.WaitVisible()
		}
	}

	html, err := page.HTML()
	if err != nil {
		return fmt.Sprintf("error reading %s: %s", url, err), nil
	}

	text := strings.TrimSpace(extractText(html, 8000))
	if text == "" {
		return fmt.Sprintf("no visible text content found at %s", url), nil
	}
	return fmt.Sprintf("rendered content from %s:\n\n%s", url, text), nil
}
