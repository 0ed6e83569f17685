package agent

import (
	"regexp"
	"strings"
)

// SanitizeAssistantContent cleans an LLM's raw text before it is saved to
// session history and delivered to a channel. thinkScrub gates the
// think-block heuristic (config: agents.defaults.think_scrub, default true) — the
// heuristic can drop legitimate non-Latin content, so callers that serve a
// CJK-primary audience may want it off.
func SanitizeAssistantContent(content string, thinkScrub bool) string {
	if content == "" {
		return content
	}
	if thinkScrub {
		content = stripThink(content)
	}
	content = stripFinalTags(content)
	content = collapseConsecutiveDuplicateBlocks(content)
	return strings.TrimSpace(content)
}

var (
	balancedThinkPattern = regexp.MustCompile(`(?is)<think>.*?</think>`)
	openThinkTag         = regexp.MustCompile(`(?i)<think>`)
	closeThinkTag        = regexp.MustCompile(`(?i)</think>`)
	wordCharPattern      = regexp.MustCompile(`[a-zA-Z0-9äöüÄÖÜß]`)
)

// stripThink reproduces the source's exact think-block removal heuristic:
// strip balanced pairs, drop a trailing unclosed opening tag and everything
// after it, drop everything up to and including a trailing unpaired closing
// tag, then drop lines with no Latin or German letter/digit at all.
func stripThink(content string) string {
	content = balancedThinkPattern.ReplaceAllString(content, "")

	if loc := lastIndex(openThinkTag, content); loc != nil {
		content = content[:loc[0]]
	}
	if loc := lastIndex(closeThinkTag, content); loc != nil {
		content = content[loc[1]:]
	}

	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || wordCharPattern.MatchString(trimmed) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// lastIndex returns the [start,end) byte range of the last match of re in s,
// or nil if re does not match.
func lastIndex(re *regexp.Regexp, s string) []int {
	all := re.FindAllStringIndex(s, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// stripFinalTags removes <final>/</final> wrapper tags some models emit
// while keeping the content inside them.
var finalTagPattern = regexp.MustCompile(`(?i)<\s*/?\s*final\s*>`)

func stripFinalTags(content string) string {
	if !strings.Contains(strings.ToLower(content), "final") {
		return content
	}
	return finalTagPattern.ReplaceAllString(content, "")
}

// collapseConsecutiveDuplicateBlocks drops a paragraph block that exactly
// repeats the one before it — a pattern some models fall into under
// retry/continuation pressure.
func collapseConsecutiveDuplicateBlocks(content string) string {
	blocks := strings.Split(content, "\n\n")
	if len(blocks) <= 1 {
		return content
	}
	result := make([]string, 0, len(blocks))
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if len(result) > 0 && trimmed == strings.TrimSpace(result[len(result)-1]) {
			continue
		}
		result = append(result, block)
	}
	return strings.Join(result, "\n\n")
}
