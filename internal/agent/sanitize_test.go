package agent

import (
	"strings"
	"testing"
)

func TestSanitizeAssistantContent_StripsBalancedThinkBlock(t *testing.T) {
	got := SanitizeAssistantContent("<think>reasoning about the weather</think>Hallo Marlon!", true)
	if got != "Hallo Marlon!" {
		t.Fatalf("got %q, want exact %q", got, "Hallo Marlon!")
	}
}

func TestSanitizeAssistantContent_NoThinkTagSurvives(t *testing.T) {
	for _, got := range []string{
		SanitizeAssistantContent("<think>reasoning</think>Hallo Marlon!", true),
		SanitizeAssistantContent("<think>unterminated reasoning follows the answer", true),
		SanitizeAssistantContent("leftover prose</think>actual answer", true),
	} {
		if strings.Contains(got, "<think>") || strings.Contains(got, "</think>") {
			t.Fatalf("output still contains a think tag: %q", got)
		}
	}
}

func TestSanitizeAssistantContent_UnclosedOpeningTagDropsRest(t *testing.T) {
	got := SanitizeAssistantContent("Antwort zuerst. <think>unfinished chain of thought that never closes", true)
	if got != "Antwort zuerst." {
		t.Fatalf("got %q, want %q", got, "Antwort zuerst.")
	}
}

func TestSanitizeAssistantContent_UnpairedClosingTagDropsPrefix(t *testing.T) {
	got := SanitizeAssistantContent("stray reasoning leak</think>the real answer", true)
	if got != "the real answer" {
		t.Fatalf("got %q, want %q", got, "the real answer")
	}
}

func TestSanitizeAssistantContent_ScrubDisabledPassesThrough(t *testing.T) {
	input := "<think>kept</think>Hallo"
	got := SanitizeAssistantContent(input, false)
	if !strings.Contains(got, "<think>") {
		t.Fatalf("with scrubbing disabled, think tags should survive, got %q", got)
	}
}

func TestSanitizeAssistantContent_DropsLinesWithoutLatinOrGermanChars(t *testing.T) {
	got := SanitizeAssistantContent("Hello there\n你好世界\nGoodbye", true)
	if strings.Contains(got, "你") {
		t.Fatalf("expected the CJK-only line to be dropped, got %q", got)
	}
	if !strings.Contains(got, "Hello there") || !strings.Contains(got, "Goodbye") {
		t.Fatalf("expected Latin lines to survive, got %q", got)
	}
}

func TestSanitizeAssistantContent_PreservesBlankLines(t *testing.T) {
	got := stripThink("Hello there\n\nGoodbye")
	if got != "Hello there\n\nGoodbye" {
		t.Fatalf("expected blank line between Latin lines to survive, got %q", got)
	}
}

func TestSanitizeAssistantContent_EmptyInput(t *testing.T) {
	if got := SanitizeAssistantContent("", true); got != "" {
		t.Fatalf("expected empty passthrough, got %q", got)
	}
}

func TestSanitizeAssistantContent_CollapsesDuplicateParagraphs(t *testing.T) {
	got := SanitizeAssistantContent("The answer is 42.\n\nThe answer is 42.", true)
	if strings.Count(got, "The answer is 42.") != 1 {
		t.Fatalf("expected duplicate paragraph collapsed, got %q", got)
	}
}
