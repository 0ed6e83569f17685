package agent

import (
	"strings"
	"testing"
)

func TestExtractImages_NoMatch(t *testing.T) {
	cleaned, images := extractImages("just plain text, no images here")
	if cleaned != "just plain text, no images here" {
		t.Fatalf("unexpected cleaned text: %q", cleaned)
	}
	if images != nil {
		t.Fatalf("expected no images, got %+v", images)
	}
}

func TestExtractImages_SingleMatch(t *testing.T) {
	text := "Here is your picture: ![a red cat](/generated/cat123.png) enjoy!"
	cleaned, images := extractImages(text)
	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}
	if images[0].Src != "/generated/cat123.png" || images[0].Alt != "a red cat" {
		t.Fatalf("unexpected image event: %+v", images[0])
	}
	if cleaned == text {
		t.Fatalf("expected markdown to be replaced with a placeholder")
	}
	if strings.Contains(cleaned, "/generated/") {
		t.Fatalf("expected generated path to be scrubbed from cleaned text, got %q", cleaned)
	}
}

func TestExtractImages_MultipleMatches(t *testing.T) {
	text := "![one](/generated/a.png) and ![two](/generated/b.png)"
	cleaned, images := extractImages(text)
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d: %+v", len(images), images)
	}
	if strings.Contains(cleaned, "![") {
		t.Fatalf("expected all markdown image refs to be replaced, got %q", cleaned)
	}
}
