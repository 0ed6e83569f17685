package agent

import "regexp"

// generatedImagePattern matches the markdown image sentinel tool outputs use
// to reference a locally-served generated file, e.g. "![a cat](/generated/cat.png)".
var generatedImagePattern = regexp.MustCompile(`!\[([^\]]*)\]\((/generated/[^)]+)\)`)

// extractImages pulls every generated-image markdown reference out of a tool
// result, returning the cleaned text (each match replaced by a short
// placeholder so the model doesn't try to re-emit the markdown itself) and
// the list of images the caller must forward as separate image events.
func extractImages(text string) (string, []ImageEvent) {
	matches := generatedImagePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text, nil
	}
	images := make([]ImageEvent, 0, len(matches))
	for _, m := range matches {
		images = append(images, ImageEvent{Alt: m[1], Src: m[2]})
	}
	cleaned := generatedImagePattern.ReplaceAllString(text, "[image attached]")
	return cleaned, images
}
