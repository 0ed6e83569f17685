package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

// ImageThumbnailSkill downsizes an existing generated or workspace image to a
// bounded thumbnail, writing the result alongside the other generated images
// so it can be delivered through the same markdown-sentinel convention as
// create_image.
type ImageThumbnailSkill struct {
	generatedDir string
}

func NewImageThumbnailSkill(generatedDir string) *ImageThumbnailSkill {
	return &ImageThumbnailSkill{generatedDir: generatedDir}
}

func (t *ImageThumbnailSkill) Name() string { return "image_thumbnail" }

func (t *ImageThumbnailSkill) Description() string {
	return "Creates a bounded-size thumbnail of an existing image file and returns it as a markdown image link."
}

func (t *ImageThumbnailSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the source image file",
			},
			"max_dimension": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum width or height in pixels (default: 512)",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ImageThumbnailSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	maxDim := 512
	if v, ok := args["max_dimension"].(float64); ok && v > 0 {
		maxDim = int(v)
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Sprintf("could not open image %q: %s", path, err), nil
	}

	thumb := imaging.Fit(src, maxDim, maxDim, imaging.Lanczos)

	if err := os.MkdirAll(t.generatedDir, 0o755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("thumb_%d.png", time.Now().UnixNano())
	dest := filepath.Join(t.generatedDir, filename)
	if err := imaging.Save(thumb, dest); err != nil {
		return "", err
	}

	return fmt.Sprintf("![thumbnail](/generated/%s)", filename), nil
}
