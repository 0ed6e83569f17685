package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/clara/internal/providers"
)

// credentialProvider is a narrow interface for providers that expose API credentials.
type credentialProvider interface {
	APIKey() string
	APIBase() string
}

var imageGenProviderPriority = []string{"openrouter", "gemini", "openai"}

var imageGenModelDefaults = map[string]string{
	"openrouter": "google/gemini-2.5-flash-image",
	"openai":     "dall-e-3",
	"gemini":     "gemini-2.0-flash-exp",
}

// CreateImageSkill generates images via an OpenAI-compatible image generation
// endpoint and writes them under generatedDir. The tool result carries a
// markdown image sentinel (`![alt](/generated/<filename>)`) rather than a raw
// path — the orchestrator is the one place that knows how to extract and
// deliver that sentinel to the channel (see internal/agent/images.go).
type CreateImageSkill struct {
	registry     *providers.Registry
	generatedDir string
}

func NewCreateImageSkill(registry *providers.Registry, generatedDir string) *CreateImageSkill {
	return &CreateImageSkill{registry: registry, generatedDir: generatedDir}
}

func (t *CreateImageSkill) Name() string { return "create_image" }

func (t *CreateImageSkill) Description() string {
	return "Generates an image from a text description and returns it as a markdown image link."
}

func (t *CreateImageSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "Text description of the image to generate.",
			},
			"aspect_ratio": map[string]interface{}{
				"type":        "string",
				"description": "Aspect ratio: '1:1' (default), '3:4', '4:3', '9:16', '16:9'.",
			},
		},
		"required": []string{"prompt"},
	}
}

func (t *CreateImageSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return "prompt is required", nil
	}
	aspectRatio, _ := args["aspect_ratio"].(string)
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}

	providerName, model := t.resolveProvider()
	p, err := t.registry.Get(providerName)
	if err != nil {
		return fmt.Sprintf("image generation provider %q not available", providerName), nil
	}
	cp, ok := p.(credentialProvider)
	if !ok {
		return fmt.Sprintf("provider %q does not expose API credentials for image generation", providerName), nil
	}

	imageBytes, err := t.callImageGenAPI(ctx, cp.APIKey(), cp.APIBase(), model, prompt, aspectRatio)
	if err != nil {
		return fmt.Sprintf("image generation failed: %v", err), nil
	}

	if err := os.MkdirAll(t.generatedDir, 0o755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("gen_%d.png", time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(t.generatedDir, filename), imageBytes, 0o644); err != nil {
		return "", err
	}

	alt := prompt
	if len(alt) > 80 {
		alt = alt[:80] + "..."
	}
	return fmt.Sprintf("![%s](/generated/%s)", alt, filename), nil
}

func (t *CreateImageSkill) resolveProvider() (providerName, model string) {
	for _, name := range imageGenProviderPriority {
		if _, err := t.registry.Get(name); err == nil {
			providerName = name
			break
		}
	}
	if providerName == "" {
		providerName = "openrouter"
	}
	model = imageGenModelDefaults[providerName]
	return providerName, model
}

func (t *CreateImageSkill) callImageGenAPI(ctx context.Context, apiKey, apiBase, model, prompt, aspectRatio string) ([]byte, error) {
	body := map[string]interface{}{
		"model": model,
		"messages": []map[string]interface{}{
			{"role": "user", "content": prompt},
		},
		"modalities": []string{"image", "text"},
	}
	if aspectRatio != "" && aspectRatio != "1:1" {
		body["image_config"] = map[string]interface{}{"aspect_ratio": aspectRatio}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(apiBase, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, truncateBytes(respBody, 500))
	}
	return parseImageResponse(respBody)
}

func parseImageResponse(respBody []byte) ([]byte, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content interface{} `json:"content"`
				Images  []struct {
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"images"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	for _, img := range msg.Images {
		if imageBytes, err := decodeDataURL(img.ImageURL.URL); err == nil {
			return imageBytes, nil
		}
	}
	if parts, ok := msg.Content.([]interface{}); ok {
		for _, part := range parts {
			m, ok := part.(map[string]interface{})
			if !ok || m["type"] != "image_url" {
				continue
			}
			if imgURL, ok := m["image_url"].(map[string]interface{}); ok {
				if url, ok := imgURL["url"].(string); ok {
					if imageBytes, err := decodeDataURL(url); err == nil {
						return imageBytes, nil
					}
				}
			}
		}
	}
	return nil, fmt.Errorf("no image data found in response")
}

func decodeDataURL(dataURL string) ([]byte, error) {
	idx := strings.Index(dataURL, ";base64,")
	if idx < 0 {
		return nil, fmt.Errorf("not a base64 data URL")
	}
	return base64.StdEncoding.DecodeString(dataURL[idx+8:])
}

func truncateBytes(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
