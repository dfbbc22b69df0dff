package openai

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Images generates pictures with the OpenAI images API
type Images struct {
	client *OpenAI
	Model  string
}

// NewImages returns an image generator sharing the provider's credentials
func NewImages(client *OpenAI, model string) *Images {
	return &Images{
		client: client,
		Model:  model,
	}
}

// Generate requests count images of the given size and returns the decoded bytes
func (i *Images) Generate(ctx context.Context, prompt, size string, count int) ([][]byte, error) {
	body := map[string]interface{}{
		"model":  i.Model,
		"prompt": prompt,
		"size":   size,
		"n":      count,
	}
	// dall-e models return URLs unless asked otherwise; gpt-image-1 always
	// returns base64 and rejects the parameter.
	if i.Model != "gpt-image-1" {
		body["response_format"] = "b64_json"
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := i.client.post(ctx, "/images/generations", body, &response); err != nil {
		return nil, err
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no images returned from OpenAI")
	}

	images := make([][]byte, 0, len(response.Data))
	for n, d := range response.Data {
		if d.B64JSON == "" {
			return nil, fmt.Errorf("image %d has no base64 payload", n)
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %d: %w", n, err)
		}
		images = append(images, data)
	}

	return images, nil
}
