// Package gemini adapts the Google GenAI SDK to the generator and embedder
// interfaces.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"

	// A rewritten query is two short term lists.
	maxOutputTokens = 512
)

// modelsAPI is the part of genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client holds one Gemini API connection shared by the generator and the
// embedder.
type Client struct {
	models modelsAPI
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{models: client.Models}, nil
}

// Generator returns a text generator for model, or the default model when empty.
func (c *Client) Generator(model string) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Generator{
		models:    c.models,
		modelName: model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0.2),
			CandidateCount:  1,
			MaxOutputTokens: maxOutputTokens,
		},
	}
}

// Embedder returns an embedder for model, or the default model when empty.
func (c *Client) Embedder(model string) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	return &Embedder{models: c.models, modelName: model}
}

// Generator produces query rewrites with a Gemini chat model.
type Generator struct {
	models    modelsAPI
	modelName string
	config    *genai.GenerateContentConfig
}

func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	client, err := NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return client.Generator(model), nil
}

func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := responseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

// responseText joins the non-blank text parts of every candidate, one per line.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var parts []string
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}

	return strings.Join(parts, "\n")
}
