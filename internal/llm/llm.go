package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model used when none is configured.
	DefaultModel = "gemini-flash-lite-latest"
)

// Client represents a client for interacting with an LLM.
type Client struct {
	apiKey    string
	modelName string
	gClient   *genai.Client
}

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	MaxTokens      int32         // Maximum number of tokens to generate
	Temperature    float32       // Temperature for randomness (0.0 to 1.0)
	Model          string        // Model to use (optional, defaults to client's model)
	ResponseSchema *genai.Schema // Optional: schema for structured output
}

// NewClient creates a new LLM client.
// It supports multiple ways to get the API key (in order of preference):
// 1. Environment variable: GEMINI_API_KEY (or alternatives)
// 2. Viper configuration: ai.gemini.api_key
func NewClient(modelName string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("ai.gemini.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}

	if modelName == "" {
		modelName = DefaultModel
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		apiKey:    apiKey,
		modelName: modelName,
		gClient:   gClient,
	}, nil
}

// GenerateText generates text with optional structured output.
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	modelName := c.modelName
	if options.Model != "" {
		modelName = options.Model
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	var config *genai.GenerateContentConfig
	if options.MaxTokens > 0 || options.Temperature > 0 || options.ResponseSchema != nil {
		config = &genai.GenerateContentConfig{}
		if options.MaxTokens > 0 {
			config.MaxOutputTokens = options.MaxTokens
		}
		if options.Temperature > 0 {
			temp := options.Temperature
			config.Temperature = &temp
		}
		if options.ResponseSchema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = options.ResponseSchema
		}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from LLM")
	}
	return text, nil
}

// GetModelName returns the configured model name.
func (c *Client) GetModelName() string {
	return c.modelName
}
