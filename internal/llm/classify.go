package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"showrunner/internal/core"
	"showrunner/internal/review"
)

// TierClassifier adapts the Gemini client to the review.Classifier contract.
// The light and heavy tiers are two instances of this type pointed at
// different models; the contract is identical.
type TierClassifier struct {
	client *Client
	model  func() string // Resolved per call so model edits hot-reload
}

// NewTierClassifier creates a classifier tier. model is consulted on every
// call, which is what makes the light/heavy model identifiers reloadable.
func NewTierClassifier(client *Client, model func() string) *TierClassifier {
	return &TierClassifier{client: client, model: model}
}

// classificationSchema constrains the model to the router's output contract.
func classificationSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"topic": {
				Type:        genai.TypeString,
				Description: "Broad topic label for the article",
			},
			"subject": {
				Type:        genai.TypeString,
				Description: "One-line statement of the specific subject",
			},
			"tags": {
				Type:        genai.TypeArray,
				Description: "Up to 5 short topical tags",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"summary": {
				Type:        genai.TypeString,
				Description: "Summary of at most 500 characters",
			},
			"importance": {
				Type:        genai.TypeInteger,
				Description: "Importance rank from 1 (routine) to 10 (breaking)",
			},
			"confidence": {
				Type:        genai.TypeNumber,
				Description: "Classification confidence from 0.0 to 1.0",
			},
		},
		Required: []string{"topic", "subject", "tags", "summary", "importance", "confidence"},
	}
}

const classifyPromptTemplate = `Classify the following article for a podcast editorial pipeline.

Title: %s

Content:
%s

%sReturn the topic, a one-line subject, up to 5 tags, a summary of at most 500 characters, an importance rank from 1 to 10, and your confidence from 0.0 to 1.0.`

// Classify implements review.Classifier.
func (t *TierClassifier) Classify(ctx context.Context, input review.Input) (core.Classification, error) {
	var metaSection string
	if len(input.Metadata) > 0 {
		var sb strings.Builder
		sb.WriteString("Metadata:\n")
		for key, value := range input.Metadata {
			fmt.Fprintf(&sb, "- %s: %s\n", key, value)
		}
		sb.WriteString("\n")
		metaSection = sb.String()
	}

	prompt := fmt.Sprintf(classifyPromptTemplate, input.Title, input.Text, metaSection)

	response, err := t.client.GenerateText(ctx, prompt, TextGenerationOptions{
		Temperature:    0.3,
		MaxTokens:      1500,
		Model:          t.model(),
		ResponseSchema: classificationSchema(),
	})
	if err != nil {
		return core.Classification{}, fmt.Errorf("failed to classify article: %w", err)
	}

	var parsed struct {
		Topic      string   `json:"topic"`
		Subject    string   `json:"subject"`
		Tags       []string `json:"tags"`
		Summary    string   `json:"summary"`
		Importance int      `json:"importance"`
		Confidence float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFences(response)), &parsed); err != nil {
		return core.Classification{}, fmt.Errorf("failed to parse classification response: %w", err)
	}

	return core.Classification{
		Topic:      parsed.Topic,
		Subject:    parsed.Subject,
		Tags:       parsed.Tags,
		Summary:    parsed.Summary,
		Importance: parsed.Importance,
		Confidence: parsed.Confidence,
	}, nil
}
