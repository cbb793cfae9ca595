package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"showrunner/internal/core"
	"showrunner/internal/generation"
)

// Writer implements the text-generation collaborators (brief, script,
// feedback, edit, metadata) on top of the Gemini client.
type Writer struct {
	client *Client
}

// NewWriter creates the text-generation collaborator set.
func NewWriter(client *Client) *Writer {
	return &Writer{client: client}
}

const briefPromptTemplate = `You are the producer for a podcast hosted by the following persona:

%s

Write a short episode brief (under 300 words) covering these articles. Focus on the through-line connecting them and what the host should emphasize.

Articles:
%s`

// GenerateBrief implements generation.BriefGenerator.
func (w *Writer) GenerateBrief(ctx context.Context, persona string, articles []core.Article) (string, error) {
	prompt := fmt.Sprintf(briefPromptTemplate, persona, formatArticles(articles))
	return w.client.GenerateText(ctx, prompt, TextGenerationOptions{
		Temperature: 0.7,
		MaxTokens:   1024,
	})
}

const scriptPromptTemplate = `Write a complete podcast episode script for the channel "%s".

Channel description: %s
Host persona: %s

Cover the following articles as one coherent episode with an introduction, smooth transitions, and a closing. Write spoken prose only, no stage directions or markdown.

Articles:
%s`

// GenerateScript implements generation.ScriptGenerator.
func (w *Writer) GenerateScript(ctx context.Context, group core.Group, articles []core.Article) (string, error) {
	prompt := fmt.Sprintf(scriptPromptTemplate, group.Name, group.Description, group.Persona, formatArticles(articles))
	return w.client.GenerateText(ctx, prompt, TextGenerationOptions{
		Temperature: 0.7,
		MaxTokens:   8192,
	})
}

const feedbackPromptTemplate = `You are the following podcast host persona reviewing a draft script of your own episode:

%s

Give concise feedback (under 200 words) on pacing, clarity, and tone. Point at specific passages.

Script:
%s`

// GenerateFeedback implements generation.FeedbackGenerator.
func (w *Writer) GenerateFeedback(ctx context.Context, persona, script string) (string, error) {
	prompt := fmt.Sprintf(feedbackPromptTemplate, persona, script)
	return w.client.GenerateText(ctx, prompt, TextGenerationOptions{
		Temperature: 0.7,
		MaxTokens:   1024,
	})
}

func editSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"script": {
				Type:        genai.TypeString,
				Description: "The full edited script",
			},
			"assessment": {
				Type:        genai.TypeString,
				Description: "Short assessment of the edits made",
			},
		},
		Required: []string{"script", "assessment"},
	}
}

const editPromptTemplate = `Edit the following podcast script to roughly %d words while preserving its voice and factual content.

Editor context: %s

Script:
%s`

// EditScript implements generation.ScriptEditor.
func (w *Writer) EditScript(ctx context.Context, script string, targetLength int, editorContext string) (generation.EditResult, error) {
	prompt := fmt.Sprintf(editPromptTemplate, targetLength, editorContext, script)
	response, err := w.client.GenerateText(ctx, prompt, TextGenerationOptions{
		Temperature:    0.4,
		MaxTokens:      8192,
		ResponseSchema: editSchema(),
	})
	if err != nil {
		return generation.EditResult{}, err
	}

	var parsed struct {
		Script     string `json:"script"`
		Assessment string `json:"assessment"`
	}
	if err := json.Unmarshal([]byte(stripFences(response)), &parsed); err != nil {
		return generation.EditResult{}, fmt.Errorf("failed to parse edit response: %w", err)
	}
	return generation.EditResult{Script: parsed.Script, Assessment: parsed.Assessment}, nil
}

func metadataSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString, Description: "Episode title"},
			"description": {Type: genai.TypeString, Description: "Listing description, 2-3 sentences"},
			"tags":        {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"keywords":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"category":    {Type: genai.TypeString, Description: "Podcast directory category"},
		},
		Required: []string{"title", "description", "tags", "keywords", "category"},
	}
}

const metadataPromptTemplate = `Generate listing metadata for a podcast episode with this script:

%s`

// GenerateMetadata implements generation.MetadataGenerator.
func (w *Writer) GenerateMetadata(ctx context.Context, script string) (core.EpisodeMetadata, error) {
	prompt := fmt.Sprintf(metadataPromptTemplate, script)
	response, err := w.client.GenerateText(ctx, prompt, TextGenerationOptions{
		Temperature:    0.5,
		MaxTokens:      1024,
		ResponseSchema: metadataSchema(),
	})
	if err != nil {
		return core.EpisodeMetadata{}, err
	}

	var metadata core.EpisodeMetadata
	if err := json.Unmarshal([]byte(stripFences(response)), &metadata); err != nil {
		return core.EpisodeMetadata{}, fmt.Errorf("failed to parse metadata response: %w", err)
	}
	return metadata, nil
}

func formatArticles(articles []core.Article) string {
	var sb strings.Builder
	for i, article := range articles {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, article.Title)
		if article.Classification.Summary != "" {
			fmt.Fprintf(&sb, "   %s\n", article.Classification.Summary)
		}
		if len(article.Classification.Tags) > 0 {
			fmt.Fprintf(&sb, "   Tags: %s\n", strings.Join(article.Classification.Tags, ", "))
		}
	}
	return sb.String()
}

func stripFences(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
