package generation

import (
	"context"

	"showrunner/internal/core"
)

// EditResult is the script editor's output.
type EditResult struct {
	Script     string // Edited script text
	Assessment string // Editor's notes on what changed and why
}

// BriefGenerator produces the episode brief from the persona and articles.
type BriefGenerator interface {
	GenerateBrief(ctx context.Context, persona string, articles []core.Article) (string, error)
}

// ScriptGenerator produces the full episode script.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, group core.Group, articles []core.Article) (string, error)
}

// FeedbackGenerator critiques a draft script in the host persona's voice.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, persona, script string) (string, error)
}

// ScriptEditor revises a script toward a target length.
type ScriptEditor interface {
	EditScript(ctx context.Context, script string, targetLength int, editorContext string) (EditResult, error)
}

// MetadataGenerator produces listing metadata for a finished script.
type MetadataGenerator interface {
	GenerateMetadata(ctx context.Context, script string) (core.EpisodeMetadata, error)
}

// Synthesizer converts a script into audio with the assigned voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, script, voice string) (core.AudioArtifact, error)
}

// Publisher pushes a finished episode to hosting platforms.
type Publisher interface {
	Publish(ctx context.Context, episodeID string, platforms []string) ([]core.PublishResult, error)
}

// Collaborators bundles every external generation dependency the coordinator
// drives sequentially.
type Collaborators struct {
	Brief    BriefGenerator
	Script   ScriptGenerator
	Feedback FeedbackGenerator
	Editor   ScriptEditor
	Metadata MetadataGenerator
	Synth    Synthesizer
	Publish  Publisher
}
