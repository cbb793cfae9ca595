// Package generation drives one full episode generation run under per-group
// mutual exclusion and the cooperative production flag.
package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/collections"
	"showrunner/internal/config"
	"showrunner/internal/core"
	"showrunner/internal/logger"
	"showrunner/internal/metrics"
)

// Outcome statuses for one generation attempt.
const (
	OutcomeCompleted = "completed"
	OutcomeLocked    = "locked" // Another run in flight; a normal skip, not an error
	OutcomeFailed    = "failed"
)

// Outcome describes how a generation attempt ended.
type Outcome struct {
	Status    string
	EpisodeID string
	Reason    string
}

// Store is the slice of the relational store the coordinator needs.
type Store interface {
	GetGroup(ctx context.Context, id string) (*core.Group, error)
	CreateEpisode(ctx context.Context, episode *core.Episode) error
	UpdateEpisode(ctx context.Context, episode *core.Episode) error
	RecentArticles(ctx context.Context, groupID string, limit int) ([]core.Article, error)
}

// Lifecycle is the slice of the collection lifecycle manager the coordinator
// drives.
type Lifecycle interface {
	Snapshot(ctx context.Context, collectionID, episodeID string) (*collections.SnapshotView, error)
	MarkUsed(ctx context.Context, collectionID string) error
	GetReadyCollections(ctx context.Context, groupID string) ([]core.Collection, error)
}

// Coordinator runs the generation protocol for one request at a time.
type Coordinator struct {
	store     Store
	lifecycle Lifecycle
	locker    *Locker
	collab    Collaborators
	recorder  *metrics.Recorder
	policy    func() config.Policy

	platforms    []string
	targetLength int
	textTimeout  time.Duration
	audioTimeout time.Duration
}

// Options carries the non-hot-reloadable coordinator settings.
type Options struct {
	Platforms    []string      // Hosting platforms to publish to
	TargetLength int           // Editor's target script length in words
	TextTimeout  time.Duration // Per-call deadline for text collaborators
	AudioTimeout time.Duration // Per-call deadline for synthesis
}

// NewCoordinator creates a generation coordinator.
func NewCoordinator(store Store, lifecycle Lifecycle, locker *Locker, collab Collaborators,
	recorder *metrics.Recorder, policy func() config.Policy, opts Options) *Coordinator {

	if opts.TextTimeout <= 0 {
		opts.TextTimeout = 5 * time.Minute
	}
	if opts.AudioTimeout <= 0 {
		opts.AudioTimeout = 30 * time.Minute
	}
	if opts.TargetLength <= 0 {
		opts.TargetLength = 1500
	}
	return &Coordinator{
		store:        store,
		lifecycle:    lifecycle,
		locker:       locker,
		collab:       collab,
		recorder:     recorder,
		policy:       policy,
		platforms:    opts.Platforms,
		targetLength: opts.TargetLength,
		textTimeout:  opts.TextTimeout,
		audioTimeout: opts.AudioTimeout,
	}
}

// Run executes one full generation attempt for a request. The per-group lock
// and the production flag are released on every exit path.
func (c *Coordinator) Run(ctx context.Context, request *core.GenerationRequest) (Outcome, error) {
	policy := c.policy()
	start := time.Now()

	release, acquired, err := c.locker.AcquireGroup(ctx, request.GroupID, policy.GroupLockTTL)
	if err != nil {
		// Fail closed: an unreachable lock primitive blocks generation.
		return Outcome{Status: OutcomeFailed, Reason: "lock store unreachable"}, err
	}
	if !acquired {
		logger.Debug("Group locked, skipping attempt", "group", request.GroupID)
		return Outcome{Status: OutcomeLocked, Reason: "another run in flight"}, nil
	}
	defer release()

	group, err := c.store.GetGroup(ctx, request.GroupID)
	if err != nil {
		return Outcome{Status: OutcomeFailed, Reason: "unknown group"}, err
	}

	// Draft episode gives every later stage a stable identifier.
	episode := &core.Episode{
		ID:          uuid.NewString(),
		GroupID:     group.ID,
		Status:      core.EpisodeDraft,
		DateCreated: time.Now().UTC(),
	}
	if err := c.store.CreateEpisode(ctx, episode); err != nil {
		return Outcome{Status: OutcomeFailed, Reason: "failed to create draft episode"}, err
	}

	lower := c.locker.RaiseProductionFlag(ctx, group.ID, episode.ID, policy.GlobalFlagTTL)
	defer lower()

	outcome, runErr := c.generate(ctx, group, episode, request.CollectionID, policy)
	c.record(start, outcome, runErr)
	return outcome, runErr
}

// generate is the stage pipeline, entered with locks held.
func (c *Coordinator) generate(ctx context.Context, group *core.Group, episode *core.Episode,
	collectionID string, policy config.Policy) (Outcome, error) {

	articles, snapshotID, isolated, err := c.gatherArticles(ctx, group, episode, collectionID, policy)
	if err != nil {
		return c.fail(ctx, episode, err.Error()), err
	}
	episode.CollectionID = snapshotID
	if err := c.store.UpdateEpisode(ctx, episode); err != nil {
		logger.Warn("Failed to persist episode collection", "episode", episode.ID, "error", err.Error())
	}

	// Brief: non-essential, feeds the editor context.
	brief := c.runBrief(ctx, group, articles)

	// Script: essential.
	script, err := c.runScript(ctx, group, articles)
	if err != nil {
		return c.fail(ctx, episode, fmt.Sprintf("script generation failed: %v", err)), err
	}
	episode.Script = script
	episode.Status = core.EpisodeScriptGenerated
	if err := c.store.UpdateEpisode(ctx, episode); err != nil {
		logger.Warn("Failed to persist script", "episode", episode.ID, "error", err.Error())
	}

	// Feedback and edit: non-essential, best artifact wins.
	feedback := c.runFeedback(ctx, group, script)
	if edited := c.runEdit(ctx, episode, script, brief, feedback); edited != "" {
		episode.Script = edited
		if err := c.store.UpdateEpisode(ctx, episode); err != nil {
			logger.Warn("Failed to persist edited script", "episode", episode.ID, "error", err.Error())
		}
	}

	// Metadata: non-essential, deterministic fallback.
	episode.Metadata = c.runMetadata(ctx, group, episode)

	// Synthesis: essential.
	audio, err := c.runSynthesis(ctx, group, episode)
	if err != nil {
		return c.fail(ctx, episode, fmt.Sprintf("audio synthesis failed: %v", err)), err
	}
	episode.Audio = audio
	episode.Status = core.EpisodeAudioGenerated
	if err := c.store.UpdateEpisode(ctx, episode); err != nil {
		logger.Warn("Failed to persist audio artifact", "episode", episode.ID, "error", err.Error())
	}

	// Publish: non-essential.
	c.runPublish(ctx, episode, snapshotID, isolated)

	if err := c.store.UpdateEpisode(ctx, episode); err != nil {
		logger.Warn("Failed to persist final episode", "episode", episode.ID, "error", err.Error())
	}
	logger.Info("Generation run complete", "group", group.ID, "episode", episode.ID,
		"status", string(episode.Status))
	return Outcome{Status: OutcomeCompleted, EpisodeID: episode.ID}, nil
}

// gatherArticles snapshots the chosen collection, then walks the fallback
// chain: direct collection lookup, then recent articles for the group.
// Fewer than the policy minimum after all fallbacks is a hard failure.
func (c *Coordinator) gatherArticles(ctx context.Context, group *core.Group, episode *core.Episode,
	collectionID string, policy config.Policy) ([]core.Article, string, bool, error) {

	if collectionID == "" {
		ready, err := c.lifecycle.GetReadyCollections(ctx, group.ID)
		if err != nil {
			return nil, "", false, fmt.Errorf("failed to list ready collections: %w", err)
		}
		if len(ready) == 0 {
			return nil, "", false, fmt.Errorf("no ready collection for group %s", group.ID)
		}
		collectionID = ready[0].ID
	}

	view, err := c.lifecycle.Snapshot(ctx, collectionID, episode.ID)
	if err != nil {
		return nil, "", false, fmt.Errorf("snapshot failed: %w", err)
	}

	articles := view.Articles
	if len(articles) == 0 {
		logger.Warn("Snapshot yielded no articles, trying recent-articles fallback",
			"group", group.ID, "collection", collectionID)
		articles, err = c.store.RecentArticles(ctx, group.ID, policy.MinArticles*2)
		if err != nil {
			return nil, "", false, fmt.Errorf("recent-articles fallback failed: %w", err)
		}
	}

	if len(articles) < policy.MinArticles {
		return nil, "", false, fmt.Errorf("only %d articles available, need %d",
			len(articles), policy.MinArticles)
	}
	return articles, view.CollectionID, view.Isolated, nil
}

func (c *Coordinator) runBrief(ctx context.Context, group *core.Group, articles []core.Article) string {
	if c.collab.Brief == nil {
		return ""
	}
	stageCtx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()
	brief, err := c.collab.Brief.GenerateBrief(stageCtx, group.Persona, articles)
	if err != nil {
		logger.Warn("Brief generation failed, continuing without it",
			"group", group.ID, "stage", "brief", "error", err.Error())
		return ""
	}
	return brief
}

func (c *Coordinator) runScript(ctx context.Context, group *core.Group, articles []core.Article) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()
	return c.collab.Script.GenerateScript(stageCtx, *group, articles)
}

func (c *Coordinator) runFeedback(ctx context.Context, group *core.Group, script string) string {
	if c.collab.Feedback == nil {
		return ""
	}
	stageCtx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()
	feedback, err := c.collab.Feedback.GenerateFeedback(stageCtx, group.Persona, script)
	if err != nil {
		logger.Warn("Feedback generation failed, continuing without it",
			"group", group.ID, "stage", "feedback", "error", err.Error())
		return ""
	}
	return feedback
}

func (c *Coordinator) runEdit(ctx context.Context, episode *core.Episode, script, brief, feedback string) string {
	if c.collab.Editor == nil {
		return ""
	}
	stageCtx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()
	editorContext := brief
	if feedback != "" {
		editorContext += "\n\nHost feedback:\n" + feedback
	}
	result, err := c.collab.Editor.EditScript(stageCtx, script, c.targetLength, editorContext)
	if err != nil || result.Script == "" {
		if err != nil {
			logger.Warn("Script editing failed, keeping draft script",
				"episode", episode.ID, "stage", "edit", "error", err.Error())
		}
		return ""
	}
	return result.Script
}

func (c *Coordinator) runMetadata(ctx context.Context, group *core.Group, episode *core.Episode) core.EpisodeMetadata {
	fallback := core.EpisodeMetadata{
		Title:       fmt.Sprintf("%s for %s", group.Name, episode.DateCreated.Format("January 2, 2006")),
		Description: group.Description,
		Category:    "News",
	}
	if c.collab.Metadata == nil {
		return fallback
	}
	stageCtx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()
	metadata, err := c.collab.Metadata.GenerateMetadata(stageCtx, episode.Script)
	if err != nil {
		logger.Warn("Metadata generation failed, using fallback metadata",
			"episode", episode.ID, "stage", "metadata", "error", err.Error())
		return fallback
	}
	return metadata
}

func (c *Coordinator) runSynthesis(ctx context.Context, group *core.Group, episode *core.Episode) (core.AudioArtifact, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.audioTimeout)
	defer cancel()
	return c.collab.Synth.Synthesize(stageCtx, episode.Script, group.Voice)
}

func (c *Coordinator) runPublish(ctx context.Context, episode *core.Episode, snapshotID string, isolated bool) {
	if c.collab.Publish == nil || len(c.platforms) == 0 {
		return
	}
	stageCtx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()

	results, err := c.collab.Publish.Publish(stageCtx, episode.ID, c.platforms)
	episode.PublishResults = results
	if err != nil {
		logger.Warn("Publishing failed, audio artifact retained",
			"episode", episode.ID, "stage", "publish", "error", err.Error())
		return
	}

	episode.Status = core.EpisodePublished
	episode.DatePublished = time.Now().UTC()
	if isolated {
		if err := c.lifecycle.MarkUsed(ctx, snapshotID); err != nil {
			logger.Warn("Failed to mark snapshot used", "collection", snapshotID, "error", err.Error())
		}
	}
}

// fail marks the episode failed with a human-readable reason and persists it.
func (c *Coordinator) fail(ctx context.Context, episode *core.Episode, reason string) Outcome {
	episode.Status = core.EpisodeFailed
	episode.FailureReason = reason
	if err := c.store.UpdateEpisode(ctx, episode); err != nil {
		logger.Warn("Failed to persist failed episode", "episode", episode.ID, "error", err.Error())
	}
	logger.Error("Generation run failed", nil, "episode", episode.ID,
		"group", episode.GroupID, "reason", reason)
	return Outcome{Status: OutcomeFailed, EpisodeID: episode.ID, Reason: reason}
}

func (c *Coordinator) record(start time.Time, outcome Outcome, err error) {
	if c.recorder == nil {
		return
	}
	c.recorder.Record(context.Background(), metrics.ListGeneration, metrics.Observation{
		Label:      outcome.Status,
		LatencyMS:  time.Since(start).Milliseconds(),
		OK:         err == nil && outcome.Status != OutcomeFailed,
		Confidence: -1,
	})
}
