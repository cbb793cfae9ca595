package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"showrunner/internal/collections"
	"showrunner/internal/config"
	"showrunner/internal/coord"
	"showrunner/internal/core"
)

// mockGenStore records episode writes.
type mockGenStore struct {
	groups   map[string]*core.Group
	episodes map[string]*core.Episode
	recent   []core.Article
}

func newMockGenStore() *mockGenStore {
	return &mockGenStore{
		groups:   make(map[string]*core.Group),
		episodes: make(map[string]*core.Episode),
	}
}

func (m *mockGenStore) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	group, ok := m.groups[id]
	if !ok {
		return nil, errors.New("group not found")
	}
	return group, nil
}

func (m *mockGenStore) CreateEpisode(ctx context.Context, episode *core.Episode) error {
	clone := *episode
	m.episodes[episode.ID] = &clone
	return nil
}

func (m *mockGenStore) UpdateEpisode(ctx context.Context, episode *core.Episode) error {
	clone := *episode
	m.episodes[episode.ID] = &clone
	return nil
}

func (m *mockGenStore) RecentArticles(ctx context.Context, groupID string, limit int) ([]core.Article, error) {
	return m.recent, nil
}

// mockLifecycle serves a fixed snapshot view.
type mockLifecycle struct {
	view    *collections.SnapshotView
	ready   []core.Collection
	usedIDs []string
	snapErr error
	usedErr error
}

func (m *mockLifecycle) Snapshot(ctx context.Context, collectionID, episodeID string) (*collections.SnapshotView, error) {
	if m.snapErr != nil {
		return nil, m.snapErr
	}
	return m.view, nil
}

func (m *mockLifecycle) MarkUsed(ctx context.Context, collectionID string) error {
	if m.usedErr != nil {
		return m.usedErr
	}
	m.usedIDs = append(m.usedIDs, collectionID)
	return nil
}

func (m *mockLifecycle) GetReadyCollections(ctx context.Context, groupID string) ([]core.Collection, error) {
	return m.ready, nil
}

// mockCollaborators implements every collaborator interface with scripted
// failures per stage.
type mockCollaborators struct {
	failBrief    bool
	failScript   bool
	failFeedback bool
	failEdit     bool
	failMetadata bool
	failSynth    bool
	failPublish  bool

	scriptCalls int
	synthCalls  int
}

func (m *mockCollaborators) GenerateBrief(ctx context.Context, persona string, articles []core.Article) (string, error) {
	if m.failBrief {
		return "", errors.New("brief failed")
	}
	return "the brief", nil
}

func (m *mockCollaborators) GenerateScript(ctx context.Context, group core.Group, articles []core.Article) (string, error) {
	m.scriptCalls++
	if m.failScript {
		return "", errors.New("script failed")
	}
	return "the script", nil
}

func (m *mockCollaborators) GenerateFeedback(ctx context.Context, persona, script string) (string, error) {
	if m.failFeedback {
		return "", errors.New("feedback failed")
	}
	return "the feedback", nil
}

func (m *mockCollaborators) EditScript(ctx context.Context, script string, targetLength int, editorContext string) (EditResult, error) {
	if m.failEdit {
		return EditResult{}, errors.New("edit failed")
	}
	return EditResult{Script: "the edited script", Assessment: "tightened"}, nil
}

func (m *mockCollaborators) GenerateMetadata(ctx context.Context, script string) (core.EpisodeMetadata, error) {
	if m.failMetadata {
		return core.EpisodeMetadata{}, errors.New("metadata failed")
	}
	return core.EpisodeMetadata{Title: "Generated Title", Category: "News"}, nil
}

func (m *mockCollaborators) Synthesize(ctx context.Context, script, voice string) (core.AudioArtifact, error) {
	m.synthCalls++
	if m.failSynth {
		return core.AudioArtifact{}, errors.New("synthesis failed")
	}
	return core.AudioArtifact{URL: "file:///audio.mp3", Format: "mp3", Duration: 300}, nil
}

func (m *mockCollaborators) Publish(ctx context.Context, episodeID string, platforms []string) ([]core.PublishResult, error) {
	if m.failPublish {
		return nil, errors.New("publish failed")
	}
	results := make([]core.PublishResult, 0, len(platforms))
	for _, platform := range platforms {
		results = append(results, core.PublishResult{Platform: platform, Status: "published"})
	}
	return results, nil
}

func generationPolicy() config.Policy {
	return config.Policy{
		MinArticles:   2,
		GroupLockTTL:  time.Hour,
		GlobalFlagTTL: 2 * time.Hour,
	}
}

func fixtureView() *collections.SnapshotView {
	return &collections.SnapshotView{
		CollectionID:  "snap1",
		NewBuildingID: "build2",
		Isolated:      true,
		Articles: []core.Article{
			{ID: "a1", Title: "First"},
			{ID: "a2", Title: "Second"},
			{ID: "a3", Title: "Third"},
		},
	}
}

type testHarness struct {
	store       *mockGenStore
	lifecycle   *mockLifecycle
	collab      *mockCollaborators
	kv          *coord.MemoryKV
	coordinator *Coordinator
}

func newHarness() *testHarness {
	store := newMockGenStore()
	store.groups["g1"] = &core.Group{ID: "g1", Name: "Tech Daily", Persona: "analyst", Voice: "alloy"}

	lifecycle := &mockLifecycle{view: fixtureView()}
	collab := &mockCollaborators{}
	kv := coord.NewMemoryKV()

	coordinator := NewCoordinator(store, lifecycle, NewLocker(kv),
		Collaborators{
			Brief: collab, Script: collab, Feedback: collab,
			Editor: collab, Metadata: collab, Synth: collab, Publish: collab,
		},
		nil, generationPolicy,
		Options{Platforms: []string{"podhost"}, TargetLength: 1200})

	return &testHarness{store: store, lifecycle: lifecycle, collab: collab, kv: kv, coordinator: coordinator}
}

func testRequest() *core.GenerationRequest {
	return &core.GenerationRequest{ID: "r1", GroupID: "g1", CollectionID: "c1"}
}

func TestRunCompletesEpisode(t *testing.T) {
	h := newHarness()

	outcome, err := h.coordinator.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Fatalf("Expected completed outcome, got %s (%s)", outcome.Status, outcome.Reason)
	}

	episode := h.store.episodes[outcome.EpisodeID]
	if episode == nil {
		t.Fatal("Expected the episode to be persisted")
	}
	if episode.Status != core.EpisodePublished {
		t.Errorf("Expected published status, got %s", episode.Status)
	}
	if episode.Script != "the edited script" {
		t.Errorf("Expected the edited script to win, got %q", episode.Script)
	}
	if episode.Metadata.Title != "Generated Title" {
		t.Errorf("Expected generated metadata, got %q", episode.Metadata.Title)
	}
	if episode.DatePublished.IsZero() {
		t.Error("Expected the publish time to be set")
	}
	if len(h.lifecycle.usedIDs) != 1 || h.lifecycle.usedIDs[0] != "snap1" {
		t.Errorf("Expected the snapshot to be marked used, got %v", h.lifecycle.usedIDs)
	}
}

func TestRunSkipsWhenGroupLocked(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	// Simulate another worker holding the group lock.
	if ok, _ := h.kv.SetIfAbsent(ctx, "lock:group:g1", "other-worker", time.Hour); !ok {
		t.Fatal("Failed to pre-acquire lock")
	}

	outcome, err := h.coordinator.Run(ctx, testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != OutcomeLocked {
		t.Errorf("Expected locked outcome, got %s", outcome.Status)
	}
	if h.collab.scriptCalls != 0 {
		t.Errorf("Expected no generation work under contention, got %d script calls", h.collab.scriptCalls)
	}
}

func TestRunReleasesLockAndFlag(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.coordinator.Run(ctx, testRequest()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, held, _ := h.kv.Get(ctx, "lock:group:g1"); held {
		t.Error("Expected the group lock to be released after the run")
	}
	if _, raised, _ := h.kv.Get(ctx, "production:active"); raised {
		t.Error("Expected the production flag to be lowered after the run")
	}

	// The group is immediately runnable again.
	outcome, err := h.coordinator.Run(ctx, testRequest())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Errorf("Expected the second run to proceed, got %s", outcome.Status)
	}
}

func TestRunReleasesLockOnFailure(t *testing.T) {
	h := newHarness()
	h.collab.failScript = true
	ctx := context.Background()

	outcome, err := h.coordinator.Run(ctx, testRequest())
	if err == nil {
		t.Fatal("Expected the essential script failure to surface")
	}
	if outcome.Status != OutcomeFailed {
		t.Errorf("Expected failed outcome, got %s", outcome.Status)
	}

	if _, held, _ := h.kv.Get(ctx, "lock:group:g1"); held {
		t.Error("Expected the group lock to be released on failure")
	}
	if _, raised, _ := h.kv.Get(ctx, "production:active"); raised {
		t.Error("Expected the production flag to be lowered on failure")
	}
}

func TestRunEssentialScriptFailureAborts(t *testing.T) {
	h := newHarness()
	h.collab.failScript = true

	outcome, _ := h.coordinator.Run(context.Background(), testRequest())
	if outcome.Status != OutcomeFailed {
		t.Fatalf("Expected failed outcome, got %s", outcome.Status)
	}

	episode := h.store.episodes[outcome.EpisodeID]
	if episode.Status != core.EpisodeFailed {
		t.Errorf("Expected failed episode status, got %s", episode.Status)
	}
	if episode.FailureReason == "" {
		t.Error("Expected a failure reason on the episode")
	}
	if h.collab.synthCalls != 0 {
		t.Error("Expected no synthesis after a script failure")
	}
}

func TestRunEssentialSynthesisFailureAborts(t *testing.T) {
	h := newHarness()
	h.collab.failSynth = true

	outcome, _ := h.coordinator.Run(context.Background(), testRequest())
	if outcome.Status != OutcomeFailed {
		t.Fatalf("Expected failed outcome, got %s", outcome.Status)
	}

	episode := h.store.episodes[outcome.EpisodeID]
	if episode.Status != core.EpisodeFailed {
		t.Errorf("Expected failed episode status, got %s", episode.Status)
	}
	// The script survived even though the run failed.
	if episode.Script == "" {
		t.Error("Expected the script to be retained on the failed episode")
	}
}

func TestRunNonEssentialFailuresDegrade(t *testing.T) {
	h := newHarness()
	h.collab.failBrief = true
	h.collab.failFeedback = true
	h.collab.failEdit = true
	h.collab.failMetadata = true

	outcome, err := h.coordinator.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Fatalf("Expected non-essential failures to degrade, got %s (%s)", outcome.Status, outcome.Reason)
	}

	episode := h.store.episodes[outcome.EpisodeID]
	if episode.Script != "the script" {
		t.Errorf("Expected the draft script with editing down, got %q", episode.Script)
	}
	if episode.Metadata.Title != "Tech Daily for "+episode.DateCreated.Format("January 2, 2006") {
		t.Errorf("Expected deterministic fallback metadata, got %q", episode.Metadata.Title)
	}
}

func TestRunPublishFailureRetainsAudio(t *testing.T) {
	h := newHarness()
	h.collab.failPublish = true

	outcome, err := h.coordinator.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Fatalf("Expected completed outcome, got %s", outcome.Status)
	}

	episode := h.store.episodes[outcome.EpisodeID]
	if episode.Status != core.EpisodeAudioGenerated {
		t.Errorf("Expected the episode to stop at audio_generated, got %s", episode.Status)
	}
	if episode.Audio.URL == "" {
		t.Error("Expected the audio artifact to be retained")
	}
	if len(h.lifecycle.usedIDs) != 0 {
		t.Error("Expected the snapshot to stay unconsumed when publishing fails")
	}
}

func TestRunSnapshotFallbackSkipsMarkUsed(t *testing.T) {
	h := newHarness()
	h.lifecycle.view.Isolated = false
	h.lifecycle.view.CollectionID = "c1"

	outcome, err := h.coordinator.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Fatalf("Expected completed outcome, got %s", outcome.Status)
	}
	if len(h.lifecycle.usedIDs) != 0 {
		t.Error("Expected no used transition on the non-isolated path")
	}
}

func TestRunTooFewArticlesFails(t *testing.T) {
	h := newHarness()
	h.lifecycle.view.Articles = h.lifecycle.view.Articles[:1]
	h.store.recent = nil

	outcome, err := h.coordinator.Run(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Expected a hard failure below the article minimum")
	}
	if outcome.Status != OutcomeFailed {
		t.Errorf("Expected failed outcome, got %s", outcome.Status)
	}
	if h.collab.scriptCalls != 0 {
		t.Error("Expected no generation below the article minimum")
	}
}

func TestRunEmptySnapshotUsesRecentArticles(t *testing.T) {
	h := newHarness()
	h.lifecycle.view.Articles = nil
	h.store.recent = []core.Article{
		{ID: "r1", Title: "Recent one"},
		{ID: "r2", Title: "Recent two"},
	}

	outcome, err := h.coordinator.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Errorf("Expected the recent-articles fallback to complete, got %s", outcome.Status)
	}
}

func TestRunManualTriggerPicksReadyCollection(t *testing.T) {
	h := newHarness()
	h.lifecycle.ready = []core.Collection{{ID: "ready1", Status: core.CollectionReady}}

	request := testRequest()
	request.CollectionID = ""

	outcome, err := h.coordinator.Run(context.Background(), request)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != OutcomeCompleted {
		t.Errorf("Expected completed outcome, got %s", outcome.Status)
	}
}
