package handlers

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"showrunner/internal/cadence"
	"showrunner/internal/collections"
	"showrunner/internal/config"
	"showrunner/internal/coord"
	"showrunner/internal/dedup"
	"showrunner/internal/generation"
	"showrunner/internal/llm"
	"showrunner/internal/metrics"
	"showrunner/internal/pipeline"
	"showrunner/internal/publish"
	"showrunner/internal/review"
	"showrunner/internal/store"
	"showrunner/internal/tts"
)

// app bundles the store-side components every command needs.
type app struct {
	Store     *store.Store
	KV        *coord.SQLiteKV
	Locker    *generation.Locker
	Dedup     *dedup.Deduplicator
	Recorder  *metrics.Recorder
	Manager   *collections.Manager
	Scheduler *cadence.Scheduler
}

// fullApp adds the LLM-backed pipeline on top of app for commands that
// review or generate.
type fullApp struct {
	*app
	Router      *review.Router
	Ingestor    *pipeline.Ingestor
	Coordinator *generation.Coordinator
}

func newApp() (*app, error) {
	cfg := config.Get()

	st, err := store.NewStore(cfg.Store.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	kv, err := coord.NewSQLiteKV(cfg.Store.Directory)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open coordination store: %w", err)
	}

	recorder := metrics.NewRecorder(kv)
	manager := collections.NewManager(st, config.CurrentPolicy)

	return &app{
		Store:     st,
		KV:        kv,
		Locker:    generation.NewLocker(kv),
		Dedup:     dedup.NewDeduplicator(kv, config.CurrentPolicy().DedupTTL),
		Recorder:  recorder,
		Manager:   manager,
		Scheduler: cadence.NewScheduler(st, config.CurrentPolicy),
	}, nil
}

func (a *app) Close() {
	a.KV.Close()
	a.Store.Close()
}

func newFullApp() (*fullApp, error) {
	base, err := newApp()
	if err != nil {
		return nil, err
	}

	cfg := config.Get()

	client, err := llm.NewClient(config.CurrentPolicy().LightModel)
	if err != nil {
		base.Close()
		return nil, err
	}

	light := llm.NewTierClassifier(client, func() string { return config.CurrentPolicy().LightModel })
	heavy := llm.NewTierClassifier(client, func() string { return config.CurrentPolicy().HeavyModel })
	router := review.NewRouter(light, heavy, base.Recorder, config.CurrentPolicy)

	writer := llm.NewWriter(client)
	synth := tts.NewClient(&tts.Config{
		Provider:  tts.Provider(cfg.TTS.Provider),
		APIKey:    cfg.TTS.APIKey,
		Model:     cfg.TTS.Model,
		OutputDir: cfg.TTS.OutputDir,
	})
	publisher := publish.NewClient(cfg.Publish.Platforms, duration(cfg.Publish.Timeout, 30*time.Second))

	platforms := make([]string, 0, len(cfg.Publish.Platforms))
	for platform := range cfg.Publish.Platforms {
		platforms = append(platforms, platform)
	}

	coordinator := generation.NewCoordinator(base.Store, base.Manager, base.Locker,
		generation.Collaborators{
			Brief:    writer,
			Script:   writer,
			Feedback: writer,
			Editor:   writer,
			Metadata: writer,
			Synth:    synth,
			Publish:  publisher,
		},
		base.Recorder, config.CurrentPolicy,
		generation.Options{
			Platforms:    platforms,
			TargetLength: viper.GetInt("generation.target_length"),
			TextTimeout:  duration(cfg.Generation.TextTimeout, 5*time.Minute),
			AudioTimeout: duration(cfg.Generation.AudioTimeout, 30*time.Minute),
		})

	return &fullApp{
		app:         base,
		Router:      router,
		Ingestor:    pipeline.NewIngestor(base.Dedup, router, base.Manager, base.Locker),
		Coordinator: coordinator,
	}, nil
}

func duration(value string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
