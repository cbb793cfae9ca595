package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	AI         AI         `mapstructure:"ai"`
	Store      Store      `mapstructure:"store"`
	Review     Review     `mapstructure:"review"`
	Collection Collection `mapstructure:"collection"`
	Cadence    Cadence    `mapstructure:"cadence"`
	Generation Generation `mapstructure:"generation"`
	Dedup      Dedup      `mapstructure:"dedup"`
	TTS        TTS        `mapstructure:"tts"`
	Publish    Publish    `mapstructure:"publish"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds LLM collaborator configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// Store holds relational/coordination store configuration
type Store struct {
	Directory string `mapstructure:"directory"`
	Timeout   string `mapstructure:"timeout"`
}

// Review holds confidence-router configuration. Every field is
// hot-reloadable through Policy().
type Review struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	HeavyEnabled        bool    `mapstructure:"heavy_enabled"`
	LightModel          string  `mapstructure:"light_model"`
	HeavyModel          string  `mapstructure:"heavy_model"`
	LightWorkers        int     `mapstructure:"light_workers"`
	HeavyMaxRetries     int     `mapstructure:"heavy_max_retries"`
}

// Collection holds lifecycle-manager configuration
type Collection struct {
	MinFeeds int    `mapstructure:"min_feeds"`
	TTL      string `mapstructure:"ttl"`
}

// Cadence holds scheduler configuration
type Cadence struct {
	TickInterval         string `mapstructure:"tick_interval"`
	DailyDays            int    `mapstructure:"daily_days"`
	ThreeDayDays         int    `mapstructure:"three_day_days"`
	WeeklyDays           int    `mapstructure:"weekly_days"`
	DailyMinFeedItems    int    `mapstructure:"daily_min_feed_items"`
	ThreeDayMinFeedItems int    `mapstructure:"three_day_min_feed_items"`
}

// Generation holds coordinator configuration
type Generation struct {
	GroupLockTTL  string `mapstructure:"group_lock_ttl"`
	GlobalFlagTTL string `mapstructure:"global_flag_ttl"`
	MinArticles   int    `mapstructure:"min_articles"`
	TargetLength  int    `mapstructure:"target_length"`
	TextTimeout   string `mapstructure:"text_timeout"`
	AudioTimeout  string `mapstructure:"audio_timeout"`
}

// Dedup holds fingerprint deduplicator configuration
type Dedup struct {
	TTL string `mapstructure:"ttl"`
}

// TTS holds text-to-speech configuration
type TTS struct {
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	Voice     string `mapstructure:"voice"`
	OutputDir string `mapstructure:"output_dir"`
	Timeout   string `mapstructure:"timeout"`
}

// Publish holds episode publishing configuration
type Publish struct {
	Platforms map[string]string `mapstructure:"platforms"` // platform name -> endpoint URL
	Timeout   string            `mapstructure:"timeout"`
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Load loads the configuration from defaults, config file, and environment.
// It also starts watching the config file so that Policy() reflects edits
// without a restart.
func Load(configFile string) (*Config, error) {
	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".showrunner")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Re-unmarshal on file change; Policy() always reads live viper values,
	// so the watcher only needs to refresh the cached struct.
	viper.OnConfigChange(func(in fsnotify.Event) {
		fresh := &Config{}
		if err := viper.Unmarshal(fresh); err != nil {
			return
		}
		configMu.Lock()
		globalConfig = fresh
		configMu.Unlock()
	})
	viper.WatchConfig()

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	configMu.RLock()
	cfg := globalConfig
	configMu.RUnlock()
	if cfg == nil {
		loaded, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return loaded
	}
	return cfg
}

// Policy is the hot-reloadable decision surface consumed by the router,
// lifecycle manager, scheduler, and coordinator. It is a value snapshot: a
// caller takes one per operation, so a mid-operation reload cannot mix old
// and new thresholds.
type Policy struct {
	ConfidenceThreshold   float64
	HeavyEnabled          bool
	LightModel            string
	HeavyModel            string
	LightWorkers          int
	HeavyMaxRetries       int
	MinFeedsPerCollection int
	CollectionTTL         time.Duration
	DedupTTL              time.Duration
	GroupLockTTL          time.Duration
	GlobalFlagTTL         time.Duration
	DailyDays             int
	ThreeDayDays          int
	WeeklyDays            int
	DailyMinFeedItems     int
	ThreeDayMinFeedItems  int
	MinArticles           int
}

// CurrentPolicy reads the live viper values so that edits to the watched
// config file take effect on the next operation, no restart needed.
func CurrentPolicy() Policy {
	return Policy{
		ConfidenceThreshold:   viper.GetFloat64("review.confidence_threshold"),
		HeavyEnabled:          viper.GetBool("review.heavy_enabled"),
		LightModel:            viper.GetString("review.light_model"),
		HeavyModel:            viper.GetString("review.heavy_model"),
		LightWorkers:          viper.GetInt("review.light_workers"),
		HeavyMaxRetries:       viper.GetInt("review.heavy_max_retries"),
		MinFeedsPerCollection: viper.GetInt("collection.min_feeds"),
		CollectionTTL:         viper.GetDuration("collection.ttl"),
		DedupTTL:              viper.GetDuration("dedup.ttl"),
		GroupLockTTL:          viper.GetDuration("generation.group_lock_ttl"),
		GlobalFlagTTL:         viper.GetDuration("generation.global_flag_ttl"),
		DailyDays:             viper.GetInt("cadence.daily_days"),
		ThreeDayDays:          viper.GetInt("cadence.three_day_days"),
		WeeklyDays:            viper.GetInt("cadence.weekly_days"),
		DailyMinFeedItems:     viper.GetInt("cadence.daily_min_feed_items"),
		ThreeDayMinFeedItems:  viper.GetInt("cadence.three_day_min_feed_items"),
		MinArticles:           viper.GetInt("generation.min_articles"),
	}
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".showrunner-data")

	// AI defaults
	viper.SetDefault("ai.gemini.timeout", "120s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.7)

	// Store defaults
	viper.SetDefault("store.directory", ".showrunner-data")
	viper.SetDefault("store.timeout", "5s")

	// Review defaults
	viper.SetDefault("review.confidence_threshold", 0.85)
	viper.SetDefault("review.heavy_enabled", true)
	viper.SetDefault("review.light_model", "gemini-flash-lite-latest")
	viper.SetDefault("review.heavy_model", "gemini-2.5-pro")
	viper.SetDefault("review.light_workers", 4)
	viper.SetDefault("review.heavy_max_retries", 3)

	// Collection defaults
	viper.SetDefault("collection.min_feeds", 3)
	viper.SetDefault("collection.ttl", "168h")

	// Cadence defaults
	viper.SetDefault("cadence.tick_interval", "5m")
	viper.SetDefault("cadence.daily_days", 1)
	viper.SetDefault("cadence.three_day_days", 3)
	viper.SetDefault("cadence.weekly_days", 7)
	viper.SetDefault("cadence.daily_min_feed_items", 5)
	viper.SetDefault("cadence.three_day_min_feed_items", 3)

	// Generation defaults
	viper.SetDefault("generation.group_lock_ttl", "1h")
	viper.SetDefault("generation.global_flag_ttl", "2h")
	viper.SetDefault("generation.min_articles", 3)
	viper.SetDefault("generation.target_length", 1500)
	viper.SetDefault("generation.text_timeout", "5m")
	viper.SetDefault("generation.audio_timeout", "30m")

	// Dedup defaults
	viper.SetDefault("dedup.ttl", "720h")

	// TTS defaults
	viper.SetDefault("tts.provider", "openai")
	viper.SetDefault("tts.model", "tts-1")
	viper.SetDefault("tts.voice", "alloy")
	viper.SetDefault("tts.output_dir", "audio")
	viper.SetDefault("tts.timeout", "60s")

	// Publish defaults
	viper.SetDefault("publish.timeout", "30s")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	// TTS provider key
	bindEnvKeys("tts.api_key", []string{
		"OPENAI_API_KEY",
		"TTS_API_KEY",
	})
}

// bindEnvKeys binds the first set environment variable in the list to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
	if len(envKeys) > 0 {
		_ = viper.BindEnv(viperKey, envKeys[0])
	}
}
