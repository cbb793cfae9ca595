package core

import "time"

// CollectionStatus is the lifecycle state of a collection.
type CollectionStatus string

const (
	CollectionBuilding CollectionStatus = "building" // Open for ingestion
	CollectionReady    CollectionStatus = "ready"    // Threshold met, still mutable
	CollectionSnapshot CollectionStatus = "snapshot" // Frozen, bound to one episode
	CollectionUsed     CollectionStatus = "used"     // Episode complete
	CollectionExpired  CollectionStatus = "expired"  // Terminal, empty past TTL
)

// ReviewTier identifies which classifier tier produced a classification.
type ReviewTier string

const (
	TierLight     ReviewTier = "light"
	TierHeavy     ReviewTier = "heavy"
	TierHeuristic ReviewTier = "heuristic" // Keyword fallback when the light call errors
)

// CadenceBucket is the minimum spacing between a group's published episodes.
type CadenceBucket string

const (
	BucketDaily    CadenceBucket = "daily"
	BucketThreeDay CadenceBucket = "three_day"
	BucketWeekly   CadenceBucket = "weekly"
)

// EpisodeStatus tracks the furthest-completed generation stage.
type EpisodeStatus string

const (
	EpisodeDraft           EpisodeStatus = "draft"
	EpisodeScriptGenerated EpisodeStatus = "script_generated"
	EpisodeAudioGenerated  EpisodeStatus = "audio_generated"
	EpisodePublished       EpisodeStatus = "published"
	EpisodeFailed          EpisodeStatus = "failed"
)

// Group represents a themed podcast channel that periodically publishes episodes.
type Group struct {
	ID          string    `json:"id"`          // Unique identifier for the group
	Name        string    `json:"name"`        // Channel name
	Description string    `json:"description"` // Channel description / editorial angle
	Persona     string    `json:"persona"`     // Host persona used for brief/feedback generation
	Voice       string    `json:"voice"`       // TTS voice assignment
	Active      bool      `json:"active"`      // Whether the scheduler considers this group
	DateAdded   time.Time `json:"date_added"`  // When the group was created
}

// Classification is the confidence router's output for one article.
type Classification struct {
	Topic      string     `json:"topic"`      // Broad topic label
	Subject    string     `json:"subject"`    // Specific subject line
	Tags       []string   `json:"tags"`       // Up to 5 tags
	Summary    string     `json:"summary"`    // Up to 500 characters
	Importance int        `json:"importance"` // Rank 1-10
	Confidence float64    `json:"confidence"` // 0.0-1.0
	Tier       ReviewTier `json:"tier"`       // Which tier produced the result
	Fallback   bool       `json:"fallback"`   // True when heavy retries were exhausted
}

// Article is an ingested item after review, attached to a group's open collection.
type Article struct {
	ID             string         `json:"id"`             // Unique identifier for the article
	GroupID        string         `json:"group_id"`       // Owning group
	SourceRef      string         `json:"source_ref"`     // Feed/source the article came from
	Link           string         `json:"link"`           // Article URL
	Title          string         `json:"title"`          // Article title
	Published      time.Time      `json:"published"`      // Publication time from the source
	Fingerprint    string         `json:"fingerprint"`    // Stable hash used for dedup
	Classification Classification `json:"classification"` // Set once by the confidence router
	CollectionID   string         `json:"collection_id"`  // Current collection (empty until attached)
	DateIngested   time.Time      `json:"date_ingested"`  // When the article entered the pipeline
}

// Collection is the mutable buffer of reviewed articles feeding a group,
// or an immutable snapshot of one once bound to an episode.
type Collection struct {
	ID           string           `json:"id"`            // Unique identifier for the collection
	Name         string           `json:"name"`          // Display name
	Description  string           `json:"description"`   // Display description
	Status       CollectionStatus `json:"status"`        // Lifecycle state
	ParentID     string           `json:"parent_id"`     // Forms the snapshot->building chain (empty for the first buffer)
	EpisodeID    string           `json:"episode_id"`    // Set only when status=snapshot
	GroupIDs     []string         `json:"group_ids"`     // Group associations (many-to-many)
	ArticleCount int              `json:"article_count"` // Number of attached articles
	DateCreated  time.Time        `json:"date_created"`  // When the collection was opened
	DateUpdated  time.Time        `json:"date_updated"`  // Last ingest or transition
}

// AudioArtifact describes the synthesized audio for an episode.
type AudioArtifact struct {
	URL      string  `json:"url"`      // Where the audio was stored
	Duration float64 `json:"duration"` // Seconds
	Size     int64   `json:"size"`     // Bytes
	Format   string  `json:"format"`   // e.g. "mp3"
}

// PublishResult is the per-platform outcome of publishing an episode.
type PublishResult struct {
	Platform   string `json:"platform"`    // Hosting platform name
	Status     string `json:"status"`      // "published" or "failed"
	ExternalID string `json:"external_id"` // Platform-side identifier
	URL        string `json:"url"`         // Public URL
}

// EpisodeMetadata is the generated listing metadata for an episode.
type EpisodeMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Keywords    []string `json:"keywords"`
	Category    string   `json:"category"`
}

// Episode is one generated audio episode for a group.
type Episode struct {
	ID             string          `json:"id"`              // Unique identifier for the episode
	GroupID        string          `json:"group_id"`        // Owning group
	CollectionID   string          `json:"collection_id"`   // Snapshot collection consumed
	Status         EpisodeStatus   `json:"status"`          // Furthest-completed stage
	Script         string          `json:"script"`          // Best available script text
	Metadata       EpisodeMetadata `json:"metadata"`        // Listing metadata
	Audio          AudioArtifact   `json:"audio"`           // Synthesized audio artifact
	PublishResults []PublishResult `json:"publish_results"` // Per-platform publish outcomes
	FailureReason  string          `json:"failure_reason"`  // Human-readable reason when status=failed
	DateCreated    time.Time       `json:"date_created"`    // Draft creation time
	DatePublished  time.Time       `json:"date_published"`  // Zero until published
}

// GenerationRequest is one unit of work on the shared generation queue.
type GenerationRequest struct {
	ID           string    `json:"id"`            // Unique identifier for the request
	GroupID      string    `json:"group_id"`      // Group to generate for
	CollectionID string    `json:"collection_id"` // Ready collection chosen by the scheduler (empty for manual triggers)
	Reason       string    `json:"reason"`        // Scheduler decision reason, for the logs
	DateEnqueued time.Time `json:"date_enqueued"` // When the request was enqueued
}

// CadenceState is the derived scheduling state for one group. It is computed
// on demand from episode history and collection readiness, never stored.
type CadenceState struct {
	GroupID       string        `json:"group_id"`
	Bucket        CadenceBucket `json:"bucket"`         // Applicable cadence bucket
	LastPublished time.Time     `json:"last_published"` // Zero when the group has no episodes
	NextEligible  time.Time     `json:"next_eligible"`  // LastPublished + bucket spacing
}

// DedupResult is the outcome of a fingerprint membership check.
type DedupResult struct {
	Fingerprint string    `json:"fingerprint"`
	IsDuplicate bool      `json:"is_duplicate"`
	CheckedAt   time.Time `json:"checked_at"`
}
