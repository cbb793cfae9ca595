// Package metrics records review and generation observations as timestamped
// entries in bounded coordination-store lists, and rolls them up on demand.
// Recording is best-effort: a failed write is dropped silently so an
// unreachable store can never stall the pipeline.
package metrics

import (
	"context"
	"encoding/json"
	"time"

	"showrunner/internal/coord"
	"showrunner/internal/logger"
)

const (
	// ListReview holds one observation per routed article.
	ListReview = "metrics:review"
	// ListGeneration holds one observation per generation run.
	ListGeneration = "metrics:generation"

	defaultMaxEntries = 2000
)

// Observation is one timestamped measurement.
type Observation struct {
	At         time.Time `json:"at"`
	Label      string    `json:"label"`      // Tier or stage name
	LatencyMS  int64     `json:"latency_ms"` // Call latency
	OK         bool      `json:"ok"`         // Success or error
	Confidence float64   `json:"confidence"` // Review only; negative when not applicable
}

// Rollup summarizes a window of observations.
type Rollup struct {
	Window         time.Duration  `json:"window"`
	Count          int            `json:"count"`
	ErrorCount     int            `json:"error_count"`
	SuccessRate    float64        `json:"success_rate"`
	AvgLatencyMS   float64        `json:"avg_latency_ms"`
	ConfidenceHist map[string]int `json:"confidence_hist"` // Buckets of width 0.1: "0.0", "0.1", ... "0.9"
}

// Recorder writes observations to the shared store.
type Recorder struct {
	kv  coord.KV
	max int
}

// NewRecorder creates a recorder with the default list bound.
func NewRecorder(kv coord.KV) *Recorder {
	return &Recorder{kv: kv, max: defaultMaxEntries}
}

// Record appends one observation. Errors are logged at debug and dropped.
func (r *Recorder) Record(ctx context.Context, list string, obs Observation) {
	if obs.At.IsZero() {
		obs.At = time.Now().UTC()
	}
	payload, err := json.Marshal(obs)
	if err != nil {
		return
	}
	if err := r.kv.PushBounded(ctx, list, string(payload), r.max); err != nil {
		logger.Debug("Dropped metrics observation", "list", list, "error", err.Error())
	}
}

// RollupWindow computes the rollup for observations within the window ending
// now. Use 5*time.Minute and time.Hour for the standard views.
func (r *Recorder) RollupWindow(ctx context.Context, list string, window time.Duration) (*Rollup, error) {
	entries, err := r.kv.Entries(ctx, list)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-window)
	rollup := &Rollup{
		Window:         window,
		ConfidenceHist: make(map[string]int),
	}

	var totalLatency int64
	for _, raw := range entries {
		var obs Observation
		if err := json.Unmarshal([]byte(raw), &obs); err != nil {
			continue
		}
		if obs.At.Before(cutoff) {
			continue
		}
		rollup.Count++
		totalLatency += obs.LatencyMS
		if !obs.OK {
			rollup.ErrorCount++
		}
		if obs.Confidence >= 0 {
			rollup.ConfidenceHist[confidenceBucket(obs.Confidence)]++
		}
	}

	if rollup.Count > 0 {
		rollup.SuccessRate = float64(rollup.Count-rollup.ErrorCount) / float64(rollup.Count)
		rollup.AvgLatencyMS = float64(totalLatency) / float64(rollup.Count)
	}
	return rollup, nil
}

func confidenceBucket(confidence float64) string {
	if confidence >= 1.0 {
		return "0.9"
	}
	if confidence < 0 {
		confidence = 0
	}
	buckets := []string{"0.0", "0.1", "0.2", "0.3", "0.4", "0.5", "0.6", "0.7", "0.8", "0.9"}
	return buckets[int(confidence*10)]
}
