// Package review implements the two-tier confidence-based article router:
// a cheap light classification first, escalated to the expensive heavy tier
// only when confidence falls below the policy threshold.
package review

import (
	"context"
	"strings"
	"sync"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/core"
	"showrunner/internal/logger"
	"showrunner/internal/metrics"
)

// Input is the article content handed to a classifier tier.
type Input struct {
	Title    string
	Text     string
	Metadata map[string]string
}

// Classifier is the contract shared by the light and heavy tiers.
type Classifier interface {
	Classify(ctx context.Context, input Input) (core.Classification, error)
}

// Decision is the routing outcome for one light-tier result.
type Decision struct {
	Escalate bool
	Reason   string
}

// Decide is the pure routing function: given the light result and current
// policy, decide whether the heavy tier runs.
func Decide(light core.Classification, policy config.Policy) Decision {
	if light.Confidence >= policy.ConfidenceThreshold {
		return Decision{Escalate: false, Reason: "confidence above threshold"}
	}
	if !policy.HeavyEnabled {
		return Decision{Escalate: false, Reason: "heavy tier disabled"}
	}
	return Decision{Escalate: true, Reason: "confidence below threshold"}
}

// Router drives the per-article LIGHT -> DONE / LIGHT -> HEAVY -> DONE state
// machine.
type Router struct {
	light    Classifier
	heavy    Classifier
	recorder *metrics.Recorder
	policy   func() config.Policy
}

// NewRouter creates a router. policy is called once per article so threshold
// edits take effect without a restart.
func NewRouter(light, heavy Classifier, recorder *metrics.Recorder, policy func() config.Policy) *Router {
	return &Router{light: light, heavy: heavy, recorder: recorder, policy: policy}
}

// Review classifies one article. It always produces a result: a light-tier
// error substitutes the deterministic keyword heuristic, and exhausted heavy
// retries fall back to the light result with the fallback flag set.
func (r *Router) Review(ctx context.Context, input Input) core.Classification {
	policy := r.policy()

	light := r.classifyLight(ctx, input)

	decision := Decide(light, policy)
	if !decision.Escalate {
		logger.Debug("Review routed", "tier", string(light.Tier), "reason", decision.Reason,
			"confidence", light.Confidence)
		return light
	}

	heavy, ok := r.classifyHeavy(ctx, input, policy.HeavyMaxRetries)
	if !ok {
		light.Fallback = true
		logger.Warn("Heavy tier exhausted, falling back to light result",
			"title", input.Title, "confidence", light.Confidence)
		return light
	}
	return heavy
}

func (r *Router) classifyLight(ctx context.Context, input Input) core.Classification {
	start := time.Now()
	result, err := r.light.Classify(ctx, input)
	r.record(start, core.TierLight, result, err)
	if err != nil {
		logger.Warn("Light classifier failed, using keyword heuristic",
			"title", input.Title, "error", err.Error())
		return HeuristicClassify(input)
	}
	result.Tier = core.TierLight
	return normalize(result)
}

// classifyHeavy retries transient failures up to maxRetries attempts total.
func (r *Router) classifyHeavy(ctx context.Context, input Input, maxRetries int) (core.Classification, bool) {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		start := time.Now()
		result, err := r.heavy.Classify(ctx, input)
		r.record(start, core.TierHeavy, result, err)
		if err == nil {
			result.Tier = core.TierHeavy
			return normalize(result), true
		}
		logger.Debug("Heavy classifier attempt failed",
			"attempt", attempt, "title", input.Title, "error", err.Error())
	}
	return core.Classification{}, false
}

func (r *Router) record(start time.Time, tier core.ReviewTier, result core.Classification, err error) {
	if r.recorder == nil {
		return
	}
	confidence := result.Confidence
	if err != nil {
		confidence = -1
	}
	r.recorder.Record(context.Background(), metrics.ListReview, metrics.Observation{
		Label:      string(tier),
		LatencyMS:  time.Since(start).Milliseconds(),
		OK:         err == nil,
		Confidence: confidence,
	})
}

// normalize clamps a classification to the output contract: at most 5 tags,
// a 500-character summary, importance 1-10, confidence 0-1.
func normalize(c core.Classification) core.Classification {
	if len(c.Tags) > 5 {
		c.Tags = c.Tags[:5]
	}
	if len(c.Summary) > 500 {
		c.Summary = strings.TrimSpace(c.Summary[:500])
	}
	if c.Importance < 1 {
		c.Importance = 1
	}
	if c.Importance > 10 {
		c.Importance = 10
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return c
}

// Result pairs an input with its classification for batch review.
type Result struct {
	Input          Input
	Classification core.Classification
}

// ReviewAll classifies a batch with the policy's light-tier worker count.
func (r *Router) ReviewAll(ctx context.Context, inputs []Input) []Result {
	workers := r.policy().LightWorkers
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(inputs))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = Result{
					Input:          inputs[i],
					Classification: r.Review(ctx, inputs[i]),
				}
			}
		}()
	}

	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
