package review

import (
	"sort"
	"strings"

	"showrunner/internal/core"
)

// topicKeywords maps a topic label to the keywords that vote for it. The
// table is deliberately small: the heuristic only exists so a light-tier
// outage still yields a reviewable article.
var topicKeywords = map[string][]string{
	"technology": {"software", "ai", "model", "chip", "startup", "app", "cloud", "data"},
	"business":   {"market", "revenue", "earnings", "acquisition", "funding", "ipo", "stock"},
	"science":    {"research", "study", "climate", "space", "physics", "biology", "vaccine"},
	"politics":   {"election", "senate", "parliament", "policy", "president", "minister"},
	"sports":     {"match", "season", "league", "championship", "tournament", "coach"},
}

// HeuristicClassify produces a deterministic keyword-based classification
// with confidence 0.0. It is the substitute used when the light classifier
// call itself errors, so the pipeline always produces a result.
func HeuristicClassify(input Input) core.Classification {
	haystack := strings.ToLower(input.Title + " " + input.Text)

	bestTopic := "general"
	bestScore := 0
	var matched []string

	// Sorted iteration keeps the result deterministic on score ties.
	topics := make([]string, 0, len(topicKeywords))
	for topic := range topicKeywords {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	for _, topic := range topics {
		score := 0
		var hits []string
		for _, keyword := range topicKeywords[topic] {
			if strings.Contains(haystack, keyword) {
				score++
				hits = append(hits, keyword)
			}
		}
		if score > bestScore {
			bestScore = score
			bestTopic = topic
			matched = hits
		}
	}

	if len(matched) > 5 {
		matched = matched[:5]
	}

	summary := strings.TrimSpace(input.Title)
	if len(summary) > 500 {
		summary = summary[:500]
	}

	return core.Classification{
		Topic:      bestTopic,
		Subject:    strings.TrimSpace(input.Title),
		Tags:       matched,
		Summary:    summary,
		Importance: 1,
		Confidence: 0.0,
		Tier:       core.TierHeuristic,
	}
}
