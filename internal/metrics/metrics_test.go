package metrics

import (
	"context"
	"testing"
	"time"

	"showrunner/internal/coord"
)

func TestRollupWindow(t *testing.T) {
	kv := coord.NewMemoryKV()
	recorder := NewRecorder(kv)
	ctx := context.Background()
	now := time.Now().UTC()

	recorder.Record(ctx, ListReview, Observation{At: now, Label: "light", LatencyMS: 100, OK: true, Confidence: 0.92})
	recorder.Record(ctx, ListReview, Observation{At: now, Label: "light", LatencyMS: 200, OK: true, Confidence: 0.45})
	recorder.Record(ctx, ListReview, Observation{At: now, Label: "heavy", LatencyMS: 600, OK: false, Confidence: -1})

	// Outside the window, must be excluded.
	recorder.Record(ctx, ListReview, Observation{At: now.Add(-2 * time.Hour), Label: "light", LatencyMS: 999, OK: true, Confidence: 0.5})

	rollup, err := recorder.RollupWindow(ctx, ListReview, time.Hour)
	if err != nil {
		t.Fatalf("RollupWindow failed: %v", err)
	}

	if rollup.Count != 3 {
		t.Errorf("Expected 3 observations in window, got %d", rollup.Count)
	}
	if rollup.ErrorCount != 1 {
		t.Errorf("Expected 1 error, got %d", rollup.ErrorCount)
	}
	if want := 2.0 / 3.0; rollup.SuccessRate < want-0.001 || rollup.SuccessRate > want+0.001 {
		t.Errorf("Expected success rate %.3f, got %.3f", want, rollup.SuccessRate)
	}
	if rollup.AvgLatencyMS != 300 {
		t.Errorf("Expected average latency 300ms, got %.0f", rollup.AvgLatencyMS)
	}
	if rollup.ConfidenceHist["0.9"] != 1 || rollup.ConfidenceHist["0.4"] != 1 {
		t.Errorf("Unexpected confidence histogram: %v", rollup.ConfidenceHist)
	}
	// Negative confidence means not applicable and stays out of the histogram.
	total := 0
	for _, n := range rollup.ConfidenceHist {
		total += n
	}
	if total != 2 {
		t.Errorf("Expected 2 histogram entries, got %d", total)
	}
}

func TestRollupWindowEmpty(t *testing.T) {
	recorder := NewRecorder(coord.NewMemoryKV())

	rollup, err := recorder.RollupWindow(context.Background(), ListGeneration, time.Hour)
	if err != nil {
		t.Fatalf("RollupWindow failed: %v", err)
	}
	if rollup.Count != 0 || rollup.SuccessRate != 0 {
		t.Errorf("Expected a zero rollup, got count=%d rate=%f", rollup.Count, rollup.SuccessRate)
	}
}

func TestRecordBoundsList(t *testing.T) {
	kv := coord.NewMemoryKV()
	recorder := &Recorder{kv: kv, max: 5}
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		recorder.Record(ctx, ListReview, Observation{Label: "light", OK: true, Confidence: 0.9})
	}

	entries, err := kv.Entries(ctx, ListReview)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("Expected the list to be trimmed to 5, got %d", len(entries))
	}
}

func TestConfidenceBucket(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.0, "0.0"},
		{0.05, "0.0"},
		{0.45, "0.4"},
		{0.85, "0.8"},
		{0.99, "0.9"},
		{1.0, "0.9"},
	}
	for _, tt := range tests {
		if got := confidenceBucket(tt.confidence); got != tt.want {
			t.Errorf("confidenceBucket(%.2f): expected %s, got %s", tt.confidence, tt.want, got)
		}
	}
}
