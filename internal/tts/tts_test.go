package tts

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestSynthesizeMock(t *testing.T) {
	client := NewClient(&Config{
		Provider:  ProviderMock,
		OutputDir: t.TempDir(),
	})

	artifact, err := client.Synthesize(context.Background(), "Hello listeners, welcome back.", "alloy")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if artifact.URL == "" {
		t.Fatal("Expected an artifact path")
	}
	if _, err := os.Stat(artifact.URL); err != nil {
		t.Errorf("Expected the artifact written to disk: %v", err)
	}
	if artifact.Duration <= 0 {
		t.Errorf("Expected a positive duration estimate, got %f", artifact.Duration)
	}
}

func TestSynthesizeEmptyScript(t *testing.T) {
	client := NewClient(&Config{Provider: ProviderMock, OutputDir: t.TempDir()})

	if _, err := client.Synthesize(context.Background(), "   ", "alloy"); err == nil {
		t.Error("Expected an empty script to be rejected")
	}
}

func TestSynthesizeOpenAIRequiresKey(t *testing.T) {
	client := NewClient(&Config{Provider: ProviderOpenAI, OutputDir: t.TempDir()})

	_, err := client.Synthesize(context.Background(), "Hello.", "alloy")
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("Expected a missing-key error, got %v", err)
	}
}

func TestEstimateAudioLength(t *testing.T) {
	script := strings.Repeat("word ", 150)

	if got := EstimateAudioLength(script, 1.0); got != 60 {
		t.Errorf("Expected 150 words to estimate 60s, got %f", got)
	}
	if got := EstimateAudioLength(script, 2.0); got != 30 {
		t.Errorf("Expected double speed to halve the estimate, got %f", got)
	}
	if got := EstimateAudioLength("", 1.0); got != 0 {
		t.Errorf("Expected an empty script to estimate 0s, got %f", got)
	}
}
