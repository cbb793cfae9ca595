// Package tts synthesizes episode scripts into audio through a provider HTTP
// API. Only the OpenAI-compatible speech endpoint and a mock provider are
// wired; the contract is the generation.Synthesizer interface.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/core"
)

// Provider represents different TTS service providers
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderMock   Provider = "mock"
)

// Config holds TTS configuration
type Config struct {
	Provider   Provider
	APIKey     string
	Model      string
	OutputDir  string
	Speed      float64 // 0.5 - 2.0
	HTTPClient *http.Client
}

// OpenAIRequest represents an OpenAI speech request
type OpenAIRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

// Client handles text-to-speech operations. It implements
// generation.Synthesizer.
type Client struct {
	config *Config
}

// NewClient creates a new TTS client
func NewClient(config *Config) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{
			Timeout: 60 * time.Second,
		}
	}
	if config.OutputDir == "" {
		config.OutputDir = "audio"
	}
	if config.Model == "" {
		config.Model = "tts-1"
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	return &Client{config: config}
}

// Synthesize converts a script into audio with the assigned voice and returns
// the stored artifact.
func (c *Client) Synthesize(ctx context.Context, script, voice string) (core.AudioArtifact, error) {
	if strings.TrimSpace(script) == "" {
		return core.AudioArtifact{}, fmt.Errorf("script is empty")
	}
	if voice == "" {
		voice = "alloy"
	}

	switch c.config.Provider {
	case ProviderMock:
		return c.synthesizeMock(script)
	default:
		return c.synthesizeOpenAI(ctx, script, voice)
	}
}

func (c *Client) synthesizeOpenAI(ctx context.Context, script, voice string) (core.AudioArtifact, error) {
	if c.config.APIKey == "" {
		return core.AudioArtifact{}, fmt.Errorf("TTS API key not configured")
	}

	request := OpenAIRequest{
		Model:          c.config.Model,
		Input:          script,
		Voice:          voice,
		ResponseFormat: "mp3",
		Speed:          c.config.Speed,
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return core.AudioArtifact{}, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		"https://api.openai.com/v1/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return core.AudioArtifact{}, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return core.AudioArtifact{}, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return core.AudioArtifact{}, fmt.Errorf("TTS API returned %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.AudioArtifact{}, fmt.Errorf("failed to read audio response: %w", err)
	}

	path, err := c.writeAudio(audio, "mp3")
	if err != nil {
		return core.AudioArtifact{}, err
	}

	return core.AudioArtifact{
		URL:      path,
		Duration: EstimateAudioLength(script, c.config.Speed),
		Size:     int64(len(audio)),
		Format:   "mp3",
	}, nil
}

// synthesizeMock writes the script bytes as a placeholder artifact, for
// tests and local runs without an API key.
func (c *Client) synthesizeMock(script string) (core.AudioArtifact, error) {
	path, err := c.writeAudio([]byte(script), "txt")
	if err != nil {
		return core.AudioArtifact{}, err
	}
	return core.AudioArtifact{
		URL:      path,
		Duration: EstimateAudioLength(script, c.config.Speed),
		Size:     int64(len(script)),
		Format:   "txt",
	}, nil
}

func (c *Client) writeAudio(audio []byte, ext string) (string, error) {
	if err := os.MkdirAll(c.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(c.config.OutputDir, fmt.Sprintf("episode-%s.%s", uuid.NewString(), ext))
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	return path, nil
}

// EstimateAudioLength estimates spoken duration in seconds, assuming roughly
// 150 words per minute at speed 1.0.
func EstimateAudioLength(script string, speed float64) float64 {
	if speed <= 0 {
		speed = 1.0
	}
	words := len(strings.Fields(script))
	return float64(words) / (150.0 * speed) * 60.0
}
