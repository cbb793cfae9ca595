// Package publish pushes finished episodes to hosting platforms over their
// HTTP APIs. It implements generation.Publisher.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"showrunner/internal/core"
	"showrunner/internal/logger"
)

// Client publishes episodes to the configured platform endpoints.
type Client struct {
	endpoints  map[string]string // platform name -> endpoint URL
	httpClient *http.Client
}

// NewClient creates a publishing client. endpoints maps each platform name
// to its upload/webhook URL.
func NewClient(endpoints map[string]string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type publishRequest struct {
	EpisodeID string `json:"episode_id"`
}

type publishResponse struct {
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
}

// Publish pushes the episode to each requested platform. A platform failure
// is recorded in its result row, never returned as an error for the batch;
// the error return covers only a fully empty platform set.
func (c *Client) Publish(ctx context.Context, episodeID string, platforms []string) ([]core.PublishResult, error) {
	if len(platforms) == 0 {
		return nil, fmt.Errorf("no platforms requested")
	}

	results := make([]core.PublishResult, 0, len(platforms))
	for _, platform := range platforms {
		results = append(results, c.publishOne(ctx, episodeID, platform))
	}
	return results, nil
}

func (c *Client) publishOne(ctx context.Context, episodeID, platform string) core.PublishResult {
	result := core.PublishResult{Platform: platform, Status: "failed"}

	endpoint, ok := c.endpoints[platform]
	if !ok {
		logger.Warn("No endpoint configured for platform", "platform", platform)
		return result
	}

	payload, _ := json.Marshal(publishRequest{EpisodeID: episodeID})
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Publish request failed", "platform", platform, "error", err.Error())
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("Publish rejected", "platform", platform, "status", resp.StatusCode)
		return result
	}

	var parsed publishResponse
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); err == nil {
		_ = json.Unmarshal(body, &parsed)
	}

	result.Status = "published"
	result.ExternalID = parsed.ExternalID
	result.URL = parsed.URL
	return result
}
