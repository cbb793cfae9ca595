package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPublishSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request publishRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		if request.EpisodeID != "ep1" {
			t.Errorf("Expected episode ep1, got %s", request.EpisodeID)
		}
		json.NewEncoder(w).Encode(publishResponse{ExternalID: "ext-1", URL: "https://host/ep1"})
	}))
	defer server.Close()

	client := NewClient(map[string]string{"podhost": server.URL}, time.Second)

	results, err := client.Publish(context.Background(), "ep1", []string{"podhost"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Status != "published" || results[0].ExternalID != "ext-1" {
		t.Errorf("Unexpected result: %+v", results[0])
	}
}

func TestPublishPartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	client := NewClient(map[string]string{"good": good.URL, "bad": bad.URL}, time.Second)

	results, err := client.Publish(context.Background(), "ep1", []string{"good", "bad"})
	if err != nil {
		t.Fatalf("Expected per-platform failures to stay in the results, got %v", err)
	}

	byPlatform := make(map[string]string)
	for _, result := range results {
		byPlatform[result.Platform] = result.Status
	}
	if byPlatform["good"] != "published" {
		t.Errorf("Expected good platform published, got %s", byPlatform["good"])
	}
	if byPlatform["bad"] != "failed" {
		t.Errorf("Expected bad platform failed, got %s", byPlatform["bad"])
	}
}

func TestPublishUnknownPlatform(t *testing.T) {
	client := NewClient(map[string]string{}, time.Second)

	results, err := client.Publish(context.Background(), "ep1", []string{"ghost"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if results[0].Status != "failed" {
		t.Errorf("Expected an unconfigured platform to fail, got %s", results[0].Status)
	}
}

func TestPublishNoPlatforms(t *testing.T) {
	client := NewClient(map[string]string{}, time.Second)

	if _, err := client.Publish(context.Background(), "ep1", nil); err == nil {
		t.Error("Expected an empty platform set to be an error")
	}
}
