package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dealscout/sourcing/pkg/config"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		apiKey:     "test-key",
		model:      "text-embedding-3-small",
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestEmbedBatch_PlacesVectorsByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %s", got)
		}

		var payload struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(payload.Input) != 2 {
			t.Fatalf("expected 2 inputs, got %d", len(payload.Input))
		}

		// Deliberately out of order to exercise index placement.
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float32{0.4, 0.5, 0.6}},
				{"index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 {
		t.Errorf("vector 0 not placed by index: %v", vectors[0])
	}
	if vectors[1][0] != 0.4 {
		t.Errorf("vector 1 not placed by index: %v", vectors[1])
	}
}

func TestEmbedBatch_CountMismatchIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{0.1}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	if err == nil {
		t.Fatal("expected error for mismatched embedding count")
	}
}

func TestEmbedBatch_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.EmbedBatch(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected error for 429 status")
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	client := newTestClient("http://unused")
	vectors, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("expected no vectors, got %d", len(vectors))
	}
}

func TestEmbedText_ReturnsSingleVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{0.7, 0.8}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vector, err := client.EmbedText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 2 || vector[1] != 0.8 {
		t.Errorf("unexpected vector: %v", vector)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(&config.OpenAIConfig{})
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestNewClient_DefaultsModel(t *testing.T) {
	client, err := NewClient(&config.OpenAIConfig{APIKey: "key", RateLimitRPM: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "text-embedding-3-small" {
		t.Errorf("unexpected default model: %s", client.model)
	}
}
