package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) *openAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &openAIClient{
		log:        testLogger(t).With("service", "OpenAIClient"),
		baseURL:    srv.URL,
		apiKey:     "test-key",
		model:      "gpt-4o",
		embedModel: "text-embedding-3-small",
		httpClient: srv.Client(),
		maxRetries: 2,
	}
}

func TestGenerateJSONRetriesOn429(t *testing.T) {
	attempts := 0
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	})

	raw, err := client.GenerateJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts got %d", attempts)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("unexpected payload %s", raw)
	}
}

func TestGenerateJSONDoesNotRetryOn400(t *testing.T) {
	attempts := 0
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	})

	if _, err := client.GenerateJSON(context.Background(), "sys", "user"); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt for 400 got %d", attempts)
	}
}

func TestGenerateJSONRejectsInvalidJSON(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"not json at all"},"finish_reason":"stop"}]}`))
	})

	if _, err := client.GenerateJSON(context.Background(), "sys", "user"); err == nil {
		t.Fatalf("expected error for non-JSON content")
	}
}

func TestGenerateJSONRejectsRefusal(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","refusal":"cannot comply"},"finish_reason":"stop"}]}`))
	})

	if _, err := client.GenerateJSON(context.Background(), "sys", "user"); err == nil {
		t.Fatalf("expected error for refusal")
	}
}

func TestEmbedOrdersByIndex(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// deliberately out of order
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.2],"index":1},{"embedding":[0.1],"index":0}]}`))
	})

	vecs, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 0.1 || vecs[1][0] != 0.2 {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
}

func TestEmbedMissingIndexFails(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1],"index":0}]}`))
	})

	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected error for missing embedding")
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected for empty input")
	})

	vecs, err := client.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vecs) != 0 {
		t.Fatalf("expected empty result got %d", len(vecs))
	}
}
