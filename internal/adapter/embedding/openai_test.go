package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prodvec/config"
	"prodvec/internal/domain"
	"prodvec/internal/logging"
)

func embeddingServer(t *testing.T, dimension int, seen *embeddingRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		vector := make([]float32, dimension)
		for i := range vector {
			vector[i] = 0.5
		}
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: vector}},
		})
	}))
}

func TestOpenAIEmbedderSuccess(t *testing.T) {
	var req embeddingRequest
	srv := embeddingServer(t, 8, &req)
	defer srv.Close()

	e := newOpenAIEmbedder("test-key", OpenAIOptions{
		Model:     "text-embedding-3-large",
		BaseURL:   srv.URL,
		Dimension: 8,
		Timeout:   time.Second,
	})

	vector, err := e.Embed(context.Background(), "HELD Inuit Heizhandschuh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 8 {
		t.Errorf("expected 8 values, got %d", len(vector))
	}
	if req.Input != "HELD Inuit Heizhandschuh" {
		t.Errorf("expected input to be sent, got %q", req.Input)
	}
	if req.Dimensions != 8 {
		t.Errorf("expected dimensions=8 for text-embedding-3 models, got %d", req.Dimensions)
	}
}

func TestOpenAIEmbedderOmitsDimensionsForLegacyModel(t *testing.T) {
	var req embeddingRequest
	srv := embeddingServer(t, 4, &req)
	defer srv.Close()

	e := newOpenAIEmbedder("test-key", OpenAIOptions{
		Model:     "text-embedding-ada-002",
		BaseURL:   srv.URL,
		Dimension: 4,
	})
	if _, err := e.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if req.Dimensions != 0 {
		t.Errorf("expected no dimensions parameter, got %d", req.Dimensions)
	}
}

func TestOpenAIEmbedderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "quota error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
		},
		{
			name: "wrong vector length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(embeddingResponse{
					Data: []embeddingData{{Embedding: []float32{1, 2}}},
				})
			},
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			e := newOpenAIEmbedder("test-key", OpenAIOptions{
				Model:     "text-embedding-3-small",
				BaseURL:   srv.URL,
				Dimension: 4,
			})
			_, err := e.Embed(context.Background(), "x")
			if !errors.Is(err, domain.ErrEmbedding) {
				t.Errorf("expected ErrEmbedding, got %v", err)
			}
		})
	}
}

func TestOpenAIEmbedderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	e := newOpenAIEmbedder("test-key", OpenAIOptions{
		Model:     "text-embedding-3-small",
		BaseURL:   srv.URL,
		Dimension: 4,
		Timeout:   50 * time.Millisecond,
	})
	if _, err := e.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbedding) {
		t.Errorf("expected ErrEmbedding on timeout, got %v", err)
	}
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	t.Setenv("PRODVEC_TEST_MISSING_KEY", "")
	if _, err := NewOpenAIEmbedder(OpenAIOptions{APIKeyEnv: "PRODVEC_TEST_MISSING_KEY"}); err == nil {
		t.Error("expected error when API key is unset")
	}
}

func TestFactory(t *testing.T) {
	logger := logging.Discard()

	cfg := config.DefaultConfig().Embedding
	cfg.APIKeyEnv = "PRODVEC_TEST_FACTORY_KEY"
	cfg.Dimension = 32

	t.Run("auto without key is offline", func(t *testing.T) {
		t.Setenv("PRODVEC_TEST_FACTORY_KEY", "")
		e, err := New(cfg, logger)
		if err != nil {
			t.Fatal(err)
		}
		if e.ModelName() != OfflineModelName {
			t.Errorf("expected offline embedder, got %s", e.ModelName())
		}
	})

	t.Run("auto with key is remote", func(t *testing.T) {
		t.Setenv("PRODVEC_TEST_FACTORY_KEY", "sk-test")
		e, err := New(cfg, logger)
		if err != nil {
			t.Fatal(err)
		}
		if e.ModelName() != cfg.Model {
			t.Errorf("expected %s, got %s", cfg.Model, e.ModelName())
		}
	})

	t.Run("explicit openai never falls back", func(t *testing.T) {
		t.Setenv("PRODVEC_TEST_FACTORY_KEY", "")
		explicit := cfg
		explicit.Provider = "openai"
		if _, err := New(explicit, logger); err == nil {
			t.Error("expected error for explicit openai without key")
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		unknown := cfg
		unknown.Provider = "voyage"
		if _, err := New(unknown, logger); err == nil {
			t.Error("expected error for unknown provider")
		}
	})
}
