package upstash_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kotodama-ai/kotodama/pkg/types"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore/upstash"
)

func TestNew_MissingCredentials(t *testing.T) {
	if _, err := upstash.New("", "token"); !errors.Is(err, vectorstore.ErrNotConfigured) {
		t.Errorf("empty url: err = %v, want ErrNotConfigured", err)
	}
	if _, err := upstash.New("https://x.upstash.io", ""); !errors.Is(err, vectorstore.ErrNotConfigured) {
		t.Errorf("empty token: err = %v, want ErrNotConfigured", err)
	}
}

func TestQuery_NamespacePathAndFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		if r.URL.Path != "/query/lectures" {
			t.Errorf("path = %q, want /query/lectures", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["filter"] != "importance = 'high'" {
			t.Errorf("filter = %v", body["filter"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "chunk_001", "score": 0.9},
			},
		})
	}))
	defer srv.Close()

	c, err := upstash.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	matches, err := c.Query(context.Background(), []float32{0.1}, vectorstore.QueryOptions{
		Namespace: "lectures",
		Filter:    map[string]any{"importance": "high"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "chunk_001" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestUpsert_WireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upsert" {
			t.Errorf("path = %q, want /upsert (default namespace)", r.URL.Path)
		}
		var records []map[string]any
		_ = json.NewDecoder(r.Body).Decode(&records)
		if len(records) != 1 {
			t.Fatalf("got %d records, want 1", len(records))
		}
		if records[0]["id"] != "chunk_001" {
			t.Errorf("id = %v", records[0]["id"])
		}
		if _, ok := records[0]["vector"]; !ok {
			t.Error("record missing vector field")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": "Success"})
	}))
	defer srv.Close()

	c, err := upstash.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	chunks := []types.EmbeddedChunk{
		{Chunk: types.Chunk{ChunkID: "chunk_001", Metadata: types.ChunkMetadata{Topic: "人生"}}, Embedding: []float32{0.1}},
	}
	if err := c.Upsert(context.Background(), chunks, vectorstore.UpsertOptions{}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestEnsureIndex_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"dimension": 384, "vectorCount": 10},
		})
	}))
	defer srv.Close()

	c, err := upstash.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.EnsureIndex(context.Background(), "any", 768); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if err := c.EnsureIndex(context.Background(), "any", 384); err != nil {
		t.Fatalf("matching dimension rejected: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"vectorCount": 12,
				"dimension":   768,
				"namespaces": map[string]any{
					"lectures": map[string]any{"vectorCount": 12},
				},
			},
		})
	}))
	defer srv.Close()

	c, err := upstash.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	desc, err := c.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc.TotalVectorCount != 12 || desc.Dimension != 768 {
		t.Errorf("desc = %+v", desc)
	}
	if got := desc.Namespaces["lectures"].Count(); got != 12 {
		t.Errorf("namespace count = %d", got)
	}
}
