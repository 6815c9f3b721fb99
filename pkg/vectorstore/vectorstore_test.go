package vectorstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

func embeddedChunk(id string) types.EmbeddedChunk {
	return types.EmbeddedChunk{
		Chunk: types.Chunk{
			ChunkID: id,
			Type:    "knowledge",
			Content: strings.Repeat("あ", 1100),
			Metadata: types.ChunkMetadata{
				Topic:       "黄金率",
				KnowledgeID: "k001",
				People:      []string{"青木仁志", "松下幸之助"},
				Concepts:    []string{"黄金率", "価値観"},
				Timestamp:   types.TimeRange{Start: "00:00:01,000", End: "00:01:00,000"},
				Importance:  types.ImportanceHigh,
				Category:    "黄金率",
				Keywords:    []string{"黄金率", "実践"},
			},
		},
		Embedding: []float32{0.1, 0.2, 0.3},
	}
}

func TestToVector(t *testing.T) {
	v := ToVector(embeddedChunk("chunk_001"), "lecture-01.srt")

	if v.ID != "chunk_001" {
		t.Errorf("id = %q, want chunk id", v.ID)
	}
	if len(v.Values) != 3 {
		t.Errorf("values length = %d", len(v.Values))
	}

	content, _ := v.Metadata["content"].(string)
	if got := len([]rune(content)); got != 1000 {
		t.Errorf("metadata content has %d runes, want truncation to 1000", got)
	}
	if v.Metadata["people"] != "青木仁志,松下幸之助" {
		t.Errorf("people = %v, want comma-separated string", v.Metadata["people"])
	}
	if v.Metadata["importance"] != "high" {
		t.Errorf("importance = %v", v.Metadata["importance"])
	}
	if v.Metadata["transcriptFile"] != "lecture-01.srt" {
		t.Errorf("transcriptFile = %v", v.Metadata["transcriptFile"])
	}
	if v.Metadata["timestamp"] != "00:00:01,000 - 00:01:00,000" {
		t.Errorf("timestamp = %v", v.Metadata["timestamp"])
	}
	uploadDate, _ := v.Metadata["uploadDate"].(string)
	if _, err := time.Parse(time.RFC3339, uploadDate); err != nil {
		t.Errorf("uploadDate %q not RFC 3339: %v", uploadDate, err)
	}
}

func TestUpsertInBatches(t *testing.T) {
	chunks := make([]types.EmbeddedChunk, 5)
	for i := range chunks {
		chunks[i] = embeddedChunk("chunk_00" + string(rune('1'+i)))
	}

	var batches [][]Vector
	err := UpsertInBatches(context.Background(), chunks, UpsertOptions{BatchSize: 2, Namespace: "ns"},
		func(_ context.Context, batch []Vector, namespace string) error {
			if namespace != "ns" {
				t.Errorf("namespace = %q", namespace)
			}
			batches = append(batches, batch)
			return nil
		})
	if err != nil {
		t.Fatalf("UpsertInBatches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Errorf("batch sizes = %d, %d, %d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestUpsertInBatchesReportsFailingBatch(t *testing.T) {
	chunks := make([]types.EmbeddedChunk, 4)
	for i := range chunks {
		chunks[i] = embeddedChunk("chunk_00" + string(rune('1'+i)))
	}

	boom := errors.New("write failed")
	calls := 0
	err := UpsertInBatches(context.Background(), chunks, UpsertOptions{BatchSize: 2},
		func(context.Context, []Vector, string) error {
			calls++
			if calls == 2 {
				return boom
			}
			return nil
		})

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("err = %v, want *BatchError", err)
	}
	if batchErr.Batch != 1 {
		t.Errorf("failing batch = %d, want 1", batchErr.Batch)
	}
	if batchErr.Uploaded != 2 {
		t.Errorf("uploaded = %d, want 2", batchErr.Uploaded)
	}
	if !errors.Is(err, boom) {
		t.Error("BatchError must wrap the underlying error")
	}
}

func TestUpsertInBatchesEmpty(t *testing.T) {
	err := UpsertInBatches(context.Background(), nil, UpsertOptions{},
		func(context.Context, []Vector, string) error {
			t.Fatal("write must not be called for empty input")
			return nil
		})
	if err != nil {
		t.Fatalf("UpsertInBatches(nil): %v", err)
	}
}

func TestNamespaceSummaryCount(t *testing.T) {
	// recordCount is authoritative when both are present.
	both := NamespaceSummary{RecordCount: 10, VectorCount: 7}
	if got := both.Count(); got != 10 {
		t.Errorf("Count() = %d, want recordCount 10", got)
	}
	vectorOnly := NamespaceSummary{VectorCount: 7}
	if got := vectorOnly.Count(); got != 7 {
		t.Errorf("Count() = %d, want vectorCount 7", got)
	}
}

func TestIndexDescriptionNamespaceTotal(t *testing.T) {
	desc := &IndexDescription{
		TotalVectorCount: 99,
		Namespaces: map[string]NamespaceSummary{
			"a": {RecordCount: 3},
			"b": {VectorCount: 4},
		},
	}
	if got := desc.NamespaceTotal(); got != 7 {
		t.Errorf("NamespaceTotal() = %d, want namespace sum 7", got)
	}

	noNamespaces := &IndexDescription{TotalVectorCount: 99}
	if got := noNamespaces.NamespaceTotal(); got != 99 {
		t.Errorf("NamespaceTotal() = %d, want index-level 99", got)
	}
}
