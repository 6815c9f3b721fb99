package embeddings

import (
	"errors"
	"testing"
)

func TestResolveModelByAlias(t *testing.T) {
	tests := []struct {
		name       string
		wantID     string
		wantDims   int
		wantPrefix string
	}{
		{"multilingual-e5-large", "intfloat/multilingual-e5-large", 1024, "query: "},
		{"multilingual-e5-base", "intfloat/multilingual-e5-base", 768, "query: "},
		{"multilingual-e5-small", "intfloat/multilingual-e5-small", 384, "query: "},
		{"paraphrase-multilingual", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2", 384, ""},
		{"granite-multilingual", "ibm-granite/granite-embedding-278m-multilingual", 768, ""},
		{"text-embedding-3-small", "text-embedding-3-small", 1536, ""},
		{"text-embedding-3-large", "text-embedding-3-large", 3072, ""},
	}
	for _, tt := range tests {
		spec, err := ResolveModel(tt.name)
		if err != nil {
			t.Errorf("ResolveModel(%q): %v", tt.name, err)
			continue
		}
		if spec.ID != tt.wantID {
			t.Errorf("%s: ID = %q, want %q", tt.name, spec.ID, tt.wantID)
		}
		if spec.Dimensions != tt.wantDims {
			t.Errorf("%s: Dimensions = %d, want %d", tt.name, spec.Dimensions, tt.wantDims)
		}
		if spec.QueryPrefix != tt.wantPrefix {
			t.Errorf("%s: QueryPrefix = %q, want %q", tt.name, spec.QueryPrefix, tt.wantPrefix)
		}
	}
}

func TestResolveModelByWireID(t *testing.T) {
	spec, err := ResolveModel("intfloat/multilingual-e5-base")
	if err != nil {
		t.Fatalf("ResolveModel: %v", err)
	}
	if spec.Alias != "multilingual-e5-base" {
		t.Errorf("Alias = %q", spec.Alias)
	}
}

func TestResolveModelUnknown(t *testing.T) {
	_, err := ResolveModel("gpt-4")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("err = %v, want ErrUnknownModel", err)
	}
}
