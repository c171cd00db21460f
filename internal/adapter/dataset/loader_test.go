package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prodvec/internal/domain"
)

func TestLoadFixture(t *testing.T) {
	ds, err := Load(filepath.Join("testdata", "inuit_022572-00.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ds.Metadata.ProductID != "022572-00" {
		t.Errorf("expected ProductID=022572-00, got %s", ds.Metadata.ProductID)
	}
	if ds.Metadata.ProductName != "HELD Inuit Heizhandschuh" {
		t.Errorf("unexpected ProductName %q", ds.Metadata.ProductName)
	}
	if ds.Metadata.Extra["source_language"] != "de" {
		t.Errorf("expected unknown dataset fields in Extra, got %v", ds.Metadata.Extra)
	}

	chunks := ds.Chunks()
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	expectedIDs := []string{"inuit_001_overview", "inuit_002_heating_system", "inuit_003_materials"}
	for i, c := range chunks {
		if c.ID != expectedIDs[i] {
			t.Errorf("chunk %d: expected %s, got %s", i, expectedIDs[i], c.ID)
		}
		if c.EntityKey != "022572-00" {
			t.Errorf("chunk %d: expected entity key 022572-00, got %s", i, c.EntityKey)
		}
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
		if c.Metadata.System != nil {
			t.Errorf("chunk %d: expected no system fields before enrichment", i)
		}
	}
	if got := chunks[1].Metadata.FieldValues("customer_intent"); len(got) != 2 || got[0] != "akkulaufzeit" {
		t.Errorf("unexpected customer_intent %v", got)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"malformed json", `{"dataset_metadata": `, "malformed"},
		{"missing metadata", `{"optimized_chunks": [{"chunk_id": "a", "content": "x"}]}`, "dataset_metadata"},
		{"empty product id", `{"dataset_metadata": {"product_id": ""}, "optimized_chunks": [{"chunk_id": "a", "content": "x"}]}`, "product_id"},
		{"no chunks", `{"dataset_metadata": {"product_id": "p"}, "optimized_chunks": []}`, "optimized_chunks"},
		{"chunk without content", `{"dataset_metadata": {"product_id": "p"}, "optimized_chunks": [{"chunk_id": "a"}]}`, "content"},
		{"metadata not object", `{"dataset_metadata": {"product_id": "p"}, "optimized_chunks": [{"chunk_id": "a", "content": "x", "metadata": [1]}]}`, "metadata"},
		{"duplicate chunk id", `{"dataset_metadata": {"product_id": "p"}, "optimized_chunks": [{"chunk_id": "a", "content": "x"}, {"chunk_id": "a", "content": "y"}]}`, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if !errors.Is(err, domain.ErrInput) {
				t.Fatalf("expected ErrInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("expected error to mention %q, got %v", tt.message, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, domain.ErrInput) {
		t.Errorf("expected ErrInput, got %v", err)
	}
}

func TestWalker(t *testing.T) {
	w := NewWalker([]string{"**/*.json"}, []string{"**/.prodvec/**"})

	files, err := w.Walk("testdata")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 datasets, got %v", files)
	}
	if filepath.Base(files[0]) != "inuit_022572-00.json" || filepath.Base(files[1]) != "other.json" {
		t.Errorf("unexpected files %v", files)
	}
}

func TestWalkerResolve(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "single.json")
	if err := os.WriteFile(single, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	w := NewWalker(nil, []string{"**/.prodvec/**"})
	files, err := w.Resolve([]string{single, filepath.Join("testdata", "nested")})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected file plus walked dataset, got %v", files)
	}
	if files[0] != single {
		t.Errorf("expected explicit file first, got %s", files[0])
	}

	if _, err := w.Resolve([]string{filepath.Join(dir, "absent")}); err == nil {
		t.Error("expected error for missing path")
	}
}
