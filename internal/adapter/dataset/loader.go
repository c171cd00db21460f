// Package dataset reads the pre-chunked product JSON documents the pipeline
// consumes.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"prodvec/internal/domain"
)

const datasetSchema = `{
  "type": "object",
  "required": ["dataset_metadata", "optimized_chunks"],
  "properties": {
    "dataset_metadata": {
      "type": "object",
      "required": ["product_id"],
      "properties": {
        "product_id": {"type": "string", "minLength": 1},
        "product_name": {"type": "string"},
        "brand": {"type": "string"},
        "category_path": {"type": "string"},
        "product_line": {"type": "string"}
      }
    },
    "optimized_chunks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["chunk_id", "content"],
        "properties": {
          "chunk_id": {"type": "string", "minLength": 1},
          "content": {"type": "string"},
          "metadata": {"type": "object"}
        }
      }
    }
  }
}`

var schema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(datasetSchema))
	if err != nil {
		panic(fmt.Sprintf("dataset schema does not compile: %v", err))
	}
	return s
}()

type document struct {
	DatasetMetadata map[string]any       `json:"dataset_metadata"`
	OptimizedChunks []domain.ChunkRecord `json:"optimized_chunks"`
}

// Load reads and validates the dataset at path. Every failure wraps
// domain.ErrInput.
func Load(path string) (*domain.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read dataset: %v", domain.ErrInput, err)
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Path = path
	return ds, nil
}

// Parse validates raw dataset JSON against the dataset schema and decodes it.
func Parse(data []byte) (*domain.Dataset, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", domain.ErrInput, err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("%w: dataset failed validation: %s", domain.ErrInput, strings.Join(details, "; "))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode dataset: %v", domain.ErrInput, err)
	}

	seen := make(map[string]bool, len(doc.OptimizedChunks))
	for _, rec := range doc.OptimizedChunks {
		if seen[rec.ChunkID] {
			return nil, fmt.Errorf("%w: duplicate chunk_id %q", domain.ErrInput, rec.ChunkID)
		}
		seen[rec.ChunkID] = true
	}

	return &domain.Dataset{
		Metadata: datasetMetadata(doc.DatasetMetadata),
		Records:  doc.OptimizedChunks,
	}, nil
}

func datasetMetadata(m map[string]any) domain.DatasetMetadata {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	md := domain.DatasetMetadata{
		ProductID:    str("product_id"),
		ProductName:  str("product_name"),
		Brand:        str("brand"),
		CategoryPath: str("category_path"),
		ProductLine:  str("product_line"),
		Extra:        make(map[string]any),
	}
	for k, v := range m {
		switch k {
		case "product_id", "product_name", "brand", "category_path", "product_line":
		default:
			md.Extra[k] = v
		}
	}
	return md
}
