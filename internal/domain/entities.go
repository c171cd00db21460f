package domain

import "time"

// Chunk is one unit of source content as read from a dataset.
type Chunk struct {
	ID        string
	Content   string
	EntityKey string
	Index     int
	Metadata  Metadata
}

// Point is the stored record in a vector collection.
type Point struct {
	ID      uint64    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload Payload   `json:"payload"`
}

type Payload struct {
	ChunkID  string   `json:"chunk_id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

type ScoredPoint struct {
	Point
	Score float64
}

// SearchHit is a display-oriented view of a ScoredPoint.
type SearchHit struct {
	Score     float64 `json:"score"`
	ChunkID   string  `json:"chunk_id"`
	EntityKey string  `json:"entity_key,omitempty"`
	Snippet   string  `json:"content_snippet"`
}

type CollectionParams struct {
	VectorSize int      `json:"vector_size"`
	Distance   Distance `json:"distance"`
}

type CollectionInfo struct {
	Name          string   `json:"collection_name"`
	PointsCount   int      `json:"points_count"`
	VectorSize    int      `json:"vector_size"`
	Distance      Distance `json:"distance"`
	Status        string   `json:"status"`
	IndexedFields []string `json:"indexed_fields,omitempty"`
}

// FieldMatch requires a metadata field to equal Value.
type FieldMatch struct {
	Key   string
	Value string
}

// Filter is a conjunction of field matches. An empty filter matches everything.
type Filter struct {
	Must []FieldMatch
}

func MatchField(key, value string) Filter {
	return Filter{Must: []FieldMatch{{Key: key, Value: value}}}
}

func (f Filter) IsEmpty() bool {
	return len(f.Must) == 0
}

// Matches reports whether the metadata satisfies every condition.
func (f Filter) Matches(md Metadata) bool {
	for _, cond := range f.Must {
		v, ok := md.Lookup(cond.Key)
		if !ok || !valueEquals(v, cond.Value) {
			return false
		}
	}
	return true
}

// Dataset is the parsed form of one source JSON document.
type Dataset struct {
	Path     string
	Metadata DatasetMetadata
	Records  []ChunkRecord
}

type DatasetMetadata struct {
	ProductID    string         `json:"product_id"`
	ProductName  string         `json:"product_name,omitempty"`
	Brand        string         `json:"brand,omitempty"`
	CategoryPath string         `json:"category_path,omitempty"`
	ProductLine  string         `json:"product_line,omitempty"`
	Extra        map[string]any `json:"-"`
}

type ChunkRecord struct {
	ChunkID  string         `json:"chunk_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Chunks converts the records into chunks keyed by the dataset's product id.
func (d *Dataset) Chunks() []Chunk {
	chunks := make([]Chunk, 0, len(d.Records))
	for i, rec := range d.Records {
		chunks = append(chunks, Chunk{
			ID:        rec.ChunkID,
			Content:   rec.Content,
			EntityKey: d.Metadata.ProductID,
			Index:     i,
			Metadata:  MetadataFromMap(rec.Metadata),
		})
	}
	return chunks
}

// Stage names the furthest point an upsert reached.
type Stage string

const (
	StageLoaded      Stage = "LOADED"
	StageEnriched    Stage = "ENRICHED"
	StageVectorized  Stage = "VECTORIZED"
	StageDeletedOld  Stage = "DELETED_OLD"
	StageInsertedNew Stage = "INSERTED_NEW"
	StageVerified    Stage = "VERIFIED"
)

// UpsertResult is the per-entity outcome of a replace operation.
type UpsertResult struct {
	EntityKey        string   `json:"entity_key"`
	ChunksLoaded     int      `json:"chunks_loaded"`
	ChunksVectorized int      `json:"chunks_vectorized"`
	ChunksFailed     int      `json:"chunks_failed"`
	PointsUpserted   int      `json:"points_upserted"`
	FailedChunkIDs   []string `json:"failed_chunk_ids,omitempty"`
	Stage            Stage    `json:"stage"`
	Success          bool     `json:"success"`
	Error            string   `json:"error,omitempty"`
}

// Verification holds the advisory checks run after an upsert.
type Verification struct {
	PointsCount   int                    `json:"points_count"`
	CountMatches  bool                   `json:"count_matches"`
	SampleChunkID string                 `json:"sample_chunk_id,omitempty"`
	Queries       map[string][]SearchHit `json:"queries,omitempty"`
}

// RunResult is the structured record produced by one pipeline run.
type RunResult struct {
	RunID       string    `json:"run_id"`
	DatasetPath string    `json:"dataset_path,omitempty"`
	Collection  string    `json:"collection"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	UpsertResult
	Verification   *Verification   `json:"verification,omitempty"`
	CollectionInfo *CollectionInfo `json:"collection_info,omitempty"`
}
