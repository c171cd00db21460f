package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMetadataFromMapSplitsSystemKeys(t *testing.T) {
	md := MetadataFromMap(map[string]any{
		"chunk_type":      "overview",
		"confidence":      0.95,
		"customer_intent": []any{"price", "sizes"},
		KeyEntityKey:      "022572-00",
		KeyChunkIndex:     float64(2),
	})

	if md.System == nil {
		t.Fatal("expected system fields to be populated")
	}
	if md.System.EntityKey != "022572-00" {
		t.Errorf("expected entity key 022572-00, got %q", md.System.EntityKey)
	}
	if md.System.ChunkIndex != 2 {
		t.Errorf("expected chunk index 2, got %d", md.System.ChunkIndex)
	}
	if _, ok := md.Extra[KeyEntityKey]; ok {
		t.Error("system key leaked into extension area")
	}
	if md.Extra["chunk_type"] != "overview" {
		t.Errorf("expected business field to survive, got %v", md.Extra["chunk_type"])
	}
}

func TestMetadataJSONIsFlat(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	md := Metadata{
		System: &SystemFields{EntityKey: "022572-00", LastUpdated: now, ChunkIndex: 1},
		Extra:  map[string]any{"chunk_type": "materials"},
	}

	data, err := json.Marshal(md)
	if err != nil {
		t.Fatal(err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatal(err)
	}
	if flat[KeyEntityKey] != "022572-00" {
		t.Errorf("expected flat entity_key, got %v", flat[KeyEntityKey])
	}
	if flat["chunk_type"] != "materials" {
		t.Errorf("expected flat chunk_type, got %v", flat["chunk_type"])
	}
	if flat[KeyLastUpdated] != "2024-05-01T12:00:00Z" {
		t.Errorf("unexpected last_updated: %v", flat[KeyLastUpdated])
	}

	var back Metadata
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.System == nil || !back.System.LastUpdated.Equal(now) {
		t.Errorf("expected last_updated to survive decoding, got %+v", back.System)
	}
	if back.System.ChunkIndex != 1 {
		t.Errorf("expected chunk index 1, got %d", back.System.ChunkIndex)
	}
}

func TestMetadataCloneIsIndependent(t *testing.T) {
	md := Metadata{
		System: &SystemFields{EntityKey: "a"},
		Extra:  map[string]any{"tags": []any{"x"}},
	}
	cp := md.Clone()
	cp.System.EntityKey = "b"
	cp.Extra["new"] = true
	cp.Extra["tags"].([]any)[0] = "y"

	if md.System.EntityKey != "a" {
		t.Error("clone shares system fields")
	}
	if _, ok := md.Extra["new"]; ok {
		t.Error("clone shares extension map")
	}
	if md.Extra["tags"].([]any)[0] != "x" {
		t.Error("clone shares array values")
	}
}

func TestFilterMatches(t *testing.T) {
	md := Metadata{
		System: &SystemFields{EntityKey: "022572-00", ChunkIndex: 3},
		Extra:  map[string]any{"customer_intent": []any{"price", "sizes"}},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"entity", MatchField(KeyEntityKey, "022572-00"), true},
		{"other entity", MatchField(KeyEntityKey, "000000-00"), false},
		{"numeric", MatchField(KeyChunkIndex, "3"), true},
		{"array element", MatchField("customer_intent", "sizes"), true},
		{"missing key", MatchField("brand_new", "x"), false},
		{"conjunction", Filter{Must: []FieldMatch{
			{Key: KeyEntityKey, Value: "022572-00"},
			{Key: KeyChunkIndex, Value: "4"},
		}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(md); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDistanceScore(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	if s := DistanceCosine.Score(a, a); s < 0.999 {
		t.Errorf("expected cosine self-similarity ~1, got %f", s)
	}
	if s := DistanceCosine.Score(a, b); s != 0 {
		t.Errorf("expected orthogonal cosine 0, got %f", s)
	}
	if s := DistanceEuclid.Score(a, a); s != 1 {
		t.Errorf("expected euclid self-score 1, got %f", s)
	}
	if DistanceEuclid.Score(a, b) >= DistanceEuclid.Score(a, a) {
		t.Error("expected closer vectors to score higher")
	}
	if _, err := ParseDistance("manhattan"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
