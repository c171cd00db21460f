package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// System metadata keys. The enricher owns these; any other key is a business
// field and lives in Metadata.Extra.
const (
	KeyEntityKey       = "entity_key"
	KeyExternalID      = "external_product_id"
	KeyVariantID       = "external_variant_id"
	KeyLastUpdated     = "last_updated"
	KeyContentVersion  = "content_version"
	KeyChunkIndex      = "chunk_index"
	KeyBrand           = "brand"
	KeyCategoryPath    = "category_path"
	KeyProductLine     = "product_line"
	KeySourceSystem    = "source_system"
	KeySyncStatus      = "sync_status"
	KeyPriceCurrency   = "price_currency"
	KeyStockStatus     = "stock_status"
	KeyProcessedAt     = "processed_at"
	KeyContentLength   = "content_length"
	KeyEmbeddingModel  = "embedding_model"
	KeyWorkflowVersion = "workflow_version"
)

// KeyChunkType is a business field, but the default index set includes it.
const KeyChunkType = "chunk_type"

var systemKeys = []string{
	KeyEntityKey, KeyExternalID, KeyVariantID, KeyLastUpdated, KeyContentVersion,
	KeyChunkIndex, KeyBrand, KeyCategoryPath, KeyProductLine, KeySourceSystem,
	KeySyncStatus, KeyPriceCurrency, KeyStockStatus, KeyProcessedAt,
	KeyContentLength, KeyEmbeddingModel, KeyWorkflowVersion,
}

var systemKeySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(systemKeys))
	for _, k := range systemKeys {
		set[k] = struct{}{}
	}
	return set
}()

// IsSystemKey reports whether key belongs to the enricher-owned field set.
func IsSystemKey(key string) bool {
	_, ok := systemKeySet[key]
	return ok
}

// SystemKeys returns the enricher-owned keys in a stable order.
func SystemKeys() []string {
	out := make([]string, len(systemKeys))
	copy(out, systemKeys)
	return out
}

type SystemFields struct {
	EntityKey       string
	ExternalID      string
	VariantID       string
	LastUpdated     time.Time
	ContentVersion  string
	ChunkIndex      int
	Brand           string
	CategoryPath    string
	ProductLine     string
	SourceSystem    string
	SyncStatus      string
	PriceCurrency   string
	StockStatus     string
	ProcessedAt     time.Time
	ContentLength   int
	EmbeddingModel  string
	WorkflowVersion string
}

func (s *SystemFields) value(key string) (any, bool) {
	switch key {
	case KeyEntityKey:
		return s.EntityKey, true
	case KeyExternalID:
		return s.ExternalID, true
	case KeyVariantID:
		return s.VariantID, true
	case KeyLastUpdated:
		return formatTime(s.LastUpdated), true
	case KeyContentVersion:
		return s.ContentVersion, true
	case KeyChunkIndex:
		return s.ChunkIndex, true
	case KeyBrand:
		return s.Brand, true
	case KeyCategoryPath:
		return s.CategoryPath, true
	case KeyProductLine:
		return s.ProductLine, true
	case KeySourceSystem:
		return s.SourceSystem, true
	case KeySyncStatus:
		return s.SyncStatus, true
	case KeyPriceCurrency:
		return s.PriceCurrency, true
	case KeyStockStatus:
		return s.StockStatus, true
	case KeyProcessedAt:
		return formatTime(s.ProcessedAt), true
	case KeyContentLength:
		return s.ContentLength, true
	case KeyEmbeddingModel:
		return s.EmbeddingModel, true
	case KeyWorkflowVersion:
		return s.WorkflowVersion, true
	}
	return nil, false
}

func (s *SystemFields) set(key string, v any) {
	switch key {
	case KeyEntityKey:
		s.EntityKey = asString(v)
	case KeyExternalID:
		s.ExternalID = asString(v)
	case KeyVariantID:
		s.VariantID = asString(v)
	case KeyLastUpdated:
		s.LastUpdated = asTime(v)
	case KeyContentVersion:
		s.ContentVersion = asString(v)
	case KeyChunkIndex:
		s.ChunkIndex = asInt(v)
	case KeyBrand:
		s.Brand = asString(v)
	case KeyCategoryPath:
		s.CategoryPath = asString(v)
	case KeyProductLine:
		s.ProductLine = asString(v)
	case KeySourceSystem:
		s.SourceSystem = asString(v)
	case KeySyncStatus:
		s.SyncStatus = asString(v)
	case KeyPriceCurrency:
		s.PriceCurrency = asString(v)
	case KeyStockStatus:
		s.StockStatus = asString(v)
	case KeyProcessedAt:
		s.ProcessedAt = asTime(v)
	case KeyContentLength:
		s.ContentLength = asInt(v)
	case KeyEmbeddingModel:
		s.EmbeddingModel = asString(v)
	case KeyWorkflowVersion:
		s.WorkflowVersion = asString(v)
	}
}

// Metadata is a chunk's metadata: a closed set of system fields (nil until
// enriched) plus an open, string-keyed extension area for business fields.
// It serializes as one flat JSON object.
type Metadata struct {
	System *SystemFields
	Extra  map[string]any
}

// MetadataFromMap splits a flat map into system and business fields.
func MetadataFromMap(m map[string]any) Metadata {
	md := Metadata{Extra: make(map[string]any, len(m))}
	for k, v := range m {
		if IsSystemKey(k) {
			if md.System == nil {
				md.System = &SystemFields{}
			}
			md.System.set(k, v)
			continue
		}
		md.Extra[k] = v
	}
	return md
}

// Lookup returns the value stored under key, system fields first.
func (m Metadata) Lookup(key string) (any, bool) {
	if IsSystemKey(key) {
		if m.System == nil {
			return nil, false
		}
		return m.System.value(key)
	}
	v, ok := m.Extra[key]
	return v, ok
}

// FieldValues returns the string forms of the value under key. Arrays yield
// one entry per element.
func (m Metadata) FieldValues(key string) []string {
	v, ok := m.Lookup(key)
	if !ok || v == nil {
		return nil
	}
	if arr, ok := v.([]any); ok {
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			out = append(out, stringify(item))
		}
		return out
	}
	if arr, ok := v.([]string); ok {
		out := make([]string, len(arr))
		copy(out, arr)
		return out
	}
	return []string{stringify(v)}
}

// Clone returns a copy that shares no maps or system struct with m.
func (m Metadata) Clone() Metadata {
	out := Metadata{Extra: make(map[string]any, len(m.Extra))}
	for k, v := range m.Extra {
		if arr, ok := v.([]any); ok {
			cp := make([]any, len(arr))
			copy(cp, arr)
			v = cp
		}
		out.Extra[k] = v
	}
	if m.System != nil {
		sys := *m.System
		out.System = &sys
	}
	return out
}

// Flatten returns the single-map view used on the wire.
func (m Metadata) Flatten() map[string]any {
	out := make(map[string]any, len(m.Extra)+len(systemKeys))
	for k, v := range m.Extra {
		if IsSystemKey(k) {
			continue
		}
		out[k] = v
	}
	if m.System != nil {
		for _, k := range systemKeys {
			v, _ := m.System.value(k)
			out[k] = v
		}
	}
	return out
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flatten())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MetadataFromMap(raw)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	return stringify(v)
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case time.Time:
		return formatTime(t)
	}
	return fmt.Sprintf("%v", v)
}

func valueEquals(v any, want string) bool {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if stringify(item) == want {
				return true
			}
		}
		return false
	case []string:
		for _, item := range t {
			if item == want {
				return true
			}
		}
		return false
	}
	return stringify(v) == want
}
