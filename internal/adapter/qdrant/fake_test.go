package qdrant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"prodvec/internal/adapter/memstore"
	"prodvec/internal/domain"
)

// fakeQdrant serves the subset of the Qdrant REST API the client uses,
// backed by a MemoryStore.
type fakeQdrant struct {
	store *memstore.MemoryStore

	mu       sync.Mutex
	apiKeys  []string
	requests []string
	bodies   []json.RawMessage
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{store: memstore.NewMemoryStore()}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	f.mu.Lock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/collections/"), "/")
	name := parts[0]
	action := strings.Join(parts[1:], "/")
	ctx := r.Context()

	switch {
	case action == "exists" && r.Method == http.MethodGet:
		exists, _ := f.store.CollectionExists(ctx, name)
		writeResult(w, map[string]bool{"exists": exists})

	case action == "" && r.Method == http.MethodPut:
		var req createCollectionRequest
		json.Unmarshal(body, &req)
		if exists, _ := f.store.CollectionExists(ctx, name); exists {
			writeError(w, http.StatusConflict, fmt.Sprintf("Wrong input: Collection `%s` already exists!", name))
			return
		}
		err := f.store.CreateCollection(ctx, name, domain.CollectionParams{
			VectorSize: req.Vectors.Size,
			Distance:   domain.Distance(req.Vectors.Distance),
		})
		respond(w, true, err)

	case action == "" && r.Method == http.MethodDelete:
		if exists, _ := f.store.CollectionExists(ctx, name); !exists {
			writeError(w, http.StatusNotFound, "Not found: Collection doesn't exist!")
			return
		}
		respond(w, true, f.store.DeleteCollection(ctx, name))

	case action == "" && r.Method == http.MethodGet:
		info, err := f.store.CollectionInfo(ctx, name)
		if err != nil {
			respond(w, nil, err)
			return
		}
		var result collectionInfoResult
		result.Status = info.Status
		result.PointsCount = &info.PointsCount
		result.Config.Params.Vectors = vectorParams{Size: info.VectorSize, Distance: string(info.Distance)}
		result.PayloadSchema = map[string]struct {
			DataType string `json:"data_type"`
		}{}
		for _, field := range info.IndexedFields {
			result.PayloadSchema[metadataPrefix+field] = struct {
				DataType string `json:"data_type"`
			}{DataType: "keyword"}
		}
		writeResult(w, result)

	case action == "index" && r.Method == http.MethodPut:
		var req createIndexRequest
		json.Unmarshal(body, &req)
		err := f.store.CreateFieldIndex(ctx, name, strings.TrimPrefix(req.FieldName, metadataPrefix))
		respond(w, map[string]string{"status": "completed"}, err)

	case action == "points" && r.Method == http.MethodPut:
		var req upsertRequest
		json.Unmarshal(body, &req)
		points := make([]domain.Point, 0, len(req.Points))
		for _, wp := range req.Points {
			points = append(points, domain.Point{ID: wp.ID, Vector: wp.Vector, Payload: wp.Payload})
		}
		respond(w, map[string]string{"status": "completed"}, f.store.Upsert(ctx, name, points))

	case action == "points/delete" && r.Method == http.MethodPost:
		var req deleteRequest
		json.Unmarshal(body, &req)
		if req.Filter == nil {
			writeError(w, http.StatusBadRequest, "Wrong input: filter required")
			return
		}
		respond(w, map[string]string{"status": "completed"}, f.store.DeleteByFilter(ctx, name, fromWireFilter(req.Filter)))

	case action == "points/count" && r.Method == http.MethodPost:
		var req countRequest
		json.Unmarshal(body, &req)
		n, err := f.store.Count(ctx, name, fromWireFilter(req.Filter))
		respond(w, map[string]int{"count": n}, err)

	case action == "points/scroll" && r.Method == http.MethodPost:
		var req scrollRequest
		json.Unmarshal(body, &req)
		all, err := f.store.Scroll(ctx, name, fromWireFilter(req.Filter), 0)
		if err != nil {
			respond(w, nil, err)
			return
		}
		var offset uint64
		if !isNull(req.Offset) {
			json.Unmarshal(req.Offset, &offset)
		}
		var page []wirePoint
		var next any
		for _, p := range all {
			if p.ID < offset {
				continue
			}
			if len(page) == req.Limit {
				next = p.ID
				break
			}
			page = append(page, wirePoint{ID: p.ID, Payload: p.Payload})
		}
		writeResult(w, map[string]any{"points": page, "next_page_offset": next})

	case action == "points/search" && r.Method == http.MethodPost:
		var req searchRequest
		json.Unmarshal(body, &req)
		results, err := f.store.Search(ctx, name, req.Vector, fromWireFilter(req.Filter), req.Limit)
		if err != nil {
			respond(w, nil, err)
			return
		}
		info, _ := f.store.CollectionInfo(ctx, name)
		out := make([]wirePoint, 0, len(results))
		for _, sp := range results {
			score := sp.Score
			if info.Distance == domain.DistanceEuclid {
				score = 1/score - 1
			}
			out = append(out, wirePoint{ID: sp.ID, Payload: sp.Payload, Score: score})
		}
		writeResult(w, out)

	default:
		writeError(w, http.StatusNotFound, "no such endpoint")
	}
}

func (f *fakeQdrant) lastBody() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[len(f.bodies)-1]
}

func fromWireFilter(wf *wireFilter) domain.Filter {
	var f domain.Filter
	if wf == nil {
		return f
	}
	for _, c := range wf.Must {
		f.Must = append(f.Must, domain.FieldMatch{
			Key:   strings.TrimPrefix(c.Key, metadataPrefix),
			Value: c.Match.Value,
		})
	}
	return f
}

func respond(w http.ResponseWriter, result any, err error) {
	switch {
	case err == nil:
		writeResult(w, result)
	case errors.Is(err, domain.ErrCollectionNotFound):
		writeError(w, http.StatusNotFound, "Not found: "+err.Error())
	case errors.Is(err, domain.ErrDimensionMismatch):
		writeError(w, http.StatusBadRequest, "Wrong input: Vector dimension error: "+err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": map[string]string{"error": msg}, "time": 0.001})
}
