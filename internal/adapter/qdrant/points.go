package qdrant

import (
	"context"
	"encoding/json"
	"net/http"

	"prodvec/internal/domain"
)

type wirePoint struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload domain.Payload `json:"payload"`
	Score   float64        `json:"score,omitempty"`
}

type matchValue struct {
	Value string `json:"value"`
}

type condition struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type wireFilter struct {
	Must []condition `json:"must"`
}

type upsertRequest struct {
	Points []wirePoint `json:"points"`
}

type deleteRequest struct {
	Filter *wireFilter `json:"filter"`
}

type countRequest struct {
	Filter *wireFilter `json:"filter,omitempty"`
	Exact  bool        `json:"exact"`
}

type scrollRequest struct {
	Filter      *wireFilter     `json:"filter,omitempty"`
	Limit       int             `json:"limit"`
	Offset      json.RawMessage `json:"offset,omitempty"`
	WithPayload bool            `json:"with_payload"`
	WithVector  bool            `json:"with_vector"`
}

type scrollResult struct {
	Points         []wirePoint     `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

type searchRequest struct {
	Vector      []float32   `json:"vector"`
	Filter      *wireFilter `json:"filter,omitempty"`
	Limit       int         `json:"limit"`
	WithPayload bool        `json:"with_payload"`
}

// toWireFilter prefixes bare metadata keys. An empty filter becomes nil.
func toWireFilter(f domain.Filter) *wireFilter {
	if f.IsEmpty() {
		return nil
	}
	wf := &wireFilter{Must: make([]condition, 0, len(f.Must))}
	for _, m := range f.Must {
		wf.Must = append(wf.Must, condition{
			Key:   metadataPrefix + m.Key,
			Match: matchValue{Value: m.Value},
		})
	}
	return wf
}

func (c *Client) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	body := upsertRequest{Points: make([]wirePoint, 0, len(points))}
	for _, p := range points {
		body.Points = append(body.Points, wirePoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}
	if err := c.do(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true", body, nil); err != nil {
		return classify(err, collection)
	}
	return nil
}

// DeleteByFilter with an empty filter removes every point.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, filter domain.Filter) error {
	wf := toWireFilter(filter)
	if wf == nil {
		wf = &wireFilter{Must: []condition{}}
	}
	body := deleteRequest{Filter: wf}
	if err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/points/delete?wait=true", body, nil); err != nil {
		return classify(err, collection)
	}
	return nil
}

func (c *Client) Count(ctx context.Context, collection string, filter domain.Filter) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	body := countRequest{Filter: toWireFilter(filter), Exact: true}
	if err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/points/count", body, &result); err != nil {
		return 0, classify(err, collection)
	}
	return result.Count, nil
}

// Scroll pages through the collection until limit points are read, or all of
// them when limit <= 0.
func (c *Client) Scroll(ctx context.Context, collection string, filter domain.Filter, limit int) ([]domain.Point, error) {
	var points []domain.Point
	var offset json.RawMessage

	for {
		pageSize := scrollPageSize
		if limit > 0 && limit-len(points) < pageSize {
			pageSize = limit - len(points)
		}
		body := scrollRequest{
			Filter:      toWireFilter(filter),
			Limit:       pageSize,
			Offset:      offset,
			WithPayload: true,
		}

		var result scrollResult
		if err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/points/scroll", body, &result); err != nil {
			return nil, classify(err, collection)
		}
		for _, wp := range result.Points {
			points = append(points, domain.Point{ID: wp.ID, Payload: wp.Payload})
		}

		if isNull(result.NextPageOffset) || len(result.Points) == 0 {
			return points, nil
		}
		if limit > 0 && len(points) >= limit {
			return points[:limit], nil
		}
		offset = result.NextPageOffset
	}
}

func (c *Client) Search(ctx context.Context, collection string, vector []float32, filter domain.Filter, limit int) ([]domain.ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}
	var result []wirePoint
	body := searchRequest{
		Vector:      vector,
		Filter:      toWireFilter(filter),
		Limit:       limit,
		WithPayload: true,
	}
	if err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/points/search", body, &result); err != nil {
		return nil, classify(err, collection)
	}

	distance, err := c.distance(ctx, collection)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredPoint, 0, len(result))
	for _, wp := range result {
		score := wp.Score
		if distance == domain.DistanceEuclid {
			// Qdrant reports the raw distance for Euclid.
			score = 1 / (1 + score)
		}
		scored = append(scored, domain.ScoredPoint{
			Point: domain.Point{ID: wp.ID, Payload: wp.Payload},
			Score: score,
		})
	}
	return scored, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
