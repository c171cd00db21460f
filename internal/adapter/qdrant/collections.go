package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"prodvec/internal/domain"
)

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type collectionInfoResult struct {
	Status      string `json:"status"`
	PointsCount *int   `json:"points_count"`
	Config      struct {
		Params struct {
			Vectors vectorParams `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
	PayloadSchema map[string]struct {
		DataType string `json:"data_type"`
	} `json:"payload_schema"`
}

type createIndexRequest struct {
	FieldName   string `json:"field_name"`
	FieldSchema string `json:"field_schema"`
}

func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	err := c.do(ctx, http.MethodGet, collectionPath(name)+"/exists", nil, &result)
	if err != nil {
		return false, classify(err, name)
	}
	return result.Exists, nil
}

func (c *Client) CreateCollection(ctx context.Context, name string, params domain.CollectionParams) error {
	if params.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", params.VectorSize)
	}
	body := createCollectionRequest{
		Vectors: vectorParams{Size: params.VectorSize, Distance: string(params.Distance)},
	}
	if err := c.do(ctx, http.MethodPut, collectionPath(name), body, nil); err != nil {
		return classify(err, name)
	}
	c.rememberDistance(name, params.Distance)
	return nil
}

// DeleteCollection treats a missing collection as already deleted.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	c.rememberDistance(name, "")
	err := c.do(ctx, http.MethodDelete, collectionPath(name), nil, nil)
	if err != nil {
		err = classify(err, name)
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) CollectionInfo(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	var result collectionInfoResult
	if err := c.do(ctx, http.MethodGet, collectionPath(name), nil, &result); err != nil {
		return nil, classify(err, name)
	}

	info := &domain.CollectionInfo{
		Name:       name,
		VectorSize: result.Config.Params.Vectors.Size,
		Distance:   domain.Distance(result.Config.Params.Vectors.Distance),
		Status:     result.Status,
	}
	if result.PointsCount != nil {
		info.PointsCount = *result.PointsCount
	}
	for field := range result.PayloadSchema {
		info.IndexedFields = append(info.IndexedFields, strings.TrimPrefix(field, metadataPrefix))
	}
	sort.Strings(info.IndexedFields)
	c.rememberDistance(name, info.Distance)
	return info, nil
}

func (c *Client) CreateFieldIndex(ctx context.Context, collection, field string) error {
	body := createIndexRequest{
		FieldName:   metadataPrefix + field,
		FieldSchema: "keyword",
	}
	if err := c.do(ctx, http.MethodPut, collectionPath(collection)+"/index?wait=true", body, nil); err != nil {
		return classify(err, collection)
	}
	return nil
}
