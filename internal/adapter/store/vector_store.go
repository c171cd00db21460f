package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
	"prodvec/internal/domain"
)

// Upsert writes all points in one transaction. Either every point is stored
// or none is.
func (s *BoltVectorStore) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if err := ctx.Err(); err != nil {
		return storeErr(err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		coll, conf, err := openCollection(tx, collection)
		if err != nil {
			return err
		}
		b := coll.Bucket(bucketPoints)
		indexes := coll.Bucket(bucketIndexes)

		for _, p := range points {
			if len(p.Vector) != conf.VectorSize {
				return fmt.Errorf("%w: point %d has %d values, collection %s expects %d",
					domain.ErrDimensionMismatch, p.ID, len(p.Vector), collection, conf.VectorSize)
			}

			key := pointKey(p.ID)
			if old := b.Get(key); old != nil {
				var prev storedPoint
				if err := json.Unmarshal(old, &prev); err == nil {
					if err := unindexPoint(indexes, key, prev.Payload.Metadata); err != nil {
						return err
					}
				}
			}

			data, err := json.Marshal(storedPoint{Vector: p.Vector, Payload: p.Payload})
			if err != nil {
				return err
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
			if err := indexPoint(indexes, key, p.Payload.Metadata); err != nil {
				return err
			}
		}
		return nil
	})
	return storeErr(err)
}

// DeleteByFilter removes matching points and their index entries in one
// transaction.
func (s *BoltVectorStore) DeleteByFilter(ctx context.Context, collection string, filter domain.Filter) error {
	if err := ctx.Err(); err != nil {
		return storeErr(err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		coll, _, err := openCollection(tx, collection)
		if err != nil {
			return err
		}
		matches, err := collect(coll, filter, 0)
		if err != nil {
			return err
		}
		b := coll.Bucket(bucketPoints)
		indexes := coll.Bucket(bucketIndexes)
		for _, m := range matches {
			key := pointKey(m.id)
			if err := unindexPoint(indexes, key, m.point.Payload.Metadata); err != nil {
				return err
			}
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	return storeErr(err)
}

func (s *BoltVectorStore) Count(ctx context.Context, collection string, filter domain.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr(err)
	}
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		coll, _, err := openCollection(tx, collection)
		if err != nil {
			return err
		}
		if filter.IsEmpty() {
			count = coll.Bucket(bucketPoints).Stats().KeyN
			return nil
		}
		matches, err := collect(coll, filter, 0)
		count = len(matches)
		return err
	})
	return count, storeErr(err)
}

func (s *BoltVectorStore) Scroll(ctx context.Context, collection string, filter domain.Filter, limit int) ([]domain.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(err)
	}
	var points []domain.Point
	err := s.db.View(func(tx *bbolt.Tx) error {
		coll, _, err := openCollection(tx, collection)
		if err != nil {
			return err
		}
		matches, err := collect(coll, filter, limit)
		if err != nil {
			return err
		}
		points = make([]domain.Point, 0, len(matches))
		for _, m := range matches {
			points = append(points, domain.Point{ID: m.id, Payload: m.point.Payload})
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return points, nil
}

func (s *BoltVectorStore) Search(ctx context.Context, collection string, vector []float32, filter domain.Filter, limit int) ([]domain.ScoredPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(err)
	}
	var results []domain.ScoredPoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		coll, conf, err := openCollection(tx, collection)
		if err != nil {
			return err
		}
		if len(vector) != conf.VectorSize {
			return fmt.Errorf("%w: query has %d values, collection %s expects %d",
				domain.ErrDimensionMismatch, len(vector), collection, conf.VectorSize)
		}
		matches, err := collect(coll, filter, 0)
		if err != nil {
			return err
		}
		results = make([]domain.ScoredPoint, 0, len(matches))
		for _, m := range matches {
			results = append(results, domain.ScoredPoint{
				Point: domain.Point{ID: m.id, Payload: m.point.Payload},
				Score: conf.Distance.Score(vector, m.point.Vector),
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type match struct {
	id    uint64
	point storedPoint
}

// collect returns the points matching filter in id order, stopping after
// limit when limit > 0. The first indexed condition narrows the candidates;
// every condition is then checked against the decoded metadata.
func collect(coll *bbolt.Bucket, filter domain.Filter, limit int) ([]match, error) {
	b := coll.Bucket(bucketPoints)
	indexes := coll.Bucket(bucketIndexes)

	var matches []match
	visit := func(k, v []byte) (bool, error) {
		var sp storedPoint
		if err := json.Unmarshal(v, &sp); err != nil {
			return false, fmt.Errorf("corrupt point %d: %w", binary.BigEndian.Uint64(k), err)
		}
		if !filter.Matches(sp.Payload.Metadata) {
			return true, nil
		}
		matches = append(matches, match{id: binary.BigEndian.Uint64(k), point: sp})
		return limit <= 0 || len(matches) < limit, nil
	}

	for _, cond := range filter.Must {
		idx := indexes.Bucket([]byte(cond.Key))
		if idx == nil {
			continue
		}
		prefix := append([]byte(cond.Value), 0)
		c := idx.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			id := k[len(prefix):]
			v := b.Get(id)
			if v == nil {
				continue
			}
			more, err := visit(id, v)
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
		}
		return matches, nil
	}

	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		more, err := visit(k, v)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return matches, nil
}

func indexedFields(indexes *bbolt.Bucket) []string {
	var fields []string
	indexes.ForEach(func(k, v []byte) error {
		if v == nil {
			fields = append(fields, string(k))
		}
		return nil
	})
	return fields
}

func indexPoint(indexes *bbolt.Bucket, key []byte, md domain.Metadata) error {
	for _, field := range indexedFields(indexes) {
		idx := indexes.Bucket([]byte(field))
		for _, value := range md.FieldValues(field) {
			if err := idx.Put(indexKey(value, key), nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func unindexPoint(indexes *bbolt.Bucket, key []byte, md domain.Metadata) error {
	for _, field := range indexedFields(indexes) {
		idx := indexes.Bucket([]byte(field))
		for _, value := range md.FieldValues(field) {
			if err := idx.Delete(indexKey(value, key)); err != nil {
				return err
			}
		}
	}
	return nil
}
