package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// OfflineModelName identifies vectors produced without a remote model.
const OfflineModelName = "offline-sha256"

// OfflineEmbedder derives a reproducible pseudo-random vector from the text
// alone. Values lie in [-1, 1]; identical text always yields identical bits.
// Similarity between vectors carries no semantic meaning.
type OfflineEmbedder struct {
	dimension int
}

func NewOfflineEmbedder(dimension int) *OfflineEmbedder {
	return &OfflineEmbedder{dimension: dimension}
}

// Embed expands SHA-256(text || counter) blocks into the vector, four bytes
// per component.
func (e *OfflineEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dimension)
	seed := sha256.Sum256([]byte(text))

	var block [sha256.Size + 4]byte
	copy(block[:], seed[:])

	var counter uint32
	for i := 0; i < e.dimension; {
		binary.BigEndian.PutUint32(block[sha256.Size:], counter)
		sum := sha256.Sum256(block[:])
		for off := 0; off+4 <= len(sum) && i < e.dimension; off += 4 {
			u := binary.BigEndian.Uint32(sum[off : off+4])
			vector[i] = float32(float64(u)/math.MaxUint32*2 - 1)
			i++
		}
		counter++
	}

	return vector, nil
}

func (e *OfflineEmbedder) Dimension() int {
	return e.dimension
}

func (e *OfflineEmbedder) ModelName() string {
	return OfflineModelName
}
