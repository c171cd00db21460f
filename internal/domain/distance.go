package domain

import (
	"fmt"
	"math"
	"strings"
)

// Distance is the similarity metric of a collection.
type Distance string

const (
	DistanceCosine Distance = "Cosine"
	DistanceDot    Distance = "Dot"
	DistanceEuclid Distance = "Euclid"
)

// ParseDistance accepts metric names case-insensitively.
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return DistanceCosine, nil
	case "dot":
		return DistanceDot, nil
	case "euclid", "euclidean":
		return DistanceEuclid, nil
	}
	return "", fmt.Errorf("unknown distance metric: %s", s)
}

// Score returns a similarity where higher is better. Euclidean distance d is
// mapped to 1/(1+d).
func (d Distance) Score(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	switch d {
	case DistanceDot:
		return dot(a, b)
	case DistanceEuclid:
		var sum float64
		for i := range a {
			diff := float64(a[i]) - float64(b[i])
			sum += diff * diff
		}
		return 1 / (1 + math.Sqrt(sum))
	default:
		return cosineSimilarity(a, b)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosineSimilarity(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
