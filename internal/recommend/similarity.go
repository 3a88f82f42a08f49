// Mall Recommend - Collaborative Filtering Recommendation Engine
// Copyright 2026 sjl1805
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sjl1805/mall-recommend

package recommend

import "math"

// CosineSimilarity computes the cosine of the angle between two sparse
// vectors. It returns 0 when either vector is empty or has zero norm, so a
// user or product with no behavior is simply dissimilar to everything rather
// than an error. The result is clamped to [0, 1]; negative cosines cannot
// occur here because all weights are non-negative, but floating point noise
// above 1 is clipped.
func CosineSimilarity(a, b SparseVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate the smaller vector for the dot product.
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	if dot == 0 {
		return 0
	}

	var normA, normB float64
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Round4 rounds v to four decimal places, the precision at which similarity
// scores are stored and compared.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
