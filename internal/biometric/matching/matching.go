// Package matching scores a candidate template against a stored one.
package matching

import (
	"math"

	"biovault/internal/biometric/models"
)

// Matcher returns a confidence in [0, 100]. Implementations must be pure and
// safe for concurrent use.
type Matcher interface {
	Score(candidate, stored string, m models.Modality) float64
}

// Multipliers scale base similarity per modality. Unknown modalities use 1.0.
var Multipliers = map[models.Modality]float64{
	models.ModalityFingerprint: 1.0,
	models.ModalityFace:        0.9,
	models.ModalityVoice:       0.8,
	models.ModalityIris:        1.1,
}

// CharacterMatcher is the reference comparator: positional character
// agreement over the shorter template, scaled by the modality multiplier.
// Identical templates always score 100.
type CharacterMatcher struct{}

// NewCharacterMatcher returns the reference comparator.
func NewCharacterMatcher() CharacterMatcher { return CharacterMatcher{} }

func (CharacterMatcher) Score(candidate, stored string, m models.Modality) float64 {
	if candidate == stored {
		return 100
	}
	n := min(len(candidate), len(stored))
	if n == 0 {
		return 0
	}
	same := 0
	for i := 0; i < n; i++ {
		if candidate[i] == stored[i] {
			same++
		}
	}
	multiplier, ok := Multipliers[m]
	if !ok {
		multiplier = 1.0
	}
	return Clamp(float64(same) / float64(n) * 100 * multiplier)
}

// Clamp bounds a confidence to [0, 100]. NaN maps to 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
