package governance

import (
	"context"
	"math"
)

// WeightProvider supplies a voter's current voting weight. Weight derivation
// (trust scores, reputation) is an external collaborator's concern; the
// engine only records the value it is handed.
type WeightProvider interface {
	WeightFor(ctx context.Context, voterID string) (float64, error)
}

// TrustCurveWeight converts a trust score on the [0,100] scale to a voting
// weight: (score/100)^1.5. Scores outside the scale are clamped.
func TrustCurveWeight(trustScore float64) float64 {
	if trustScore <= 0 {
		return 0
	}
	if trustScore > 100 {
		trustScore = 100
	}
	return math.Pow(trustScore/100, 1.5)
}
