package rating

import "math"

// KFactor is the Elo sensitivity constant used for all arena updates.
const KFactor = 32

// Elo outcome scores for the first model of a pair.
const (
	ScoreWin  = 1.0
	ScoreTie  = 0.5
	ScoreLoss = 0.0
)

// Elo computes the post-match ratings for a pair given scoreA, the outcome
// for the first model (1.0 win, 0.5 tie, 0.0 loss).
//
// The raw deltas for the two sides are exact negatives of each other, so the
// delta is rounded once (math.Round, ties away from zero) and applied with
// opposite signs. This keeps every update zero-sum after rounding.
func Elo(ra, rb int, scoreA float64) (newRa, newRb int) {
	expectedA := 1 / (1 + math.Pow(10, float64(rb-ra)/400))
	delta := int(math.Round(KFactor * (scoreA - expectedA)))
	return ra + delta, rb - delta
}
