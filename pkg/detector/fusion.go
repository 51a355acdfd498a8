package detector

import "math"

// FusionStrategy selects how the per-category votes combine into one verdict.
type FusionStrategy int

const (
	// FusionOrThreshold is the legacy rule and the default: attack iff the
	// mean supervised vote exceeds 0.5 OR the mean anomaly score falls below
	// AnomalyThreshold. Weights play no part in it.
	FusionOrThreshold FusionStrategy = iota

	// FusionWeighted combines the category votes as a weighted sum against a
	// 0.5 threshold, using Weights renormalized over the trained categories.
	FusionWeighted
)

// AnomalyThreshold is the shared anomaly cut: scores below it are anomalous.
const AnomalyThreshold = -0.5

// Weights maps an ensemble category (supervised, anomaly, sequence) to its
// share of the fused decision.
type Weights map[string]float64

// DefaultWeights returns the standard category split.
func DefaultWeights() Weights {
	return Weights{"supervised": 0.5, "anomaly": 0.3, "sequence": 0.2}
}

// Normalized returns a copy restricted to the available categories and
// rescaled to sum 1, so a missing model never silently shrinks the total
// vote mass. An empty or all-zero selection returns an empty map.
func (w Weights) Normalized(available ...string) Weights {
	out := make(Weights, len(available))
	total := 0.0
	for _, cat := range available {
		out[cat] = w[cat]
		total += w[cat]
	}
	if total <= 0 {
		return Weights{}
	}
	for cat := range out {
		out[cat] /= total
	}
	return out
}

// fuseRow folds one row's category votes into a verdict. anomVote rescales
// the signed anomaly score so that the score hitting AnomalyThreshold lands
// exactly on the 0.5 decision line of the weighted sum.
func fuseRow(strategy FusionStrategy, w Weights, supMean, anomMean float64, hasSup, hasAnom bool) bool {
	switch strategy {
	case FusionWeighted:
		var cats []string
		if hasSup {
			cats = append(cats, "supervised")
		}
		if hasAnom {
			cats = append(cats, "anomaly")
		}
		norm := w.Normalized(cats...)
		score := norm["supervised"]*supMean + norm["anomaly"]*anomVote(anomMean)
		return score > 0.5
	default:
		return (hasSup && supMean > 0.5) || (hasAnom && anomMean < AnomalyThreshold)
	}
}

// anomVote maps the signed anomaly score onto [0,1]: 0 at score >= 0, 0.5 at
// AnomalyThreshold, saturating to 1 for strongly negative scores.
func anomVote(score float64) float64 {
	return math.Min(1, math.Max(0, -score))
}
