package adaptive

// acceptedSourceBoost is the fixed boost applied to a source the
// caller reports as previously accepted (e.g. a result the user
// clicked through on a prior query in the same session).
const acceptedSourceBoost = 0.05

// baseWeights is the per-primary base table over source kinds. Rows
// sum to 1 before any bias/boost is applied; L1-normalization after
// bias/boost restores that invariant.
var baseWeights = map[Primary]map[Source]float64{
	PrimarySemantic: {
		SourceVector:     0.60,
		SourceGraph:      0.15,
		SourceSymbol:     0.15,
		SourceHistorical: 0.10,
	},
	PrimaryStructural: {
		SourceVector:     0.15,
		SourceGraph:      0.55,
		SourceSymbol:     0.20,
		SourceHistorical: 0.10,
	},
	PrimaryHistorical: {
		SourceVector:     0.10,
		SourceGraph:      0.15,
		SourceSymbol:     0.10,
		SourceHistorical: 0.65,
	},
	PrimaryHybrid: {
		SourceVector:     0.30,
		SourceGraph:      0.30,
		SourceSymbol:     0.25,
		SourceHistorical: 0.15,
	},
}

// Weights computes per-source fusion weights: start from the
// primary's base table, apply an optional additive bias per source,
// boost acceptedSource by +0.05 if set and present, then L1-normalize
// so the result sums to 1.
func Weights(primary Primary, bias map[Source]float64, acceptedSource Source) map[Source]float64 {
	base, ok := baseWeights[primary]
	if !ok {
		base = baseWeights[PrimaryHybrid]
	}

	w := make(map[Source]float64, len(base))
	for s, v := range base {
		w[s] = v
	}
	for s, b := range bias {
		if _, exists := w[s]; exists {
			w[s] += b
		} else {
			w[s] = b
		}
	}
	if acceptedSource != "" {
		if _, exists := w[acceptedSource]; exists {
			w[acceptedSource] += acceptedSourceBoost
		}
	}

	return l1Normalize(w)
}

// l1Normalize scales weights so they sum to 1. Negative weights are
// clamped to 0 first so a large negative bias can't flip the sign of
// the normalization denominator.
func l1Normalize(w map[Source]float64) map[Source]float64 {
	sum := 0.0
	for s, v := range w {
		if v < 0 {
			w[s] = 0
			v = 0
		}
		sum += v
	}
	if sum == 0 {
		return w
	}
	out := make(map[Source]float64, len(w))
	for s, v := range w {
		out[s] = v / sum
	}
	return out
}
