package adaptive

import "sort"

// Fuse implements fuser: for each candidate, normalize its
// score against the min/max of its own source's candidates, scale by
// that source's weight, and sort by fused score descending (raw score
// descending as the tie-break).
//
// A source contributing only one candidate has nothing to normalize
// against; that candidate's normalized score is 1 (it is both the
// best and the worst its source offered), so its fused score equals
// the source's weight outright.
func Fuse(candidates []Candidate, weights map[Source]float64) []FusedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	mins := make(map[Source]float64)
	maxs := make(map[Source]float64)
	for _, c := range candidates {
		if m, ok := mins[c.Source]; !ok || c.Score < m {
			mins[c.Source] = c.Score
		}
		if m, ok := maxs[c.Source]; !ok || c.Score > m {
			maxs[c.Source] = c.Score
		}
	}

	out := make([]FusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		lo, hi := mins[c.Source], maxs[c.Source]
		var normalized float64
		if hi == lo {
			normalized = 1
		} else {
			normalized = (c.Score - lo) / (hi - lo)
		}
		w := weights[c.Source]
		out = append(out, FusedCandidate{Candidate: c, Fused: w * normalized})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fused != out[j].Fused {
			return out[i].Fused > out[j].Fused
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
