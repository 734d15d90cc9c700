package solver

import (
	"context"
	"math"
	"sort"
)

// Greedy is the in-process fallback: classic greedy set cover followed by
// a redundancy-pruning pass. Fast and deterministic, but the result is
// only near-minimal, so Proven is always false.
type Greedy struct{}

func (Greedy) Solve(ctx context.Context, p Problem) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}

	n := len(p.Candidates)
	covered := make([]bool, len(p.Points))
	remaining := len(p.Points)
	used := make([]bool, n)
	var selected []int

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return Solution{}, err
		}

		best := -1
		bestScore := math.Inf(-1)
		var bestVolume float64
		for c := 0; c < n; c++ {
			if used[c] {
				continue
			}
			gain := 0
			for pt := range covered {
				if !covered[pt] && p.Coverage.Covers(c, pt) {
					gain++
				}
			}
			if gain == 0 {
				continue
			}
			score := p.score(c, gain, selected)
			vol := Volume(&p.Candidates[c])
			if score > bestScore || (score == bestScore && vol < bestVolume) {
				best, bestScore, bestVolume = c, score, vol
			}
		}
		if best < 0 {
			// Validate guarantees joint coverage, so this cannot trigger;
			// kept as a guard against a stale matrix.
			return Solution{}, ErrInfeasible
		}

		used[best] = true
		selected = append(selected, best)
		for pt := range covered {
			if !covered[pt] && p.Coverage.Covers(best, pt) {
				covered[pt] = true
				remaining--
			}
		}
	}

	selected = prune(p, selected)
	if len(selected) == 0 {
		return Solution{}, ErrEmptySelection
	}
	sort.Ints(selected)
	return Solution{
		Selected:  selected,
		Objective: float64(len(selected)),
	}, nil
}

// score weighs a candidate's marginal gain against the soft objective
// terms: overlap with already-selected capsules and distance from its
// bone's rest position.
func (p Problem) score(c, gain int, selected []int) float64 {
	score := float64(gain)
	cand := &p.Candidates[c]
	if p.Weights.OverlapPenalty > 0 {
		for _, s := range selected {
			if cand.Overlaps(&p.Candidates[s]) {
				score -= p.Weights.OverlapPenalty
			}
		}
	}
	if p.Weights.ProximityReward > 0 && cand.Bone >= 0 && cand.Bone < len(p.Bones) {
		d := cand.Center.Sub(p.Bones[cand.Bone].Position).Len()
		score += p.Weights.ProximityReward / (1 + d)
	}
	return score
}

// prune drops selected capsules whose witnesses are all covered by the
// rest of the selection. Largest-volume capsules are tried first so the
// cheapest cover survives.
func prune(p Problem, selected []int) []int {
	order := append([]int(nil), selected...)
	sort.Slice(order, func(i, j int) bool {
		return Volume(&p.Candidates[order[i]]) > Volume(&p.Candidates[order[j]])
	})

	keep := make(map[int]bool, len(selected))
	for _, c := range selected {
		keep[c] = true
	}
	for _, c := range order {
		if len(keep) == 1 {
			break
		}
		keep[c] = false
		redundant := true
		for pt := 0; pt < p.Coverage.NumPoints(); pt++ {
			if !p.Coverage.Covers(c, pt) {
				continue
			}
			coveredByOther := false
			for other := range keep {
				if keep[other] && p.Coverage.Covers(other, pt) {
					coveredByOther = true
					break
				}
			}
			if !coveredByOther {
				redundant = false
				break
			}
		}
		if redundant {
			delete(keep, c)
		} else {
			keep[c] = true
		}
	}

	out := make([]int, 0, len(keep))
	for c, kept := range keep {
		if kept {
			out = append(out, c)
		}
	}
	return out
}
