package question

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// SelectBalanced picks an ordered, duplicate-free set of questions that fills
// every cell of the constraints. Less-used questions are preferred; ties are
// broken randomly through rng. Cells that cannot be filled from their own
// (difficulty, kind) pair are backfilled from any remaining candidate.
func SelectBalanced(pool []Question, constraints Constraints, rng *rand.Rand) ([]Question, error) {
	need := constraints.Total()
	if need <= 0 {
		return nil, fmt.Errorf("select balanced: constraints require no questions")
	}

	ranked := rank(pool, rng)
	used := make(map[int64]bool, need)

	picked := make([]Question, 0, need)
	var holes []int
	for _, cell := range constraints.Cells {
		for i := 0; i < cell.Count; i++ {
			q, ok := take(ranked, used, cell.matches)
			if !ok {
				holes = append(holes, len(picked))
				picked = append(picked, Question{})
				continue
			}
			picked = append(picked, q)
		}
	}

	filled := need - len(holes)
	for _, idx := range holes {
		q, ok := take(ranked, used, nil)
		if !ok {
			return nil, fmt.Errorf("%w: need %d, found %d", ErrInsufficientQuestions, need, filled)
		}
		picked[idx] = q
		filled++
	}

	return picked, nil
}

// rank dedupes the pool by ID, shuffles it and stable-sorts by usage so that
// equal usage counts keep their random order.
func rank(pool []Question, rng *rand.Rand) []Question {
	seen := make(map[int64]bool, len(pool))
	ranked := make([]Question, 0, len(pool))
	for _, q := range pool {
		if seen[q.ID] || !q.Kind.Valid() {
			continue
		}
		seen[q.ID] = true
		ranked = append(ranked, q)
	}

	if rng != nil {
		rng.Shuffle(len(ranked), func(i, j int) {
			ranked[i], ranked[j] = ranked[j], ranked[i]
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].UsageCount < ranked[j].UsageCount
	})
	return ranked
}

func take(ranked []Question, used map[int64]bool, match func(Question) bool) (Question, bool) {
	for _, q := range ranked {
		if used[q.ID] {
			continue
		}
		if match != nil && !match(q) {
			continue
		}
		used[q.ID] = true
		return q, true
	}
	return Question{}, false
}
