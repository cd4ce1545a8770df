// Package distribution samples a per-type subset from a question pool.
package distribution

import (
	"math/rand/v2"

	"github.com/pavelanni/examforge/internal/model"
)

// Select picks, for each type in dist (in dist order), up to Count questions
// of that type sampled uniformly without replacement. The selection is
// renumbered 1..N. When nothing is selected the full pool is returned
// renumbered, so a non-empty pool never yields an empty exam.
// A nil rng uses the package-level generator.
func Select(questions []model.Question, dist model.Distribution, rng *rand.Rand) []model.Question {
	pools := make(map[model.QuestionType][]model.Question)
	for _, q := range questions {
		t := q.Type
		if t == "" {
			t = model.QuestionMCQ
		}
		pools[t] = append(pools[t], q)
	}

	var selected []model.Question
	used := make(map[model.QuestionType]bool)
	for _, tc := range dist {
		if used[tc.Type] || tc.Count <= 0 {
			continue
		}
		used[tc.Type] = true

		pool := pools[tc.Type]
		if len(pool) <= tc.Count {
			selected = append(selected, pool...)
			continue
		}
		shuffled := append([]model.Question(nil), pool...)
		shuffle(shuffled, rng)
		selected = append(selected, shuffled[:tc.Count]...)
	}

	if len(selected) == 0 {
		selected = append([]model.Question(nil), questions...)
	}
	return Renumber(selected)
}

// Renumber returns a copy of questions with ids reassigned 1..N in order.
func Renumber(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		q.ID = i + 1
		out[i] = q
	}
	return out
}

// shuffle is a Fisher-Yates shuffle.
func shuffle(qs []model.Question, rng *rand.Rand) {
	for i := len(qs) - 1; i > 0; i-- {
		var j int
		if rng != nil {
			j = rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		qs[i], qs[j] = qs[j], qs[i]
	}
}
