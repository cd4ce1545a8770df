// Package answerkey derives per-question weights and correct answers, and
// resolves answers stored under any of the alias keys a rendered exam writes.
package answerkey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/examforge/internal/model"
)

// AliasFormats lists, in lookup priority order, every key format under which
// the answer to question index i may be stored.
var AliasFormats = [...]string{"q%d", "tf%d", "sa%d", "essay%d", "question-%d", "%d"}

// Aliases returns the alias keys for question index i in priority order.
func Aliases(i int) []string {
	keys := make([]string, len(AliasFormats))
	for n, f := range AliasFormats {
		keys[n] = fmt.Sprintf(f, i)
	}
	return keys
}

// NaturalKey returns the key an answer control of type t writes first.
func NaturalKey(t model.QuestionType, i int) string {
	switch t {
	case model.QuestionMCQ:
		return fmt.Sprintf("q%d", i)
	case model.QuestionTrueFalse:
		return fmt.Sprintf("tf%d", i)
	case model.QuestionEssay:
		return fmt.Sprintf("essay%d", i)
	default:
		return fmt.Sprintf("sa%d", i)
	}
}

// Lookup returns the first non-empty answer stored under an alias of index i.
// Wrapped {value, type} entries are unwrapped.
func Lookup(m model.AnswerMap, i int) (string, bool) {
	for _, key := range Aliases(i) {
		v, ok := m[key]
		if !ok {
			continue
		}
		if s := strings.TrimSpace(v.Value); s != "" {
			return s, true
		}
	}
	return "", false
}

var (
	numberedLineRe = regexp.MustCompile(`(?m)^[\s*#>_]*(\d+)\s*[.(][^\n]*`)
	weightRe       = regexp.MustCompile(`(?i)\(\s*(\d+(?:\.\d+)?)\s*(?:points?|pts?\.?|marks?)\s*\)`)
)

// ParseWeights extracts "N (P points)" annotations from raw exam text, keyed
// by question number. Only the first annotation on a numbered line counts.
// The result is best effort and is not checked against the question count.
func ParseWeights(raw string) map[int]float64 {
	weights := make(map[int]float64)
	for _, m := range numberedLineRe.FindAllStringSubmatch(raw, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, seen := weights[n]; seen {
			continue
		}
		p := weightRe.FindStringSubmatch(m[0])
		if p == nil {
			continue
		}
		w, err := strconv.ParseFloat(p[1], 64)
		if err != nil || w <= 0 {
			continue
		}
		weights[n] = w
	}
	return weights
}

// Key holds the grading data of one exam. Both maps are keyed by
// zero-based position in the question sequence.
type Key struct {
	Weights map[int]float64
	Correct model.AnswerMap
}

// Build derives the key for questions. Weight sources, by priority: the
// explicit map (by position), the question's own weight, then annotations
// parsed from raw (by question id). Missing weights default to 1.
func Build(questions []model.Question, raw string, explicit map[int]float64) Key {
	var annotated map[int]float64
	if raw != "" {
		annotated = ParseWeights(raw)
	}

	k := Key{
		Weights: make(map[int]float64, len(questions)),
		Correct: make(model.AnswerMap),
	}
	for i, q := range questions {
		w := 1.0
		switch {
		case explicit[i] > 0:
			w = explicit[i]
		case q.Weight > 0:
			w = q.Weight
		case annotated[q.ID] > 0:
			w = annotated[q.ID]
		}
		k.Weights[i] = w

		if q.CorrectAnswer != "" {
			k.Correct.Set(strconv.Itoa(i), q.CorrectAnswer)
			k.Correct.Set(fmt.Sprintf("q%d", i), q.CorrectAnswer)
		}
	}
	return k
}

// Weight returns the weight of question index i, defaulting to 1.
func (k Key) Weight(i int) float64 {
	if w, ok := k.Weights[i]; ok && w > 0 {
		return w
	}
	return 1
}

// CorrectAnswer returns the correct answer of question index i, if known.
func (k Key) CorrectAnswer(i int) string {
	a, _ := Lookup(k.Correct, i)
	return a
}

// Apply returns a copy of questions with each weight set from the key.
func (k Key) Apply(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		q.Weight = k.Weight(i)
		out[i] = q
	}
	return out
}
