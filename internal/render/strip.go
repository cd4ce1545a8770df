package render

import (
	"github.com/pavelanni/examforge/internal/model"
	"github.com/pavelanni/examforge/internal/parser"
)

// StripAnswers returns copies of questions safe to show a student: correct
// answers are dropped and any answer annotation left in the text is removed.
// The input is not modified.
func StripAnswers(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		q.CorrectAnswer = ""
		q.Text = parser.StripAnswerLines(q.Text)
		if q.Options != nil {
			q.Options = append([]string(nil), q.Options...)
		}
		out[i] = q
	}
	return out
}
