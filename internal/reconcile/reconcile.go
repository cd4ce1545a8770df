// Package reconcile turns the answer map collected by the exam page into the
// submission handed to the evaluator.
package reconcile

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pavelanni/examforge/internal/answerkey"
	"github.com/pavelanni/examforge/internal/model"
)

// Input is everything known when a student finishes an exam.
type Input struct {
	Exam model.Exam
	// Questions are the prepared questions exactly as rendered, before
	// answers were stripped for display.
	Questions     []model.Question
	Answers       model.AnswerMap
	Elapsed       time.Duration
	AutoSubmitted bool
	SubmittedAt   time.Time
}

// Reconcile resolves each question's answer from whichever alias key holds
// it and packages the result with the original questions, correct answers
// included. Answers in the output are keyed by question index.
func Reconcile(in Input) model.ExamSubmission {
	key := answerkey.Build(in.Questions, "", in.Exam.QuestionWeights)

	sub := model.ExamSubmission{
		ExamID:          in.Exam.ID,
		ExamName:        in.Exam.Name,
		Date:            in.Exam.Date,
		Answers:         make(map[string]string, len(in.Questions)),
		TimeTaken:       FormatElapsed(in.Elapsed),
		ElapsedSeconds:  int(in.Elapsed / time.Second),
		AutoSubmitted:   in.AutoSubmitted,
		Topics:          in.Exam.Topics,
		Difficulty:      in.Exam.Difficulty,
		QuestionTypes:   make([]model.QuestionType, len(in.Questions)),
		QuestionWeights: make(map[int]float64, len(in.Questions)),
		Questions:       make([]model.SubmittedQuestion, len(in.Questions)),
		SubmittedAt:     in.SubmittedAt,
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	if sub.Date == "" {
		sub.Date = sub.SubmittedAt.Format(time.DateOnly)
	}

	for i, q := range in.Questions {
		if v, ok := answerkey.Lookup(in.Answers, i); ok {
			sub.Answers[strconv.Itoa(i)] = v
		}
		w := key.Weight(i)
		sub.QuestionTypes[i] = q.Type
		sub.QuestionWeights[i] = w
		sub.Questions[i] = model.SubmittedQuestion{
			Question: q.Text,
			Type:     q.Type,
			Options:  q.Options,
			Answer:   q.CorrectAnswer,
			Weight:   w,
		}
	}
	return sub
}

// FormatElapsed renders d as whole minutes and seconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d minutes and %d seconds", total/60, total%60)
}
