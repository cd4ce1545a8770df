// Package evaluation reads the evaluator's free-text response and turns it
// into a stored result. Mapping never fails: an unreadable response yields a
// zero-score result.
package evaluation

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pavelanni/examforge/internal/model"
)

// fallbackFeedback is recorded on every question of a zero-score result.
const fallbackFeedback = "The evaluation response could not be read; no marks were awarded."

// Map builds the result for sub from the evaluator's raw response.
func Map(raw string, sub model.ExamSubmission) model.EvaluationResult {
	w, ok := extract(raw)
	if !ok {
		slog.Warn("evaluation response unreadable, using zero score", "exam_id", sub.ExamID, "length", len(raw))
		return Fallback(sub)
	}

	res := baseResult(sub)
	res.QuestionDetails = details(w.QuestionDetails, sub)

	res.TotalMarks = totalMarks(sub)
	if res.TotalMarks == 0 && w.TotalMarks.Set {
		res.TotalMarks = w.TotalMarks.Value
	}
	if w.TotalScore.Set {
		res.Score = w.TotalScore.Value
	} else {
		for _, d := range res.QuestionDetails {
			res.Score += d.MarksObtained
		}
	}
	res.Score = clamp(res.Score, 0, res.TotalMarks)

	switch {
	case res.TotalMarks > 0:
		res.Percentage = round2(res.Score / res.TotalMarks * 100)
	case w.Percentage.Set:
		res.Percentage = round2(clamp(w.Percentage.Value, 0, 100))
	}

	res.QuestionStats = Stats(res.QuestionDetails)
	res.TopicPerformance = topicPerformance(w.TopicPerformance, sub.Topics, res.Percentage)
	return res
}

// Fallback returns the worst-case result for sub: every question incorrect
// and a score of zero.
func Fallback(sub model.ExamSubmission) model.EvaluationResult {
	res := baseResult(sub)
	res.Fallback = true
	res.TotalMarks = totalMarks(sub)
	res.QuestionDetails = make([]model.QuestionDetail, len(sub.Questions))
	for i := range sub.Questions {
		d := placeholder(sub, i)
		d.Feedback = fallbackFeedback
		res.QuestionDetails[i] = d
	}
	res.QuestionStats = Stats(res.QuestionDetails)
	res.TopicPerformance = topicPerformance(nil, sub.Topics, 0)
	return res
}

// Stats counts details by outcome. Unattempted wins over the verdict, and
// anything not fully correct counts as incorrect, so the counts always add
// up to the number of details.
func Stats(details []model.QuestionDetail) model.QuestionStats {
	s := model.QuestionStats{Total: len(details)}
	for _, d := range details {
		switch {
		case unattempted(d.UserAnswer):
			s.Unattempted++
		case d.IsCorrect.IsCorrect():
			s.Correct++
		default:
			s.Incorrect++
		}
	}
	return s
}

func unattempted(answer string) bool {
	a := strings.TrimSpace(answer)
	return a == "" || strings.EqualFold(a, model.Unanswered)
}

func baseResult(sub model.ExamSubmission) model.EvaluationResult {
	return model.EvaluationResult{
		ExamID:    sub.ExamID,
		ExamName:  sub.ExamName,
		Date:      sub.Date,
		TimeTaken: sub.TimeTaken,
		Questions: sub.Questions,
		Answers:   sub.Answers,
		CreatedAt: time.Now(),
	}
}

func weight(sub model.ExamSubmission, i int) float64 {
	if w, ok := sub.QuestionWeights[i]; ok && w > 0 {
		return w
	}
	if i < len(sub.Questions) && sub.Questions[i].Weight > 0 {
		return sub.Questions[i].Weight
	}
	return 1
}

func totalMarks(sub model.ExamSubmission) float64 {
	var total float64
	for i := range sub.Questions {
		total += weight(sub, i)
	}
	return total
}

func placeholder(sub model.ExamSubmission, i int) model.QuestionDetail {
	q := sub.Questions[i]
	return model.QuestionDetail{
		Question:      q.Question,
		Type:          q.Type,
		IsCorrect:     model.Incorrect,
		TotalMarks:    weight(sub, i),
		UserAnswer:    sub.Answer(i),
		CorrectAnswer: q.Answer,
	}
}

// details aligns the evaluator's verdicts with the submitted questions,
// padding missing entries and dropping extras. Blank fields are filled
// from the submission.
func details(wire []wireDetail, sub model.ExamSubmission) []model.QuestionDetail {
	if len(sub.Questions) == 0 {
		out := make([]model.QuestionDetail, len(wire))
		for i, w := range wire {
			out[i] = fromWire(w)
		}
		return out
	}

	out := make([]model.QuestionDetail, len(sub.Questions))
	for i := range sub.Questions {
		d := placeholder(sub, i)
		if i < len(wire) {
			got := fromWire(wire[i])
			d.IsCorrect = got.IsCorrect
			d.Feedback = got.Feedback
			d.MarksObtained = clamp(got.MarksObtained, 0, d.TotalMarks)
			if got.Question != "" {
				d.Question = got.Question
			}
			if got.CorrectAnswer != "" && d.CorrectAnswer == "" {
				d.CorrectAnswer = got.CorrectAnswer
			}
		}
		out[i] = d
	}
	return out
}

func fromWire(w wireDetail) model.QuestionDetail {
	return model.QuestionDetail{
		Question:      strings.TrimSpace(string(w.Question)),
		Type:          model.QuestionType(strings.TrimSpace(string(w.Type))),
		IsCorrect:     w.IsCorrect,
		Feedback:      strings.TrimSpace(string(w.Feedback)),
		MarksObtained: w.MarksObtained.Value,
		TotalMarks:    w.TotalMarks.Value,
		UserAnswer:    strings.TrimSpace(string(w.UserAnswer)),
		CorrectAnswer: strings.TrimSpace(string(w.CorrectAnswer)),
	}
}

func topicPerformance(wire map[string]number, topics []string, percentage float64) map[string]float64 {
	out := make(map[string]float64)
	for topic, n := range wire {
		if n.Set && strings.TrimSpace(topic) != "" {
			out[topic] = round2(clamp(n.Value, 0, 100))
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, topic := range topics {
		out[topic] = percentage
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if hi > lo && v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
