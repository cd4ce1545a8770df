package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SubmittedQuestion is a question as handed to the evaluator, correct answer included.
type SubmittedQuestion struct {
	Question string       `json:"question"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Answer   string       `json:"answer,omitempty"`
	Weight   float64      `json:"weight"`
}

// ExamSubmission is the reconciled payload produced when a student finishes an exam.
// Answers are keyed by the zero-based question index.
type ExamSubmission struct {
	ExamID          string              `json:"examId"`
	ExamName        string              `json:"examName"`
	Date            string              `json:"date"`
	Answers         map[string]string   `json:"answers"`
	TimeTaken       string              `json:"timeTaken"`
	ElapsedSeconds  int                 `json:"elapsedSeconds"`
	AutoSubmitted   bool                `json:"autoSubmitted"`
	Topics          []string            `json:"topics,omitempty"`
	Difficulty      string              `json:"difficulty,omitempty"`
	QuestionTypes   []QuestionType      `json:"questionTypes"`
	QuestionWeights map[int]float64     `json:"questionWeights"`
	Questions       []SubmittedQuestion `json:"questions"`
	SubmittedAt     time.Time           `json:"submittedAt"`
}

// Answer returns the answer given to question index i, or Unanswered.
func (s ExamSubmission) Answer(i int) string {
	if a := strings.TrimSpace(s.Answers[strconv.Itoa(i)]); a != "" {
		return a
	}
	return Unanswered
}

// Correctness is an evaluator verdict. Evaluators send true, false or "partial".
type Correctness string

const (
	Correct   Correctness = "true"
	Incorrect Correctness = "false"
	Partial   Correctness = "partial"
)

// IsCorrect reports whether the answer was fully correct.
func (c Correctness) IsCorrect() bool {
	return c == Correct
}

func (c Correctness) MarshalJSON() ([]byte, error) {
	switch c {
	case Correct:
		return []byte("true"), nil
	case Partial:
		return []byte(`"partial"`), nil
	default:
		return []byte("false"), nil
	}
}

func (c *Correctness) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*c = Correct
		} else {
			*c = Incorrect
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*c = Incorrect
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "correct", "yes":
		*c = Correct
	case "partial", "partially correct", "partially":
		*c = Partial
	default:
		*c = Incorrect
	}
	return nil
}

// QuestionDetail is the evaluator's verdict on one question.
type QuestionDetail struct {
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	IsCorrect     Correctness  `json:"isCorrect"`
	Feedback      string       `json:"feedback"`
	MarksObtained float64      `json:"marksObtained"`
	TotalMarks    float64      `json:"totalMarks"`
	UserAnswer    string       `json:"userAnswer"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

// QuestionStats counts questions by outcome. Correct+Incorrect+Unattempted == Total.
type QuestionStats struct {
	Correct     int `json:"correct"`
	Incorrect   int `json:"incorrect"`
	Unattempted int `json:"unattempted"`
	Total       int `json:"total"`
}

// EvaluationResult is the stored outcome of one evaluated exam. It is never
// modified after creation.
type EvaluationResult struct {
	ExamID           string              `json:"examId"`
	ExamName         string              `json:"examName"`
	Date             string              `json:"date"`
	Score            float64             `json:"score"`
	TotalMarks       float64             `json:"totalMarks"`
	Percentage       float64             `json:"percentage"`
	TimeTaken        string              `json:"timeTaken"`
	QuestionStats    QuestionStats       `json:"questionStats"`
	TopicPerformance map[string]float64  `json:"topicPerformance"`
	QuestionDetails  []QuestionDetail    `json:"questionDetails"`
	Questions        []SubmittedQuestion `json:"questions"`
	Answers          map[string]string   `json:"answers"`
	Fallback         bool                `json:"fallback,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}
