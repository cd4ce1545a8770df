package evaluation

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pavelanni/examforge/internal/model"
)

// number decodes a JSON number or numeric string. Anything else is absent.
type number struct {
	Value float64
	Set   bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = number{Value: f, Set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*n = number{Value: f, Set: true}
			return nil
		}
	}
	*n = number{}
	return nil
}

// text decodes any JSON scalar as a string.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = text(s)
		return nil
	}
	if len(data) == 0 || string(data) == "null" || data[0] == '{' || data[0] == '[' {
		*t = ""
		return nil
	}
	*t = text(data)
	return nil
}

type wireDetail struct {
	Question      text              `json:"question"`
	Type          text              `json:"type"`
	IsCorrect     model.Correctness `json:"isCorrect"`
	Feedback      text              `json:"feedback"`
	MarksObtained number            `json:"marksObtained"`
	TotalMarks    number            `json:"totalMarks"`
	UserAnswer    text              `json:"userAnswer"`
	CorrectAnswer text              `json:"correctAnswer"`
}

type wireResult struct {
	TotalScore       number            `json:"totalScore"`
	TotalMarks       number            `json:"totalMarks"`
	Percentage       number            `json:"percentage"`
	QuestionDetails  []wireDetail      `json:"questionDetails"`
	TopicPerformance map[string]number `json:"topicPerformance"`
}
