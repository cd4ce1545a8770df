package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/peterhellberg/duration"
)

// QuestionType is the kind of a question, fixed once the question is parsed.
type QuestionType string

const (
	// QuestionMCQ is a multiple-choice question with up to four lettered options.
	QuestionMCQ QuestionType = "mcq"
	// QuestionTrueFalse is a question answered with True or False.
	QuestionTrueFalse QuestionType = "trueFalse"
	// QuestionShortAnswer is an open question with a short free-text answer.
	QuestionShortAnswer QuestionType = "shortAnswer"
	// QuestionEssay is an open question with a long free-text answer.
	QuestionEssay QuestionType = "essay"
	// QuestionUnknown is a question whose type could not be recognized.
	QuestionUnknown QuestionType = "unknown"
)

// QuestionTypeOrder is the canonical ordering of question types.
var QuestionTypeOrder = []QuestionType{
	QuestionMCQ,
	QuestionTrueFalse,
	QuestionShortAnswer,
	QuestionEssay,
	QuestionUnknown,
}

// HasOptions reports whether questions of this type are answered by picking an option.
func (t QuestionType) HasOptions() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse
}

// TrueFalseOptions are the fixed options of every true/false question.
var TrueFalseOptions = []string{"True", "False"}

// Question is one normalized exam question.
type Question struct {
	ID            int          `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Weight        float64      `json:"weight,omitempty"`
}

// Points returns the question weight, defaulting to 1.
func (q Question) Points() float64 {
	if q.Weight <= 0 {
		return 1
	}
	return q.Weight
}

// ExamQuestions holds an exam's questions either as a raw text blob that is
// still to be parsed, or as an already parsed sequence. Parsed wins when set.
type ExamQuestions struct {
	Raw    string
	Parsed []Question
}

// IsParsed reports whether the questions are already structured.
func (q ExamQuestions) IsParsed() bool {
	return q.Parsed != nil
}

func (q ExamQuestions) MarshalJSON() ([]byte, error) {
	if q.Parsed != nil {
		return json.Marshal(q.Parsed)
	}
	return json.Marshal(q.Raw)
}

func (q *ExamQuestions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*q = ExamQuestions{}
		return nil
	}
	switch data[0] {
	case '"':
		q.Parsed = nil
		return json.Unmarshal(data, &q.Raw)
	case '[':
		q.Raw = ""
		q.Parsed = []Question{}
		return json.Unmarshal(data, &q.Parsed)
	default:
		return fmt.Errorf("questions must be a string or an array, got %q", data[:1])
	}
}

// DefaultExamMinutes is used when an exam carries no usable duration.
const DefaultExamMinutes = 60

// ExamDuration is an exam time limit in whole minutes.
type ExamDuration int

// ParseExamDuration accepts plain minutes ("90"), ISO-8601 durations
// ("PT1H30M") and Go durations ("1h30m").
func ParseExamDuration(s string) (ExamDuration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return ExamDuration(n), nil
	}
	var d time.Duration
	var err error
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		d, err = duration.Parse(strings.ToUpper(s))
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("parse exam duration %q: %w", s, err)
	}
	return ExamDuration(math.Round(d.Minutes())), nil
}

// Minutes returns the duration in minutes, falling back to DefaultExamMinutes.
func (d ExamDuration) Minutes() int {
	if d <= 0 {
		return DefaultExamMinutes
	}
	return int(d)
}

// Duration converts the exam duration to a time.Duration.
func (d ExamDuration) Duration() time.Duration {
	return time.Duration(d.Minutes()) * time.Minute
}

func (d *ExamDuration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*d = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseExamDuration(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode exam duration: %w", err)
	}
	*d = ExamDuration(math.Round(f))
	return nil
}

// Exam is a generated exam and everything needed to take and grade it.
type Exam struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Date              string          `json:"date,omitempty"`
	Time              string          `json:"time,omitempty"`
	Duration          ExamDuration    `json:"duration"`
	Topics            []string        `json:"topics,omitempty"`
	Difficulty        string          `json:"difficulty,omitempty"`
	QuestionTypes     []QuestionType  `json:"questionTypes,omitempty"`
	NumberOfQuestions int             `json:"numberOfQuestions,omitempty"`
	Questions         ExamQuestions   `json:"questions"`
	QuestionWeights   map[int]float64 `json:"questionWeights,omitempty"`
	Distribution      Distribution    `json:"questionDistribution,omitempty"`
	LastSubmission    *ExamSubmission `json:"lastSubmission,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// TypeCount is a requested number of questions of one type.
type TypeCount struct {
	Type  QuestionType
	Count int
}

// Distribution is an ordered per-type question count. It encodes as a JSON
// object and keeps the key order found in the source document.
type Distribution []TypeCount

// DistributionFromMap builds a Distribution ordered by QuestionTypeOrder,
// with unrecognized types appended in lexical order.
func DistributionFromMap(m map[QuestionType]int) Distribution {
	var d Distribution
	seen := make(map[QuestionType]bool, len(m))
	for _, t := range QuestionTypeOrder {
		if n, ok := m[t]; ok {
			d = append(d, TypeCount{Type: t, Count: n})
			seen[t] = true
		}
	}
	var rest []string
	for t := range m {
		if !seen[t] {
			rest = append(rest, string(t))
		}
	}
	slices.Sort(rest)
	for _, t := range rest {
		d = append(d, TypeCount{Type: QuestionType(t), Count: m[QuestionType(t)]})
	}
	return d
}

func (d Distribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tc := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(tc.Type))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(tc.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Distribution) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode distribution: %w", err)
	}
	if tok == nil {
		*d = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("distribution must be a JSON object")
	}
	var out Distribution
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode distribution key: %w", err)
		}
		key, _ := keyTok.(string)
		var n float64
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("decode distribution count for %q: %w", key, err)
		}
		out = append(out, TypeCount{Type: QuestionType(key), Count: int(n)})
	}
	*d = out
	return nil
}

// ServerConfig holds runtime settings shared by the HTTP surface and the exam service.
type ServerConfig struct {
	Lang            string
	PromptVariant   string
	DefaultDuration ExamDuration
	HandoffInterval time.Duration
	BasePath        string
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}
