// Package prompts renders the text prompts sent to the language model.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/examforge/internal/model"
)

//go:embed templates/*.txt
var embedded embed.FS

const maxAnswerRunes = 10000

// maxSyllabusRunes bounds the syllabus text embedded in a topic prompt.
const maxSyllabusRunes = 20000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
	syllabusRegex           = regexp.MustCompile(`(?i)</?\s*syllabus\b[^>]*>`)
)

// PromptVariant selects how strictly answers are graded.
type PromptVariant string

const (
	PromptStrict   PromptVariant = "strict"
	PromptStandard PromptVariant = "standard"
	PromptLenient  PromptVariant = "lenient"
)

var variants = []PromptVariant{PromptStrict, PromptStandard, PromptLenient}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if PromptVariant(v) == known {
			return true
		}
	}
	return false
}

// TypeLabel is the label a question type carries in generated exam text.
func TypeLabel(t model.QuestionType) string {
	switch t {
	case model.QuestionMCQ:
		return "MCQ"
	case model.QuestionTrueFalse:
		return "True/False"
	case model.QuestionShortAnswer:
		return "Short Answer"
	case model.QuestionEssay:
		return "Essay"
	}
	return "Question"
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"label": TypeLabel,
}

// Set is a loaded collection of prompt templates.
type Set struct {
	generate *template.Template
	topics   *template.Template
	ocr      string
	evaluate map[PromptVariant]*template.Template
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
	defaultErr  error
)

// Default returns the templates compiled into the binary.
func Default() (*Set, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Load(embedded)
	})
	return defaultSet, defaultErr
}

// Load reads templates from fsys, which must contain a templates/ directory
// laid out like the embedded one.
func Load(fsys fs.FS) (*Set, error) {
	s := &Set{evaluate: make(map[PromptVariant]*template.Template)}

	var err error
	if s.generate, err = parse(fsys, "generate.txt"); err != nil {
		return nil, err
	}
	if s.topics, err = parse(fsys, "topics.txt"); err != nil {
		return nil, err
	}
	ocr, err := fs.ReadFile(fsys, "templates/ocr.txt")
	if err != nil {
		return nil, fmt.Errorf("read prompt file templates/ocr.txt: %w", err)
	}
	s.ocr = strings.TrimSpace(string(ocr))

	for _, v := range variants {
		t, err := parse(fsys, "evaluate_"+string(v)+".txt", "common.txt")
		if err != nil {
			return nil, err
		}
		s.evaluate[v] = t
	}
	return s, nil
}

func parse(fsys fs.FS, name string, includes ...string) (*template.Template, error) {
	patterns := []string{"templates/" + name}
	for _, inc := range includes {
		patterns = append(patterns, "templates/"+inc)
	}
	t, err := template.New(name).Funcs(funcs).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return t, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute prompt template %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// GenerateData describes the exam to generate.
type GenerateData struct {
	Topics            []string
	Difficulty        string
	QuestionTypes     []model.QuestionType
	NumberOfQuestions int
	Distribution      model.Distribution
}

// BuildGeneratePrompt renders the exam generation prompt.
func (s *Set) BuildGeneratePrompt(data GenerateData) (string, error) {
	if data.NumberOfQuestions <= 0 {
		for _, tc := range data.Distribution {
			data.NumberOfQuestions += max(tc.Count, 0)
		}
	}
	if data.NumberOfQuestions <= 0 {
		data.NumberOfQuestions = 10
	}
	return execute(s.generate, data)
}

// BuildTopicsPrompt renders the syllabus topic extraction prompt.
func (s *Set) BuildTopicsPrompt(syllabus string) (string, error) {
	syllabus = truncate(strings.TrimSpace(syllabusRegex.ReplaceAllString(syllabus, "")), maxSyllabusRunes, "")
	return execute(s.topics, struct{ Syllabus string }{syllabus})
}

// OCRPrompt is the instruction sent along with an image to transcribe.
func (s *Set) OCRPrompt() string {
	return s.ocr
}

// EvalItem is one question with the student's answer.
type EvalItem struct {
	Number        int
	Question      string
	Type          model.QuestionType
	Options       []string
	CorrectAnswer string
	Weight        float64
	Answer        string
}

type evalData struct {
	ExamName   string
	Topics     []string
	TotalMarks float64
	Items      []EvalItem
	Unanswered string
}

// BuildEvalPrompt renders the grading prompt for a whole submission.
func (s *Set) BuildEvalPrompt(variant PromptVariant, sub model.ExamSubmission) (string, error) {
	t, ok := s.evaluate[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant: %s", variant)
	}

	data := evalData{ExamName: sub.ExamName, Topics: sub.Topics, Unanswered: model.Unanswered}
	for i, q := range sub.Questions {
		w := q.Weight
		if sw, ok := sub.QuestionWeights[i]; ok && sw > 0 {
			w = sw
		}
		if w <= 0 {
			w = 1
		}
		data.TotalMarks += w
		answer := sub.Answer(i)
		if answer != model.Unanswered {
			answer = sanitizeAnswer(answer)
		}
		data.Items = append(data.Items, EvalItem{
			Number:        i + 1,
			Question:      q.Question,
			Type:          q.Type,
			Options:       q.Options,
			CorrectAnswer: q.Answer,
			Weight:        w,
			Answer:        answer,
		})
	}
	return execute(t, data)
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return model.Unanswered
	}
	return truncate(answer, maxAnswerRunes, "\n\n[Answer truncated due to length]")
}

func truncate(s string, limit int, marker string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + marker
}
