package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pavelanni/examforge/internal/model"
)

const labeledExam = `Here is your exam on basic arithmetic.

1. MCQ: What is 2+2?
A) 3
B) 4
C) 5
D) 6
Answer: B

2. True/False: The number 7 is prime.
Answer: True

3. Short Answer: Explain what a prime number is. (2 points)
Word count: 50-100 words
Sample Answer: A number greater than 1 with no divisors other than 1 and itself.

4. Essay: Discuss the history of the number zero.
Grading criteria: origin, spread to Europe,
use in positional notation.

Expected Answer: Zero originated in India...
`

func TestParseLabeled(t *testing.T) {
	qs := Parse(labeledExam)
	if len(qs) != 4 {
		t.Fatalf("expected 4 questions, got %d: %+v", len(qs), qs)
	}

	wantTypes := []model.QuestionType{
		model.QuestionMCQ,
		model.QuestionTrueFalse,
		model.QuestionShortAnswer,
		model.QuestionEssay,
	}
	for i, q := range qs {
		if q.ID != i+1 {
			t.Errorf("question %d: id = %d", i, q.ID)
		}
		if q.Type != wantTypes[i] {
			t.Errorf("question %d: type = %q, want %q", i, q.Type, wantTypes[i])
		}
		if strings.Contains(strings.ToLower(q.Text), "answer:") {
			t.Errorf("question %d: text still contains an answer line: %q", i, q.Text)
		}
	}

	if qs[1].CorrectAnswer != "True" {
		t.Errorf("true/false answer = %q, want True", qs[1].CorrectAnswer)
	}
	if !reflect.DeepEqual(qs[1].Options, []string{"True", "False"}) {
		t.Errorf("true/false options = %v", qs[1].Options)
	}
	if qs[2].Text != "Explain what a prime number is." {
		t.Errorf("short answer text = %q", qs[2].Text)
	}
	if qs[2].Options != nil || qs[2].CorrectAnswer != "" {
		t.Errorf("short answer should have no options or key: %+v", qs[2])
	}
	if strings.Contains(qs[3].Text, "Grading criteria") || strings.Contains(qs[3].Text, "positional") {
		t.Errorf("essay text still carries grading criteria: %q", qs[3].Text)
	}
}

func TestParseMCQScenario(t *testing.T) {
	qs := Parse("1. MCQ: What is 2+2?\nA) 3\nB) 4\nC) 5\nD) 6\nAnswer: B")
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
	q := qs[0]
	if q.Type != model.QuestionMCQ {
		t.Errorf("type = %q, want mcq", q.Type)
	}
	wantOpts := []string{"A) 3", "B) 4", "C) 5", "D) 6"}
	if !reflect.DeepEqual(q.Options, wantOpts) {
		t.Errorf("options = %v, want %v", q.Options, wantOpts)
	}
	if q.CorrectAnswer != "B" {
		t.Errorf("correct answer = %q, want B", q.CorrectAnswer)
	}
	if q.Text != "What is 2+2?" {
		t.Errorf("text = %q, want %q", q.Text, "What is 2+2?")
	}
}

func TestParseLabelVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.QuestionType
	}{
		{"lowercase mcq", "1. mcq: Pick one\nA) x\nB) y", model.QuestionMCQ},
		{"multiple choice without colon", "1. Multiple Choice Which?\nA) x\nB) y", model.QuestionMCQ},
		{"spaced true false", "1. True / False: Sky is blue.", model.QuestionTrueFalse},
		{"true or false", "1. True or False: Sky is blue.", model.QuestionTrueFalse},
		{"bold label", "**1. Short Answer:** Define entropy.", model.QuestionShortAnswer},
		{"points before label", "1. (3 points) Essay: Discuss.", model.QuestionEssay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := Parse(tt.text)
			if len(qs) != 1 {
				t.Fatalf("expected 1 question, got %d", len(qs))
			}
			if qs[0].Type != tt.want {
				t.Errorf("type = %q, want %q", qs[0].Type, tt.want)
			}
		})
	}
}

func TestParseGenericFallback(t *testing.T) {
	text := `1. Is water wet?
Answer: True

2. Which planet is largest?
A) Mars
B. Jupiter
C) Venus
Answer: B

3. Write an essay on climate change.

4. Name the capital of France.`

	qs := Parse(text)
	want := []model.QuestionType{
		model.QuestionTrueFalse,
		model.QuestionMCQ,
		model.QuestionEssay,
		model.QuestionShortAnswer,
	}
	if len(qs) != len(want) {
		t.Fatalf("expected %d questions, got %d", len(want), len(qs))
	}
	for i, q := range qs {
		if q.Type != want[i] {
			t.Errorf("question %d: type = %q, want %q", i+1, q.Type, want[i])
		}
	}
	if qs[1].CorrectAnswer != "B" || len(qs[1].Options) != 3 {
		t.Errorf("mcq = %+v", qs[1])
	}
	if qs[1].Options[1] != "B) Jupiter" {
		t.Errorf("dotted option = %q, want %q", qs[1].Options[1], "B) Jupiter")
	}
}

func TestParseLabeledWinsOverGeneric(t *testing.T) {
	// Once a labeled header exists, a bare "2." line does not start a question.
	// It stays in question 1's block along with the answer line after it.
	text := "1. MCQ: Pick a letter\nA) a\nB) b\n2. Stray text\nAnswer: C"
	qs := Parse(text)
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
	if qs[0].CorrectAnswer != "C" {
		t.Errorf("answer = %q, want C (scoped to the labeled block)", qs[0].CorrectAnswer)
	}
}

func TestParseAnswerKeySection(t *testing.T) {
	text := `1. MCQ: First?
A) one
B) two

2. True/False: Second.

Answer Key:
1. A
2. False`

	qs := Parse(text)
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].CorrectAnswer != "A" {
		t.Errorf("q1 answer = %q, want A", qs[0].CorrectAnswer)
	}
	if qs[1].CorrectAnswer != "False" {
		t.Errorf("q2 answer = %q, want False", qs[1].CorrectAnswer)
	}
	if strings.Contains(qs[1].Text, "Answer Key") {
		t.Errorf("answer key leaked into text: %q", qs[1].Text)
	}
}

func TestParseSortedAndUnique(t *testing.T) {
	text := "3. Essay: C\n1. Essay: A\n2. Essay: B\n2. Essay: B again"
	qs := Parse(text)
	if len(qs) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(qs))
	}
	for i, q := range qs {
		if q.ID != i+1 {
			t.Errorf("position %d has id %d", i, q.ID)
		}
	}
	if qs[0].Text != "A" || qs[3].Text != "C" {
		t.Errorf("unexpected order: %q .. %q", qs[0].Text, qs[3].Text)
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"no numbers here",
		"1.",
		"1. MCQ:",
		"Answer: B",
		"3.14 is pi\n2.71 is e",
		strings.Repeat("1. ", 50),
	}
	for _, in := range inputs {
		qs := Parse(in)
		for _, q := range qs {
			if q.Type.HasOptions() != (len(q.Options) > 0) {
				t.Errorf("input %q: options/type mismatch %+v", in, q)
			}
		}
	}
	if got := Parse("3.14 is pi\n2.71 is e"); len(got) != 0 {
		t.Errorf("decimals should not start questions, got %d", len(got))
	}
}

func TestMCQWithoutOptionsDegrades(t *testing.T) {
	qs := Parse("1. MCQ: Which one?\nAnswer: B")
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
	if qs[0].Type != model.QuestionUnknown {
		t.Errorf("type = %q, want unknown", qs[0].Type)
	}
	if qs[0].CorrectAnswer != "" {
		t.Errorf("unknown question kept an answer: %q", qs[0].CorrectAnswer)
	}
}

func TestExtractOptionsLimit(t *testing.T) {
	text := "A) one\nB) two\nC) three\nD) four\nE) five\nA) dup"
	got := ExtractOptions(text)
	if len(got) != 4 {
		t.Fatalf("expected 4 options, got %v", got)
	}
	for i, opt := range got {
		letter := string(rune('A' + i))
		if !strings.HasPrefix(opt, letter+")") {
			t.Errorf("option %d = %q, want prefix %q", i, opt, letter+")")
		}
	}
}

func TestCleanQuestionText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		typ  model.QuestionType
		want string
	}{
		{
			name: "select one and points",
			in:   "Which gas do plants absorb? (2 points)\nSelect one: the best fit\nA) O2\nB) CO2\nCorrect Answer: B",
			typ:  model.QuestionMCQ,
			want: "Which gas do plants absorb?",
		},
		{
			name: "suggested answer section",
			in:   "Define osmosis.\n\nSuggested Answer: Movement of water\nacross a membrane.\n\nBe concise.",
			typ:  model.QuestionShortAnswer,
			want: "Define osmosis.\n\nBe concise.",
		},
		{
			name: "word guidance",
			in:   "Describe photosynthesis (approximately 150 words).\nWrite about 200 words.",
			typ:  model.QuestionEssay,
			want: "Describe photosynthesis .",
		},
		{
			name: "collapses blank runs",
			in:   "Line one\n\n\n\n\nLine two",
			typ:  model.QuestionShortAnswer,
			want: "Line one\n\nLine two",
		},
		{
			name: "solution label",
			in:   "Compute 3*3.\nSolution: 9",
			typ:  model.QuestionShortAnswer,
			want: "Compute 3*3.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanQuestionText(tt.in, tt.typ)
			if got != tt.want {
				t.Errorf("CleanQuestionText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanNeverLeavesAnswerLabel(t *testing.T) {
	inputs := []string{
		"Q?\nanswer: b",
		"Q?\nThe ANSWER: is here",
		"Q?\nAnswer(2 points): X",
		"Q?\nModel Answer: long\ntext\nmore",
	}
	types := []model.QuestionType{model.QuestionMCQ, model.QuestionShortAnswer, model.QuestionEssay}
	for _, in := range inputs {
		for _, typ := range types {
			got := CleanQuestionText(in, typ)
			if strings.Contains(strings.ToLower(got), "answer:") {
				t.Errorf("CleanQuestionText(%q, %s) = %q", in, typ, got)
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	in := []model.Question{
		{ID: 1, Text: "Pick\nA) x\nB) y", Type: "Multiple Choice", CorrectAnswer: "b"},
		{ID: 2, Text: "Sky is blue", Type: "true/false", CorrectAnswer: "true"},
		{ID: 2, Text: "Explain", Type: "short_answer", Options: []string{"stray"}},
		{Text: "???", Type: "matching"},
	}
	out := Normalize(in)
	if len(out) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(out))
	}
	for i, q := range out {
		if q.ID != i+1 {
			t.Errorf("question %d: id = %d", i, q.ID)
		}
	}
	if out[0].Type != model.QuestionMCQ || len(out[0].Options) != 2 || out[0].CorrectAnswer != "B" {
		t.Errorf("mcq = %+v", out[0])
	}
	if out[1].Type != model.QuestionTrueFalse || out[1].CorrectAnswer != "True" {
		t.Errorf("true/false = %+v", out[1])
	}
	if out[2].Options != nil {
		t.Errorf("short answer kept options: %v", out[2].Options)
	}
	if out[3].Type != model.QuestionUnknown {
		t.Errorf("unrecognized type = %q, want unknown", out[3].Type)
	}
}
