package parser

import (
	"regexp"
	"strings"

	"github.com/pavelanni/examforge/internal/model"
)

const pointsPattern = `\(\s*\d+(?:\.\d+)?\s*(?:points?|pts?\.?|marks?)\s*\)`

var (
	optionLineRe = regexp.MustCompile(`(?m)^[ \t*_-]*[A-D][ \t]*[).][^\n]*(?:\n|$)`)

	// Single-line answer annotations, used for option-based questions.
	answerLineRe = regexp.MustCompile(`(?im)^[^\n]*\b(?:(?:sample|suggested|expected|model|correct|example)\s+)?(?:answer|solution)\s*[*_]*\s*:[^\n]*(?:\n|$)`)
	// Answer sections of open questions run until the next blank line.
	answerSectionRe = regexp.MustCompile(`(?is)[*_]*\b(?:(?:sample|suggested|expected|model|correct|example)\s+)?(?:answer|solution)\s*[*_]*\s*:.*?(?:\n[ \t]*\n|\z)`)
	answerGuardRe   = regexp.MustCompile(`(?im)^[^\n]*answer\s*:[^\n]*(?:\n|$)`)

	lengthLabelRe = regexp.MustCompile(`(?is)(?:word\s+count|word\s+limit|expected\s+length|character\s+limit|(?:response\s+|answer\s+)?guidelines)\s*:.*?(?:\n[ \t]*\n|\z)`)
	lengthLineRe  = regexp.MustCompile(`(?im)^[ \t*_(]*(?:write\s+|answer\s+in\s+|respond\s+in\s+)?(?:approximately|approx\.?|about|around|at\s+least|no\s+more\s+than|up\s+to)\s+\d+(?:\s*(?:-|–|to)\s*\d+)?\s+words[.)]*[ \t]*(?:\n|$)`)
	lengthParenRe = regexp.MustCompile(`(?i)\(\s*(?:approx(?:imately)?\.?\s*|about\s+|around\s+)?\d+(?:\s*(?:-|–|to)\s*\d+)?\s*words?\s*\)`)

	selectOneRe  = regexp.MustCompile(`(?i)(?:select\s+one|choose\s+one|select\s+the\s+correct\s+option|choose\s+the\s+correct\s+option)\s*:[^\n]*(?:\n|$)`)
	pointsRe     = regexp.MustCompile(`(?i)` + pointsPattern)
	gradingRe    = regexp.MustCompile(`(?is)(?:grading\s+criteria|grading\s+rubric|marking\s+scheme)\s*:.*?(?:\n[ \t]*\n|\z)`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	trailingWsRe = regexp.MustCompile(`(?m)[ \t]+$`)
)

// CleanQuestionText strips answer annotations and grading metadata from a
// question body so it can be shown to a student. Option lines are removed
// for option-based types because they are rendered as controls.
func CleanQuestionText(text string, t model.QuestionType) string {
	s := strings.ReplaceAll(text, "\r\n", "\n")

	if t.HasOptions() {
		s = optionLineRe.ReplaceAllString(s, "")
		s = answerLineRe.ReplaceAllString(s, "")
	} else {
		s = answerSectionRe.ReplaceAllString(s, "\n\n")
	}

	s = lengthLabelRe.ReplaceAllString(s, "\n\n")
	s = lengthLineRe.ReplaceAllString(s, "")
	s = lengthParenRe.ReplaceAllString(s, "")
	s = selectOneRe.ReplaceAllString(s, "")
	s = pointsRe.ReplaceAllString(s, "")
	s = gradingRe.ReplaceAllString(s, "\n\n")
	s = answerGuardRe.ReplaceAllString(s, "")

	s = trailingWsRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

// StripAnswerLines removes every answer annotation from text regardless of type.
func StripAnswerLines(text string) string {
	s := answerLineRe.ReplaceAllString(text, "")
	s = answerGuardRe.ReplaceAllString(s, "")
	return strings.TrimSpace(blankRunRe.ReplaceAllString(s, "\n\n"))
}
