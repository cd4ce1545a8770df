// Package parser turns free-form generated exam text into normalized questions.
//
// Two passes are tried. The labeled pass recognizes headers such as
// "3. MCQ:" or "4. True/False:" and wins whenever at least one header is
// found. Only when no labeled header exists does the generic pass split the
// text on bare "N." boundaries and infer each block's type from its content.
// Every block is scanned for answers within its own lines only.
package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pavelanni/examforge/internal/model"
)

const labelPattern = `(mcq|multiple[\s-]*choice(?:\s+questions?)?|short[\s-]*answer|essay|true\s*(?:/|\\|-|or)?\s*false)`

var (
	labeledHeaderRe = regexp.MustCompile(`(?i)^[\s*#>_]*(\d+)\s*(?:` + pointsPattern + `\s*)?\.\s*[*_]*\s*(?:` + pointsPattern + `\s*)?` +
		labelPattern + `\s*[*_]*\s*(?:` + pointsPattern + `)?\s*[*_]*\s*(:)?[*_]*\s*(.*)$`)
	genericHeaderRe = regexp.MustCompile(`(?i)^[\s*#>_]*(\d+)\s*(?:` + pointsPattern + `\s*)?\.([^\d].*)?$`)

	optionRe  = regexp.MustCompile(`^[\s*_-]*([A-D])[ \t]*[).][ \t]*[*_]*[ \t]*(\S.*?)\s*$`)
	mcqAnsRe  = regexp.MustCompile(`(?i)answer\s*[*_]*\s*:\s*[*_(]*\s*([A-D])\b`)
	tfAnsRe   = regexp.MustCompile(`(?i)answer\s*[*_]*\s*:\s*[*_]*\s*(true|false)\b`)
	essayRe   = regexp.MustCompile(`(?i)\bessay\b`)
	keyHeadRe = regexp.MustCompile(`(?i)^[\s*#_]*(?:answer\s*key|answers|correct\s+answers|solutions)\s*[*_]*\s*:?\s*[*_]*\s*$`)
	keyLineRe = regexp.MustCompile(`(?i)^[\s*#_-]*(\d+)\s*[.):-]\s*[*_]*\s*(?:answer\s*:\s*)?[*_]*\s*([A-D]|true|false)\b`)
)

type block struct {
	num   int
	typ   model.QuestionType
	lines []string
}

func (b block) body() string {
	return strings.Join(b.lines, "\n")
}

// Parse converts exam text into questions sorted by id. It never fails:
// unrecognizable input yields fewer or more loosely typed questions.
func Parse(text string) []model.Question {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	lines, key := splitAnswerKey(lines)

	blocks := scanLabeled(lines)
	labeled := len(blocks) > 0
	if !labeled {
		blocks = scanGeneric(lines)
	}

	questions := make([]model.Question, 0, len(blocks))
	for _, b := range blocks {
		var q model.Question
		if labeled {
			q = buildLabeled(b)
		} else {
			q = buildGeneric(b)
		}
		if q.CorrectAnswer == "" {
			q.CorrectAnswer = keyAnswer(key[b.num], q.Type)
		}
		questions = append(questions, q)
	}

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].ID < questions[j].ID
	})
	return uniqueIDs(questions)
}

func scanLabeled(lines []string) []block {
	var blocks []block
	for _, line := range lines {
		if m := labeledHeaderRe.FindStringSubmatch(line); m != nil {
			typ := labelType(m[2])
			// Bare labels need a colon, except "Multiple Choice" which often stands alone.
			if m[3] != "" || typ == model.QuestionMCQ && !strings.EqualFold(strings.TrimSpace(m[2]), "mcq") {
				n, _ := strconv.Atoi(m[1])
				blocks = append(blocks, block{num: n, typ: typ, lines: []string{m[4]}})
				continue
			}
		}
		if len(blocks) > 0 {
			last := &blocks[len(blocks)-1]
			last.lines = append(last.lines, line)
		}
	}
	return blocks
}

func scanGeneric(lines []string) []block {
	var blocks []block
	for _, line := range lines {
		if m := genericHeaderRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			blocks = append(blocks, block{num: n, lines: []string{m[2]}})
			continue
		}
		if len(blocks) > 0 {
			last := &blocks[len(blocks)-1]
			last.lines = append(last.lines, line)
		}
	}

	kept := blocks[:0]
	for _, b := range blocks {
		if strings.TrimSpace(b.body()) != "" {
			kept = append(kept, b)
		}
	}
	return kept
}

func labelType(label string) model.QuestionType {
	l := strings.ToLower(label)
	switch {
	case strings.HasPrefix(l, "mcq"), strings.HasPrefix(l, "multiple"):
		return model.QuestionMCQ
	case strings.HasPrefix(l, "short"):
		return model.QuestionShortAnswer
	case strings.HasPrefix(l, "essay"):
		return model.QuestionEssay
	case strings.HasPrefix(l, "true"):
		return model.QuestionTrueFalse
	}
	return model.QuestionUnknown
}

func buildLabeled(b block) model.Question {
	raw := b.body()
	q := model.Question{ID: b.num, Type: b.typ}

	switch b.typ {
	case model.QuestionMCQ:
		q.Options = ExtractOptions(raw)
		q.CorrectAnswer = mcqAnswer(raw)
		if len(q.Options) == 0 {
			// Without options the question cannot be answered by choice.
			q.Type = model.QuestionUnknown
			q.CorrectAnswer = ""
		}
	case model.QuestionTrueFalse:
		q.Options = trueFalseOptions()
		q.CorrectAnswer = tfAnswer(raw)
	}

	q.Text = CleanQuestionText(raw, b.typ)
	return q
}

func buildGeneric(b block) model.Question {
	raw := b.body()
	q := model.Question{ID: b.num}

	options := ExtractOptions(raw)
	switch {
	case tfAnsRe.MatchString(raw):
		q.Type = model.QuestionTrueFalse
		q.Options = trueFalseOptions()
		q.CorrectAnswer = tfAnswer(raw)
	case len(options) > 0:
		q.Type = model.QuestionMCQ
		q.Options = options
		q.CorrectAnswer = mcqAnswer(raw)
	case essayRe.MatchString(raw):
		q.Type = model.QuestionEssay
	default:
		q.Type = model.QuestionShortAnswer
	}

	q.Text = CleanQuestionText(raw, q.Type)
	return q
}

// ExtractOptions returns up to four "A) text" options found one per line.
func ExtractOptions(text string) []string {
	var options []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		m := optionRe.FindStringSubmatch(line)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		options = append(options, m[1]+") "+strings.TrimRight(m[2], "*_ "))
		if len(options) == 4 {
			break
		}
	}
	return options
}

func mcqAnswer(text string) string {
	if m := mcqAnsRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

func tfAnswer(text string) string {
	if m := tfAnsRe.FindStringSubmatch(text); m != nil {
		return normalizeTrueFalse(m[1])
	}
	return ""
}

func normalizeTrueFalse(s string) string {
	if strings.EqualFold(s, "true") {
		return "True"
	}
	return "False"
}

func trueFalseOptions() []string {
	return append([]string(nil), model.TrueFalseOptions...)
}

// splitAnswerKey cuts a trailing "Answer Key" section off the exam and
// returns its "N. X" entries keyed by question number.
func splitAnswerKey(lines []string) ([]string, map[int]string) {
	for i, line := range lines {
		if !keyHeadRe.MatchString(line) {
			continue
		}
		key := make(map[int]string)
		for _, l := range lines[i+1:] {
			if m := keyLineRe.FindStringSubmatch(l); m != nil {
				n, _ := strconv.Atoi(m[1])
				if _, dup := key[n]; !dup {
					key[n] = m[2]
				}
			}
		}
		if len(key) > 0 {
			return lines[:i], key
		}
	}
	return lines, nil
}

func keyAnswer(ans string, t model.QuestionType) string {
	if ans == "" {
		return ""
	}
	switch t {
	case model.QuestionMCQ:
		if len(ans) == 1 {
			return strings.ToUpper(ans)
		}
	case model.QuestionTrueFalse:
		if len(ans) > 1 {
			return normalizeTrueFalse(ans)
		}
	}
	return ""
}

// uniqueIDs renumbers the sequence 1..N when header numbers repeat.
func uniqueIDs(questions []model.Question) []model.Question {
	seen := make(map[int]bool, len(questions))
	dup := false
	for _, q := range questions {
		if seen[q.ID] {
			dup = true
			break
		}
		seen[q.ID] = true
	}
	if !dup {
		return questions
	}
	for i := range questions {
		questions[i].ID = i + 1
	}
	return questions
}

// Normalize makes already structured questions conform to the parsed form:
// type names are canonicalized, options fixed up, text cleaned, and missing
// or repeated ids assigned sequentially.
func Normalize(in []model.Question) []model.Question {
	out := make([]model.Question, 0, len(in))
	for _, q := range in {
		q.Type = NormalizeType(string(q.Type))
		switch q.Type {
		case model.QuestionTrueFalse:
			q.Options = trueFalseOptions()
			if q.CorrectAnswer != "" {
				q.CorrectAnswer = normalizeTrueFalse(strings.TrimSpace(q.CorrectAnswer))
			}
		case model.QuestionMCQ:
			if len(q.Options) == 0 {
				q.Options = ExtractOptions(q.Text)
			}
			if len(q.Options) == 0 {
				q.Type = model.QuestionUnknown
				q.CorrectAnswer = ""
			} else {
				q.CorrectAnswer = strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
			}
		default:
			q.Options = nil
		}
		q.Text = CleanQuestionText(q.Text, q.Type)
		out = append(out, q)
	}

	valid := true
	seen := make(map[int]bool, len(out))
	for _, q := range out {
		if q.ID <= 0 || seen[q.ID] {
			valid = false
			break
		}
		seen[q.ID] = true
	}
	if !valid {
		for i := range out {
			out[i].ID = i + 1
		}
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NormalizeType maps loosely written type names onto the canonical set.
func NormalizeType(s string) model.QuestionType {
	k := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "", "/", "").Replace(s))
	switch k {
	case "mcq", "multiplechoice", "multiplechoicequestion", "choice":
		return model.QuestionMCQ
	case "truefalse", "trueorfalse", "tf", "boolean":
		return model.QuestionTrueFalse
	case "shortanswer", "short", "sa":
		return model.QuestionShortAnswer
	case "essay", "long", "longanswer":
		return model.QuestionEssay
	}
	return model.QuestionUnknown
}
