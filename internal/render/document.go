// Package render builds the self-contained page a student takes an exam in.
//
// The page shows one question at a time, tracks visit, answer and review
// state per question, runs the countdown, autosaves answers under every
// alias key and posts the final answer map back to the server.
package render

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/pavelanni/examforge/internal/answerkey"
	"github.com/pavelanni/examforge/internal/i18n"
	"github.com/pavelanni/examforge/internal/model"
)

const (
	// SweepInterval is how often the page re-collects every input.
	SweepInterval = 10 * time.Second
	// CloseDelay is how long the submitted view stays before the window closes.
	CloseDelay = 4 * time.Second
)

var (
	//go:embed assets/exam.html
	pageSource string
	//go:embed assets/exam.js
	pageScript string
	//go:embed assets/exam.css
	pageStyle string

	page = template.Must(template.New("exam").Funcs(template.FuncMap{
		"optionValue": OptionValue,
		"optionLabel": optionLabel,
		"checked":     func(a, b string) bool { return a != "" && strings.EqualFold(a, b) },
		"isLong":      func(t model.QuestionType) bool { return t == model.QuestionEssay || t == model.QuestionUnknown },
		"inc":         func(i int) int { return i + 1 },
	}).Parse(pageSource))
)

// stringIDs are the message ids the page script needs at runtime.
var stringIDs = map[string]string{
	"next":            "ExamNext",
	"submit":          "ExamSubmit",
	"mark":            "ExamMark",
	"unmark":          "ExamUnmark",
	"saved":           "ExamSaved",
	"submitted":       "ExamSubmitted",
	"autoSubmitted":   "ExamAutoSubmitted",
	"closing":         "ExamClosing",
	"connectionIssue": "ExamConnectionIssue",
	"extracting":      "ExamExtractingText",
	"ocrFailed":       "ExamOCRFailed",
}

// Document is one exam ready to be rendered. Questions are the prepared,
// unstripped questions; answers are removed before anything is written.
type Document struct {
	Exam      model.Exam
	Questions []model.Question
	Draft     model.AnswerMap
	StartedAt time.Time
}

type endpoints struct {
	Submit string `json:"submit"`
	Draft  string `json:"draft"`
	OCR    string `json:"ocr"`
}

// payload is serialized into the page for the script.
type payload struct {
	ExamID           string            `json:"examId"`
	ExamName         string            `json:"examName"`
	Questions        []model.Question  `json:"questions"`
	NaturalKeys      []string          `json:"naturalKeys"`
	Aliases          []string          `json:"aliases"`
	Initial          []string          `json:"initial"`
	Status           []Status          `json:"status"`
	DurationSeconds  int               `json:"durationSeconds"`
	StartedAt        int64             `json:"startedAt"`
	WarningSeconds   int               `json:"warningSeconds"`
	DangerSeconds    int               `json:"dangerSeconds"`
	SweepMillis      int64             `json:"sweepMillis"`
	CloseDelayMillis int64             `json:"closeDelayMillis"`
	Endpoints        endpoints         `json:"endpoints"`
	Strings          map[string]string `json:"strings"`
}

type view struct {
	Lang      string
	Title     string
	Clock     string
	Phase     Phase
	Questions []model.Question
	Initial   []string
	Status    []Status
	T         map[string]string
	Payload   payload
	Style     template.CSS
	Script    template.JS
}

// Component exposes the document as a templ component.
func (d Document) Component() templ.Component {
	return templ.ComponentFunc(d.Render)
}

// Render writes the complete HTML page. Strings are localized from ctx and
// endpoint URLs carry the base path found in ctx.
func (d Document) Render(ctx context.Context, w io.Writer) error {
	questions := StripAnswers(d.Questions)
	started := d.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	tracker := NewTracker(len(questions))
	initial := make([]string, len(questions))
	natural := make([]string, len(questions))
	for i, q := range questions {
		natural[i] = answerkey.NaturalKey(q.Type, i)
		if v, ok := answerkey.Lookup(d.Draft, i); ok {
			initial[i] = v
			tracker.Answer(i, v)
		}
	}
	tracker.Visit(0)

	aliases := make([]string, len(answerkey.AliasFormats))
	for i, f := range answerkey.AliasFormats {
		aliases[i] = strings.ReplaceAll(f, "%d", "{i}")
	}

	t := localized(ctx)
	base := model.BasePathFromContext(ctx)
	prefix := fmt.Sprintf("%s/exam/%s", base, d.Exam.ID)
	dur := d.Exam.Duration.Duration()

	v := view{
		Lang:      i18n.Lang(ctx),
		Title:     d.Exam.Name,
		Clock:     Clock(dur),
		Phase:     PhaseFor(dur),
		Questions: questions,
		Initial:   initial,
		Status:    tracker.Statuses(),
		T:         t,
		Style:     template.CSS(pageStyle),
		Script:    template.JS(pageScript),
		Payload: payload{
			ExamID:           d.Exam.ID,
			ExamName:         d.Exam.Name,
			Questions:        questions,
			NaturalKeys:      natural,
			Aliases:          aliases,
			Initial:          initial,
			Status:           tracker.Statuses(),
			DurationSeconds:  int(dur / time.Second),
			StartedAt:        started.UnixMilli(),
			WarningSeconds:   int(WarningThreshold / time.Second),
			DangerSeconds:    int(DangerThreshold / time.Second),
			SweepMillis:      SweepInterval.Milliseconds(),
			CloseDelayMillis: CloseDelay.Milliseconds(),
			Endpoints: endpoints{
				Submit: prefix + "/submit",
				Draft:  prefix + "/draft",
				OCR:    prefix + "/ocr",
			},
			Strings: t,
		},
	}
	if v.Title == "" {
		v.Title = i18n.T(ctx, "ExamUntitled")
	}
	if err := page.Execute(w, v); err != nil {
		return fmt.Errorf("render exam %s: %w", d.Exam.ID, err)
	}
	return nil
}

func localized(ctx context.Context) map[string]string {
	t := map[string]string{
		"question":    i18n.T(ctx, "ExamQuestion"),
		"back":        i18n.T(ctx, "ExamBack"),
		"timeLeft":    i18n.T(ctx, "ExamTimeLeft"),
		"upload":      i18n.T(ctx, "ExamUploadImage"),
		"placeholder": i18n.T(ctx, "ExamAnswerPlaceholder"),
		"points":      i18n.T(ctx, "ExamPoints"),
	}
	for key, id := range stringIDs {
		t[key] = i18n.T(ctx, id)
	}
	// The script fills in the count.
	t["confirmSubmit"] = i18n.Td(ctx, "ExamConfirmSubmit", map[string]any{"Count": "{count}"})
	return t
}

// OptionValue returns the value submitted for an option: the letter of an
// "A) text" MCQ option, or the option itself for true/false.
func OptionValue(t model.QuestionType, option string) string {
	if t == model.QuestionMCQ && len(option) >= 2 && (option[1] == ')' || option[1] == '.') {
		return option[:1]
	}
	return option
}

func optionLabel(t model.QuestionType, option string) string {
	if t == model.QuestionMCQ && len(option) >= 2 && (option[1] == ')' || option[1] == '.') {
		return strings.TrimSpace(option[2:])
	}
	return option
}
