package render

import "strings"

// Status is the review state of one question in the exam palette.
type Status string

const (
	StatusNotVisited Status = "notVisited"
	StatusUnanswered Status = "unanswered"
	StatusAnswered   Status = "answered"
	StatusMarked     Status = "marked"
)

type questionState struct {
	visited  bool
	answered bool
	marked   bool
}

// Tracker follows per-question state while an exam is taken.
// A question moves from not visited to unanswered when first shown and
// between unanswered and answered as its answer is filled or cleared.
// The review mark is an independent flag that takes display precedence;
// clearing it reveals the underlying answered or unanswered state.
type Tracker struct {
	states []questionState
}

func NewTracker(n int) *Tracker {
	return &Tracker{states: make([]questionState, n)}
}

// Len returns the number of tracked questions.
func (t *Tracker) Len() int {
	return len(t.states)
}

func (t *Tracker) valid(i int) bool {
	return i >= 0 && i < len(t.states)
}

// Visit records that question i was navigated to.
func (t *Tracker) Visit(i int) {
	if t.valid(i) {
		t.states[i].visited = true
	}
}

// Answer records the current answer value of question i.
func (t *Tracker) Answer(i int, value string) {
	if !t.valid(i) {
		return
	}
	t.states[i].visited = true
	t.states[i].answered = strings.TrimSpace(value) != ""
}

// ToggleMark flips the review flag of question i.
func (t *Tracker) ToggleMark(i int) {
	if !t.valid(i) {
		return
	}
	t.states[i].visited = true
	t.states[i].marked = !t.states[i].marked
}

// Status returns the displayed state of question i.
func (t *Tracker) Status(i int) Status {
	if !t.valid(i) {
		return StatusNotVisited
	}
	s := t.states[i]
	switch {
	case s.marked:
		return StatusMarked
	case s.answered:
		return StatusAnswered
	case s.visited:
		return StatusUnanswered
	default:
		return StatusNotVisited
	}
}

// Statuses returns the displayed state of every question.
func (t *Tracker) Statuses() []Status {
	out := make([]Status, len(t.states))
	for i := range t.states {
		out[i] = t.Status(i)
	}
	return out
}

// Pending counts questions that are unanswered or marked for review.
// A non-zero count gates manual submission behind a confirmation.
func (t *Tracker) Pending() int {
	n := 0
	for _, s := range t.states {
		if !s.answered || s.marked {
			n++
		}
	}
	return n
}
