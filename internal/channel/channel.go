// Package channel carries completion messages from the exam surface to the
// host. Delivery is best-effort: a send may fail or be dropped, so senders
// must persist the payload durably before sending.
package channel

import (
	"context"
	"errors"

	"github.com/pavelanni/examforge/internal/model"
)

// Kind identifies the payload of a Message.
type Kind string

// KindExamCompleted announces a finished exam with its submission.
const KindExamCompleted Kind = "examCompleted"

// ErrFull is returned by Send when the message could not be queued.
var ErrFull = errors.New("channel full")

// Message is the typed payload sent across the channel.
type Message struct {
	Kind       Kind                  `json:"type"`
	ExamID     string                `json:"examId"`
	Submission *model.ExamSubmission `json:"submission,omitempty"`
}

// Channel is a one-way, fire-and-forget message transport.
type Channel interface {
	Send(ctx context.Context, msg Message) error
	// Receive returns a stream of messages that ends when ctx is done.
	Receive(ctx context.Context) (<-chan Message, error)
}
