package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/examforge/internal/channel"
	"github.com/pavelanni/examforge/internal/model"
)

// HandoffWriter durably records a finished submission.
type HandoffWriter interface {
	WriteHandoff(ctx context.Context, sub model.ExamSubmission) error
}

// Submitter delivers submissions to the host: first a durable handoff
// write, then a best-effort channel message.
type Submitter struct {
	store HandoffWriter
	ch    channel.Channel
}

func NewSubmitter(store HandoffWriter, ch channel.Channel) *Submitter {
	return &Submitter{store: store, ch: ch}
}

// Submit records sub and announces it. Only a failed durable write is an
// error; delivered reports whether the message was also sent.
func (s *Submitter) Submit(ctx context.Context, sub model.ExamSubmission) (delivered bool, err error) {
	if err := s.store.WriteHandoff(ctx, sub); err != nil {
		return false, fmt.Errorf("record submission %s: %w", sub.ExamID, err)
	}
	if s.ch == nil {
		return false, nil
	}
	msg := channel.Message{Kind: channel.KindExamCompleted, ExamID: sub.ExamID, Submission: &sub}
	if err := s.ch.Send(ctx, msg); err != nil {
		slog.Warn("completion message not delivered, handoff will be picked up later",
			"exam_id", sub.ExamID, "error", err)
		return false, nil
	}
	return true, nil
}
