package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pavelanni/examforge/internal/model"
)

// Keys of the persisted layout. Every value is JSON-encoded.
const (
	KeyUpcomingExams   = "upcomingExams"
	KeyPreviousExams   = "previousExams"
	KeyExamResults     = "examResults"
	KeyCompletedExamID = "completedExamId"
	KeyLastExamResults = "lastExamResults"

	draftPrefix  = "examDraft:"
	topicsPrefix = "syllabusTopics:"
)

// Repository gives typed access to exams, results, the completion handoff
// and drafts stored in a KV.
type Repository struct {
	kv KV
	// mu serializes read-modify-write cycles on list values.
	mu sync.Mutex
}

func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

func (r *Repository) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := r.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Repository) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.kv.Set(ctx, key, string(data))
}

func (r *Repository) exams(ctx context.Context, key string) ([]model.Exam, error) {
	var exams []model.Exam
	if _, err := r.getJSON(ctx, key, &exams); err != nil {
		return nil, err
	}
	return exams, nil
}

// UpcomingExams returns exams not yet taken.
func (r *Repository) UpcomingExams(ctx context.Context) ([]model.Exam, error) {
	return r.exams(ctx, KeyUpcomingExams)
}

// PreviousExams returns exams already taken and evaluated.
func (r *Repository) PreviousExams(ctx context.Context) ([]model.Exam, error) {
	return r.exams(ctx, KeyPreviousExams)
}

// AddUpcoming appends exam to the upcoming list.
func (r *Repository) AddUpcoming(ctx context.Context, exam model.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exams, err := r.exams(ctx, KeyUpcomingExams)
	if err != nil {
		return err
	}
	return r.setJSON(ctx, KeyUpcomingExams, append(exams, exam))
}

// UpcomingExam returns the upcoming exam with the given id, or ErrNotFound.
func (r *Repository) UpcomingExam(ctx context.Context, id string) (model.Exam, error) {
	exams, err := r.exams(ctx, KeyUpcomingExams)
	if err != nil {
		return model.Exam{}, err
	}
	for _, e := range exams {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Exam{}, fmt.Errorf("upcoming exam %s: %w", id, ErrNotFound)
}

// UpdateUpcoming replaces the upcoming exam that has exam.ID.
func (r *Repository) UpdateUpcoming(ctx context.Context, exam model.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exams, err := r.exams(ctx, KeyUpcomingExams)
	if err != nil {
		return err
	}
	for i := range exams {
		if exams[i].ID == exam.ID {
			exams[i] = exam
			return r.setJSON(ctx, KeyUpcomingExams, exams)
		}
	}
	return fmt.Errorf("upcoming exam %s: %w", exam.ID, ErrNotFound)
}

// MoveToPrevious moves an exam from the upcoming list to the previous list.
func (r *Repository) MoveToPrevious(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	upcoming, err := r.exams(ctx, KeyUpcomingExams)
	if err != nil {
		return err
	}
	idx := indexOfExam(upcoming, id)
	if idx < 0 {
		return fmt.Errorf("upcoming exam %s: %w", id, ErrNotFound)
	}
	exam := upcoming[idx]
	exam.LastSubmission = nil

	previous, err := r.exams(ctx, KeyPreviousExams)
	if err != nil {
		return err
	}
	if err := r.setJSON(ctx, KeyPreviousExams, append(previous, exam)); err != nil {
		return err
	}
	return r.setJSON(ctx, KeyUpcomingExams, append(upcoming[:idx], upcoming[idx+1:]...))
}

// DeleteExam removes an exam from whichever list holds it. Results are kept.
func (r *Repository) DeleteExam(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, key := range []string{KeyUpcomingExams, KeyPreviousExams} {
		exams, err := r.exams(ctx, key)
		if err != nil {
			return err
		}
		idx := indexOfExam(exams, id)
		if idx < 0 {
			continue
		}
		found = true
		if err := r.setJSON(ctx, key, append(exams[:idx], exams[idx+1:]...)); err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return r.kv.Remove(ctx, draftPrefix+id)
}

func indexOfExam(exams []model.Exam, id string) int {
	for i, e := range exams {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Results returns all stored evaluation results in creation order.
func (r *Repository) Results(ctx context.Context) ([]model.EvaluationResult, error) {
	var results []model.EvaluationResult
	if _, err := r.getJSON(ctx, KeyExamResults, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// AppendResult stores a new evaluation result. Results are never updated.
func (r *Repository) AppendResult(ctx context.Context, result model.EvaluationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	results, err := r.Results(ctx)
	if err != nil {
		return err
	}
	return r.setJSON(ctx, KeyExamResults, append(results, result))
}

// DeleteResult removes every result recorded for examID.
func (r *Repository) DeleteResult(ctx context.Context, examID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	results, err := r.Results(ctx)
	if err != nil {
		return err
	}
	kept := results[:0]
	for _, res := range results {
		if res.ExamID != examID {
			kept = append(kept, res)
		}
	}
	if len(kept) == len(results) {
		return fmt.Errorf("result for exam %s: %w", examID, ErrNotFound)
	}
	return r.setJSON(ctx, KeyExamResults, kept)
}

// WriteHandoff durably records a finished submission for the host to pick up.
// The payload is written before the id, so a present id implies a payload.
func (r *Repository) WriteHandoff(ctx context.Context, sub model.ExamSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.setJSON(ctx, KeyLastExamResults, sub); err != nil {
		return fmt.Errorf("write handoff payload: %w", err)
	}
	if err := r.setJSON(ctx, KeyCompletedExamID, sub.ExamID); err != nil {
		return fmt.Errorf("write handoff id: %w", err)
	}
	return nil
}

// PendingHandoff returns the recorded submission, if any, without clearing it.
func (r *Repository) PendingHandoff(ctx context.Context) (model.ExamSubmission, bool, error) {
	var id string
	ok, err := r.getJSON(ctx, KeyCompletedExamID, &id)
	if err != nil || !ok || id == "" {
		return model.ExamSubmission{}, false, err
	}
	var sub model.ExamSubmission
	ok, err = r.getJSON(ctx, KeyLastExamResults, &sub)
	if err != nil || !ok {
		return model.ExamSubmission{}, false, err
	}
	if sub.ExamID != id {
		return model.ExamSubmission{}, false, fmt.Errorf("handoff id %s does not match payload %s", id, sub.ExamID)
	}
	return sub, true, nil
}

// ClearHandoff removes the handoff pair if it belongs to examID.
func (r *Repository) ClearHandoff(ctx context.Context, examID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	if _, err := r.getJSON(ctx, KeyCompletedExamID, &id); err != nil {
		return err
	}
	if id != examID {
		return nil
	}
	if err := r.kv.Remove(ctx, KeyCompletedExamID); err != nil {
		return err
	}
	return r.kv.Remove(ctx, KeyLastExamResults)
}

// SaveDraft stores in-progress answers for an exam.
func (r *Repository) SaveDraft(ctx context.Context, examID string, answers model.AnswerMap) error {
	return r.setJSON(ctx, draftPrefix+examID, answers)
}

// Draft returns saved in-progress answers, or an empty map.
func (r *Repository) Draft(ctx context.Context, examID string) (model.AnswerMap, error) {
	answers := make(model.AnswerMap)
	if _, err := r.getJSON(ctx, draftPrefix+examID, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// RemoveDraft deletes saved in-progress answers.
func (r *Repository) RemoveDraft(ctx context.Context, examID string) error {
	return r.kv.Remove(ctx, draftPrefix+examID)
}

// CachedTopics returns topics previously extracted from a syllabus with the given hash.
func (r *Repository) CachedTopics(ctx context.Context, hash string) ([]string, bool, error) {
	var topics []string
	ok, err := r.getJSON(ctx, topicsPrefix+hash, &topics)
	return topics, ok, err
}

// CacheTopics records topics extracted from a syllabus with the given hash.
func (r *Repository) CacheTopics(ctx context.Context, hash string, topics []string) error {
	return r.setJSON(ctx, topicsPrefix+hash, topics)
}
