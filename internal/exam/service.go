// Package exam is the host side of the application: it generates exams,
// prepares them for taking, accepts submissions and turns completed
// submissions into stored results.
package exam

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examforge/internal/answerkey"
	"github.com/pavelanni/examforge/internal/channel"
	"github.com/pavelanni/examforge/internal/distribution"
	"github.com/pavelanni/examforge/internal/evaluation"
	"github.com/pavelanni/examforge/internal/llm/prompts"
	"github.com/pavelanni/examforge/internal/model"
	"github.com/pavelanni/examforge/internal/parser"
	"github.com/pavelanni/examforge/internal/reconcile"
	"github.com/pavelanni/examforge/internal/store"
)

var (
	// ErrNoQuestions means exam content contained nothing recognizable as a question.
	ErrNoQuestions = errors.New("no questions found")
	// ErrNothingToEvaluate means an exam has no stored submission to retry.
	ErrNothingToEvaluate = errors.New("no submission to evaluate")
	// ErrEmptySyllabus means topic extraction was asked for with no text.
	ErrEmptySyllabus = errors.New("empty syllabus")
)

// LLM is the set of language model operations the service relies on.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Evaluate(ctx context.Context, prompt string) (string, error)
	ExtractTopics(ctx context.Context, prompt string) (string, error)
	ExtractText(ctx context.Context, instruction, imageBase64 string) (string, error)
}

// Event types sent to a Notifier.
const (
	EventExamEvaluated    = "examEvaluated"
	EventEvaluationFailed = "evaluationFailed"
)

// Event reports the outcome of processing a submission.
type Event struct {
	Type   string                  `json:"type"`
	ExamID string                  `json:"examId"`
	Result *model.EvaluationResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Notifier receives evaluation events.
type Notifier interface {
	Notify(Event)
}

// Service implements exam operations on top of a Repository.
type Service struct {
	repo      *store.Repository
	llm       LLM
	prompts   *prompts.Set
	ch        channel.Channel
	submitter *reconcile.Submitter
	cfg       model.ServerConfig
	notifier  Notifier
	rng       *rand.Rand
	now       func() time.Time

	// processing serializes evaluation of completed submissions.
	processing sync.Mutex
	// preparing serializes first-time exam preparation.
	preparing sync.Mutex
}

func NewService(repo *store.Repository, llm LLM, ps *prompts.Set, ch channel.Channel, cfg model.ServerConfig) *Service {
	if !prompts.IsValidVariant(cfg.PromptVariant) {
		cfg.PromptVariant = string(prompts.PromptStandard)
	}
	if cfg.HandoffInterval <= 0 {
		cfg.HandoffInterval = 5 * time.Second
	}
	return &Service{
		repo:      repo,
		llm:       llm,
		prompts:   ps,
		ch:        ch,
		submitter: reconcile.NewSubmitter(repo, ch),
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetNotifier registers the receiver of evaluation events.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetRand sets the random source used for question selection.
func (s *Service) SetRand(r *rand.Rand) {
	s.rng = r
}

func (s *Service) notify(e Event) {
	if s.notifier != nil {
		s.notifier.Notify(e)
	}
}

// GenerateRequest describes an exam to generate.
type GenerateRequest struct {
	Name              string               `json:"name"`
	Date              string               `json:"date"`
	Time              string               `json:"time"`
	Duration          model.ExamDuration   `json:"duration"`
	Topics            []string             `json:"topics"`
	Difficulty        string               `json:"difficulty"`
	QuestionTypes     []model.QuestionType `json:"questionTypes"`
	NumberOfQuestions int                  `json:"numberOfQuestions"`
	Distribution      model.Distribution   `json:"questionDistribution"`
}

// Generate asks the model for a new exam and stores it as upcoming. It also
// returns the number of questions parsed from the generated text.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (model.Exam, int, error) {
	prompt, err := s.prompts.BuildGeneratePrompt(prompts.GenerateData{
		Topics:            req.Topics,
		Difficulty:        req.Difficulty,
		QuestionTypes:     req.QuestionTypes,
		NumberOfQuestions: req.NumberOfQuestions,
		Distribution:      req.Distribution,
	})
	if err != nil {
		return model.Exam{}, 0, err
	}
	raw, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return model.Exam{}, 0, err
	}

	questions := parser.Parse(raw)
	if len(questions) == 0 {
		slog.Warn("generated exam has no parseable questions", "length", len(raw))
		return model.Exam{}, 0, ErrNoQuestions
	}

	annotated := answerkey.ParseWeights(raw)
	weights := make(map[int]float64)
	for i, q := range questions {
		if w, ok := annotated[q.ID]; ok {
			weights[i] = w
		}
	}

	exam := model.Exam{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Date:              req.Date,
		Time:              req.Time,
		Duration:          req.Duration,
		Topics:            req.Topics,
		Difficulty:        req.Difficulty,
		QuestionTypes:     req.QuestionTypes,
		NumberOfQuestions: req.NumberOfQuestions,
		Questions:         model.ExamQuestions{Raw: raw},
		QuestionWeights:   weights,
		Distribution:      req.Distribution,
		CreatedAt:         s.now(),
	}
	if exam.Duration <= 0 {
		exam.Duration = s.cfg.DefaultDuration
	}
	if exam.Name == "" {
		exam.Name = "Exam " + exam.CreatedAt.Format(time.DateOnly)
	}
	if err := s.repo.AddUpcoming(ctx, exam); err != nil {
		return model.Exam{}, 0, fmt.Errorf("store exam: %w", err)
	}
	slog.Info("exam generated", "exam_id", exam.ID, "questions", len(questions))
	return exam, len(questions), nil
}

// Import stores an externally built exam. Structured questions are
// normalized; raw text is kept for parsing on first use.
func (s *Service) Import(ctx context.Context, exam model.Exam) (model.Exam, error) {
	if exam.Questions.IsParsed() {
		exam.Questions.Parsed = parser.Normalize(exam.Questions.Parsed)
		if len(exam.Questions.Parsed) == 0 {
			return model.Exam{}, ErrNoQuestions
		}
	} else if len(parser.Parse(exam.Questions.Raw)) == 0 {
		return model.Exam{}, ErrNoQuestions
	}
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = s.now()
	}
	if exam.Duration <= 0 {
		exam.Duration = s.cfg.DefaultDuration
	}
	if err := s.repo.AddUpcoming(ctx, exam); err != nil {
		return model.Exam{}, fmt.Errorf("store exam: %w", err)
	}
	return exam, nil
}

// Prepare returns an upcoming exam with its final question sequence. The
// first call parses raw text, applies weights and the requested
// distribution, and stores the result so later calls see the same questions.
func (s *Service) Prepare(ctx context.Context, id string) (model.Exam, error) {
	s.preparing.Lock()
	defer s.preparing.Unlock()

	exam, err := s.repo.UpcomingExam(ctx, id)
	if err != nil {
		return model.Exam{}, err
	}
	if exam.Questions.IsParsed() && len(exam.Distribution) == 0 && weighted(exam.Questions.Parsed) {
		return exam, nil
	}

	var questions []model.Question
	raw := exam.Questions.Raw
	if exam.Questions.IsParsed() {
		questions = exam.Questions.Parsed
	} else {
		questions = parser.Parse(raw)
	}

	questions = answerkey.Build(questions, raw, exam.QuestionWeights).Apply(questions)
	if len(exam.Distribution) > 0 {
		questions = distribution.Select(questions, exam.Distribution, s.rng)
	}
	if len(questions) == 0 {
		return model.Exam{}, fmt.Errorf("prepare exam %s: %w", id, ErrNoQuestions)
	}

	exam.Questions = model.ExamQuestions{Parsed: questions}
	exam.Distribution = nil
	exam.QuestionWeights = make(map[int]float64, len(questions))
	for i, q := range questions {
		exam.QuestionWeights[i] = q.Points()
	}
	if err := s.repo.UpdateUpcoming(ctx, exam); err != nil {
		return model.Exam{}, fmt.Errorf("store prepared exam %s: %w", id, err)
	}
	slog.Info("exam prepared", "exam_id", id, "questions", len(questions))
	return exam, nil
}

// weighted reports whether every question carries a weight, which holds
// for any prepared sequence.
func weighted(questions []model.Question) bool {
	if len(questions) == 0 {
		return false
	}
	for _, q := range questions {
		if q.Weight <= 0 {
			return false
		}
	}
	return true
}

// SaveDraft stores in-progress answers of an upcoming exam.
func (s *Service) SaveDraft(ctx context.Context, id string, answers model.AnswerMap) error {
	if _, err := s.repo.UpcomingExam(ctx, id); err != nil {
		return err
	}
	return s.repo.SaveDraft(ctx, id, answers)
}

// Draft returns the in-progress answers of an exam.
func (s *Service) Draft(ctx context.Context, id string) (model.AnswerMap, error) {
	return s.repo.Draft(ctx, id)
}

// SubmitRequest is what the exam page posts when the student finishes.
type SubmitRequest struct {
	Answers        model.AnswerMap `json:"answers"`
	ElapsedSeconds int             `json:"elapsedSeconds"`
	AutoSubmitted  bool            `json:"autoSubmitted"`
}

// Submit reconciles the posted answers against the prepared questions and
// hands the submission off for evaluation. delivered is false when only the
// durable record was written.
func (s *Service) Submit(ctx context.Context, id string, req SubmitRequest) (model.ExamSubmission, bool, error) {
	exam, err := s.Prepare(ctx, id)
	if err != nil {
		return model.ExamSubmission{}, false, err
	}
	sub := reconcile.Reconcile(reconcile.Input{
		Exam:          exam,
		Questions:     exam.Questions.Parsed,
		Answers:       req.Answers,
		Elapsed:       time.Duration(max(req.ElapsedSeconds, 0)) * time.Second,
		AutoSubmitted: req.AutoSubmitted,
		SubmittedAt:   s.now(),
	})
	delivered, err := s.submitter.Submit(ctx, sub)
	if err != nil {
		return model.ExamSubmission{}, false, err
	}
	slog.Info("exam submitted", "exam_id", id, "answered", len(sub.Answers), "auto", req.AutoSubmitted, "delivered", delivered)
	return sub, delivered, nil
}

// Run processes completed submissions until ctx is done. Messages from the
// channel are handled as they arrive; the durable handoff is checked on
// start and then every HandoffInterval in case a message was lost.
func (s *Service) Run(ctx context.Context) error {
	var msgs <-chan channel.Message
	if s.ch != nil {
		var err error
		if msgs, err = s.ch.Receive(ctx); err != nil {
			return fmt.Errorf("receive completions: %w", err)
		}
	}

	s.CheckHandoff(ctx)
	ticker := time.NewTicker(s.cfg.HandoffInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			if msg.Kind != channel.KindExamCompleted || msg.Submission == nil {
				continue
			}
			if _, err := s.Process(ctx, *msg.Submission); err != nil {
				slog.Error("process submission", "exam_id", msg.ExamID, "error", err)
			}
		case <-ticker.C:
			s.CheckHandoff(ctx)
		}
	}
}

// CheckHandoff processes a submission left in the durable handoff, if any.
func (s *Service) CheckHandoff(ctx context.Context) {
	sub, ok, err := s.repo.PendingHandoff(ctx)
	if err != nil {
		slog.Warn("read handoff", "error", err)
		return
	}
	if !ok {
		return
	}
	if _, err := s.Process(ctx, sub); err != nil {
		slog.Error("process handoff", "exam_id", sub.ExamID, "error", err)
	}
}

// Process evaluates a completed submission. A submission whose exam is no
// longer upcoming was already processed and is only cleared. On evaluator
// failure the submission is kept on the exam for a manual retry.
func (s *Service) Process(ctx context.Context, sub model.ExamSubmission) (model.EvaluationResult, error) {
	s.processing.Lock()
	defer s.processing.Unlock()

	exam, err := s.repo.UpcomingExam(ctx, sub.ExamID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Debug("submission already processed", "exam_id", sub.ExamID)
		return model.EvaluationResult{}, s.repo.ClearHandoff(ctx, sub.ExamID)
	}
	if err != nil {
		return model.EvaluationResult{}, err
	}
	return s.evaluate(ctx, exam, sub)
}

// Retry evaluates the last stored submission of an exam again.
func (s *Service) Retry(ctx context.Context, id string) (model.EvaluationResult, error) {
	s.processing.Lock()
	defer s.processing.Unlock()

	exam, err := s.repo.UpcomingExam(ctx, id)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	if exam.LastSubmission == nil {
		return model.EvaluationResult{}, ErrNothingToEvaluate
	}
	return s.evaluate(ctx, exam, *exam.LastSubmission)
}

func (s *Service) evaluate(ctx context.Context, exam model.Exam, sub model.ExamSubmission) (model.EvaluationResult, error) {
	prompt, err := s.prompts.BuildEvalPrompt(prompts.PromptVariant(s.cfg.PromptVariant), sub)
	if err != nil {
		return model.EvaluationResult{}, err
	}

	raw, err := s.llm.Evaluate(ctx, prompt)
	if err != nil {
		exam.LastSubmission = &sub
		if uerr := s.repo.UpdateUpcoming(ctx, exam); uerr != nil {
			slog.Error("keep submission for retry", "exam_id", exam.ID, "error", uerr)
			return model.EvaluationResult{}, err
		}
		if cerr := s.repo.ClearHandoff(ctx, exam.ID); cerr != nil {
			slog.Warn("clear handoff", "exam_id", exam.ID, "error", cerr)
		}
		s.notify(Event{Type: EventEvaluationFailed, ExamID: exam.ID, Error: err.Error()})
		return model.EvaluationResult{}, err
	}

	result := evaluation.Map(raw, sub)
	result.CreatedAt = s.now()
	if err := s.repo.AppendResult(ctx, result); err != nil {
		return model.EvaluationResult{}, fmt.Errorf("store result: %w", err)
	}
	if err := s.repo.MoveToPrevious(ctx, exam.ID); err != nil {
		return model.EvaluationResult{}, fmt.Errorf("archive exam: %w", err)
	}
	if err := s.repo.ClearHandoff(ctx, exam.ID); err != nil {
		slog.Warn("clear handoff", "exam_id", exam.ID, "error", err)
	}
	if err := s.repo.RemoveDraft(ctx, exam.ID); err != nil {
		slog.Warn("remove draft", "exam_id", exam.ID, "error", err)
	}

	slog.Info("exam evaluated", "exam_id", exam.ID, "percentage", result.Percentage, "fallback", result.Fallback)
	s.notify(Event{Type: EventExamEvaluated, ExamID: exam.ID, Result: &result})
	return result, nil
}

// ExtractTopics returns the topics of a syllabus, reusing earlier results
// for identical text.
func (s *Service) ExtractTopics(ctx context.Context, syllabus string) ([]string, error) {
	syllabus = strings.TrimSpace(syllabus)
	if syllabus == "" {
		return nil, ErrEmptySyllabus
	}
	sum := sha256.Sum256([]byte(syllabus))
	hash := hex.EncodeToString(sum[:])

	if topics, ok, err := s.repo.CachedTopics(ctx, hash); err == nil && ok {
		slog.Debug("syllabus topics cache hit", "hash", hash[:12])
		return topics, nil
	}

	prompt, err := s.prompts.BuildTopicsPrompt(syllabus)
	if err != nil {
		return nil, err
	}
	raw, err := s.llm.ExtractTopics(ctx, prompt)
	if err != nil {
		return nil, err
	}
	topics := CleanTopics(raw)
	if len(topics) > 0 {
		if err := s.repo.CacheTopics(ctx, hash, topics); err != nil {
			slog.Warn("cache syllabus topics", "error", err)
		}
	}
	return topics, nil
}

// ExtractText transcribes an answer image.
func (s *Service) ExtractText(ctx context.Context, imageBase64 string) (string, error) {
	return s.llm.ExtractText(ctx, s.prompts.OCRPrompt(), imageBase64)
}
