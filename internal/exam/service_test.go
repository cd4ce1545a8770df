package exam

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/examforge/internal/channel"
	"github.com/pavelanni/examforge/internal/llm/prompts"
	"github.com/pavelanni/examforge/internal/model"
	"github.com/pavelanni/examforge/internal/store"
)

const generated = `1. MCQ: What is 2+2? (2 points)
A) 3
B) 4
C) 5
D) 6
Answer: B

2. True/False: The earth is flat. (1 points)
Answer: False

3. Essay: Describe the water cycle. (5 points)`

type fakeLLM struct {
	mu        sync.Mutex
	generate  string
	evaluate  string
	evalErr   error
	topics    string
	evalCalls int
	topicCall int
}

func (f *fakeLLM) Generate(context.Context, string) (string, error) { return f.generate, nil }

func (f *fakeLLM) Evaluate(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalCalls++
	return f.evaluate, f.evalErr
}

func (f *fakeLLM) ExtractTopics(context.Context, string) (string, error) {
	f.topicCall++
	return f.topics, nil
}

func (f *fakeLLM) ExtractText(_ context.Context, _, img string) (string, error) {
	return "text from " + img, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestService(t *testing.T, llm *fakeLLM, ch channel.Channel) (*Service, *store.Repository, *recorder) {
	t.Helper()
	ps, err := prompts.Default()
	if err != nil {
		t.Fatal(err)
	}
	repo := store.NewRepository(store.NewMemory())
	svc := NewService(repo, llm, ps, ch, model.ServerConfig{DefaultDuration: 45})
	svc.SetRand(rand.New(rand.NewPCG(1, 2)))
	rec := &recorder{}
	svc.SetNotifier(rec)
	return svc, repo, rec
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, &fakeLLM{generate: generated}, nil)

	exam, count, err := svc.Generate(ctx, GenerateRequest{Topics: []string{"Math"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if exam.ID == "" || exam.Duration != 45 || exam.Name == "" {
		t.Errorf("exam = %+v", exam)
	}
	if exam.QuestionWeights[0] != 2 || exam.QuestionWeights[2] != 5 {
		t.Errorf("weights = %v", exam.QuestionWeights)
	}
	upcoming, _ := repo.UpcomingExams(ctx)
	if len(upcoming) != 1 || upcoming[0].Questions.Raw != generated {
		t.Errorf("upcoming = %+v", upcoming)
	}

	svc2, _, _ := newTestService(t, &fakeLLM{generate: "Sorry, I can't help with that."}, nil)
	if _, _, err := svc2.Generate(ctx, GenerateRequest{}); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}
}

func TestPrepareIsStable(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &fakeLLM{generate: generated}, nil)
	exam, _, _ := svc.Generate(ctx, GenerateRequest{
		Distribution: model.Distribution{{Type: model.QuestionMCQ, Count: 1}, {Type: model.QuestionEssay, Count: 1}},
	})

	first, err := svc.Prepare(ctx, exam.ID)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	qs := first.Questions.Parsed
	if len(qs) != 2 || qs[0].Type != model.QuestionMCQ || qs[1].Type != model.QuestionEssay {
		t.Fatalf("prepared = %+v", qs)
	}
	if qs[0].ID != 1 || qs[1].ID != 2 {
		t.Errorf("ids not renumbered: %d %d", qs[0].ID, qs[1].ID)
	}
	if qs[0].Weight != 2 || qs[1].Weight != 5 || first.QuestionWeights[1] != 5 {
		t.Errorf("weights did not follow questions: %+v %v", qs, first.QuestionWeights)
	}

	second, err := svc.Prepare(ctx, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Questions.Parsed) != 2 || second.Questions.Parsed[1].Text != qs[1].Text {
		t.Error("second Prepare changed the questions")
	}

	if _, err := svc.Prepare(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

const evalResponse = "```json\n" + `{"totalScore": 2, "questionDetails": [
  {"isCorrect": true, "marksObtained": 2},
  {"isCorrect": false, "marksObtained": 0},
  {"isCorrect": false, "marksObtained": 0}
]}` + "\n```"

func TestSubmitAndProcess(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory(4)
	llm := &fakeLLM{generate: generated, evaluate: evalResponse}
	svc, repo, rec := newTestService(t, llm, ch)

	exam, _, _ := svc.Generate(ctx, GenerateRequest{Topics: []string{"Math"}})
	if err := svc.SaveDraft(ctx, exam.ID, model.AnswerMap{"q0": model.Plain("B")}); err != nil {
		t.Fatal(err)
	}

	sub, delivered, err := svc.Submit(ctx, exam.ID, SubmitRequest{
		Answers:        model.AnswerMap{"question-0": model.Plain("B"), "tf1": model.Wrap("True", model.QuestionTrueFalse)},
		ElapsedSeconds: 125,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !delivered {
		t.Error("expected delivery over the memory channel")
	}
	if sub.Answer(0) != "B" || sub.Answer(1) != "True" || sub.Answer(2) != model.Unanswered {
		t.Errorf("answers = %v", sub.Answers)
	}
	if sub.Questions[0].Answer != "B" || sub.TimeTaken != "2 minutes and 5 seconds" {
		t.Errorf("submission = %+v", sub)
	}
	if _, ok, _ := repo.PendingHandoff(ctx); !ok {
		t.Fatal("handoff not written")
	}

	result, err := svc.Process(ctx, sub)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Score != 2 || result.TotalMarks != 8 || result.Percentage != 25 {
		t.Errorf("result = %v/%v %v%%", result.Score, result.TotalMarks, result.Percentage)
	}
	if result.TopicPerformance["Math"] != 25 {
		t.Errorf("topics = %v", result.TopicPerformance)
	}

	if _, err := repo.UpcomingExam(ctx, exam.ID); !errors.Is(err, store.ErrNotFound) {
		t.Error("exam still upcoming")
	}
	if prev, _ := repo.PreviousExams(ctx); len(prev) != 1 {
		t.Error("exam not moved to previous")
	}
	if results, _ := repo.Results(ctx); len(results) != 1 || results[0].ExamID != exam.ID {
		t.Errorf("results = %+v", results)
	}
	if _, ok, _ := repo.PendingHandoff(ctx); ok {
		t.Error("handoff not cleared")
	}
	if d, _ := repo.Draft(ctx, exam.ID); len(d) != 0 {
		t.Error("draft not removed")
	}
	if len(rec.events) != 1 || rec.events[0].Type != EventExamEvaluated {
		t.Errorf("events = %+v", rec.events)
	}

	// A second delivery of the same submission is a no-op.
	if _, err := svc.Process(ctx, sub); err != nil {
		t.Errorf("reprocess: %v", err)
	}
	if results, _ := repo.Results(ctx); len(results) != 1 {
		t.Error("duplicate result stored")
	}
	if llm.evalCalls != 1 {
		t.Errorf("evaluator called %d times", llm.evalCalls)
	}
}

func TestEvaluationFailureAndRetry(t *testing.T) {
	ctx := context.Background()
	llm := &fakeLLM{generate: generated, evalErr: errors.New("timeout")}
	svc, repo, rec := newTestService(t, llm, nil)

	exam, _, _ := svc.Generate(ctx, GenerateRequest{})
	if _, err := svc.Retry(ctx, exam.ID); !errors.Is(err, ErrNothingToEvaluate) {
		t.Errorf("expected ErrNothingToEvaluate, got %v", err)
	}

	sub, delivered, err := svc.Submit(ctx, exam.ID, SubmitRequest{Answers: model.AnswerMap{"0": model.Plain("A")}})
	if err != nil || delivered {
		t.Fatalf("Submit = %v, %v", delivered, err)
	}

	// Without a channel the handoff is picked up by the periodic check.
	svc.CheckHandoff(ctx)
	if len(rec.events) != 1 || rec.events[0].Type != EventEvaluationFailed {
		t.Fatalf("events = %+v", rec.events)
	}
	stored, err := repo.UpcomingExam(ctx, exam.ID)
	if err != nil || stored.LastSubmission == nil || stored.LastSubmission.Answer(0) != "A" {
		t.Fatalf("submission not kept for retry: %+v, %v", stored.LastSubmission, err)
	}
	if _, ok, _ := repo.PendingHandoff(ctx); ok {
		t.Error("failed handoff must not be retried automatically")
	}

	llm.evalErr = nil
	llm.evaluate = "no json here"
	result, err := svc.Retry(ctx, exam.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !result.Fallback || result.Percentage != 0 || result.ExamID != sub.ExamID {
		t.Errorf("result = %+v", result)
	}
	if prev, _ := repo.PreviousExams(ctx); len(prev) != 1 || prev[0].LastSubmission != nil {
		t.Errorf("previous = %+v", prev)
	}
}

func TestRunProcessesChannelMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := channel.NewMemory(4)
	svc, repo, _ := newTestService(t, &fakeLLM{generate: generated, evaluate: evalResponse}, ch)
	svc.cfg.HandoffInterval = time.Hour

	exam, _, _ := svc.Generate(ctx, GenerateRequest{})
	if _, _, err := svc.Submit(ctx, exam.ID, SubmitRequest{}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if results, _ := repo.Results(ctx); len(results) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("submission not processed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestExtractTopicsCaches(t *testing.T) {
	ctx := context.Background()
	llm := &fakeLLM{topics: "**Topics:**\n1. Algebra\n- Geometry, *Calculus*"}
	svc, _, _ := newTestService(t, llm, nil)

	for range 2 {
		topics, err := svc.ExtractTopics(ctx, "Course outline ...")
		if err != nil {
			t.Fatal(err)
		}
		if len(topics) != 3 || topics[0] != "Algebra" || topics[2] != "Calculus" {
			t.Errorf("topics = %q", topics)
		}
	}
	if llm.topicCall != 1 {
		t.Errorf("model called %d times, want 1", llm.topicCall)
	}
	if _, err := svc.ExtractTopics(ctx, "  "); !errors.Is(err, ErrEmptySyllabus) {
		t.Errorf("expected ErrEmptySyllabus, got %v", err)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &fakeLLM{}, nil)

	exam, err := svc.Import(ctx, model.Exam{
		Name: "Imported",
		Questions: model.ExamQuestions{Parsed: []model.Question{
			{Text: "Is Go compiled?", Type: "true/false", CorrectAnswer: "true"},
			{Text: "Name a Go keyword.", Type: "short answer"},
		}},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	qs := exam.Questions.Parsed
	if qs[0].Type != model.QuestionTrueFalse || qs[0].CorrectAnswer != "True" || qs[1].Type != model.QuestionShortAnswer {
		t.Errorf("not normalized: %+v", qs)
	}
	if qs[0].ID != 1 || qs[1].ID != 2 || exam.ID == "" || exam.Duration != 45 {
		t.Errorf("exam = %+v", exam)
	}

	if _, err := svc.Import(ctx, model.Exam{Questions: model.ExamQuestions{Raw: "nothing here"}}); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}
}

func TestCleanTopics(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"lines", "Algebra\nGeometry", []string{"Algebra", "Geometry"}},
		{"markdown", "**Sets**, _Logic_, `Proofs`", []string{"Sets", "Logic", "Proofs"}},
		{"bullets and numbers", "1. Limits\n2) Derivatives\n- Integrals\n• Series", []string{"Limits", "Derivatives", "Integrals", "Series"}},
		{"headings dropped", "Main Topics:\nChapter 1\nOptics", []string{"Optics"}},
		{"dedupe", "Waves\nwaves\nWAVES", []string{"Waves"}},
		{"fragments", "a\nX\n\n,", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanTopics(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("CleanTopics = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
