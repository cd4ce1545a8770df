package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examforge/internal/exam"
	appI18n "github.com/pavelanni/examforge/internal/i18n"
	"github.com/pavelanni/examforge/internal/model"
	"github.com/pavelanni/examforge/internal/store"
)

const maxSyllabusBytes = 5 << 20

type examsResponse struct {
	Upcoming []model.Exam `json:"upcoming"`
	Previous []model.Exam `json:"previous"`
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	upcoming, err := h.repo.UpcomingExams(r.Context())
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "ErrStorage", err)
		return
	}
	previous, err := h.repo.PreviousExams(r.Context())
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "ErrStorage", err)
		return
	}
	if upcoming == nil {
		upcoming = []model.Exam{}
	}
	if previous == nil {
		previous = []model.Exam{}
	}
	writeJSON(w, http.StatusOK, examsResponse{Upcoming: upcoming, Previous: previous})
}

type generateResponse struct {
	Exam    model.Exam `json:"exam"`
	Message string     `json:"message"`
}

func (h *Handler) handleGenerateExam(w http.ResponseWriter, r *http.Request) {
	var req exam.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "ErrInvalidRequest", err)
		return
	}

	e, count, err := h.svc.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, exam.ErrNoQuestions) {
			fail(w, r, http.StatusUnprocessableEntity, "ErrNoQuestions", err)
			return
		}
		fail(w, r, http.StatusBadGateway, "ErrGenerationFailed", err)
		return
	}

	writeJSON(w, http.StatusCreated, generateResponse{
		Exam:    e,
		Message: appI18n.Tp(r.Context(), "QuestionsGenerated", count),
	})
}

func (h *Handler) handleImportExam(w http.ResponseWriter, r *http.Request) {
	var in model.Exam
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, r, http.StatusBadRequest, "ErrInvalidRequest", err)
		return
	}
	e, err := h.svc.Import(r.Context(), in)
	if err != nil {
		failExam(w, r, "ErrStorage", err)
		return
	}
	slog.Info("exam imported", "exam_id", e.ID, "name", e.Name)
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "examID")
	if err := h.repo.DeleteExam(r.Context(), id); err != nil {
		failExam(w, r, "ErrStorage", err)
		return
	}
	slog.Info("exam deleted", "exam_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRetryEvaluation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "examID")
	result, err := h.svc.Retry(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, exam.ErrNothingToEvaluate) {
			failExam(w, r, "ErrEvaluationFailed", err)
			return
		}
		fail(w, r, http.StatusBadGateway, "ErrEvaluationFailed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.repo.Results(r.Context())
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "ErrStorage", err)
		return
	}
	if results == nil {
		results = []model.EvaluationResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleExportResults(w http.ResponseWriter, r *http.Request) {
	export, err := h.repo.ExportResults(r.Context())
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "ErrStorage", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="exam-results.json"`)
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "examID")
	if err := h.repo.DeleteResult(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, r, http.StatusNotFound, "ErrResultNotFound", err)
			return
		}
		fail(w, r, http.StatusInternalServerError, "ErrStorage", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type topicsResponse struct {
	Topics []string `json:"topics"`
}

// handleSyllabusTopics accepts a syllabus as an uploaded "file" or as a
// "text" form field and returns the topics found in it.
func (h *Handler) handleSyllabusTopics(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSyllabusBytes)
	text, err := syllabusText(r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "ErrInvalidRequest", err)
		return
	}

	topics, err := h.svc.ExtractTopics(r.Context(), text)
	if err != nil {
		if errors.Is(err, exam.ErrEmptySyllabus) {
			fail(w, r, http.StatusBadRequest, "ErrSyllabusEmpty", err)
			return
		}
		fail(w, r, http.StatusBadGateway, "ErrTopicsFailed", err)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	slog.Info("syllabus topics extracted", "count", len(topics))
	writeJSON(w, http.StatusOK, topicsResponse{Topics: topics})
}

func syllabusText(r *http.Request) (string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.FormValue("text"), nil
	}
	if err := r.ParseMultipartForm(maxSyllabusBytes); err != nil {
		return "", fmt.Errorf("parse upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return r.FormValue("text"), nil
	}
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	slog.Debug("syllabus uploaded", "filename", header.Filename, "bytes", len(data))
	return string(data), nil
}
