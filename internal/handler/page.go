package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examforge/internal/exam"
	appI18n "github.com/pavelanni/examforge/internal/i18n"
	"github.com/pavelanni/examforge/internal/model"
	"github.com/pavelanni/examforge/internal/render"
)

func (h *Handler) handleExamPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "examID")
	e, err := h.svc.Prepare(r.Context(), id)
	if err != nil {
		failExam(w, r, "ErrStorage", err)
		return
	}
	draft, err := h.svc.Draft(r.Context(), id)
	if err != nil {
		slog.Warn("load draft", "exam_id", id, "error", err)
	}

	doc := render.Document{
		Exam:      e,
		Questions: e.Questions.Parsed,
		Draft:     draft,
		StartedAt: time.Now(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := doc.Component().Render(r.Context(), w); err != nil {
		slog.Error("render error", "exam_id", id, "error", err)
	}
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "examID")
	var answers model.AnswerMap
	if err := decodeJSON(w, r, &answers); err != nil {
		fail(w, r, http.StatusBadRequest, "ErrInvalidRequest", err)
		return
	}
	if err := h.svc.SaveDraft(r.Context(), id, answers); err != nil {
		failExam(w, r, "ErrStorage", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ocrRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

type ocrResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleOCR always answers with an ocrResponse so the page script can read
// failures the same way as results.
func (h *Handler) handleOCR(w http.ResponseWriter, r *http.Request) {
	var req ocrRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.ImageBase64) == "" {
		slog.Warn("ErrInvalidRequest", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, ocrResponse{Error: appI18n.T(r.Context(), "ErrInvalidRequest")})
		return
	}
	// Accept a full data URL as well as bare base64.
	img := req.ImageBase64
	if i := strings.Index(img, ";base64,"); i >= 0 && strings.HasPrefix(img, "data:") {
		img = img[i+len(";base64,"):]
	}

	text, err := h.svc.ExtractText(r.Context(), img)
	if err != nil {
		slog.Error("ErrOCRFailed", "exam_id", chi.URLParam(r, "examID"), "error", err)
		writeJSON(w, http.StatusBadGateway, ocrResponse{Error: appI18n.T(r.Context(), "ErrOCRFailed")})
		return
	}
	writeJSON(w, http.StatusOK, ocrResponse{Success: true, Text: strings.TrimSpace(text)})
}

type submitResponse struct {
	ExamID    string `json:"examId"`
	Delivered bool   `json:"delivered"`
	Answered  int    `json:"answered"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "examID")
	var req exam.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "ErrInvalidRequest", err)
		return
	}
	sub, delivered, err := h.svc.Submit(r.Context(), id, req)
	if err != nil {
		failExam(w, r, "ErrStorage", err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		ExamID:    sub.ExamID,
		Delivered: delivered,
		Answered:  len(sub.Answers),
	})
}
