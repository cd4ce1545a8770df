package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examforge/internal/exam"
	appI18n "github.com/pavelanni/examforge/internal/i18n"
	"github.com/pavelanni/examforge/internal/model"
	"github.com/pavelanni/examforge/internal/store"
)

// maxBodyBytes limits JSON request bodies. Image uploads for OCR are the
// largest legitimate payload.
const maxBodyBytes = 16 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc    *exam.Service
	repo   *store.Repository
	hub    *Hub
	config model.ServerConfig
}

// New creates a new Handler. The hub, when not nil, is registered as the
// service's notifier.
func New(svc *exam.Service, repo *store.Repository, hub *Hub, cfg model.ServerConfig) *Handler {
	if hub != nil {
		svc.SetNotifier(hub)
	}
	return &Handler{svc: svc, repo: repo, hub: hub, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/exams", h.handleListExams)
		r.Post("/exams", h.handleImportExam)
		r.Post("/exams/generate", h.handleGenerateExam)
		r.Delete("/exams/{examID}", h.handleDeleteExam)
		r.Post("/exams/{examID}/evaluate", h.handleRetryEvaluation)

		r.Post("/syllabus/topics", h.handleSyllabusTopics)

		r.Get("/results", h.handleListResults)
		r.Get("/results/export", h.handleExportResults)
		r.Delete("/results/{examID}", h.handleDeleteResult)
	})

	r.Get("/exam/{examID}", h.handleExamPage)
	r.Put("/exam/{examID}/draft", h.handleSaveDraft)
	r.Post("/exam/{examID}/ocr", h.handleOCR)
	r.Post("/exam/{examID}/submit", h.handleSubmit)

	if h.hub != nil {
		r.Get("/ws/events", h.hub.ServeWS)
	}
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// fail logs err and answers with the localized message msgID.
func fail(w http.ResponseWriter, r *http.Request, status int, msgID string, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error(msgID, "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Warn(msgID, "method", r.Method, "path", r.URL.Path, "error", err)
	}
	http.Error(w, appI18n.T(r.Context(), msgID), status)
}

// failExam maps the exam lookup and content errors every exam endpoint
// can hit, falling back to fallbackID with a 500.
func failExam(w http.ResponseWriter, r *http.Request, fallbackID string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(w, r, http.StatusNotFound, "ErrExamNotFound", err)
	case errors.Is(err, exam.ErrNoQuestions):
		fail(w, r, http.StatusUnprocessableEntity, "ErrNoQuestions", err)
	case errors.Is(err, exam.ErrNothingToEvaluate):
		fail(w, r, http.StatusConflict, "ErrNothingToEvaluate", err)
	default:
		fail(w, r, http.StatusInternalServerError, fallbackID, err)
	}
}
