package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"exam-service/internal/app"
	"exam-service/internal/domain"
)

// identityCookie carries the opaque session token minted at registration.
const identityCookie = "exam_token"

// Handler wires the exam and admin use cases into JSON routes.
type Handler struct {
	exam       *app.ExamService
	admin      *app.AdminService
	adminToken string
	cookieTTL  time.Duration
}

func NewHandler(exam *app.ExamService, admin *app.AdminService, adminToken string, cookieTTL time.Duration) *Handler {
	return &Handler{exam: exam, admin: admin, adminToken: adminToken, cookieTTL: cookieTTL}
}

// Register installs all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/exam-status", h.examStatus)
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("GET /api/questions", h.questions)
	mux.HandleFunc("POST /api/submit-answer", h.submitAnswer)
	mux.HandleFunc("POST /api/malpractice", h.malpractice)
	mux.HandleFunc("POST /api/complete-exam", h.completeExam)
	mux.HandleFunc("GET /api/scoreboard", h.scoreboard)

	mux.HandleFunc("POST /api/admin/set-duration", h.adminOnly(h.setDuration))
	mux.HandleFunc("POST /api/admin/start-exam", h.adminOnly(h.startExam))
	mux.HandleFunc("POST /api/admin/end-exam", h.adminOnly(h.endExam))
	mux.HandleFunc("POST /api/admin/reset-all", h.adminOnly(h.resetAll))
	mux.HandleFunc("POST /api/admin/reset-questions", h.adminOnly(h.resetQuestions))
	mux.HandleFunc("POST /api/admin/questions", h.adminOnly(h.addQuestion))
	mux.HandleFunc("GET /api/admin/questions", h.adminOnly(h.adminQuestions))
	mux.HandleFunc("DELETE /api/admin/questions/{id}", h.adminOnly(h.deleteQuestion))
	mux.HandleFunc("GET /api/admin/stats", h.adminOnly(h.stats))
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type registerRequest struct {
	Name string `json:"name"`
}

type registerResponse struct {
	Success       bool  `json:"success"`
	ParticipantID int64 `json:"participantId"`
}

type submitAnswerRequest struct {
	QuestionID int64  `json:"questionId"`
	Answer     string `json:"answer"`
}

type submitAnswerResponse struct {
	Success   bool `json:"success"`
	IsCorrect bool `json:"isCorrect"`
}

type completeExamRequest struct {
	AutoSubmitted bool `json:"autoSubmitted"`
}

type completeExamResponse struct {
	Success          bool `json:"success"`
	Score            int  `json:"score"`
	Total            int  `json:"total"`
	AlreadySubmitted bool `json:"alreadySubmitted,omitempty"`
}

type setDurationRequest struct {
	Duration int `json:"duration"`
}

func (h *Handler) examStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.exam.Status(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	participant, token, err := h.exam.Register(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     identityCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, registerResponse{Success: true, ParticipantID: participant.ID})
}

func (h *Handler) questions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.resolveIdentity(w, r); !ok {
		return
	}
	questions, err := h.exam.Questions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.resolveIdentity(w, r)
	if !ok {
		return
	}
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	correct, err := h.exam.SubmitAnswer(r.Context(), identity.ParticipantID, req.QuestionID, req.Answer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitAnswerResponse{Success: true, IsCorrect: correct})
}

func (h *Handler) malpractice(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.resolveIdentity(w, r)
	if !ok {
		return
	}
	if err := h.exam.ReportMalpractice(r.Context(), identity.ParticipantID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) completeExam(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.resolveIdentity(w, r)
	if !ok {
		return
	}
	var req completeExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.exam.Complete(r.Context(), identity.ParticipantID, req.AutoSubmitted)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completeExamResponse{
		Success:          true,
		Score:            result.Score,
		Total:            result.Total,
		AlreadySubmitted: result.AlreadySubmitted,
	})
}

func (h *Handler) scoreboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.admin.Scoreboard(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) setDuration(w http.ResponseWriter, r *http.Request) {
	var req setDurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.admin.SetDuration(r.Context(), req.Duration); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Duration updated"})
}

func (h *Handler) startExam(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.StartExam(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Exam started successfully"})
}

func (h *Handler) endExam(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.EndExam(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Exam ended successfully"})
}

func (h *Handler) resetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ResetAll(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) resetQuestions(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ResetQuestions(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) addQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if _, err := h.admin.AddQuestion(r.Context(), q); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Question added successfully"})
}

func (h *Handler) adminQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.admin.Questions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid question id"})
		return
	}
	if err := h.admin.DeleteQuestion(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Question deleted successfully"})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// adminOnly enforces the shared admin token when one is configured;
// with no token the surface stays open, as in the original design.
func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken != "" && r.Header.Get("X-Admin-Token") != h.adminToken {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "admin token required"})
			return
		}
		next(w, r)
	}
}

func (h *Handler) resolveIdentity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	token := ""
	if cookie, err := r.Cookie(identityCookie); err == nil {
		token = cookie.Value
	}
	identity, err := h.exam.Resolve(r.Context(), token)
	if err != nil {
		h.writeError(w, err)
		return domain.Identity{}, false
	}
	return identity, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoActiveSession), errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotRegistered):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrParticipantNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrExamClosed):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
