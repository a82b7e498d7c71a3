package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"naccexam/internal/app/apiresp"
	"naccexam/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var errForbidden = errors.New("forbidden")

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc reportService
}

type reportService interface {
	ListAttempts(ctx context.Context, userID int64) ([]Attempt, error)
	Summary(ctx context.Context, userID int64) (*Summary, error)
	Chart(ctx context.Context, userID int64) ([]ChartPoint, error)
	AttemptOwner(ctx context.Context, attemptID int64) (int64, error)
	AttemptDetails(ctx context.Context, attemptID int64) ([]AnswerDetail, error)
	AttemptInfo(ctx context.Context, attemptID int64) (*AttemptInfo, error)
	ExportAttemptsExcel(ctx context.Context, userID int64) ([]byte, error)
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Attempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeUser(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListAttempts(r.Context(), userID)
	if err != nil {
		internalError(w, r, "list attempts", err)
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, items)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeUser(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		internalError(w, r, "summary", err)
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, summary)
}

func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeUser(w, r)
	if !ok {
		return
	}
	points, err := h.svc.Chart(r.Context(), userID)
	if err != nil {
		internalError(w, r, "chart", err)
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, points)
}

func (h *Handler) ExportAttempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeUser(w, r)
	if !ok {
		return
	}
	data, err := h.svc.ExportAttemptsExcel(r.Context(), userID)
	if err != nil {
		internalError(w, r, "export attempts", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attempts_user_%d.xlsx"`, userID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) AttemptDetails(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := h.authorizeAttempt(w, r)
	if !ok {
		return
	}
	items, err := h.svc.AttemptDetails(r.Context(), attemptID)
	if err != nil {
		internalError(w, r, "attempt details", err)
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, items)
}

func (h *Handler) AttemptInfo(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := h.authorizeAttempt(w, r)
	if !ok {
		return
	}
	info, err := h.svc.AttemptInfo(r.Context(), attemptID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, "Attempt not found")
			return
		}
		internalError(w, r, "attempt info", err)
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, info)
}

// authorizeUser lets users read their own history; admins may read anyone's.
func (h *Handler) authorizeUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	if user.ID != userID && user.Role != auth.RoleAdmin {
		apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
		return 0, false
	}
	return userID, true
}

func (h *Handler) authorizeAttempt(w http.ResponseWriter, r *http.Request) (int64, bool) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	attemptID, err := strconv.ParseInt(chi.URLParam(r, "attemptID"), 10, 64)
	if err != nil || attemptID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "Invalid attempt id")
		return 0, false
	}
	if err := h.checkAttemptOwner(r.Context(), user, attemptID); err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, "Attempt not found")
		case errors.Is(err, errForbidden):
			apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
		default:
			internalError(w, r, "attempt owner", err)
		}
		return 0, false
	}
	return attemptID, true
}

func (h *Handler) checkAttemptOwner(ctx context.Context, user *auth.User, attemptID int64) error {
	owner, err := h.svc.AttemptOwner(ctx, attemptID)
	if err != nil {
		return err
	}
	if owner != user.ID && user.Role != auth.RoleAdmin {
		return errForbidden
	}
	return nil
}

func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.Printf("request_id=%s %s: %v", middleware.GetReqID(r.Context()), op, err)
	apiresp.WriteError(w, r, http.StatusInternalServerError, "Failed to retrieve attempt history")
}
