package exam

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"naccexam/internal/app/apiresp"
	"naccexam/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxSubmitBytes = 1 << 20

type Handler struct {
	svc examService
}

type examService interface {
	HasTest(testID string) bool
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
}

type submitRequest struct {
	Answers Answers `json:"answers"`
}

func NewHandler(svc examService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	testID := chi.URLParam(r, "testID")
	if !h.svc.HasTest(testID) {
		apiresp.WriteError(w, r, http.StatusBadRequest, "Invalid test id")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBytes)).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.svc.Submit(r.Context(), SubmitInput{
		TestID:  testID,
		UserID:  user.ID,
		Answers: req.Answers,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTestID):
			apiresp.WriteError(w, r, http.StatusBadRequest, "Invalid test id")
		case errors.Is(err, ErrNoAnswers):
			apiresp.WriteError(w, r, http.StatusBadRequest, "No answers submitted")
		default:
			log.Printf("request_id=%s submit exam test_id=%s user_id=%d: %v", middleware.GetReqID(r.Context()), testID, user.ID, err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "Failed to process exam submission")
		}
		return
	}

	apiresp.WriteJSON(w, r, http.StatusOK, res)
}
