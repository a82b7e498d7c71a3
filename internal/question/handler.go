package question

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"naccexam/internal/app/apireq"
	"naccexam/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxImportBytes = 10 << 20

type Handler struct {
	svc questionService
}

type questionService interface {
	ListTests(ctx context.Context) []Test
	ListQuestions(ctx context.Context, testID string) ([]Question, error)
	UpdateAnswer(ctx context.Context, testID string, questionID int64, newAnswer string) error
	ImportExcel(ctx context.Context, testID string, r io.Reader) (*ImportReport, error)
}

type updateAnswerRequest struct {
	TestID    string `json:"test_id" validate:"required"`
	NewAnswer string `json:"new_answer" validate:"required"`
}

func NewHandler(svc questionService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListTests(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteJSON(w, r, http.StatusOK, h.svc.ListTests(r.Context()))
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "testID")
	items, err := h.svc.ListQuestions(r.Context(), testID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTestID):
			apiresp.WriteError(w, r, http.StatusBadRequest, "Invalid test id")
		default:
			log.Printf("request_id=%s list questions test_id=%s: %v", middleware.GetReqID(r.Context()), testID, err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "Failed to retrieve questions")
		}
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, items)
}

func (h *Handler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil || questionID <= 0 {
		apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Invalid question id")
		return
	}

	var req updateAnswerRequest
	if err := apireq.Decode(r, &req); err != nil {
		var fe *apireq.FieldError
		if errors.As(err, &fe) {
			apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Missing "+fe.Field)
			return
		}
		apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	err = h.svc.UpdateAnswer(r.Context(), strings.TrimSpace(req.TestID), questionID, req.NewAnswer)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTestID):
			apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Invalid test_id")
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Missing new_answer")
		case errors.Is(err, ErrQuestionNotFound):
			apiresp.WriteStatus(w, r, http.StatusNotFound, false, "Question not found in this test")
		default:
			log.Printf("request_id=%s update answer question_id=%d: %v", middleware.GetReqID(r.Context()), questionID, err)
			apiresp.WriteStatus(w, r, http.StatusInternalServerError, false, "Database error")
		}
		return
	}
	apiresp.WriteStatus(w, r, http.StatusOK, true, "Answer updated successfully")
}

func (h *Handler) ImportExcel(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "testID")

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	report, err := h.svc.ImportExcel(r.Context(), testID, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTestID):
			apiresp.WriteError(w, r, http.StatusBadRequest, "Invalid test id")
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			log.Printf("request_id=%s import questions test_id=%s: %v", middleware.GetReqID(r.Context()), testID, err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "Failed to import questions")
		}
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, report)
}
