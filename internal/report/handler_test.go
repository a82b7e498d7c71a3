package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"naccexam/internal/auth"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	listAttemptsFn   func(ctx context.Context, userID int64) ([]Attempt, error)
	attemptOwnerFn   func(ctx context.Context, attemptID int64) (int64, error)
	attemptDetailsFn func(ctx context.Context, attemptID int64) ([]AnswerDetail, error)
}

func (m *mockReportService) ListAttempts(ctx context.Context, userID int64) ([]Attempt, error) {
	if m.listAttemptsFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listAttemptsFn(ctx, userID)
}

func (m *mockReportService) Summary(ctx context.Context, userID int64) (*Summary, error) {
	return &Summary{}, nil
}

func (m *mockReportService) Chart(ctx context.Context, userID int64) ([]ChartPoint, error) {
	return []ChartPoint{}, nil
}

func (m *mockReportService) AttemptOwner(ctx context.Context, attemptID int64) (int64, error) {
	if m.attemptOwnerFn == nil {
		return 0, errors.New("not implemented")
	}
	return m.attemptOwnerFn(ctx, attemptID)
}

func (m *mockReportService) AttemptDetails(ctx context.Context, attemptID int64) ([]AnswerDetail, error) {
	if m.attemptDetailsFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.attemptDetailsFn(ctx, attemptID)
}

func (m *mockReportService) AttemptInfo(ctx context.Context, attemptID int64) (*AttemptInfo, error) {
	return &AttemptInfo{TestID: "test1"}, nil
}

func (m *mockReportService) ExportAttemptsExcel(ctx context.Context, userID int64) ([]byte, error) {
	return []byte("xlsx"), nil
}

func newReportRequest(path, param, value string, user *auth.User) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(param, value)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if user != nil {
		ctx = auth.ContextWithUser(ctx, user)
	}
	return req.WithContext(ctx)
}

func TestAttemptsOnlyForSelfOrAdmin(t *testing.T) {
	h := NewHandler(&mockReportService{
		listAttemptsFn: func(ctx context.Context, userID int64) ([]Attempt, error) {
			return []Attempt{{ID: 1, TestID: "test1"}}, nil
		},
	})

	tests := []struct {
		name string
		user *auth.User
		id   string
		want int
	}{
		{name: "anonymous", user: nil, id: "5", want: http.StatusUnauthorized},
		{name: "other learner", user: &auth.User{ID: 6, Role: auth.RoleLearner}, id: "5", want: http.StatusForbidden},
		{name: "self", user: &auth.User{ID: 5, Role: auth.RoleLearner}, id: "5", want: http.StatusOK},
		{name: "admin", user: &auth.User{ID: 1, Role: auth.RoleAdmin}, id: "5", want: http.StatusOK},
		{name: "bad id", user: &auth.User{ID: 5, Role: auth.RoleLearner}, id: "abc", want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Attempts(w, newReportRequest("/api/user/"+tc.id+"/attempts", "userID", tc.id, tc.user))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestAttemptDetailsOwnership(t *testing.T) {
	h := NewHandler(&mockReportService{
		attemptOwnerFn: func(ctx context.Context, attemptID int64) (int64, error) {
			if attemptID == 404 {
				return 0, ErrAttemptNotFound
			}
			return 5, nil
		},
		attemptDetailsFn: func(ctx context.Context, attemptID int64) ([]AnswerDetail, error) {
			return []AnswerDetail{{QuestionID: "1", IsCorrect: true}}, nil
		},
	})

	tests := []struct {
		name string
		user *auth.User
		id   string
		want int
	}{
		{name: "owner", user: &auth.User{ID: 5, Role: auth.RoleLearner}, id: "10", want: http.StatusOK},
		{name: "non owner", user: &auth.User{ID: 6, Role: auth.RoleLearner}, id: "10", want: http.StatusForbidden},
		{name: "admin", user: &auth.User{ID: 1, Role: auth.RoleAdmin}, id: "10", want: http.StatusOK},
		{name: "missing", user: &auth.User{ID: 5, Role: auth.RoleLearner}, id: "404", want: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.AttemptDetails(w, newReportRequest("/api/attempt/"+tc.id+"/details", "attemptID", tc.id, tc.user))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestExportAttemptsHeaders(t *testing.T) {
	h := NewHandler(&mockReportService{})
	w := httptest.NewRecorder()
	h.ExportAttempts(w, newReportRequest("/api/user/5/attempts/export", "userID", "5", &auth.User{ID: 5, Role: auth.RoleLearner}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != "xlsx" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}
