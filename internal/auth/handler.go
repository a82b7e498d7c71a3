package auth

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"naccexam/internal/app/apireq"
	"naccexam/internal/app/apiresp"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const (
	userContextKey contextKey = "auth_user"
	userSlotKey    contextKey = "auth_user_slot"
)

const maxUserImportBytes = 10 << 20

type Handler struct {
	svc authService
}

type authService interface {
	Login(ctx context.Context, username, password string) (*User, string, error)
	ParseToken(raw string) (*User, error)
	ImportUsersExcel(ctx context.Context, r io.Reader) (*UserImportReport, error)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
	Token   string `json:"token"`
}

func NewHandler(svc authService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := apireq.Decode(r, &req); err != nil {
		var fe *apireq.FieldError
		if errors.As(err, &fe) {
			apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Missing "+fe.Field)
			return
		}
		apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	user, token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "User not found")
		case errors.Is(err, ErrInvalidCredentials):
			apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Invalid password")
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteStatus(w, r, http.StatusBadRequest, false, "Invalid request body")
		default:
			log.Printf("request_id=%s login: %v", middleware.GetReqID(r.Context()), err)
			apiresp.WriteStatus(w, r, http.StatusInternalServerError, false, "internal error")
		}
		return
	}

	apiresp.WriteJSON(w, r, http.StatusOK, loginResponse{Success: true, UserID: user.ID, Role: user.Role, Token: token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, user)
}

func (h *Handler) ImportUsers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUserImportBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	report, err := h.svc.ImportUsersExcel(r.Context(), file)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			log.Printf("request_id=%s import users: %v", middleware.GetReqID(r.Context()), err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "Failed to import users")
		}
		return
	}
	apiresp.WriteJSON(w, r, http.StatusOK, report)
}

func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.svc.ParseToken(readBearerToken(r))
		if err != nil {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

func (h *Handler) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, exists := allowed[user.Role]; !exists {
				apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CurrentUser(ctx context.Context) (*User, bool) {
	v := ctx.Value(userContextKey)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*User)
	return u, ok && u != nil
}

// ContextWithUser injects an authenticated user into context.
// Useful for tests and internal handlers.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	if slot, ok := ctx.Value(userSlotKey).(*userSlot); ok {
		slot.user = user
	}
	return context.WithValue(ctx, userContextKey, user)
}

type userSlot struct {
	user *User
}

// WithUserSlot lets an outer middleware learn which user an inner
// RequireAuth resolved, since that user only lives on the derived request.
func WithUserSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, userSlotKey, &userSlot{})
}

// SlotUser returns the user recorded in the slot installed by WithUserSlot.
func SlotUser(ctx context.Context) (*User, bool) {
	slot, ok := ctx.Value(userSlotKey).(*userSlot)
	if !ok || slot.user == nil {
		return nil, false
	}
	return slot.user, true
}

func readBearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
