package observability

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"naccexam/internal/auth"

	"github.com/go-chi/chi/v5"
)

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/attempt/123/details")
	want := "/api/attempt/{id}/details"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
}

func TestExtractAttemptID(t *testing.T) {
	if id := extractAttemptID("/api/attempt/456/info"); id != 456 {
		t.Fatalf("expected 456, got %d", id)
	}
	if id := extractAttemptID("/api/user/1/attempts"); id != 0 {
		t.Fatalf("expected 0 for non-attempt path, got %d", id)
	}
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	c := NewCollector(nil)
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/{testID}/questions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Method(http.MethodGet, "/metrics", c.MetricsHandler())

	for _, id := range []string{"test1", "test2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/"+id+"/questions", nil))
		if w.Code != http.StatusTeapot {
			t.Fatalf("expected 418, got %d", w.Code)
		}
	}
	c.AttemptRecorded("test1", 1, 2)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	text := string(body)

	want := `naccexam_http_requests_total{method="GET",path="/api/{testID}/questions",status="418"} 2`
	if !strings.Contains(text, want) {
		t.Fatalf("metrics missing %q:\n%s", want, text)
	}
	if !strings.Contains(text, `naccexam_attempts_recorded_total{test_id="test1"} 1`) {
		t.Fatalf("metrics missing attempt counter:\n%s", text)
	}
}

func TestMiddlewareLogsAuthenticatedUser(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	c := NewCollector(nil)
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Group(func(secure chi.Router) {
		secure.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user := &auth.User{ID: 7, Username: "learner", Role: auth.RoleLearner}
				next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
			})
		})
		secure.Get("/api/me", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if !strings.Contains(buf.String(), `"user_id":7`) {
		t.Fatalf("access log missing user id: %s", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if !strings.Contains(buf.String(), `"user_id":0`) {
		t.Fatalf("anonymous request should log user id 0: %s", buf.String())
	}
}
