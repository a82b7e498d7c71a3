package app

import (
	"database/sql"
	"net/http"
	"time"

	"naccexam/internal/app/observability"
	"naccexam/internal/auth"
	"naccexam/internal/event"
	"naccexam/internal/exam"
	"naccexam/internal/question"
	"naccexam/internal/report"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(cfg Config, db *sql.DB, catalog *question.Catalog, publisher *event.Publisher) http.Handler {
	if catalog == nil {
		catalog = question.DefaultCatalog()
	}
	collector := observability.NewCollector(db)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(collector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	authSvc := auth.NewService(db, auth.ServiceConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  time.Duration(cfg.JWTTTLHours) * time.Hour,
	})
	authHandler := auth.NewHandler(authSvc)

	questionSvc := question.NewService(db, catalog)
	questionHandler := question.NewHandler(questionSvc)

	examSvc := exam.NewService(catalog, questionSvc, exam.NewRecorder(db),
		exam.WithPublisher(publisher),
		exam.WithMetrics(collector),
	)
	examHandler := exam.NewHandler(examSvc)

	reportHandler := report.NewHandler(report.NewService(db))

	loginLimiter := NewIPRateLimiter(cfg.LoginRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Method(http.MethodGet, "/metrics", collector.MetricsHandler())

	r.Route("/api", func(api chi.Router) {
		api.With(RateLimitMiddleware(loginLimiter)).Post("/login", authHandler.Login)
		api.Get("/tests", questionHandler.ListTests)
		api.Get("/{testID}/questions", questionHandler.ListQuestions)

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/me", authHandler.Me)

			secure.Post("/{testID}/submit_exam", examHandler.Submit)

			secure.Get("/user/{userID}/attempts", reportHandler.Attempts)
			secure.Get("/user/{userID}/attempts/export", reportHandler.ExportAttempts)
			secure.Get("/user/{userID}/summary", reportHandler.Summary)
			secure.Get("/user/{userID}/chart", reportHandler.Chart)
			secure.Get("/attempt/{attemptID}/details", reportHandler.AttemptDetails)
			secure.Get("/attempt/{attemptID}/info", reportHandler.AttemptInfo)

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles(auth.RoleAdmin))
				admin.Put("/question/{questionID}/update_answer", questionHandler.UpdateAnswer)
				admin.Post("/{testID}/questions/import", questionHandler.ImportExcel)
				admin.Post("/users/import", authHandler.ImportUsers)
			})
		})
	})

	return r
}
