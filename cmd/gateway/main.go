package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/lumalearn/assess/internal/api/http"
	auth "github.com/lumalearn/assess/internal/auth/middleware"
	"github.com/lumalearn/assess/internal/config"
	"github.com/lumalearn/assess/internal/db"
	"github.com/lumalearn/assess/internal/eventlog"
	"github.com/lumalearn/assess/internal/genai"
	"github.com/lumalearn/assess/internal/lecture"
	rbac "github.com/lumalearn/assess/internal/rbac"
)

func main() {
	_ = godotenv.Load() // optional .env for dev
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := lecture.NewSQLStore(dbh, cfg.DBDriver)
	events := eventlog.NewRepo(dbh)

	// --- Question generation workflow ---
	gen := genai.NewClient(genai.Config{
		WebhookURL:     cfg.GenWebhookURL,
		APIKey:         cfg.GenAPIKey,
		TimeoutSeconds: cfg.GenTimeoutSeconds,
	})

	host := api.NewQuizHost(store, events, gen, api.QuizConfig{
		Seconds:       cfg.QuizSeconds,
		QuestionCount: cfg.QuizQuestionCount,
		PassThreshold: cfg.PassThreshold,
	})
	defer host.CloseAll()

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)
	users := &auth.LocalUsers{DB: dbh, AdminUser: cfg.AdminUser, AdminPassHash: cfg.AdminPassHash}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute)) // generation calls can be slow

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, users))
	r.Post("/auth/guest", auth.GuestLoginHandler(authSvc, dbh, cfg.EnableGuestAuth))

	// Protected API (JWT → subject/role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("lecture:create")).
			Post("/lectures", api.UploadLectureHandler(store))
		pr.With(rbac.Require("lecture:view")).
			Get("/lectures", api.ListLecturesHandler(store))
		pr.With(rbac.Require("lecture:view")).
			Get("/lectures/{lectureID}", api.GetLectureHandler(store))

		// Quiz session lifecycle
		pr.With(rbac.Require("quiz:take")).
			Post("/lectures/{lectureID}/quiz", api.StartQuizHandler(host))
		pr.With(rbac.Require("quiz:take")).
			Get("/lectures/{lectureID}/quiz", api.GetQuizHandler(host))
		pr.With(rbac.Require("quiz:take")).
			Put("/lectures/{lectureID}/quiz/answers", api.AnswerHandler(host))
		pr.With(rbac.Require("quiz:take")).
			Post("/lectures/{lectureID}/quiz/submit", api.SubmitQuizHandler(host))
		pr.With(rbac.Require("quiz:take")).
			Post("/lectures/{lectureID}/quiz/retake", api.RetakeQuizHandler(host))
		pr.With(rbac.Require("quiz:take")).
			Delete("/lectures/{lectureID}/quiz", api.CancelQuizHandler(host))

		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/lectures/{lectureID}/attempts", api.ListAttemptsHandler(store))

		pr.With(rbac.Require("events:view")).
			Get("/events", api.RecentEventsHandler(events))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
