// Package server exposes the study API and the PDF endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/abhisek/studykit/internal/dashboard"
	"github.com/abhisek/studykit/internal/docqa"
	"github.com/abhisek/studykit/internal/session"
	"github.com/abhisek/studykit/internal/store"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Answerer answers questions about document text.
type Answerer interface {
	Answer(ctx context.Context, q docqa.Question) (*docqa.Answer, error)
}

// Deps are the components the server routes to.
type Deps struct {
	Repo      store.StudyRepo
	Dashboard *dashboard.Service
	Sessions  *session.Registry
	Planner   *session.Planner
	Extractor docqa.Extractor

	// QA may be nil when no language model is configured.
	QA Answerer

	Log logrus.FieldLogger
}

// Config holds the server's tunables.
type Config struct {
	MaxUploadBytes int64
	QARate         rate.Limit
	QABurst        int
	ExamSize       int
	ExamDuration   time.Duration
	SessionMaxAge  time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes: 25 << 20,
		QARate:         1,
		QABurst:        5,
		ExamSize:       session.DefaultExamSize,
		ExamDuration:   session.DefaultExamDuration,
		SessionMaxAge:  2 * time.Hour,
	}
}

// Server is the HTTP surface.
type Server struct {
	deps    Deps
	cfg     Config
	log     logrus.FieldLogger
	limiter *RateLimiter
	router  *chi.Mux
}

// New creates a server and builds its routes.
func New(deps Deps, cfg Config) *Server {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.ExamDuration <= 0 {
		cfg.ExamDuration = def.ExamDuration
	}
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = def.SessionMaxAge
	}
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     log,
		limiter: NewRateLimiter(cfg.QARate, cfg.QABurst),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/pdf", func(r chi.Router) {
			r.Post("/extract", s.extractPDF)
			r.With(s.limiter.Middleware).Post("/qa", s.answerQuestion)
		})

		r.Get("/dashboard", s.getDashboard)

		r.Get("/subjects", s.listSubjects)
		r.Post("/subjects", s.createSubject)
		r.Get("/subjects/{id}/lessons", s.listLessons)

		r.Post("/lessons", s.createLesson)
		r.Get("/lessons/{id}", s.getLesson)
		r.Put("/lessons/{id}/completed", s.setLessonCompleted)
		r.Get("/lessons/{id}/exercises", s.listExercises)

		r.Post("/exercises", s.createExercise)
		r.Get("/attempts", s.listAttempts)

		r.Get("/settings", s.getSettings)
		r.Patch("/settings", s.updateSettings)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.startSession)
			r.Get("/{id}", s.getSession)
			r.Post("/{id}/select", s.selectOption)
			r.Post("/{id}/commit", s.commitAnswer)
			r.Post("/{id}/next", s.nextExercise)
			r.Post("/{id}/finish", s.finishSession)
			r.Delete("/{id}", s.deleteSession)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// LambdaHandler adapts the router to API Gateway proxy events.
func (s *Server) LambdaHandler() func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	adapter := chiadapter.New(s.router)
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
