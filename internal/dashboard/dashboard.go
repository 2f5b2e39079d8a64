// Package dashboard assembles the home screen view model from the progress,
// review and summary calculators.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/studykit/internal/progress"
	"github.com/abhisek/studykit/internal/review"
	"github.com/abhisek/studykit/internal/store"
)

// Source is the read-only slice of the store a refresh needs.
type Source interface {
	ListSubjects(ctx context.Context) ([]store.Subject, error)
	ListLessons(ctx context.Context, subjectID int64) ([]store.Lesson, error)
	ListExercises(ctx context.Context, lessonID int64) ([]store.Exercise, error)
	ListAttempts(ctx context.Context, exerciseID int64) ([]store.Attempt, error)
	GetSettings(ctx context.Context) (store.Settings, error)
}

// View is the dashboard view model.
type View struct {
	GeneratedAt     time.Time                  `json:"generated_at"`
	Subjects        []progress.SubjectProgress `json:"subjects"`
	Overall         progress.Totals            `json:"overall"`
	Recommendations []review.Recommendation    `json:"recommendations"`
	Summary         progress.Summary           `json:"summary"`
}

// Service computes dashboard views.
type Service struct {
	src   Source
	limit int
	log   logrus.FieldLogger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLimit sets the number of recommendations.
func WithLimit(n int) Option {
	return func(s *Service) { s.limit = n }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a dashboard service reading from src.
func NewService(src Source, opts ...Option) *Service {
	s := &Service{
		src:   src,
		limit: review.DefaultLimit,
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Refresh samples the clock once, runs the three calculators concurrently
// and returns their joined result. The first failure cancels the rest.
func (s *Service) Refresh(ctx context.Context) (*View, error) {
	now := s.now()
	view := &View{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		subjects, err := s.src.ListSubjects(gctx)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		lessons, err := s.src.ListLessons(gctx, 0)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		view.Subjects = progress.Aggregate(subjects, lessons)
		view.Overall = progress.Overall(view.Subjects)
		return nil
	})

	g.Go(func() error {
		in, err := s.reviewInput(gctx)
		if err != nil {
			return fmt.Errorf("recommendations: %w", err)
		}
		view.Recommendations = review.Recommend(in, s.limit)
		return nil
	})

	g.Go(func() error {
		attempts, err := s.src.ListAttempts(gctx, 0)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		settings, err := s.src.GetSettings(gctx)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		view.Summary = progress.Summarize(attempts, settings, now)
		return nil
	})

	if err := g.Wait(); err != nil {
		s.log.WithError(err).Warn("dashboard refresh failed")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"subjects":        len(view.Subjects),
		"recommendations": len(view.Recommendations),
		"minutes_today":   view.Summary.MinutesToday,
	}).Debug("dashboard refreshed")
	return view, nil
}

func (s *Service) reviewInput(ctx context.Context) (review.Input, error) {
	var in review.Input
	var err error
	if in.Subjects, err = s.src.ListSubjects(ctx); err != nil {
		return in, err
	}
	if in.Lessons, err = s.src.ListLessons(ctx, 0); err != nil {
		return in, err
	}
	if in.Exercises, err = s.src.ListExercises(ctx, 0); err != nil {
		return in, err
	}
	if in.Attempts, err = s.src.ListAttempts(ctx, 0); err != nil {
		return in, err
	}
	return in, nil
}
