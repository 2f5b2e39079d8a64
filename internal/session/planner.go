package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/studykit/internal/store"
)

// ErrNoExercises is returned when there is nothing to practice.
var ErrNoExercises = errors.New("no exercises available")

// ExerciseSource is the part of the store a planner reads.
type ExerciseSource interface {
	ListExercises(ctx context.Context, lessonID int64) ([]store.Exercise, error)
	RandomExercises(ctx context.Context, subjectID int64, limit int) ([]store.Exercise, error)
}

// Planner builds session plans.
type Planner struct {
	src ExerciseSource
}

// NewPlanner creates a Planner reading from src.
func NewPlanner(src ExerciseSource) *Planner {
	return &Planner{src: src}
}

// QuizPlan returns a plan over all exercises of a lesson, in lesson order.
func (p *Planner) QuizPlan(ctx context.Context, lessonID int64) (*Plan, error) {
	exs, err := p.src.ListExercises(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	if len(exs) == 0 {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, ErrNoExercises)
	}
	return &Plan{
		Mode:      ModeQuiz,
		LessonID:  lessonID,
		Exercises: exs,
	}, nil
}

// ExamPlan draws up to size random exercises from a subject, or from all
// subjects when subjectID is 0. Fewer available exercises is not an error.
func (p *Planner) ExamPlan(ctx context.Context, subjectID int64, size int, d time.Duration) (*Plan, error) {
	if size <= 0 {
		size = DefaultExamSize
	}
	if d <= 0 {
		d = DefaultExamDuration
	}
	exs, err := p.src.RandomExercises(ctx, subjectID, size)
	if err != nil {
		return nil, fmt.Errorf("draw exercises: %w", err)
	}
	if len(exs) == 0 {
		return nil, ErrNoExercises
	}
	return &Plan{
		Mode:      ModeExam,
		SubjectID: subjectID,
		Exercises: exs,
		Duration:  d,
	}, nil
}
