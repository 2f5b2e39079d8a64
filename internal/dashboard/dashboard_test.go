package dashboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhisek/studykit/internal/store"
)

type fakeSource struct {
	subjects  []store.Subject
	lessons   []store.Lesson
	exercises []store.Exercise
	attempts  []store.Attempt
	settings  store.Settings

	attemptsErr error
	calls       atomic.Int32
}

func (f *fakeSource) ListSubjects(ctx context.Context) ([]store.Subject, error) {
	f.calls.Add(1)
	return f.subjects, nil
}

func (f *fakeSource) ListLessons(ctx context.Context, subjectID int64) ([]store.Lesson, error) {
	f.calls.Add(1)
	return f.lessons, nil
}

func (f *fakeSource) ListExercises(ctx context.Context, lessonID int64) ([]store.Exercise, error) {
	f.calls.Add(1)
	return f.exercises, nil
}

func (f *fakeSource) ListAttempts(ctx context.Context, exerciseID int64) ([]store.Attempt, error) {
	f.calls.Add(1)
	if f.attemptsErr != nil {
		return nil, f.attemptsErr
	}
	return f.attempts, nil
}

func (f *fakeSource) GetSettings(ctx context.Context) (store.Settings, error) {
	f.calls.Add(1)
	return f.settings, nil
}

func TestRefresh(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	exam := time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC)

	src := &fakeSource{
		subjects: []store.Subject{{ID: 1, Name: "Math"}, {ID: 2, Name: "Empty"}},
		lessons: []store.Lesson{
			{ID: 10, SubjectID: 1, Title: "Done", Completed: true},
			{ID: 11, SubjectID: 1, Title: "Weak"},
		},
		exercises: []store.Exercise{
			{ID: 100, LessonID: 10},
			{ID: 101, LessonID: 11},
		},
		attempts: []store.Attempt{
			{ID: 1, ExerciseID: 100, Correct: true, AnsweredAt: now.Add(-time.Hour), TimeSpentSecs: 300},
			{ID: 2, ExerciseID: 101, Correct: false, AnsweredAt: now.Add(-time.Minute), TimeSpentSecs: 300},
		},
		settings: store.Settings{ExamDate: &exam, DailyGoalMinutes: 20},
	}

	svc := NewService(src, WithClock(func() time.Time { return now }))
	view, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if !view.GeneratedAt.Equal(now) {
		t.Errorf("generated at = %v", view.GeneratedAt)
	}
	if len(view.Subjects) != 2 || view.Subjects[0].ProgressPercent != 50 || view.Subjects[1].ProgressPercent != 0 {
		t.Errorf("subjects = %+v", view.Subjects)
	}
	if view.Overall.TotalLessons != 2 {
		t.Errorf("overall = %+v", view.Overall)
	}
	if len(view.Recommendations) != 1 || view.Recommendations[0].LessonID != 11 {
		t.Errorf("recommendations = %+v", view.Recommendations)
	}
	if view.Summary.MinutesToday != 10 || view.Summary.DaysUntilExam != 10 || view.Summary.GoalPercent != 50 {
		t.Errorf("summary = %+v", view.Summary)
	}
}

func TestRefreshPropagatesError(t *testing.T) {
	boom := errors.New("disk gone")
	src := &fakeSource{attemptsErr: boom}

	_, err := NewService(src).Refresh(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestRefreshLimit(t *testing.T) {
	src := &fakeSource{subjects: []store.Subject{{ID: 1}}}
	for i := int64(1); i <= 5; i++ {
		src.lessons = append(src.lessons, store.Lesson{ID: i, SubjectID: 1})
		src.exercises = append(src.exercises, store.Exercise{ID: 100 + i, LessonID: i})
	}

	view, err := NewService(src, WithLimit(2)).Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(view.Recommendations) != 2 {
		t.Errorf("recommendations = %d, want 2", len(view.Recommendations))
	}
}

func TestRefreshAgainstStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "dash.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	repo := s.StudyRepo()
	sub, err := repo.CreateSubject(ctx, store.NewSubject{Name: "History"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	l, err := repo.CreateLesson(ctx, store.NewLesson{SubjectID: sub.ID, Title: "Empires"})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	if _, err := repo.CreateExercise(ctx, store.NewExercise{LessonID: l.ID, Question: "When?", Options: []string{"1", "2"}}); err != nil {
		t.Fatalf("create exercise: %v", err)
	}

	view, err := NewService(repo).Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(view.Recommendations) != 1 || view.Recommendations[0].SubjectName != "History" {
		t.Errorf("recommendations = %+v", view.Recommendations)
	}
	if view.Summary.DailyGoalMinutes != 60 || view.Summary.HasExamDate {
		t.Errorf("summary = %+v", view.Summary)
	}
}
