package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/studykit/internal/store"
)

// memRecorder is an in-memory Recorder.
type memRecorder struct {
	mu       sync.Mutex
	attempts []store.AttemptInput
	err      error
}

func (m *memRecorder) RecordAttempt(ctx context.Context, in store.AttemptInput) (store.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return store.Attempt{}, m.err
	}
	m.attempts = append(m.attempts, in)
	return store.Attempt{ID: int64(len(m.attempts)), ExerciseID: in.ExerciseID, Correct: in.Correct}, nil
}

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

func testExercises(n int) []store.Exercise {
	exs := make([]store.Exercise, n)
	for i := range exs {
		exs[i] = store.Exercise{
			ID:           int64(i + 1),
			Question:     fmt.Sprintf("q%d", i+1),
			Options:      store.Options{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		}
	}
	return exs
}

func quizPlan(n int) *Plan {
	return &Plan{Mode: ModeQuiz, Exercises: testExercises(n)}
}

func examPlan(n int) *Plan {
	return &Plan{Mode: ModeExam, Exercises: testExercises(n), Duration: time.Hour}
}

func startSession(t *testing.T, plan *Plan, rec Recorder) *Session {
	t.Helper()
	s := New("test-session", plan, rec)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestQuizFlow(t *testing.T) {
	rec := &memRecorder{}
	s := startSession(t, quizPlan(2), rec)
	ctx := context.Background()

	if s.Phase() != PhasePresenting {
		t.Fatalf("phase = %s, want presenting", s.Phase())
	}

	// Selection may change before commit.
	if err := s.Select(2); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	item, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !item.Correct || !item.Answered {
		t.Errorf("item = %+v, want correct and answered", item)
	}

	st := s.State()
	if st.Phase != PhaseReviewing || st.Feedback == nil || st.Feedback.CorrectIndex != 0 {
		t.Errorf("state = %+v", st)
	}

	if err := s.Select(1); !errors.Is(err, ErrNotPresenting) {
		t.Errorf("select while reviewing: err = %v, want ErrNotPresenting", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if st := s.State(); st.Index != 1 || st.Selected != nil || st.Feedback != nil {
		t.Errorf("state after next = %+v", st)
	}

	if err := s.Select(3); err != nil {
		t.Fatalf("select: %v", err)
	}
	item, err = s.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if item.Correct {
		t.Error("option 3 should be wrong for exercise 2")
	}
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	if s.Phase() != PhaseComplete {
		t.Fatalf("phase = %s, want complete", s.Phase())
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done should be closed")
	}

	res := s.Result()
	if res.Total != 2 || res.Answered != 2 || res.Correct != 1 || res.ScorePercent != 50 {
		t.Errorf("result = %+v", res)
	}
	if rec.count() != 2 {
		t.Errorf("attempts = %d, want 2", rec.count())
	}
	for _, a := range rec.attempts {
		if a.SessionID != "test-session" {
			t.Errorf("session id = %q", a.SessionID)
		}
	}
}

func TestSelectRejectsOutOfRange(t *testing.T) {
	s := startSession(t, quizPlan(1), &memRecorder{})
	for _, opt := range []int{-1, 4, 99} {
		if err := s.Select(opt); !errors.Is(err, ErrInvalidOption) {
			t.Errorf("Select(%d): err = %v, want ErrInvalidOption", opt, err)
		}
	}
}

func TestCommitWithoutSelection(t *testing.T) {
	rec := &memRecorder{}
	s := startSession(t, quizPlan(1), rec)
	if _, err := s.Commit(context.Background()); !errors.Is(err, ErrNoSelection) {
		t.Errorf("err = %v, want ErrNoSelection", err)
	}
	if rec.count() != 0 {
		t.Errorf("attempts = %d, want 0", rec.count())
	}
}

func TestCommitFailureStaysPresenting(t *testing.T) {
	rec := &memRecorder{err: errors.New("db locked")}
	s := startSession(t, quizPlan(1), rec)
	if err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Commit(context.Background()); err == nil {
		t.Fatal("expected commit error")
	}
	if s.Phase() != PhasePresenting {
		t.Errorf("phase = %s, want presenting", s.Phase())
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatalf("retry commit: %v", err)
	}
}

func TestDoubleCommitWritesOnce(t *testing.T) {
	rec := &memRecorder{}
	s := startSession(t, quizPlan(3), rec)
	if err := s.Select(1); err != nil {
		t.Fatalf("select: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Commit(context.Background())
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyCommitted):
		default:
			t.Errorf("unexpected err: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful commits = %d, want 1", ok)
	}
	if rec.count() != 1 {
		t.Errorf("attempts = %d, want 1", rec.count())
	}
}

func TestDoubleCommitAgainstStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	repo := st.StudyRepo()
	ctx := context.Background()

	exs := seedExercises(t, repo, 1)
	s := startSession(t, &Plan{Mode: ModeQuiz, Exercises: exs}, repo)
	if err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Commit(ctx); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if _, err := s.Commit(ctx); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("second commit: err = %v, want ErrAlreadyCommitted", err)
	}

	attempts, err := repo.ListAttempts(ctx, exs[0].ID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Errorf("attempt rows = %d, want 1", len(attempts))
	}
}

func seedExercises(t *testing.T, repo store.StudyRepo, n int) []store.Exercise {
	t.Helper()
	ctx := context.Background()
	sub, err := repo.CreateSubject(ctx, store.NewSubject{Name: "Chemistry"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	l, err := repo.CreateLesson(ctx, store.NewLesson{SubjectID: sub.ID, Title: "Atoms"})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	exs := make([]store.Exercise, n)
	for i := range exs {
		exs[i], err = repo.CreateExercise(ctx, store.NewExercise{
			LessonID:     l.ID,
			Question:     fmt.Sprintf("q%d", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
			Position:     i,
		})
		if err != nil {
			t.Fatalf("create exercise: %v", err)
		}
	}
	return exs
}

// answerThrough commits and advances through the first n exercises.
func answerThrough(t *testing.T, s *Session, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := s.Select(i % 4); err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if _, err := s.Commit(ctx); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		if err := s.Next(); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}
}

func TestExamExpiryMidway(t *testing.T) {
	tests := []struct {
		name      string
		selectOn  bool
		wantRows  int
		wantTotal int
	}{
		{"unselected tenth", false, 9, 30},
		{"selected tenth", true, 10, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := store.Open(filepath.Join(t.TempDir(), "exam.db"))
			if err != nil {
				t.Fatalf("open store: %v", err)
			}
			defer st.Close()
			repo := st.StudyRepo()
			ctx := context.Background()

			exs := seedExercises(t, repo, 30)
			s := startSession(t, &Plan{Mode: ModeExam, Exercises: exs, Duration: time.Hour}, repo)

			answerThrough(t, s, 9)
			if tt.selectOn {
				if err := s.Select(1); err != nil {
					t.Fatalf("select tenth: %v", err)
				}
			}

			res, err := s.Expire(ctx)
			if err != nil {
				t.Fatalf("expire: %v", err)
			}
			if s.Phase() != PhaseComplete {
				t.Fatalf("phase = %s, want complete", s.Phase())
			}
			if !res.Expired || res.Total != tt.wantTotal || res.Answered != tt.wantRows {
				t.Errorf("result = %+v", res)
			}

			attempts, err := repo.ListAttempts(ctx, 0)
			if err != nil {
				t.Fatalf("list attempts: %v", err)
			}
			if len(attempts) != tt.wantRows {
				t.Fatalf("attempt rows = %d, want %d", len(attempts), tt.wantRows)
			}
			answered := make(map[int64]bool)
			for _, a := range attempts {
				answered[a.ExerciseID] = true
			}
			for i := tt.wantRows; i < len(exs); i++ {
				if answered[exs[i].ID] {
					t.Errorf("exercise %d should have no attempt", i+1)
				}
			}

			// Expiry after completion is a no-op.
			if _, err := s.Expire(ctx); err != nil {
				t.Fatalf("second expire: %v", err)
			}
			attempts, _ = repo.ListAttempts(ctx, 0)
			if len(attempts) != tt.wantRows {
				t.Errorf("rows after second expire = %d, want %d", len(attempts), tt.wantRows)
			}
		})
	}
}

func TestQuizFinishDoesNotRecordPendingSelection(t *testing.T) {
	rec := &memRecorder{}
	s := startSession(t, quizPlan(3), rec)
	if err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	res, err := s.Finish(context.Background())
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if rec.count() != 0 || res.Answered != 0 || res.ScorePercent != 0 {
		t.Errorf("result = %+v, attempts = %d", res, rec.count())
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	rec := &memRecorder{}
	s := startSession(t, examPlan(5), rec)
	ctx := context.Background()

	answerThrough(t, s, 2)
	first, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	second, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("second finish: %v", err)
	}
	if first.Answered != second.Answered || first.Correct != second.Correct {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
	if rec.count() != 2 {
		t.Errorf("attempts = %d, want 2", rec.count())
	}
	if err := s.Select(0); !errors.Is(err, ErrComplete) {
		t.Errorf("select after complete: err = %v, want ErrComplete", err)
	}
	if err := s.Next(); !errors.Is(err, ErrComplete) {
		t.Errorf("next after complete: err = %v, want ErrComplete", err)
	}
}

func TestExamTimerFires(t *testing.T) {
	rec := &memRecorder{}
	plan := &Plan{Mode: ModeExam, Exercises: testExercises(3), Duration: 20 * time.Millisecond}
	s := startSession(t, plan, rec)
	if err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not finish the exam")
	}
	res := s.Result()
	if !res.Expired || res.Answered != 1 {
		t.Errorf("result = %+v", res)
	}
	if s.State().Deadline == nil {
		t.Error("exam state should carry a deadline")
	}
}

func TestExamTimerCompletesWhenRecordFails(t *testing.T) {
	rec := &memRecorder{}
	plan := &Plan{Mode: ModeExam, Exercises: testExercises(3), Duration: 50 * time.Millisecond}
	s := startSession(t, plan, rec)
	if err := s.Select(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	rec.mu.Lock()
	rec.err = errors.New("db down")
	rec.mu.Unlock()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("exam past its deadline did not complete")
	}
	if s.Phase() != PhaseComplete {
		t.Fatalf("phase = %s, want complete", s.Phase())
	}
	res := s.Result()
	if !res.Expired || res.Answered != 0 {
		t.Errorf("result = %+v", res)
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	if err := s.Select(0); !errors.Is(err, ErrComplete) {
		t.Errorf("select after deadline: err = %v, want ErrComplete", err)
	}
	if _, err := s.Commit(context.Background()); !errors.Is(err, ErrComplete) {
		t.Errorf("commit after deadline: err = %v, want ErrComplete", err)
	}
	if rec.count() != 0 {
		t.Errorf("attempts after deadline = %d, want 0", rec.count())
	}
}

func TestExpireReportsRecordError(t *testing.T) {
	rec := &memRecorder{}
	s := startSession(t, examPlan(2), rec)
	if err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	rec.err = errors.New("db down")

	res, err := s.Expire(context.Background())
	if err == nil {
		t.Fatal("expected record error")
	}
	if s.Phase() != PhaseComplete || !res.Expired {
		t.Errorf("phase = %s, result = %+v", s.Phase(), res)
	}
}

func TestFinishKeepsSessionOpenWhenRecordFails(t *testing.T) {
	rec := &memRecorder{err: errors.New("db down")}
	s := startSession(t, examPlan(2), rec)
	if err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Finish(context.Background()); err == nil {
		t.Fatal("expected record error")
	}
	if s.Phase() != PhasePresenting {
		t.Errorf("phase = %s, want presenting", s.Phase())
	}
}

func TestExamPastDeadlineRejectsAnswers(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rec := &memRecorder{}
	plan := &Plan{Mode: ModeExam, Exercises: testExercises(3), Duration: time.Hour}
	s := New("late-timer", plan, rec, WithClock(func() time.Time { return now }))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Select(2); err != nil {
		t.Fatalf("select: %v", err)
	}
	now = now.Add(time.Hour)

	if _, err := s.Commit(context.Background()); !errors.Is(err, ErrComplete) {
		t.Fatalf("commit at deadline: err = %v, want ErrComplete", err)
	}
	if s.Phase() != PhaseComplete {
		t.Fatalf("phase = %s, want complete", s.Phase())
	}
	if err := s.Select(0); !errors.Is(err, ErrComplete) {
		t.Errorf("select after deadline: err = %v, want ErrComplete", err)
	}
	res := s.Result()
	if !res.Expired || res.Answered != 1 || rec.count() != 1 {
		t.Errorf("result = %+v, attempts = %d", res, rec.count())
	}
}

func TestCloseStopsTimer(t *testing.T) {
	plan := &Plan{Mode: ModeExam, Exercises: testExercises(2), Duration: 20 * time.Millisecond}
	s := New("closed", plan, &memRecorder{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Close()

	select {
	case <-s.Done():
		t.Fatal("closed session should not auto-finish")
	case <-time.After(100 * time.Millisecond):
	}
	if s.Phase() != PhasePresenting {
		t.Errorf("phase = %s, want presenting", s.Phase())
	}
}

func TestStartTwice(t *testing.T) {
	s := startSession(t, quizPlan(1), &memRecorder{})
	if err := s.Start(); err == nil {
		t.Error("expected error on second start")
	}
}

func TestEmptyPlanCompletesOnStart(t *testing.T) {
	s := startSession(t, &Plan{Mode: ModeQuiz}, &memRecorder{})
	if s.Phase() != PhaseComplete {
		t.Errorf("phase = %s, want complete", s.Phase())
	}
}

func TestTimeSpentUsesClock(t *testing.T) {
	rec := &memRecorder{}
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := New("clocked", quizPlan(1), rec, WithClock(clock))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	now = now.Add(42 * time.Second)
	if err := s.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	item, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if item.TimeSpentSecs != 42 || rec.attempts[0].TimeSpentSecs != 42 {
		t.Errorf("time spent = %d, want 42", item.TimeSpentSecs)
	}
}
