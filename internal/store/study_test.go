package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// seedStudy creates two subjects with lessons and exercises.
func seedStudy(t *testing.T, repo StudyRepo) (math, bio Subject, lessons []Lesson, exercises []Exercise) {
	t.Helper()
	ctx := context.Background()

	var err error
	// Inserted out of display order to exercise ordering.
	bio, err = repo.CreateSubject(ctx, NewSubject{Name: "Biology", Color: "#16A34A", Position: 2})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	math, err = repo.CreateSubject(ctx, NewSubject{Name: "Math", Color: "#4F46E5", Position: 1})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}

	for _, in := range []NewLesson{
		{SubjectID: bio.ID, Title: "Cells", Position: 1},
		{SubjectID: math.ID, Title: "Fractions", Position: 2, Summary: "**Parts** of a whole"},
		{SubjectID: math.ID, Title: "Integers", Position: 1},
	} {
		l, err := repo.CreateLesson(ctx, in)
		if err != nil {
			t.Fatalf("create lesson %q: %v", in.Title, err)
		}
		lessons = append(lessons, l)
	}

	for i, l := range lessons {
		for j := 0; j < 2; j++ {
			ex, err := repo.CreateExercise(ctx, NewExercise{
				LessonID:     l.ID,
				Question:     l.Title + " question",
				Options:      []string{"a", "b", "c"},
				CorrectIndex: (i + j) % 3,
				Position:     j,
			})
			if err != nil {
				t.Fatalf("create exercise: %v", err)
			}
			exercises = append(exercises, ex)
		}
	}
	return math, bio, lessons, exercises
}

func TestListSubjectsOrdered(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	seedStudy(t, repo)

	subjects, err := repo.ListSubjects(context.Background())
	if err != nil {
		t.Fatalf("list subjects: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("subjects = %d, want 2", len(subjects))
	}
	if subjects[0].Name != "Math" || subjects[1].Name != "Biology" {
		t.Errorf("order = %q, %q", subjects[0].Name, subjects[1].Name)
	}
}

func TestListLessonsOrderAndFilter(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	math, _, _, _ := seedStudy(t, repo)
	ctx := context.Background()

	all, err := repo.ListLessons(ctx, 0)
	if err != nil {
		t.Fatalf("list lessons: %v", err)
	}
	var titles []string
	for _, l := range all {
		titles = append(titles, l.Title)
	}
	want := []string{"Integers", "Fractions", "Cells"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("titles = %v, want %v", titles, want)
		}
	}

	mathOnly, err := repo.ListLessons(ctx, math.ID)
	if err != nil {
		t.Fatalf("list math lessons: %v", err)
	}
	if len(mathOnly) != 2 {
		t.Errorf("math lessons = %d, want 2", len(mathOnly))
	}
}

func TestGetLessonNotFound(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	_, err := repo.GetLesson(context.Background(), 77)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateLessonRequiresSubject(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	_, err := repo.CreateLesson(context.Background(), NewLesson{SubjectID: 99, Title: "Orphan"})
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestCreateExerciseValidation(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	_, _, lessons, _ := seedStudy(t, repo)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewExercise
	}{
		{"too few options", NewExercise{LessonID: lessons[0].ID, Question: "q", Options: []string{"only"}}},
		{"index too high", NewExercise{LessonID: lessons[0].ID, Question: "q", Options: []string{"a", "b"}, CorrectIndex: 2}},
		{"negative index", NewExercise{LessonID: lessons[0].ID, Question: "q", Options: []string{"a", "b"}, CorrectIndex: -1}},
		{"empty question", NewExercise{LessonID: lessons[0].ID, Question: " ", Options: []string{"a", "b"}}},
		{"difficulty too high", NewExercise{LessonID: lessons[0].ID, Question: "q", Options: []string{"a", "b"}, Difficulty: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateExercise(ctx, tt.in)
			if !errors.Is(err, ErrInvalidExercise) {
				t.Errorf("err = %v, want ErrInvalidExercise", err)
			}
		})
	}
}

func TestListExercisesRoundTripsOptions(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	_, _, lessons, _ := seedStudy(t, repo)

	exs, err := repo.ListExercises(context.Background(), lessons[0].ID)
	if err != nil {
		t.Fatalf("list exercises: %v", err)
	}
	if len(exs) != 2 {
		t.Fatalf("exercises = %d, want 2", len(exs))
	}
	if len(exs[0].Options) != 3 || exs[0].Options[2] != "c" {
		t.Errorf("options = %v", exs[0].Options)
	}
	if exs[0].Difficulty != 1 {
		t.Errorf("default difficulty = %d, want 1", exs[0].Difficulty)
	}
}

func TestRandomExercises(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	math, _, _, _ := seedStudy(t, repo)
	ctx := context.Background()

	got, err := repo.RandomExercises(ctx, math.ID, 30)
	if err != nil {
		t.Fatalf("random exercises: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("math exercises = %d, want all 4", len(got))
	}

	got, err = repo.RandomExercises(ctx, 0, 3)
	if err != nil {
		t.Fatalf("random exercises: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("limited exercises = %d, want 3", len(got))
	}
}

func TestRecordAndListAttempts(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	_, _, _, exs := seedStudy(t, repo)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	first, err := repo.RecordAttempt(ctx, AttemptInput{
		ExerciseID: exs[0].ID, ChosenIndex: intPtr(1), Correct: false, TimeSpentSecs: 30, AnsweredAt: base,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := repo.RecordAttempt(ctx, AttemptInput{
		ExerciseID: exs[0].ID, Correct: false, TimeSpentSecs: -5, AnsweredAt: base.Add(time.Minute), SessionID: "s-1",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := repo.RecordAttempt(ctx, AttemptInput{
		ExerciseID: exs[1].ID, ChosenIndex: intPtr(0), Correct: true, AnsweredAt: base,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if first.ChosenIndex == nil || *first.ChosenIndex != 1 {
		t.Errorf("returned chosen = %v", first.ChosenIndex)
	}

	got, err := repo.ListAttempts(ctx, exs[0].ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("attempts = %d, want 2", len(got))
	}
	newest := got[0]
	if newest.SessionID != "s-1" || newest.ChosenIndex != nil || newest.TimeSpentSecs != 0 {
		t.Errorf("newest = %+v", newest)
	}
	if !got[1].AnsweredAt.Equal(base) {
		t.Errorf("answered at = %v, want %v", got[1].AnsweredAt, base)
	}

	all, err := repo.ListAttempts(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all attempts = %d, want 3", len(all))
	}
}

func TestSetLessonCompleted(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	_, _, lessons, _ := seedStudy(t, repo)
	ctx := context.Background()

	if err := repo.SetLessonCompleted(ctx, lessons[1].ID, true); err != nil {
		t.Fatalf("set completed: %v", err)
	}
	l, err := repo.GetLesson(ctx, lessons[1].ID)
	if err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if !l.Completed {
		t.Error("lesson should be completed")
	}
	if l.Summary != "**Parts** of a whole" {
		t.Errorf("summary = %q", l.Summary)
	}
}

func TestSettingsDefaultsAndPatch(t *testing.T) {
	repo := openTestStore(t).StudyRepo()
	ctx := context.Background()

	s, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if s.ExamDate != nil || s.DailyGoalMinutes != 60 || s.OnboardingDone {
		t.Errorf("defaults = %+v", s)
	}

	exam := time.Date(2026, 6, 15, 0, 0, 0, 0, time.Local)
	goal := 45
	done := true
	s, err = repo.UpdateSettings(ctx, SettingsPatch{ExamDate: &exam, DailyGoalMinutes: &goal, OnboardingDone: &done})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.ExamDate == nil || !s.ExamDate.Equal(exam) {
		t.Errorf("exam date = %v, want %v", s.ExamDate, exam)
	}
	if s.DailyGoalMinutes != 45 || !s.OnboardingDone {
		t.Errorf("settings = %+v", s)
	}

	s, err = repo.UpdateSettings(ctx, SettingsPatch{ClearExamDate: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.ExamDate != nil {
		t.Errorf("exam date = %v, want nil", s.ExamDate)
	}
	if s.DailyGoalMinutes != 45 {
		t.Errorf("goal changed by unrelated patch: %d", s.DailyGoalMinutes)
	}

	bad := -1
	if _, err := repo.UpdateSettings(ctx, SettingsPatch{DailyGoalMinutes: &bad}); err == nil {
		t.Error("expected error for negative goal")
	}
}
