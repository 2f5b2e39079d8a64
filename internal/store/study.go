package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

// settingsID is the primary key of the singleton settings row.
const settingsID = 1

// studyRepo implements StudyRepo on top of the store's SQL builder.
type studyRepo struct {
	s *Store
}

func lessonColumns(t *entsql.SelectTable) []string {
	return []string{
		t.C("id"), t.C("subject_id"), t.C("title"), t.C("position"), t.C("completed"),
		t.C("summary"), t.C("key_points"), t.C("common_mistakes"),
	}
}

func exerciseColumns(t *entsql.SelectTable) []string {
	return []string{
		t.C("id"), t.C("lesson_id"), t.C("question"), t.C("options"), t.C("correct_index"),
		t.C("explanation"), t.C("difficulty"), t.C("position"),
	}
}

func (r *studyRepo) ListSubjects(ctx context.Context) ([]Subject, error) {
	b := r.s.builder()
	query, args := b.Select("id", "name", "color", "position").
		From(b.Table("subjects")).
		OrderBy("position", "id").
		Query()

	var out []Subject
	if err := r.s.x.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return out, nil
}

func (r *studyRepo) ListLessons(ctx context.Context, subjectID int64) ([]Lesson, error) {
	b := r.s.builder()
	l := b.Table("lessons").As("l")
	sj := b.Table("subjects").As("s")

	sel := b.Select(lessonColumns(l)...).
		From(l).
		Join(sj).On(l.C("subject_id"), sj.C("id"))
	if subjectID != 0 {
		sel.Where(entsql.EQ(l.C("subject_id"), subjectID))
	}
	query, args := sel.OrderBy(sj.C("position"), sj.C("id"), l.C("position"), l.C("id")).Query()

	var out []Lesson
	if err := r.s.x.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return out, nil
}

func (r *studyRepo) GetLesson(ctx context.Context, id int64) (Lesson, error) {
	b := r.s.builder()
	l := b.Table("lessons")
	query, args := b.Select(lessonColumns(l)...).
		From(l).
		Where(entsql.EQ(l.C("id"), id)).
		Query()

	var out Lesson
	if err := r.s.x.GetContext(ctx, &out, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lesson{}, fmt.Errorf("lesson %d: %w", id, ErrNotFound)
		}
		return Lesson{}, fmt.Errorf("get lesson: %w", err)
	}
	return out, nil
}

func (r *studyRepo) ListExercises(ctx context.Context, lessonID int64) ([]Exercise, error) {
	b := r.s.builder()
	e := b.Table("exercises")
	sel := b.Select(exerciseColumns(e)...).From(e)
	if lessonID != 0 {
		sel.Where(entsql.EQ(e.C("lesson_id"), lessonID))
	}
	query, args := sel.OrderBy(e.C("lesson_id"), e.C("position"), e.C("id")).Query()

	var out []Exercise
	if err := r.s.x.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	return out, nil
}

func (r *studyRepo) RandomExercises(ctx context.Context, subjectID int64, limit int) ([]Exercise, error) {
	b := r.s.builder()
	e := b.Table("exercises").As("e")
	sel := b.Select(exerciseColumns(e)...).From(e)
	if subjectID != 0 {
		l := b.Table("lessons").As("l")
		sel.Join(l).On(e.C("lesson_id"), l.C("id")).
			Where(entsql.EQ(l.C("subject_id"), subjectID))
	}
	sel.OrderBy("RANDOM()")
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	var out []Exercise
	if err := r.s.x.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("random exercises: %w", err)
	}
	return out, nil
}

// attemptRow is the storage shape of an Attempt.
type attemptRow struct {
	ID            int64         `db:"id"`
	ExerciseID    int64         `db:"exercise_id"`
	ChosenIndex   sql.NullInt64 `db:"chosen_index"`
	Correct       bool          `db:"correct"`
	TimeSpentSecs int           `db:"time_spent_secs"`
	AnsweredAt    int64         `db:"answered_at"`
	SessionID     string        `db:"session_id"`
}

func (row attemptRow) attempt() Attempt {
	a := Attempt{
		ID:            row.ID,
		ExerciseID:    row.ExerciseID,
		Correct:       row.Correct,
		TimeSpentSecs: row.TimeSpentSecs,
		AnsweredAt:    time.UnixMilli(row.AnsweredAt),
		SessionID:     row.SessionID,
	}
	if row.ChosenIndex.Valid {
		idx := int(row.ChosenIndex.Int64)
		a.ChosenIndex = &idx
	}
	return a
}

func (r *studyRepo) ListAttempts(ctx context.Context, exerciseID int64) ([]Attempt, error) {
	b := r.s.builder()
	sel := b.Select("id", "exercise_id", "chosen_index", "correct", "time_spent_secs", "answered_at", "session_id").
		From(b.Table("attempts"))
	if exerciseID != 0 {
		sel.Where(entsql.EQ("exercise_id", exerciseID))
	}
	query, args := sel.OrderBy(entsql.Desc("answered_at"), entsql.Desc("id")).Query()

	var rows []attemptRow
	if err := r.s.x.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]Attempt, len(rows))
	for i, row := range rows {
		out[i] = row.attempt()
	}
	return out, nil
}

func (r *studyRepo) RecordAttempt(ctx context.Context, in AttemptInput) (Attempt, error) {
	at := in.AnsweredAt
	if at.IsZero() {
		at = time.Now()
	}
	secs := in.TimeSpentSecs
	if secs < 0 {
		secs = 0
	}
	var chosen any
	if in.ChosenIndex != nil {
		chosen = *in.ChosenIndex
	}

	ib := r.s.builder().Insert("attempts").
		Columns("exercise_id", "chosen_index", "correct", "time_spent_secs", "answered_at", "session_id").
		Values(in.ExerciseID, chosen, in.Correct, secs, at.UnixMilli(), in.SessionID)
	id, err := r.s.insert(ctx, ib)
	if err != nil {
		return Attempt{}, fmt.Errorf("record attempt: %w", err)
	}

	return attemptRow{
		ID:            id,
		ExerciseID:    in.ExerciseID,
		ChosenIndex:   nullInt(in.ChosenIndex),
		Correct:       in.Correct,
		TimeSpentSecs: secs,
		AnsweredAt:    at.UnixMilli(),
		SessionID:     in.SessionID,
	}.attempt(), nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func (r *studyRepo) SetLessonCompleted(ctx context.Context, lessonID int64, completed bool) error {
	n, err := r.s.exec(ctx, r.s.builder().Update("lessons").
		Set("completed", completed).
		Where(entsql.EQ("id", lessonID)))
	if err != nil {
		return fmt.Errorf("set lesson completed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("lesson %d: %w", lessonID, ErrNotFound)
	}
	return nil
}

// settingsRow is the storage shape of Settings.
type settingsRow struct {
	ExamDate         sql.NullString `db:"exam_date"`
	DailyGoalMinutes int            `db:"daily_goal_minutes"`
	OnboardingDone   bool           `db:"onboarding_done"`
}

func (r *studyRepo) GetSettings(ctx context.Context) (Settings, error) {
	b := r.s.builder()
	query, args := b.Select("exam_date", "daily_goal_minutes", "onboarding_done").
		From(b.Table("settings")).
		Where(entsql.EQ("id", settingsID)).
		Query()

	var row settingsRow
	if err := r.s.x.GetContext(ctx, &row, query, args...); err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	out := Settings{
		DailyGoalMinutes: row.DailyGoalMinutes,
		OnboardingDone:   row.OnboardingDone,
	}
	if row.ExamDate.Valid && row.ExamDate.String != "" {
		d, err := time.ParseInLocation(DateLayout, row.ExamDate.String, time.Local)
		if err != nil {
			return Settings{}, fmt.Errorf("parse exam date %q: %w", row.ExamDate.String, err)
		}
		out.ExamDate = &d
	}
	return out, nil
}

func (r *studyRepo) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	if patch.IsEmpty() {
		return r.GetSettings(ctx)
	}

	ub := r.s.builder().Update("settings").Where(entsql.EQ("id", settingsID))
	switch {
	case patch.ClearExamDate:
		ub.SetNull("exam_date")
	case patch.ExamDate != nil:
		ub.Set("exam_date", patch.ExamDate.Format(DateLayout))
	}
	if patch.DailyGoalMinutes != nil {
		if *patch.DailyGoalMinutes < 0 {
			return Settings{}, fmt.Errorf("daily goal must be non-negative, got %d", *patch.DailyGoalMinutes)
		}
		ub.Set("daily_goal_minutes", *patch.DailyGoalMinutes)
	}
	if patch.OnboardingDone != nil {
		ub.Set("onboarding_done", *patch.OnboardingDone)
	}

	if _, err := r.s.exec(ctx, ub); err != nil {
		return Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return r.GetSettings(ctx)
}

func (r *studyRepo) CreateSubject(ctx context.Context, in NewSubject) (Subject, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Subject{}, errors.New("subject name is required")
	}
	id, err := r.s.insert(ctx, r.s.builder().Insert("subjects").
		Columns("name", "color", "position").
		Values(name, in.Color, in.Position))
	if err != nil {
		return Subject{}, fmt.Errorf("create subject: %w", err)
	}
	return Subject{ID: id, Name: name, Color: in.Color, Position: in.Position}, nil
}

func (r *studyRepo) CreateLesson(ctx context.Context, in NewLesson) (Lesson, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Lesson{}, errors.New("lesson title is required")
	}
	id, err := r.s.insert(ctx, r.s.builder().Insert("lessons").
		Columns("subject_id", "title", "position", "summary", "key_points", "common_mistakes").
		Values(in.SubjectID, title, in.Position, in.Summary, in.KeyPoints, in.CommonMistakes))
	if err != nil {
		return Lesson{}, fmt.Errorf("create lesson: %w", err)
	}
	return Lesson{
		ID:             id,
		SubjectID:      in.SubjectID,
		Title:          title,
		Position:       in.Position,
		Summary:        in.Summary,
		KeyPoints:      in.KeyPoints,
		CommonMistakes: in.CommonMistakes,
	}, nil
}

func (r *studyRepo) CreateExercise(ctx context.Context, in NewExercise) (Exercise, error) {
	ex := Exercise{
		LessonID:     in.LessonID,
		Question:     strings.TrimSpace(in.Question),
		Options:      Options(in.Options),
		CorrectIndex: in.CorrectIndex,
		Explanation:  in.Explanation,
		Difficulty:   in.Difficulty,
		Position:     in.Position,
	}
	if ex.Question == "" {
		return Exercise{}, fmt.Errorf("%w: question is required", ErrInvalidExercise)
	}
	if err := ex.Validate(); err != nil {
		return Exercise{}, err
	}
	if ex.Difficulty == 0 {
		ex.Difficulty = 1
	}

	id, err := r.s.insert(ctx, r.s.builder().Insert("exercises").
		Columns("lesson_id", "question", "options", "correct_index", "explanation", "difficulty", "position").
		Values(ex.LessonID, ex.Question, ex.Options, ex.CorrectIndex, ex.Explanation, ex.Difficulty, ex.Position))
	if err != nil {
		return Exercise{}, fmt.Errorf("create exercise: %w", err)
	}
	ex.ID = id
	return ex, nil
}
