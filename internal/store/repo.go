package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidExercise is returned when an exercise's correct index is
	// outside its options.
	ErrInvalidExercise = errors.New("invalid exercise")
)

// Subject is a top-level study area.
type Subject struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Color    string `db:"color" json:"color"`
	Position int    `db:"position" json:"position"`
}

// Lesson is a unit of content within a subject.
type Lesson struct {
	ID             int64  `db:"id" json:"id"`
	SubjectID      int64  `db:"subject_id" json:"subject_id"`
	Title          string `db:"title" json:"title"`
	Position       int    `db:"position" json:"position"`
	Completed      bool   `db:"completed" json:"completed"`
	Summary        string `db:"summary" json:"summary"`
	KeyPoints      string `db:"key_points" json:"key_points"`
	CommonMistakes string `db:"common_mistakes" json:"common_mistakes"`
}

// Exercise is a multiple-choice question belonging to a lesson.
type Exercise struct {
	ID           int64   `db:"id" json:"id"`
	LessonID     int64   `db:"lesson_id" json:"lesson_id"`
	Question     string  `db:"question" json:"question"`
	Options      Options `db:"options" json:"options"`
	CorrectIndex int     `db:"correct_index" json:"correct_index"`
	Explanation  string  `db:"explanation" json:"explanation"`
	Difficulty   int     `db:"difficulty" json:"difficulty"`
	Position     int     `db:"position" json:"position"`
}

// IsCorrect reports whether choice is the exercise's correct option.
func (e Exercise) IsCorrect(choice int) bool {
	return choice == e.CorrectIndex
}

// Validate checks the correct index is within the options.
func (e Exercise) Validate() error {
	if e.Difficulty < 0 || e.Difficulty > MaxDifficulty {
		return fmt.Errorf("%w: difficulty %d outside 1-%d", ErrInvalidExercise, e.Difficulty, MaxDifficulty)
	}
	if len(e.Options) < 2 {
		return fmt.Errorf("%w: need at least 2 options, got %d", ErrInvalidExercise, len(e.Options))
	}
	if e.CorrectIndex < 0 || e.CorrectIndex >= len(e.Options) {
		return fmt.Errorf("%w: correct index %d out of range [0,%d)", ErrInvalidExercise, e.CorrectIndex, len(e.Options))
	}
	return nil
}

// MaxDifficulty is the hardest exercise level. Zero means unset and is
// stored as 1.
const MaxDifficulty = 3

// Options is the ordered answer list of an exercise, stored as JSON text.
type Options []string

// Value implements driver.Valuer.
func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *Options) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Options", src)
	}
	var opts []string
	if err := json.Unmarshal(raw, &opts); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	*o = opts
	return nil
}

// Attempt is an immutable log entry of one answer submission.
type Attempt struct {
	ID            int64     `json:"id"`
	ExerciseID    int64     `json:"exercise_id"`
	ChosenIndex   *int      `json:"chosen_index"`
	Correct       bool      `json:"correct"`
	TimeSpentSecs int       `json:"time_spent_secs"`
	AnsweredAt    time.Time `json:"answered_at"`
	SessionID     string    `json:"session_id,omitempty"`
}

// AttemptInput describes an attempt to append to the log.
type AttemptInput struct {
	ExerciseID    int64
	ChosenIndex   *int
	Correct       bool
	TimeSpentSecs int
	SessionID     string

	// AnsweredAt defaults to the current time when zero.
	AnsweredAt time.Time
}

// Settings is the singleton per-device settings record.
type Settings struct {
	// ExamDate is a calendar date at local midnight, nil when unset.
	ExamDate         *time.Time `json:"exam_date"`
	DailyGoalMinutes int        `json:"daily_goal_minutes"`
	OnboardingDone   bool       `json:"onboarding_done"`
}

// SettingsPatch is a partial settings update. Nil fields are left as is.
type SettingsPatch struct {
	ExamDate         *time.Time
	ClearExamDate    bool
	DailyGoalMinutes *int
	OnboardingDone   *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.ExamDate == nil && !p.ClearExamDate && p.DailyGoalMinutes == nil && p.OnboardingDone == nil
}

// NewSubject, NewLesson and NewExercise describe rows to create.
type NewSubject struct {
	Name     string
	Color    string
	Position int
}

type NewLesson struct {
	SubjectID      int64
	Title          string
	Position       int
	Summary        string
	KeyPoints      string
	CommonMistakes string
}

type NewExercise struct {
	LessonID     int64
	Question     string
	Options      []string
	CorrectIndex int
	Explanation  string
	Difficulty   int
	Position     int
}

// StudyRepo is the data store accessor for study content and the attempt log.
type StudyRepo interface {
	// ListSubjects returns all subjects in display order.
	ListSubjects(ctx context.Context) ([]Subject, error)

	// ListLessons returns lessons of one subject, or of all subjects when
	// subjectID is 0, in display order.
	ListLessons(ctx context.Context, subjectID int64) ([]Lesson, error)

	// GetLesson returns a single lesson or ErrNotFound.
	GetLesson(ctx context.Context, id int64) (Lesson, error)

	// ListExercises returns exercises of one lesson, or all when lessonID is 0.
	ListExercises(ctx context.Context, lessonID int64) ([]Exercise, error)

	// RandomExercises returns up to limit exercises in random order, from one
	// subject or from all subjects when subjectID is 0.
	RandomExercises(ctx context.Context, subjectID int64, limit int) ([]Exercise, error)

	// ListAttempts returns attempts for one exercise, or all when exerciseID
	// is 0, newest first.
	ListAttempts(ctx context.Context, exerciseID int64) ([]Attempt, error)

	// RecordAttempt appends an attempt to the log.
	RecordAttempt(ctx context.Context, in AttemptInput) (Attempt, error)

	// SetLessonCompleted sets a lesson's completion flag.
	SetLessonCompleted(ctx context.Context, lessonID int64, completed bool) error

	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error)

	CreateSubject(ctx context.Context, in NewSubject) (Subject, error)
	CreateLesson(ctx context.Context, in NewLesson) (Lesson, error)
	CreateExercise(ctx context.Context, in NewExercise) (Exercise, error)
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match when set
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMPurposeUsage aggregates token usage for one purpose.
type LLMPurposeUsage struct {
	Purpose      string `db:"purpose"`
	Calls        int    `db:"calls"`
	InputTokens  int    `db:"input_tokens"`
	OutputTokens int    `db:"output_tokens"`
	AvgLatencyMs int    `db:"-"`
}

// LLMModelUsage aggregates token usage for one model.
type LLMModelUsage struct {
	Model        string `db:"model"`
	Calls        int    `db:"calls"`
	InputTokens  int    `db:"input_tokens"`
	OutputTokens int    `db:"output_tokens"`
}

// EventRepo provides append and query access to the LLM request log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMPurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}
