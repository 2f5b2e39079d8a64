package session

import (
	"time"

	"github.com/abhisek/studykit/internal/store"
)

// Mode is the kind of session.
type Mode string

const (
	ModeQuiz Mode = "quiz" // a lesson's exercises, untimed
	ModeExam Mode = "exam" // random exercises under a countdown
)

// Plan is the ordered list of exercises for a session.
type Plan struct {
	Mode      Mode
	SubjectID int64
	LessonID  int64
	Exercises []store.Exercise

	// Duration is the exam countdown; zero for quizzes.
	Duration time.Duration
}

// DefaultExamSize is the number of exercises drawn for a mock exam.
const DefaultExamSize = 30

// DefaultExamDuration is the standard mock exam length.
const DefaultExamDuration = 30 * time.Minute
