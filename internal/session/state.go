package session

import (
	"errors"
	"time"
)

// Phase represents the current phase of the session.
type Phase int

const (
	PhaseLoading    Phase = iota // Built, not started
	PhasePresenting              // Showing an exercise, selection open
	PhaseReviewing               // Answer committed, showing feedback
	PhaseComplete                // Finished; terminal
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhasePresenting:
		return "presenting"
	case PhaseReviewing:
		return "reviewing"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

var (
	ErrInvalidOption    = errors.New("option out of range")
	ErrNotPresenting    = errors.New("session is not presenting an exercise")
	ErrNotReviewing     = errors.New("session is not reviewing an answer")
	ErrNoSelection      = errors.New("no option selected")
	ErrAlreadyCommitted = errors.New("answer already committed")
	ErrComplete         = errors.New("session is complete")
)

// Item is the outcome of one exercise in the session.
type Item struct {
	ExerciseID int64 `json:"exercise_id"`
	Chosen     *int  `json:"chosen"`
	Correct    bool  `json:"correct"`

	// Answered is true once an attempt was written for this exercise.
	Answered      bool `json:"answered"`
	TimeSpentSecs int  `json:"time_spent_secs"`
}

// State is a point-in-time view of a session.
type State struct {
	ID       string    `json:"id"`
	Mode     Mode      `json:"mode"`
	Phase    Phase     `json:"phase"`
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Selected *int      `json:"selected"`
	Exercise *Question `json:"exercise,omitempty"`

	// Feedback is set while reviewing.
	Feedback *Feedback `json:"feedback,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

// Question is the learner-facing part of an exercise.
type Question struct {
	ID       int64    `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Feedback reveals the correct answer after a commit.
type Feedback struct {
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correct_index"`
	Explanation  string `json:"explanation"`
}
