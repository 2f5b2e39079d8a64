// Package session runs quizzes and timed mock exams as a small state
// machine: Loading, Presenting(i), Reviewing(i), Complete. Every committed
// answer is appended to the attempt log exactly once.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/studykit/internal/store"
)

// Recorder appends attempts to the log.
type Recorder interface {
	RecordAttempt(ctx context.Context, in store.AttemptInput) (store.Attempt, error)
}

// Session is one quiz or mock exam. All methods are safe for concurrent use.
type Session struct {
	id   string
	plan *Plan
	rec  Recorder
	log  logrus.FieldLogger
	now  func() time.Time

	mu           sync.Mutex
	phase        Phase
	index        int
	selected     *int
	shownAt      time.Time
	items        []Item
	startedAt    time.Time
	deadline     time.Time
	finishedAt   time.Time
	lastActivity time.Time
	expired      bool
	timer        *time.Timer
	done         chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock overrides the wall clock used for time spent and deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session in the Loading phase.
func New(id string, plan *Plan, rec Recorder, opts ...Option) *Session {
	s := &Session{
		id:    id,
		plan:  plan,
		rec:   rec,
		log:   logrus.StandardLogger(),
		now:   time.Now,
		phase: PhaseLoading,
		items: make([]Item, len(plan.Exercises)),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	for i, ex := range plan.Exercises {
		s.items[i].ExerciseID = ex.ID
	}
	s.log = s.log.WithFields(logrus.Fields{"session": id, "mode": plan.Mode})
	s.lastActivity = s.now()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.plan.Mode }

// Done is closed when the session reaches Complete.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start presents the first exercise and, for exams, arms the countdown.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLoading {
		return fmt.Errorf("start: session already in phase %s", s.phase)
	}
	now := s.now()
	s.startedAt = now
	s.lastActivity = now

	if len(s.plan.Exercises) == 0 {
		s.completeLocked()
		return nil
	}

	s.phase = PhasePresenting
	s.index = 0
	s.shownAt = now

	if s.plan.Mode == ModeExam && s.plan.Duration > 0 {
		s.deadline = now.Add(s.plan.Duration)
		s.timer = time.AfterFunc(s.plan.Duration, func() {
			if _, err := s.Expire(context.Background()); err != nil {
				s.log.WithError(err).Warn("pending answer lost at deadline")
			}
		})
	}
	s.log.WithField("exercises", len(s.plan.Exercises)).Debug("session started")
	return nil
}

// Select chooses an option for the current exercise. It may be called
// repeatedly while presenting.
func (s *Session) Select(option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expireIfDueLocked(context.Background()) || s.phase == PhaseComplete {
		return ErrComplete
	}
	if s.phase != PhasePresenting {
		return ErrNotPresenting
	}
	ex := s.plan.Exercises[s.index]
	if option < 0 || option >= len(ex.Options) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidOption, option, len(ex.Options))
	}
	s.selected = &option
	s.lastActivity = s.now()
	return nil
}

// Commit freezes the selection, grades it and records one attempt. A second
// commit for the same exercise returns ErrAlreadyCommitted.
func (s *Session) Commit(ctx context.Context) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expireIfDueLocked(ctx) {
		return Item{}, ErrComplete
	}
	switch s.phase {
	case PhaseComplete:
		return Item{}, ErrComplete
	case PhaseReviewing:
		return Item{}, ErrAlreadyCommitted
	case PhasePresenting:
	default:
		return Item{}, ErrNotPresenting
	}
	if s.selected == nil {
		return Item{}, ErrNoSelection
	}

	if err := s.recordLocked(ctx); err != nil {
		return Item{}, err
	}
	s.phase = PhaseReviewing
	s.lastActivity = s.now()
	return s.items[s.index], nil
}

// Next moves from Reviewing to the next exercise, or to Complete after the
// last one.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expireIfDueLocked(context.Background()) || s.phase == PhaseComplete {
		return ErrComplete
	}
	if s.phase != PhaseReviewing {
		return ErrNotReviewing
	}
	s.lastActivity = s.now()
	if s.index+1 >= len(s.plan.Exercises) {
		s.completeLocked()
		return nil
	}
	s.index++
	s.selected = nil
	s.shownAt = s.now()
	s.phase = PhasePresenting
	return nil
}

// Finish ends the session from any phase. In an exam, a selected but
// uncommitted answer is recorded first. Finishing a complete session is a
// no-op that returns the existing result.
func (s *Session) Finish(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishLocked(ctx, false)
}

// Expire is Finish triggered by the countdown. The session always reaches
// Complete; if the pending answer could not be recorded the result is
// returned together with that error.
func (s *Session) Expire(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishLocked(ctx, true)
}

func (s *Session) finishLocked(ctx context.Context, expired bool) (Result, error) {
	if s.phase == PhaseComplete {
		return s.resultLocked(), nil
	}

	var recErr error
	if s.plan.Mode == ModeExam && s.phase == PhasePresenting && s.selected != nil {
		recErr = s.recordLocked(ctx)
		if recErr != nil && !expired {
			return Result{}, recErr
		}
	}
	s.expired = expired
	s.completeLocked()

	res := s.resultLocked()
	s.log.WithFields(logrus.Fields{
		"answered": res.Answered,
		"correct":  res.Correct,
		"expired":  expired,
	}).Info("session finished")
	return res, recErr
}

// expireIfDueLocked completes an exam whose deadline has passed but whose
// timer has not run yet.
func (s *Session) expireIfDueLocked(ctx context.Context) bool {
	if s.phase == PhaseComplete || s.deadline.IsZero() || s.now().Before(s.deadline) {
		return false
	}
	if _, err := s.finishLocked(ctx, true); err != nil {
		s.log.WithError(err).Warn("pending answer lost at deadline")
	}
	return true
}

// Close stops the countdown without finishing the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// Result returns the current result. Before completion it reflects the
// answers recorded so far.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultLocked()
}

// State returns a snapshot for display.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:        s.id,
		Mode:      s.plan.Mode,
		Phase:     s.phase,
		Index:     s.index,
		Total:     len(s.plan.Exercises),
		StartedAt: s.startedAt,
	}
	if !s.deadline.IsZero() {
		d := s.deadline
		st.Deadline = &d
	}
	if s.selected != nil {
		v := *s.selected
		st.Selected = &v
	}
	if s.phase == PhasePresenting || s.phase == PhaseReviewing {
		ex := s.plan.Exercises[s.index]
		st.Exercise = &Question{ID: ex.ID, Question: ex.Question, Options: ex.Options}
		if s.phase == PhaseReviewing {
			st.Feedback = &Feedback{
				Correct:      s.items[s.index].Correct,
				CorrectIndex: ex.CorrectIndex,
				Explanation:  ex.Explanation,
			}
		}
	}
	return st
}

// IdleSince returns the time of the last state change.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) recordLocked(ctx context.Context) error {
	ex := s.plan.Exercises[s.index]
	choice := *s.selected
	correct := ex.IsCorrect(choice)
	secs := int(s.now().Sub(s.shownAt).Seconds())
	if secs < 0 {
		secs = 0
	}

	_, err := s.rec.RecordAttempt(ctx, store.AttemptInput{
		ExerciseID:    ex.ID,
		ChosenIndex:   &choice,
		Correct:       correct,
		TimeSpentSecs: secs,
		SessionID:     s.id,
		AnsweredAt:    s.now(),
	})
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	s.items[s.index] = Item{
		ExerciseID:    ex.ID,
		Chosen:        &choice,
		Correct:       correct,
		Answered:      true,
		TimeSpentSecs: secs,
	}
	return nil
}

func (s *Session) completeLocked() {
	s.phase = PhaseComplete
	s.finishedAt = s.now()
	s.lastActivity = s.finishedAt
	s.selected = nil
	s.stopTimerLocked()
	close(s.done)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) resultLocked() Result {
	var d time.Duration
	switch {
	case s.startedAt.IsZero():
	case s.finishedAt.IsZero():
		d = s.now().Sub(s.startedAt)
	default:
		d = s.finishedAt.Sub(s.startedAt)
	}
	return buildResult(s.id, s.plan.Mode, s.items, s.expired, d)
}
