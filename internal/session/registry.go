package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Registry holds live sessions keyed by id.
type Registry struct {
	rec Recorder
	log logrus.FieldLogger
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose sessions record through rec.
func NewRegistry(rec Recorder, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		rec:      rec,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Start creates and starts a session for plan.
func (r *Registry) Start(plan *Plan) (*Session, error) {
	id := uuid.New().String()
	s := New(id, plan, r.rec, WithLogger(r.log), WithClock(r.now))
	if err := s.Start(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove closes and drops a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxAge and returns how many
// were removed. A complete session is kept until it has been idle that long
// so its result stays readable; one still running is finished first.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.IdleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		if _, err := s.Finish(context.Background()); err != nil {
			r.log.WithError(err).WithField("session", s.ID()).Warn("finish swept session")
		}
		s.Close()
	}
	if len(stale) > 0 {
		r.log.WithField("removed", len(stale)).Debug("swept idle sessions")
	}
	return len(stale)
}
