package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/studykit/internal/session"
)

type startSessionRequest struct {
	Mode      session.Mode `json:"mode"`
	LessonID  int64        `json:"lesson_id"`
	SubjectID int64        `json:"subject_id"`
	Size      int          `json:"size"`
}

type sessionResponse struct {
	session.State
	Result *session.Result `json:"result,omitempty"`
}

func view(sess *session.Session) sessionResponse {
	resp := sessionResponse{State: sess.State()}
	if resp.Phase == session.PhaseComplete {
		res := sess.Result()
		resp.Result = &res
	}
	return resp
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(w, r, 0, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		plan *session.Plan
		err  error
	)
	switch req.Mode {
	case session.ModeQuiz:
		if req.LessonID <= 0 {
			Error(w, http.StatusBadRequest, "lesson_id is required for a quiz")
			return
		}
		if _, err := s.deps.Repo.GetLesson(r.Context(), req.LessonID); err != nil {
			fail(w, r, err)
			return
		}
		plan, err = s.deps.Planner.QuizPlan(r.Context(), req.LessonID)
	case session.ModeExam:
		size := req.Size
		if size <= 0 {
			size = s.cfg.ExamSize
		}
		plan, err = s.deps.Planner.ExamPlan(r.Context(), req.SubjectID, size, s.cfg.ExamDuration)
	default:
		Error(w, http.StatusBadRequest, `mode must be "quiz" or "exam"`)
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	sess, err := s.deps.Sessions.Start(plan)
	if err != nil {
		fail(w, r, err)
		return
	}
	LoggerFrom(r.Context()).WithFields(logrus.Fields{
		"session":   sess.ID(),
		"mode":      plan.Mode,
		"exercises": len(plan.Exercises),
	}).Info("session started")
	JSON(w, http.StatusCreated, view(sess))
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, view(sess))
}

func (s *Server) selectOption(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Option *int `json:"option"`
	}
	if err := decode(w, r, 0, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Option == nil {
		Error(w, http.StatusBadRequest, "option is required")
		return
	}
	if err := sess.Select(*req.Option); err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view(sess))
}

func (s *Server) commitAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if _, err := sess.Commit(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view(sess))
}

func (s *Server) nextExercise(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if err := sess.Next(); err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view(sess))
}

func (s *Server) finishSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if _, err := sess.Finish(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view(sess))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Remove(chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// limiterIdle is how long a client's rate limiter is kept after its last
// request.
const limiterIdle = 10 * time.Minute

// StartSweeper schedules a job that drops abandoned sessions and idle rate
// limiters every minute. The returned function stops it.
func (s *Server) StartSweeper() (func(), error) {
	sched := gocron.NewScheduler(time.UTC)
	_, err := sched.Every(1).Minute().Do(s.sweep)
	if err != nil {
		return nil, err
	}
	sched.StartAsync()
	return sched.Stop, nil
}

func (s *Server) sweep() {
	if n := s.deps.Sessions.Sweep(s.cfg.SessionMaxAge); n > 0 {
		s.log.WithField("removed", n).Info("swept abandoned sessions")
	}
	if n := s.limiter.Prune(limiterIdle); n > 0 {
		s.log.WithField("removed", n).Debug("pruned idle rate limiters")
	}
}
