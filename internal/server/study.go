package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/abhisek/studykit/internal/store"
)

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Dashboard.Refresh(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

func (s *Server) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.deps.Repo.ListSubjects(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, subjects)
}

type createSubjectRequest struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Position int    `json:"position"`
}

func (s *Server) createSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := decode(w, r, 0, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	subj, err := s.deps.Repo.CreateSubject(r.Context(), store.NewSubject(req))
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, subj)
}

func (s *Server) listLessons(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	lessons, err := s.deps.Repo.ListLessons(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, lessons)
}

type createLessonRequest struct {
	SubjectID      int64  `json:"subject_id"`
	Title          string `json:"title"`
	Position       int    `json:"position"`
	Summary        string `json:"summary"`
	KeyPoints      string `json:"key_points"`
	CommonMistakes string `json:"common_mistakes"`
}

func (s *Server) createLesson(w http.ResponseWriter, r *http.Request) {
	var req createLessonRequest
	if err := decode(w, r, 0, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.subjectExists(r, req.SubjectID); err != nil {
		fail(w, r, err)
		return
	}
	lesson, err := s.deps.Repo.CreateLesson(r.Context(), store.NewLesson(req))
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, lesson)
}

func (s *Server) subjectExists(r *http.Request, id int64) error {
	subjects, err := s.deps.Repo.ListSubjects(r.Context())
	if err != nil {
		return err
	}
	for _, subj := range subjects {
		if subj.ID == id {
			return nil
		}
	}
	return fmt.Errorf("subject %d: %w", id, store.ErrNotFound)
}

// lessonHTML holds the markdown fields of a lesson rendered to HTML.
type lessonHTML struct {
	Summary        string `json:"summary"`
	KeyPoints      string `json:"key_points"`
	CommonMistakes string `json:"common_mistakes"`
}

type lessonResponse struct {
	store.Lesson
	HTML *lessonHTML `json:"html,omitempty"`
}

func (s *Server) getLesson(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	lesson, err := s.deps.Repo.GetLesson(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}

	resp := lessonResponse{Lesson: lesson}
	if r.URL.Query().Get("format") == "html" {
		html, err := renderLesson(lesson)
		if err != nil {
			fail(w, r, err)
			return
		}
		resp.HTML = html
	}
	JSON(w, http.StatusOK, resp)
}

func renderLesson(l store.Lesson) (*lessonHTML, error) {
	var out lessonHTML
	for _, f := range []struct {
		src string
		dst *string
	}{
		{l.Summary, &out.Summary},
		{l.KeyPoints, &out.KeyPoints},
		{l.CommonMistakes, &out.CommonMistakes},
	} {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(f.src), &buf); err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		*f.dst = buf.String()
	}
	return &out, nil
}

func (s *Server) setLessonCompleted(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Completed *bool `json:"completed"`
	}
	if err := decode(w, r, 0, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Completed == nil {
		Error(w, http.StatusBadRequest, "completed is required")
		return
	}
	if err := s.deps.Repo.SetLessonCompleted(r.Context(), id, *req.Completed); err != nil {
		fail(w, r, err)
		return
	}
	lesson, err := s.deps.Repo.GetLesson(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, lesson)
}

func (s *Server) listExercises(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.deps.Repo.GetLesson(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	exercises, err := s.deps.Repo.ListExercises(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, exercises)
}

type createExerciseRequest struct {
	LessonID     int64    `json:"lesson_id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	Difficulty   int      `json:"difficulty"`
	Position     int      `json:"position"`
}

func (s *Server) createExercise(w http.ResponseWriter, r *http.Request) {
	var req createExerciseRequest
	if err := decode(w, r, 0, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.deps.Repo.GetLesson(r.Context(), req.LessonID); err != nil {
		fail(w, r, err)
		return
	}
	ex, err := s.deps.Repo.CreateExercise(r.Context(), store.NewExercise(req))
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, ex)
}

func (s *Server) listAttempts(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r, "exercise_id")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	attempts, err := s.deps.Repo.ListAttempts(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, attempts)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Repo.GetSettings(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, settings)
}

// settingsRequest distinguishes an absent exam_date from an explicit null.
type settingsRequest struct {
	ExamDate         json.RawMessage `json:"exam_date"`
	DailyGoalMinutes *int            `json:"daily_goal_minutes"`
	OnboardingDone   *bool           `json:"onboarding_done"`
}

func (req settingsRequest) patch() (store.SettingsPatch, error) {
	p := store.SettingsPatch{
		DailyGoalMinutes: req.DailyGoalMinutes,
		OnboardingDone:   req.OnboardingDone,
	}
	if p.DailyGoalMinutes != nil && *p.DailyGoalMinutes < 0 {
		return p, errors.New("daily_goal_minutes must not be negative")
	}
	switch raw := bytes.TrimSpace(req.ExamDate); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		p.ClearExamDate = true
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return p, fmt.Errorf("exam_date must be a %s string or null", store.DateLayout)
		}
		d, err := time.ParseInLocation(store.DateLayout, s, time.Local)
		if err != nil {
			return p, fmt.Errorf("exam_date %q is not a %s date", s, store.DateLayout)
		}
		p.ExamDate = &d
	}
	return p, nil
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decode(w, r, 0, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	patch, err := req.patch()
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := s.deps.Repo.UpdateSettings(r.Context(), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, settings)
}
