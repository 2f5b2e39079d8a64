// Package review ranks lessons by how weak the learner's latest answers are
// and picks the ones worth revisiting next.
package review

import (
	"sort"
	"time"

	"github.com/abhisek/studykit/internal/store"
)

// DefaultLimit is the number of recommendations shown on the dashboard.
const DefaultLimit = 3

// Input is a read-only snapshot of the study data.
type Input struct {
	Subjects  []store.Subject
	Lessons   []store.Lesson
	Exercises []store.Exercise
	Attempts  []store.Attempt
}

// Options tunes Recommend.
type Options struct {
	// IncludeMastered keeps lessons whose score is 0.
	IncludeMastered bool
}

// Recommendation is a lesson suggested for review.
type Recommendation struct {
	LessonID     int64  `json:"lesson_id"`
	LessonTitle  string `json:"lesson_title"`
	SubjectID    int64  `json:"subject_id"`
	SubjectName  string `json:"subject_name"`
	SubjectColor string `json:"subject_color"`

	// Score is the fraction of the lesson's exercises that are unanswered
	// or whose latest attempt is wrong.
	Score     float64 `json:"score"`
	Exercises int     `json:"exercises"`
	Weak      int     `json:"weak"`

	LastAnsweredAt *time.Time `json:"last_answered_at,omitempty"`
}

// Recommend returns up to n lessons ordered by score, highest first.
func Recommend(in Input, n int) []Recommendation {
	return RecommendWith(in, n, Options{})
}

// RecommendWith is Recommend with options.
func RecommendWith(in Input, n int, opts Options) []Recommendation {
	if n <= 0 {
		return []Recommendation{}
	}

	latest := LatestAttempts(in.Attempts)

	byLesson := make(map[int64][]store.Exercise)
	for _, ex := range in.Exercises {
		byLesson[ex.LessonID] = append(byLesson[ex.LessonID], ex)
	}

	subjectIdx := make(map[int64]int, len(in.Subjects))
	for i, s := range in.Subjects {
		subjectIdx[s.ID] = i
	}

	type ranked struct {
		rec        Recommendation
		subjectPos int
		lessonPos  int
	}
	var candidates []ranked

	for li, l := range in.Lessons {
		si, ok := subjectIdx[l.SubjectID]
		if !ok {
			continue
		}
		exs := byLesson[l.ID]
		if len(exs) == 0 {
			continue
		}

		weak := 0
		var last *time.Time
		for _, ex := range exs {
			a, ok := latest[ex.ID]
			if !ok || !a.Correct {
				weak++
			}
			if ok && (last == nil || a.AnsweredAt.After(*last)) {
				at := a.AnsweredAt
				last = &at
			}
		}

		score := float64(weak) / float64(len(exs))
		if score == 0 && !opts.IncludeMastered {
			continue
		}

		s := in.Subjects[si]
		candidates = append(candidates, ranked{
			rec: Recommendation{
				LessonID:       l.ID,
				LessonTitle:    l.Title,
				SubjectID:      s.ID,
				SubjectName:    s.Name,
				SubjectColor:   s.Color,
				Score:          score,
				Exercises:      len(exs),
				Weak:           weak,
				LastAnsweredAt: last,
			},
			subjectPos: si,
			lessonPos:  li,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.rec.Score != b.rec.Score {
			return a.rec.Score > b.rec.Score
		}
		if a.subjectPos != b.subjectPos {
			return a.subjectPos < b.subjectPos
		}
		return a.lessonPos < b.lessonPos
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]Recommendation, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out
}

// WeaknessScore returns the weak fraction of exercises given the latest
// attempt per exercise. It is 0 for an empty exercise list.
func WeaknessScore(exercises []store.Exercise, latest map[int64]store.Attempt) float64 {
	if len(exercises) == 0 {
		return 0
	}
	weak := 0
	for _, ex := range exercises {
		if a, ok := latest[ex.ID]; !ok || !a.Correct {
			weak++
		}
	}
	return float64(weak) / float64(len(exercises))
}

// LatestAttempts returns the most recent attempt per exercise id. Ties on
// AnsweredAt go to the higher attempt id; input order does not matter.
func LatestAttempts(attempts []store.Attempt) map[int64]store.Attempt {
	latest := make(map[int64]store.Attempt)
	for _, a := range attempts {
		cur, ok := latest[a.ExerciseID]
		if !ok || newer(a, cur) {
			latest[a.ExerciseID] = a
		}
	}
	return latest
}

func newer(a, b store.Attempt) bool {
	if a.AnsweredAt.Equal(b.AnsweredAt) {
		return a.ID > b.ID
	}
	return a.AnsweredAt.After(b.AnsweredAt)
}
