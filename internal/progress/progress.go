// Package progress computes per-subject completion and the daily study
// summary shown on the dashboard. Everything here is a pure function of its
// inputs; callers fetch the data and sample the clock.
package progress

import "github.com/abhisek/studykit/internal/store"

// SubjectProgress is the completion state of one subject.
type SubjectProgress struct {
	SubjectID        int64   `json:"subject_id"`
	SubjectName      string  `json:"subject_name"`
	Color            string  `json:"color"`
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	ProgressPercent  float64 `json:"progress_percent"`
}

// Totals is the completion state across all subjects.
type Totals struct {
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	ProgressPercent  float64 `json:"progress_percent"`
}

// Aggregate returns one SubjectProgress per subject, in the order given.
// Lessons whose subject is not in subjects are ignored.
func Aggregate(subjects []store.Subject, lessons []store.Lesson) []SubjectProgress {
	out := make([]SubjectProgress, len(subjects))
	idx := make(map[int64]int, len(subjects))
	for i, s := range subjects {
		out[i] = SubjectProgress{
			SubjectID:   s.ID,
			SubjectName: s.Name,
			Color:       s.Color,
		}
		idx[s.ID] = i
	}

	for _, l := range lessons {
		i, ok := idx[l.SubjectID]
		if !ok {
			continue
		}
		out[i].TotalLessons++
		if l.Completed {
			out[i].CompletedLessons++
		}
	}

	for i := range out {
		out[i].ProgressPercent = percent(out[i].CompletedLessons, out[i].TotalLessons)
	}
	return out
}

// Overall sums the per-subject counts.
func Overall(subjects []SubjectProgress) Totals {
	var t Totals
	for _, s := range subjects {
		t.CompletedLessons += s.CompletedLessons
		t.TotalLessons += s.TotalLessons
	}
	t.ProgressPercent = percent(t.CompletedLessons, t.TotalLessons)
	return t
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
