package progress

import (
	"math"
	"time"

	"github.com/abhisek/studykit/internal/store"
)

// Summary is the "today" card of the dashboard.
type Summary struct {
	MinutesToday     int     `json:"minutes_today"`
	DailyGoalMinutes int     `json:"daily_goal_minutes"`
	GoalPercent      float64 `json:"goal_percent"`
	DaysUntilExam    int     `json:"days_until_exam"`
	HasExamDate      bool    `json:"has_exam_date"`
	StreakDays       int     `json:"streak_days"`
}

// Summarize computes the summary at now. Day boundaries are taken in
// now.Location().
func Summarize(attempts []store.Attempt, settings store.Settings, now time.Time) Summary {
	s := Summary{
		MinutesToday:     MinutesToday(attempts, now),
		DailyGoalMinutes: settings.DailyGoalMinutes,
		StreakDays:       StreakDays(attempts, now),
	}
	if settings.DailyGoalMinutes > 0 {
		s.GoalPercent = math.Min(100, float64(s.MinutesToday)/float64(settings.DailyGoalMinutes)*100)
	}
	if settings.ExamDate != nil {
		s.HasExamDate = true
		s.DaysUntilExam = DaysUntil(*settings.ExamDate, now)
	}
	return s
}

// MinutesToday sums time spent on attempts answered in
// [midnight today, midnight tomorrow), rounded to the nearest minute.
func MinutesToday(attempts []store.Attempt, now time.Time) int {
	start := startOfDay(now)
	end := start.AddDate(0, 0, 1)

	var secs int
	for _, a := range attempts {
		at := a.AnsweredAt
		if at.Before(start) || !at.Before(end) {
			continue
		}
		secs += a.TimeSpentSecs
	}
	return int(math.Round(float64(secs) / 60))
}

// DaysUntil returns the whole calendar days from now's date to target's
// date, never negative.
func DaysUntil(target, now time.Time) int {
	ty, tm, td := target.Date()
	ny, nm, nd := now.Date()
	// Both dates at UTC midnight so DST transitions cannot shorten a day.
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	days := int(t.Sub(n).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// StreakDays counts consecutive local days with at least one attempt,
// ending today, or yesterday when nothing has been answered yet today.
func StreakDays(attempts []store.Attempt, now time.Time) int {
	loc := now.Location()
	days := make(map[dayKey]bool, len(attempts))
	for _, a := range attempts {
		days[keyOf(a.AnsweredAt.In(loc))] = true
	}

	day := startOfDay(now)
	if !days[keyOf(day)] {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for days[keyOf(day)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

type dayKey struct {
	y int
	m time.Month
	d int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
