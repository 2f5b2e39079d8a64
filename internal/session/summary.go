package session

import "time"

// Result holds the data displayed on the results screen.
type Result struct {
	SessionID    string        `json:"session_id"`
	Mode         Mode          `json:"mode"`
	Total        int           `json:"total"`
	Answered     int           `json:"answered"`
	Correct      int           `json:"correct"`
	ScorePercent float64       `json:"score_percent"`
	Expired      bool          `json:"expired"`
	Duration     time.Duration `json:"duration"`
	Items        []Item        `json:"items"`
}

// buildResult summarizes items. Unanswered exercises count as incorrect.
func buildResult(id string, mode Mode, items []Item, expired bool, d time.Duration) Result {
	r := Result{
		SessionID: id,
		Mode:      mode,
		Total:     len(items),
		Expired:   expired,
		Duration:  d,
		Items:     append([]Item(nil), items...),
	}
	for _, it := range items {
		if it.Answered {
			r.Answered++
		}
		if it.Correct {
			r.Correct++
		}
	}
	if r.Total > 0 {
		r.ScorePercent = float64(r.Correct) / float64(r.Total) * 100
	}
	return r
}
