package store

import (
	"context"
	"fmt"
	"strings"
)

// schema lists the DDL statements applied on open. {{pk}} is replaced with
// the driver's auto-increment primary key type.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		id {{pk}},
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS lessons (
		id {{pk}},
		subject_id BIGINT NOT NULL REFERENCES subjects(id),
		title TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		summary TEXT NOT NULL DEFAULT '',
		key_points TEXT NOT NULL DEFAULT '',
		common_mistakes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS exercises (
		id {{pk}},
		lesson_id BIGINT NOT NULL REFERENCES lessons(id),
		question TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_index INTEGER NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		difficulty INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS attempts (
		id {{pk}},
		exercise_id BIGINT NOT NULL REFERENCES exercises(id),
		chosen_index INTEGER,
		correct BOOLEAN NOT NULL,
		time_spent_secs INTEGER NOT NULL DEFAULT 0,
		answered_at BIGINT NOT NULL,
		session_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		exam_date TEXT,
		daily_goal_minutes INTEGER NOT NULL DEFAULT 60,
		onboarding_done BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id {{pk}},
		created_at BIGINT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_subject ON lessons(subject_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_exercises_lesson ON exercises(lesson_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_exercise_answered ON attempts(exercise_id, answered_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_events_timestamp ON llm_request_events(created_at DESC)`,

	// The settings record is a singleton; seed it once.
	`INSERT INTO settings (id) VALUES (1) ON CONFLICT DO NOTHING`,
}

// migrate creates all tables and seeds the settings row.
func (s *Store) migrate(ctx context.Context) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	for _, stmt := range schema {
		stmt = strings.ReplaceAll(stmt, "{{pk}}", pk)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
