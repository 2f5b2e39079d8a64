package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/studykit/internal/docqa"
	"github.com/abhisek/studykit/internal/session"
	"github.com/abhisek/studykit/internal/store"
)

const maxJSONBody = 1 << 20

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidExercise),
		errors.Is(err, session.ErrInvalidOption),
		errors.Is(err, session.ErrNoSelection),
		errors.Is(err, docqa.ErrMissingField),
		errors.Is(err, docqa.ErrInvalidLanguage):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotPresenting),
		errors.Is(err, session.ErrNotReviewing),
		errors.Is(err, session.ErrAlreadyCommitted),
		errors.Is(err, session.ErrComplete):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoExercises), errors.Is(err, docqa.ErrNoText):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail logs server errors and writes the mapped status.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		LoggerFrom(r.Context()).WithError(err).Error("request error")
		Error(w, status, http.StatusText(status))
		return
	}
	Error(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit <= 0 {
		limit = maxJSONBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return id, nil
}
