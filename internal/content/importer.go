// Package content imports study content from spreadsheets.
package content

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/abhisek/studykit/internal/store"
)

// Column order of an import sheet.
const (
	colSubject = iota
	colColor
	colLesson
	colSummary
	colKeyPoints
	colCommonMistakes
	colQuestion
	colOptions
	colCorrect
	colExplanation
	colDifficulty
	numColumns
)

// Header is the expected header row.
var Header = []string{
	"Subject", "Color", "Lesson", "Summary", "Key points", "Common mistakes",
	"Question", "Options", "Correct", "Explanation", "Difficulty",
}

// OptionSeparator splits the Options cell.
const OptionSeparator = "|"

// Repo is the subset of the study store the importer writes to.
type Repo interface {
	ListSubjects(ctx context.Context) ([]store.Subject, error)
	ListLessons(ctx context.Context, subjectID int64) ([]store.Lesson, error)
	ListExercises(ctx context.Context, lessonID int64) ([]store.Exercise, error)
	CreateSubject(ctx context.Context, in store.NewSubject) (store.Subject, error)
	CreateLesson(ctx context.Context, in store.NewLesson) (store.Lesson, error)
	CreateExercise(ctx context.Context, in store.NewExercise) (store.Exercise, error)
}

// ImportResult holds the outcome of an import.
type ImportResult struct {
	Rows      int      `json:"rows"`
	Subjects  int      `json:"subjects_created"`
	Lessons   int      `json:"lessons_created"`
	Exercises int      `json:"exercises_created"`
	Errors    []string `json:"errors"`
}

// Importer creates subjects, lessons and exercises from tabular rows.
type Importer struct {
	repo Repo
	log  logrus.FieldLogger
}

// NewImporter creates an importer writing to repo.
func NewImporter(repo Repo, log logrus.FieldLogger) *Importer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Importer{repo: repo, log: log}
}

// ImportFile imports an .xlsx or .csv file, chosen by extension.
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return im.ImportCSV(ctx, f)
	case ".xlsx", ".xlsm":
		return im.ImportXLSX(ctx, f)
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .xlsx or .csv)", ext)
	}
}

// ImportXLSX imports the first sheet of a workbook.
func (im *Importer) ImportXLSX(ctx context.Context, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return im.importRows(ctx, rows)
}

// ImportCSV imports comma-separated rows.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return im.importRows(ctx, rows)
}

type lessonKey struct {
	subjectID int64
	title     string
}

// importState tracks what exists so rows can refer to earlier rows.
type importState struct {
	subjects      map[string]int64
	subjectCount  int
	lessons       map[lessonKey]int64
	lessonCount   map[int64]int
	exerciseCount map[int64]int
}

func (im *Importer) loadState(ctx context.Context) (*importState, error) {
	st := &importState{
		subjects:      make(map[string]int64),
		lessons:       make(map[lessonKey]int64),
		lessonCount:   make(map[int64]int),
		exerciseCount: make(map[int64]int),
	}

	subjects, err := im.repo.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range subjects {
		st.subjects[fold(s.Name)] = s.ID
	}
	st.subjectCount = len(subjects)

	lessons, err := im.repo.ListLessons(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, l := range lessons {
		st.lessons[lessonKey{l.SubjectID, fold(l.Title)}] = l.ID
		st.lessonCount[l.SubjectID]++
	}

	exercises, err := im.repo.ListExercises(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, e := range exercises {
		st.exerciseCount[e.LessonID]++
	}
	return st, nil
}

func (im *Importer) importRows(ctx context.Context, rows [][]string) (*ImportResult, error) {
	st, err := im.loadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing content: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if isBlank(row) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Rows++
		if err := im.importRow(ctx, st, pad(row), result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}

	im.log.WithFields(logrus.Fields{
		"rows":      result.Rows,
		"subjects":  result.Subjects,
		"lessons":   result.Lessons,
		"exercises": result.Exercises,
		"errors":    len(result.Errors),
	}).Info("content import finished")
	return result, nil
}

func (im *Importer) importRow(ctx context.Context, st *importState, row []string, result *ImportResult) error {
	subjectName := row[colSubject]
	if subjectName == "" {
		return errors.New("subject is required")
	}
	title := row[colLesson]
	if title == "" {
		return errors.New("lesson is required")
	}

	// Validate the exercise before creating anything.
	var ex *store.NewExercise
	if row[colQuestion] != "" {
		parsed, err := parseExercise(row)
		if err != nil {
			return err
		}
		ex = parsed
	}

	subjectID, ok := st.subjects[fold(subjectName)]
	if !ok {
		s, err := im.repo.CreateSubject(ctx, store.NewSubject{
			Name:     subjectName,
			Color:    row[colColor],
			Position: st.subjectCount + 1,
		})
		if err != nil {
			return err
		}
		subjectID = s.ID
		st.subjects[fold(subjectName)] = s.ID
		st.subjectCount++
		result.Subjects++
	}

	key := lessonKey{subjectID, fold(title)}
	lessonID, ok := st.lessons[key]
	if !ok {
		l, err := im.repo.CreateLesson(ctx, store.NewLesson{
			SubjectID:      subjectID,
			Title:          title,
			Position:       st.lessonCount[subjectID] + 1,
			Summary:        row[colSummary],
			KeyPoints:      row[colKeyPoints],
			CommonMistakes: row[colCommonMistakes],
		})
		if err != nil {
			return err
		}
		lessonID = l.ID
		st.lessons[key] = l.ID
		st.lessonCount[subjectID]++
		result.Lessons++
	}

	if ex == nil {
		return nil
	}
	ex.LessonID = lessonID
	ex.Position = st.exerciseCount[lessonID] + 1
	if _, err := im.repo.CreateExercise(ctx, *ex); err != nil {
		return err
	}
	st.exerciseCount[lessonID]++
	result.Exercises++
	return nil
}

func parseExercise(row []string) (*store.NewExercise, error) {
	var options []string
	for _, o := range strings.Split(row[colOptions], OptionSeparator) {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("need at least 2 options separated by %q", OptionSeparator)
	}

	correct, err := strconv.Atoi(row[colCorrect])
	if err != nil {
		return nil, fmt.Errorf("correct option %q is not a number", row[colCorrect])
	}
	if correct < 1 || correct > len(options) {
		return nil, fmt.Errorf("correct option %d out of range 1-%d", correct, len(options))
	}

	return &store.NewExercise{
		Question:     row[colQuestion],
		Options:      options,
		CorrectIndex: correct - 1,
		Explanation:  row[colExplanation],
		Difficulty:   parseDifficulty(row[colDifficulty]),
	}, nil
}

// parseDifficulty clamps to 1..store.MaxDifficulty and defaults to 1.
func parseDifficulty(s string) int {
	d, err := strconv.Atoi(s)
	if err != nil || d < 1 {
		return 1
	}
	if d > store.MaxDifficulty {
		return store.MaxDifficulty
	}
	return d
}

// pad trims every cell and extends the row to numColumns.
func pad(row []string) []string {
	out := make([]string, numColumns)
	for i := 0; i < len(row) && i < numColumns; i++ {
		out[i] = strings.TrimSpace(row[i])
	}
	return out
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff")), Header[colSubject])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
