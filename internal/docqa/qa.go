package docqa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/studykit/internal/llm"
)

var (
	// ErrMissingField is returned when the question or context is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidLanguage is returned for answer languages other than ar and fr.
	ErrInvalidLanguage = errors.New("invalid answer language")
)

// Supported answer languages.
const (
	LangArabic = "ar"
	LangFrench = "fr"
)

// MaxContextRunes bounds the document text sent to the model.
const MaxContextRunes = 60000

// NotFoundSentence is the fixed answer when the text does not contain one.
var NotFoundSentence = map[string]string{
	LangArabic: "لم أجد الإجابة في النص المقدم.",
	LangFrench: "Je n'ai pas trouvé la réponse dans le texte fourni.",
}

var languageName = map[string]string{
	LangArabic: "Arabic",
	LangFrench: "French",
}

// Question is a question about a block of document text.
type Question struct {
	Question    string `json:"question"`
	ContextText string `json:"contextText"`
	Lang        string `json:"answerLang"`
}

// Validate checks required fields and the language.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question", ErrMissingField)
	}
	if strings.TrimSpace(q.ContextText) == "" {
		return fmt.Errorf("%w: contextText", ErrMissingField)
	}
	if strings.TrimSpace(q.Lang) == "" {
		return fmt.Errorf("%w: answerLang", ErrMissingField)
	}
	if _, ok := NotFoundSentence[q.Lang]; !ok {
		return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidLanguage, q.Lang, LangArabic, LangFrench)
	}
	return nil
}

// Answer is the model's reply.
type Answer struct {
	Answer   string `json:"answer"`
	NotFound bool   `json:"-"`
}

var answerSchema = &llm.Schema{
	Name:        "document-answer",
	Description: "An answer to a question, taken only from the supplied text",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{
				"type":        "string",
				"description": "The answer, or an empty string when the text does not contain it",
			},
		},
		"required":             []any{"answer"},
		"additionalProperties": false,
	},
}

// QAService answers questions about document text.
type QAService struct {
	provider llm.Provider
	log      logrus.FieldLogger
}

// NewQAService creates a QAService backed by provider.
func NewQAService(provider llm.Provider, log logrus.FieldLogger) *QAService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &QAService{provider: provider, log: log}
}

// Answer asks the model and falls back to the language's not-found sentence
// when the model finds nothing.
func (s *QAService) Answer(ctx context.Context, q Question) (*Answer, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	text, truncated := truncateRunes(q.ContextText, MaxContextRunes)
	if truncated {
		s.log.WithField("max_runes", MaxContextRunes).Debug("document text truncated")
	}

	notFound := NotFoundSentence[q.Lang]
	req := llm.Request{
		System:      buildSystemPrompt(q.Lang, notFound),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildUserPrompt(text, q.Question)}},
		Schema:      answerSchema,
		MaxTokens:   1024,
		Temperature: 0,
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, llm.PurposeDocQA), req)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	var out Answer
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	out.Answer = strings.TrimSpace(out.Answer)
	if out.Answer == "" || out.Answer == notFound {
		return &Answer{Answer: notFound, NotFound: true}, nil
	}
	return &out, nil
}

func buildSystemPrompt(lang, notFound string) string {
	var b strings.Builder
	b.WriteString("You answer questions about a document using only the text provided by the user.\n")
	fmt.Fprintf(&b, "Always answer in %s, whatever the language of the document or the question.\n", languageName[lang])
	b.WriteString("Do not use outside knowledge. Quote or paraphrase the relevant passage concisely.\n")
	fmt.Fprintf(&b, "If the text does not contain the answer, reply exactly: %s\n", notFound)
	return b.String()
}

func buildUserPrompt(text, question string) string {
	var b strings.Builder
	b.WriteString("<document>\n")
	b.WriteString(text)
	b.WriteString("\n</document>\n\n")
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

// truncateRunes cuts s to at most max runes.
func truncateRunes(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
