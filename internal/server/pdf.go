package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abhisek/studykit/internal/docqa"
)

// multipart framing allowance on top of the file limit
const multipartOverhead = 1 << 20

type extractResponse struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Text     string `json:"text"`
}

func (s *Server) extractPDF(w http.ResponseWriter, r *http.Request) {
	log := LoggerFrom(r.Context())
	limit := s.cfg.MaxUploadBytes

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusBadRequest, fmt.Sprintf("file exceeds %d MB", limit>>20))
			return
		}
		Error(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if header.Size > limit {
		Error(w, http.StatusBadRequest, fmt.Sprintf("file exceeds %d MB", limit>>20))
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		Error(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	if int64(len(data)) > limit {
		Error(w, http.StatusBadRequest, fmt.Sprintf("file exceeds %d MB", limit>>20))
		return
	}
	if !docqa.IsPDF(data) {
		Error(w, http.StatusBadRequest, "file is not a PDF")
		return
	}

	doc, err := s.deps.Extractor.Extract(r.Context(), data)
	if err != nil {
		if errors.Is(err, docqa.ErrNoText) {
			Error(w, http.StatusUnprocessableEntity, "no extractable text in PDF")
			return
		}
		log.WithError(err).WithField("filename", header.Filename).Error("pdf extraction failed")
		Error(w, http.StatusInternalServerError, "failed to extract text")
		return
	}

	log.WithField("pages", doc.Pages).Debug("pdf extracted")
	JSON(w, http.StatusOK, extractResponse{
		Filename: header.Filename,
		Pages:    doc.Pages,
		Text:     doc.Text,
	})
}

func (s *Server) answerQuestion(w http.ResponseWriter, r *http.Request) {
	log := LoggerFrom(r.Context())

	var q docqa.Question
	if err := decode(w, r, s.cfg.MaxUploadBytes, &q); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := q.Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.deps.QA == nil {
		Error(w, http.StatusServiceUnavailable, "no language model provider is configured")
		return
	}

	ans, err := s.deps.QA.Answer(r.Context(), q)
	if err != nil {
		log.WithError(err).Error("document qa failed")
		Error(w, http.StatusInternalServerError, "failed to answer question")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"answer": ans.Answer})
}
