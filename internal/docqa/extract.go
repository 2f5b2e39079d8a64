// Package docqa extracts text from uploaded documents and answers questions
// about that text with a language model.
package docqa

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrNoText is returned when a document has no extractable text.
var ErrNoText = errors.New("no extractable text")

// Document is the extracted content of a file.
type Document struct {
	Pages int    `json:"pages"`
	Text  string `json:"text"`
}

// Extractor pulls plain text out of a document.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*Document, error)
}

// PDFContentType is the MIME type accepted by the extract endpoint.
const PDFContentType = "application/pdf"

// IsPDF reports whether data starts with the PDF signature.
func IsPDF(data []byte) bool {
	return http.DetectContentType(data) == PDFContentType
}

// normalize trims each line and collapses runs of blank lines.
func normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\f\v\r")
		if strings.TrimSpace(l) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
