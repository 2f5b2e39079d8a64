package docqa

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultTikaURL is the default Apache Tika server address.
const DefaultTikaURL = "http://localhost:9998"

// TikaExtractor extracts text through an Apache Tika server.
type TikaExtractor struct {
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewTikaExtractor creates an extractor for the Tika server at baseURL.
func NewTikaExtractor(baseURL string, timeout time.Duration, log logrus.FieldLogger) *TikaExtractor {
	if baseURL == "" {
		baseURL = DefaultTikaURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TikaExtractor{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Extract sends data to /tika for text and /meta for the page count.
func (t *TikaExtractor) Extract(ctx context.Context, data []byte) (*Document, error) {
	resp, err := t.put(ctx, "/tika", "text/plain", data)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("tika server returned status %d: %s", resp.StatusCode, string(body))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read tika response")
	}

	text := normalize(string(raw))
	if text == "" {
		return nil, ErrNoText
	}

	doc := &Document{Text: text}
	pages, err := t.pageCount(ctx, data)
	if err != nil {
		t.log.WithError(err).Warn("tika metadata unavailable")
	}
	doc.Pages = pages
	return doc, nil
}

func (t *TikaExtractor) pageCount(ctx context.Context, data []byte) (int, error) {
	resp, err := t.put(ctx, "/meta", "application/json", data)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("metadata request returned status %d", resp.StatusCode)
	}

	var meta map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return 0, errors.Wrap(err, "decode metadata")
	}

	var v string
	switch x := meta["xmpTPg:NPages"].(type) {
	case string:
		v = x
	case []any:
		if len(x) > 0 {
			v, _ = x[0].(string)
		}
	}
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse page count %q", v)
	}
	return n, nil
}

func (t *TikaExtractor) put(ctx context.Context, path, accept string, data []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", PDFContentType)
	req.Header.Set("Accept", accept)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "tika request %s", path)
	}
	return resp, nil
}
