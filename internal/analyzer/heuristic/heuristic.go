// Package heuristic implements a keyword-based Analyzer over HTML and JSON
// sources.
package heuristic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

var (
	ErrFetch       = errors.New("fetch source failed")
	ErrUnparseable = errors.New("source could not be parsed")
)

const (
	defaultLanguage = "en"
	maxBodyBytes    = 5 << 20
	userAgent       = "consentscan/1.0"
)

// Analyzer implements models.Analyzer with goquery extraction and keyword
// classification.
type Analyzer struct {
	client *http.Client
}

// New creates an Analyzer whose URL fetches are bounded by requestTimeout.
func New(requestTimeout time.Duration) *Analyzer {
	return &Analyzer{client: &http.Client{Timeout: requestTimeout}}
}

func (a *Analyzer) Name() string { return "heuristic" }

func (a *Analyzer) Analyze(ctx context.Context, src models.AnalysisSource, opts models.Options) (*models.Analysis, error) {
	body := []byte(src.Content)
	if src.Type == models.SourceTypeURL {
		fetched, err := a.fetch(ctx, src.Content)
		if err != nil {
			return nil, err
		}
		body = fetched
	}

	lang := ""
	var elems []element
	if obj, ok := asJSONObject(body); ok {
		elems = fromJSON(obj)
	} else {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		elems = fromHTML(doc)
		lang = language(doc)
	}

	if opts.Language != "" {
		lang = opts.Language
	}
	if lang == "" {
		lang = defaultLanguage
	}

	items := make([]models.AnalysisItem, 0, len(elems))
	for _, e := range elems {
		category, confidence := Classify(e.text)
		items = append(items, models.AnalysisItem{
			Text:        e.text,
			Category:    category,
			Confidence:  confidence,
			ElementKind: e.kind,
			Interactive: e.interactive(),
		})
	}

	return &models.Analysis{Language: lang, Items: items}, nil
}

func (a *Analyzer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}
	return body, nil
}

func asJSONObject(body []byte) (map[string]any, bool) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

var _ models.Analyzer = (*Analyzer)(nil)
