package worker

import (
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/consentscan/pkg/models"
)

const (
	// MaxErrorBytes bounds the error detail stored on a failed job.
	MaxErrorBytes = 4000

	defaultLanguage = "en"
	unknownKind     = "unknown"
)

// buildResult turns Analyzer output into the rows committed for job. Items
// below the job's min_confidence are dropped; positions follow Analyzer order.
func buildResult(job *models.Job, a *models.Analysis, analyzerName string, elapsed time.Duration) (*models.AnalysisResult, []models.ResultItem) {
	minConfidence := 0.0
	if job.Options.MinConfidence != nil {
		minConfidence = *job.Options.MinConfidence
	}

	categories := make(map[string]int)
	items := make([]models.ResultItem, 0, len(a.Items))
	for _, it := range a.Items {
		confidence := clamp(it.Confidence)
		if confidence < minConfidence {
			continue
		}
		kind := it.ElementKind
		if kind == "" {
			kind = unknownKind
		}
		items = append(items, models.ResultItem{
			Position:    len(items),
			Text:        it.Text,
			Category:    it.Category,
			Confidence:  confidence,
			ElementKind: kind,
			Interactive: it.Interactive,
		})
		categories[it.Category]++
	}

	lang := a.Language
	if lang == "" {
		lang = defaultLanguage
	}

	result := &models.AnalysisResult{
		JobID:     job.ID,
		SourceID:  job.SourceID(),
		Language:  lang,
		ItemCount: len(items),
		Status:    models.ResultStatusCompleted,
		Metadata: models.Metadata{
			SourceType:       job.SourceType,
			Categories:       categories,
			Analyzer:         analyzerName,
			OutputFormat:     job.Options.OutputFormat,
			ProcessingMillis: elapsed.Milliseconds(),
		},
	}
	return result, items
}

func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ErrorMessage renders err for the job record: never empty, at most
// MaxErrorBytes, and cut on a rune boundary.
func ErrorMessage(err error) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		return "unknown error"
	}
	if len(msg) <= MaxErrorBytes {
		return msg
	}
	n := MaxErrorBytes
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
