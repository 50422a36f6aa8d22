package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/consentscan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzerServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestAnalyze_ValidResponse(t *testing.T) {
	ts := analyzerServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://example.com", req.Source)
		assert.Equal(t, models.SourceTypeURL, req.SourceType)
		assert.Equal(t, "csv", req.Options.OutputFormat)

		_ = json.NewEncoder(w).Encode(models.Analysis{
			Language: "en",
			Items: []models.AnalysisItem{
				{Text: "Accept All", Category: "Functional", Confidence: 0.9, ElementKind: "button", Interactive: true},
				{Text: "Some text", Category: "Other", Confidence: 0.4},
			},
		})
	})

	c := NewClient(ts.URL+"/", 5*time.Second)
	res, err := c.Analyze(context.Background(),
		models.AnalysisSource{Type: models.SourceTypeURL, Content: "https://example.com"},
		models.Options{OutputFormat: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "en", res.Language)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Accept All", res.Items[0].Text)
	assert.Equal(t, "unknown", res.Items[1].ElementKind)
}

func TestAnalyze_ErrorStatus(t *testing.T) {
	ts := analyzerServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unsupported document"}`))
	})

	c := NewClient(ts.URL, 5*time.Second)
	_, err := c.Analyze(context.Background(), models.AnalysisSource{Type: models.SourceTypeHTML, Content: "<p/>"}, models.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "unsupported document")
}

func TestAnalyze_MalformedJSON(t *testing.T) {
	ts := analyzerServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	c := NewClient(ts.URL, 5*time.Second)
	_, err := c.Analyze(context.Background(), models.AnalysisSource{Type: models.SourceTypeHTML, Content: "<p/>"}, models.Options{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAnalyze_ConfidenceOutOfRange(t *testing.T) {
	ts := analyzerServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"language":"en","items":[{"text":"x","category":"Other","confidence":1.7}]}`))
	})

	c := NewClient(ts.URL, 5*time.Second)
	_, err := c.Analyze(context.Background(), models.AnalysisSource{Type: models.SourceTypeHTML, Content: "<p/>"}, models.Options{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAnalyze_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := analyzerServer(t, func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	})
	defer close(release)

	c := NewClient(ts.URL, 50*time.Millisecond)
	_, err := c.Analyze(context.Background(), models.AnalysisSource{Type: models.SourceTypeHTML, Content: "<p/>"}, models.Options{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAnalyze_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	_, err := c.Analyze(context.Background(), models.AnalysisSource{Type: models.SourceTypeHTML, Content: "<p/>"}, models.Options{})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestReady(t *testing.T) {
	ts := analyzerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	c := NewClient(ts.URL, time.Second)
	assert.NoError(t, c.Ready(context.Background()))

	down := analyzerServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.ErrorIs(t, NewClient(down.URL, time.Second).Ready(context.Background()), ErrUnreachable)
}
