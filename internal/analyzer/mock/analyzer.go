package mock

import (
	"context"

	"github.com/kiranshivaraju/consentscan/internal/analyzer"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

// MockAnalyzer satisfies models.Analyzer for testing.
type MockAnalyzer struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, src models.AnalysisSource, opts models.Options) (*models.Analysis, error)
}

func (m *MockAnalyzer) Name() string { return m.Name_ }

func (m *MockAnalyzer) Analyze(ctx context.Context, src models.AnalysisSource, opts models.Options) (*models.Analysis, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, src, opts)
	}
	return &models.Analysis{Language: "en"}, nil
}

// NewMockAnalyzer returns a MockAnalyzer that reports a single accept button.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisSource, _ models.Options) (*models.Analysis, error) {
			return &models.Analysis{
				Language: "en",
				Items: []models.AnalysisItem{{
					Text:        "Accept All",
					Category:    "functional",
					Confidence:  0.8,
					ElementKind: "button",
					Interactive: true,
				}},
			}, nil
		},
	}
}

// NewFailingAnalyzer returns a MockAnalyzer that always returns the given error.
func NewFailingAnalyzer(err error) *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisSource, _ models.Options) (*models.Analysis, error) {
			return nil, err
		},
	}
}

// NewTimeoutAnalyzer returns a MockAnalyzer that blocks until context is cancelled.
func NewTimeoutAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock-timeout",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalysisSource, _ models.Options) (*models.Analysis, error) {
			<-ctx.Done()
			return nil, analyzer.ErrTimeout
		},
	}
}

// NewPanickingAnalyzer returns a MockAnalyzer that panics with v.
func NewPanickingAnalyzer(v any) *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock-panic",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisSource, _ models.Options) (*models.Analysis, error) {
			panic(v)
		},
	}
}

// Compile-time check that MockAnalyzer implements Analyzer.
var _ models.Analyzer = (*MockAnalyzer)(nil)
