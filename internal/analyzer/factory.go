// Package analyzer selects the Analyzer implementation the workers call.
package analyzer

import (
	"fmt"

	"github.com/kiranshivaraju/consentscan/internal/analyzer/heuristic"
	"github.com/kiranshivaraju/consentscan/internal/analyzer/remote"
	"github.com/kiranshivaraju/consentscan/internal/config"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

// New constructs the Analyzer named by cfg.Kind. Called once at worker startup.
func New(cfg config.AnalyzerConfig) (models.Analyzer, error) {
	switch cfg.Kind {
	case "heuristic":
		return heuristic.New(cfg.RequestTimeout), nil
	case "remote":
		return remote.NewClient(cfg.URL, cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q: must be one of heuristic, remote", cfg.Kind)
	}
}
