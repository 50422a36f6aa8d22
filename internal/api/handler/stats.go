package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/consentscan/internal/api/response"
	"github.com/kiranshivaraju/consentscan/internal/maintenance"
)

// StatsReader reports pipeline counts.
type StatsReader interface {
	Stats(ctx context.Context) (*maintenance.Stats, error)
}

// NewStatsHandler returns an http.HandlerFunc for GET /api/v1/stats.
func NewStatsHandler(svc StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			slog.Error("stats failed", "error", err)
			response.Unavailable(w, "STATS_UNAVAILABLE", "Pipeline stats are unavailable", retryAfter)
			return
		}
		response.JSON(w, stats)
	}
}
