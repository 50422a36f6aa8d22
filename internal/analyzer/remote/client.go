// Package remote calls an out-of-process analysis service over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/consentscan/pkg/models"
)

// Sentinel errors for remote analyzer failures.
var (
	ErrUnreachable     = errors.New("analyzer service unreachable")
	ErrRejected        = errors.New("analyzer service rejected request")
	ErrTimeout         = errors.New("analyzer service timeout")
	ErrInvalidResponse = errors.New("analyzer service returned invalid response")
)

// Client implements models.Analyzer against a remote service's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new remote analyzer client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "remote" }

func (c *Client) Analyze(ctx context.Context, src models.AnalysisSource, opts models.Options) (*models.Analysis, error) {
	payload, err := json.Marshal(analyzeRequest{
		Source:     src.Content,
		SourceType: src.Type,
		Options:    opts,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var analysis models.Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	for i, it := range analysis.Items {
		if it.Confidence < 0 || it.Confidence > 1 {
			return nil, fmt.Errorf("%w: item %d confidence %v out of range", ErrInvalidResponse, i, it.Confidence)
		}
		if it.ElementKind == "" {
			analysis.Items[i].ElementKind = "unknown"
		}
	}

	return &analysis, nil
}

// Ready checks that the remote service answers its health endpoint.
func (c *Client) Ready(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: analyzer not ready (status %d)", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

type analyzeRequest struct {
	Source     string            `json:"source"`
	SourceType models.SourceType `json:"source_type"`
	Options    models.Options    `json:"options"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Compile-time check that Client implements Analyzer.
var _ models.Analyzer = (*Client)(nil)
