package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ScannerClient talks to the external PII scanning service. Raw PII never
// crosses this boundary except inside the returned match table.
type ScannerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	enabled    bool
}

type scanRequest struct {
	Text string `json:"text"`
}

type scanResponse struct {
	Findings []scanFinding `json:"findings"`
	Error    string        `json:"error,omitempty"`
}

type scanFinding struct {
	InfoType   string  `json:"info_type"`
	Quote      string  `json:"quote"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Likelihood float64 `json:"likelihood"`
}

func NewScannerClient(baseURL string, timeout time.Duration, enabled bool, logger *zap.Logger) *ScannerClient {
	return &ScannerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		enabled:    enabled && baseURL != "",
	}
}

func (c *ScannerClient) IsEnabled() bool {
	return c.enabled
}

// Scan submits text for PII inspection and converts findings into matches.
// Replacement tokens are assigned by the caller.
func (c *ScannerClient) Scan(ctx context.Context, text string) ([]PIIMatch, error) {
	if !c.enabled {
		return nil, fmt.Errorf("pii scanner is disabled")
	}

	jsonBody, err := json.Marshal(scanRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inspect", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to pii scanner failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pii scanner status %s", resp.Status)
	}

	var result scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode scan response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("pii scanner error: %s", result.Error)
	}

	matches := make([]PIIMatch, 0, len(result.Findings))
	for _, f := range result.Findings {
		matches = append(matches, PIIMatch{
			PIIType:       f.InfoType,
			OriginalText:  f.Quote,
			StartPosition: f.Start,
			EndPosition:   f.End,
			Confidence:    f.Likelihood,
		})
	}

	c.logger.Debug("PII scan complete", zap.Int("findings", len(matches)))
	return matches, nil
}
