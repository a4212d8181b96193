package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LayoutClient talks to the external layout-aware extraction microservice.
// When the service is disabled or unreachable the extractor falls back to the
// structural parser.
type LayoutClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	enabled    bool
}

type layoutResponse struct {
	Success    bool         `json:"success"`
	Text       string       `json:"text"`
	Pages      []layoutPage `json:"pages"`
	TotalPages int          `json:"total_pages"`
	Error      string       `json:"error,omitempty"`
}

type layoutPage struct {
	Page       int           `json:"page"`
	Text       string        `json:"text"`
	Blocks     []layoutBlock `json:"blocks"`
	Paragraphs []string      `json:"paragraphs"`
}

type layoutBlock struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

func NewLayoutClient(baseURL string, timeout time.Duration, enabled bool, logger *zap.Logger) *LayoutClient {
	return &LayoutClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		enabled: enabled,
	}
}

// IsEnabled returns whether the layout extraction service is enabled
func (c *LayoutClient) IsEnabled() bool {
	return c.enabled
}

// HealthCheck checks if the layout extraction service is available
func (c *LayoutClient) HealthCheck(ctx context.Context) error {
	if !c.enabled {
		return fmt.Errorf("layout extractor is disabled")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// Extract sends the document to the layout service and converts the response
// into page-structured DocumentData.
func (c *LayoutClient) Extract(ctx context.Context, data []byte, filename string) (*DocumentData, error) {
	if !c.enabled {
		return nil, fmt.Errorf("layout extractor is disabled")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/extract", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug("Sending document to layout extraction service",
		zap.String("filename", filename),
		zap.String("url", c.baseURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to layout extractor failed: %w", err)
	}
	defer resp.Body.Close()

	var result layoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("extraction failed: %s", result.Error)
	}

	pages := make([]Page, 0, len(result.Pages))
	for _, p := range result.Pages {
		blocks := make([]Block, 0, len(p.Blocks))
		for _, b := range p.Blocks {
			blocks = append(blocks, Block{Text: b.Text, Confidence: b.Confidence, BBox: b.BBox})
		}
		pages = append(pages, Page{
			PageNumber: p.Page,
			Text:       p.Text,
			Blocks:     blocks,
			Paragraphs: p.Paragraphs,
		})
	}

	c.logger.Info("Layout extraction successful",
		zap.String("filename", filename),
		zap.Int("pages", result.TotalPages))

	return &DocumentData{
		Text:      result.Text,
		Pages:     pages,
		PageCount: result.TotalPages,
	}, nil
}
