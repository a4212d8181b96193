package pipeline

import (
	"bytes"
	"context"
	"strings"

	"clauselens/config"
	apperrors "clauselens/errors"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Extraction methods, recorded on the result so downstream components know
// whether layout blocks are trustworthy.
const (
	MethodLayoutAware = "layout-aware"
	MethodStructural  = "structural"
	MethodRaw         = "raw"
)

// Block is a layout-positioned run of text on a page.
type Block struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// Page holds the extracted content of a single page.
type Page struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Blocks     []Block  `json:"blocks,omitempty"`
	Paragraphs []string `json:"paragraphs,omitempty"`
}

// DocumentData is the output of text extraction.
type DocumentData struct {
	Text      string `json:"text"`
	Pages     []Page `json:"pages"`
	PageCount int    `json:"page_count"`
	Method    string `json:"method"`
}

// Extractor converts uploaded bytes into page-structured text, falling back
// through progressively weaker extractors.
type Extractor struct {
	cfg    *config.Config
	layout *LayoutClient
	logger *zap.Logger
}

func NewExtractor(cfg *config.Config, layout *LayoutClient, logger *zap.Logger) *Extractor {
	return &Extractor{cfg: cfg, layout: layout, logger: logger}
}

var supportedMimes = map[string]string{
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

// Extract validates the input against the configured size and page caps and
// runs the extractor chain: layout service, structural PDF parse, raw text.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename, mime string) (*DocumentData, error) {
	if len(data) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "empty file")
	}
	if int64(len(data)) > e.cfg.MaxFileSizeBytes() {
		return nil, apperrors.WrapErrorf(apperrors.ErrInputTooLarge,
			"%d bytes exceeds limit of %d MB", len(data), e.cfg.MaxFileSizeMB)
	}
	kind, ok := supportedMimes[mime]
	if !ok {
		// Fall back to the extension when the browser sent a generic mime
		switch {
		case strings.HasSuffix(strings.ToLower(filename), ".pdf"):
			kind = "pdf"
		case strings.HasSuffix(strings.ToLower(filename), ".docx"):
			kind = "docx"
		default:
			return nil, apperrors.WrapErrorf(apperrors.ErrUnsupportedFormat, "mime %q", mime)
		}
	}

	if kind == "docx" {
		return e.extractDOCX(data)
	}

	if e.layout != nil && e.layout.IsEnabled() {
		result, err := e.layout.Extract(ctx, data, filename)
		if err == nil && strings.TrimSpace(result.Text) != "" {
			if result.PageCount > e.cfg.MaxPages {
				return nil, apperrors.WrapErrorf(apperrors.ErrInputTooLarge,
					"%d pages exceeds limit of %d", result.PageCount, e.cfg.MaxPages)
			}
			result.Method = MethodLayoutAware
			return result, nil
		}
		if err != nil {
			e.logger.Warn("Layout extractor failed, falling back to structural parse",
				zap.Error(err), zap.String("filename", filename))
		}
	}

	result, err := e.extractStructural(data)
	if err == nil && strings.TrimSpace(result.Text) != "" {
		if result.PageCount > e.cfg.MaxPages {
			return nil, apperrors.WrapErrorf(apperrors.ErrInputTooLarge,
				"%d pages exceeds limit of %d", result.PageCount, e.cfg.MaxPages)
		}
		return result, nil
	}
	if err != nil {
		e.logger.Warn("Structural PDF parse failed, falling back to raw text",
			zap.Error(err), zap.String("filename", filename))
	}

	return e.extractRaw(data)
}

// extractStructural parses the PDF page tree directly.
func (e *Extractor) extractStructural(data []byte) (*DocumentData, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.WrapError(err, "open pdf")
	}

	numPages := reader.NumPage()
	pages := make([]Page, 0, numPages)
	var all strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Debug("Failed to extract page text", zap.Int("page", i), zap.Error(err))
			continue
		}
		pages = append(pages, Page{PageNumber: i, Text: text})
		all.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			all.WriteString("\n")
		}
	}

	return &DocumentData{
		Text:      all.String(),
		Pages:     pages,
		PageCount: numPages,
		Method:    MethodStructural,
	}, nil
}

// extractRaw treats the bytes as plain text after stripping non-printables.
// Last resort; produces a single synthetic page.
func (e *Extractor) extractRaw(data []byte) (*DocumentData, error) {
	cleaned := make([]rune, 0, len(data))
	for _, r := range string(data) {
		if r == '\n' || r == '\t' || r == '\f' || (r >= 0x20 && r != 0xFFFD) {
			cleaned = append(cleaned, r)
		}
	}
	text := strings.TrimSpace(string(cleaned))
	if text == "" {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "no extractable text")
	}
	return &DocumentData{
		Text:      text,
		Pages:     []Page{{PageNumber: 1, Text: text}},
		PageCount: 1,
		Method:    MethodRaw,
	}, nil
}
