package pipeline

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	apperrors "clauselens/errors"
)

// extractDOCX pulls paragraph text out of the zipped word/document.xml. DOCX
// has no page geometry, so pages are approximated by a fixed paragraph count
// and blocks are the paragraphs themselves.
func (e *Extractor) extractDOCX(data []byte) (*DocumentData, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.WrapError(err, "open docx archive")
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return nil, apperrors.WrapError(err, "open docx document part")
			}
			break
		}
	}
	if docXML == nil {
		return nil, apperrors.WrapError(apperrors.ErrUnsupportedFormat, "docx missing document.xml")
	}
	defer docXML.Close()

	paragraphs, err := parseDOCXParagraphs(docXML)
	if err != nil {
		return nil, apperrors.WrapError(err, "parse docx xml")
	}
	if len(paragraphs) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "no extractable text")
	}

	const paragraphsPerPage = 25
	var pages []Page
	var all strings.Builder
	for start := 0; start < len(paragraphs); start += paragraphsPerPage {
		end := start + paragraphsPerPage
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		chunk := paragraphs[start:end]
		blocks := make([]Block, 0, len(chunk))
		for _, p := range chunk {
			blocks = append(blocks, Block{Text: p, Confidence: 1.0})
		}
		pageText := strings.Join(chunk, "\n")
		pages = append(pages, Page{
			PageNumber: len(pages) + 1,
			Text:       pageText,
			Blocks:     blocks,
			Paragraphs: chunk,
		})
		all.WriteString(pageText)
		all.WriteString("\n")
	}

	if len(pages) > e.cfg.MaxPages {
		return nil, apperrors.WrapErrorf(apperrors.ErrInputTooLarge,
			"%d pages exceeds limit of %d", len(pages), e.cfg.MaxPages)
	}

	return &DocumentData{
		Text:      all.String(),
		Pages:     pages,
		PageCount: len(pages),
		Method:    MethodLayoutAware,
	}, nil
}

// parseDOCXParagraphs walks the WordprocessingML token stream collecting text
// runs (<w:t>) grouped by paragraph (<w:p>).
func parseDOCXParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	if text := strings.TrimSpace(current.String()); text != "" {
		paragraphs = append(paragraphs, text)
	}
	return paragraphs, nil
}
