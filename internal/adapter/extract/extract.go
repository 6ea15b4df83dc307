package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for file extensions the extractor does
// not recognize.
var ErrUnsupportedFormat = errors.New("unsupported file format")

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extract converts an uploaded file into plain text based on its extension.
// Supported: .pdf, .doc, .docx, .txt, .md.
func Extract(data []byte, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return fromPDF(data)
	case ".doc", ".docx":
		return fromWord(data)
	case ".txt", ".md":
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var sb strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract text from page %d: %w", pageIndex, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func fromWord(data []byte) (string, error) {
	result, err := docconv.Convert(bytes.NewReader(data), docxMimeType, false)
	if err != nil {
		return "", fmt.Errorf("convert word document: %w", err)
	}
	return result.Body, nil
}
