// Package extract is the file-extraction collaborator: it turns raw
// document bytes into text the knowledge base can ingest. Plain text is
// decoded directly; PDF and Office formats go through the converter
// sidecar. The core is never handed empty or garbage text.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"finstack/types"
)

// Result is what a successful extraction hands to the core.
type Result struct {
	Text      string `json:"text"`
	FileType  string `json:"file_type"`
	CharCount int    `json:"char_count"`
}

var supportedExtensions = map[string]string{
	".txt":  "text",
	".md":   "text",
	".pdf":  "pdf",
	".docx": "docx",
	".doc":  "docx",
	".xlsx": "excel",
	".xls":  "excel",
	".pptx": "pptx",
	".ppt":  "pptx",
}

type converterResponse struct {
	Document struct {
		MdContent string `json:"md_content"`
	} `json:"document"`
}

// Extractor converts document bytes to text. CropTop/CropBottom trim PDF
// headers and footers (in points) before conversion when set.
type Extractor struct {
	converterURL string
	client       *http.Client

	CropTop    float64
	CropBottom float64
}

func New(converterURL string) *Extractor {
	return &Extractor{
		converterURL: converterURL,
		client:       &http.Client{Timeout: 120 * time.Second},
	}
}

// Extract pulls text out of one document. Failures come back as a typed
// ExtractionError carrying the filename.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fileType, ok := supportedExtensions[ext]
	if !ok {
		return Result{}, types.ExtractionError{
			Filename: filename,
			Err:      fmt.Errorf("unsupported file type %q", ext),
		}
	}

	var text string
	var err error
	switch fileType {
	case "text":
		text, err = decodeText(data)
	case "pdf":
		text, err = e.convertPDF(ctx, data, filename)
	default:
		text, err = e.convert(ctx, data, filename)
	}
	if err != nil {
		return Result{}, types.ExtractionError{Filename: filename, Err: err}
	}

	if strings.TrimSpace(text) == "" {
		return Result{}, types.ExtractionError{
			Filename: filename,
			Err:      fmt.Errorf("no text extracted"),
		}
	}

	return Result{
		Text:      text,
		FileType:  fileType,
		CharCount: len([]rune(text)),
	}, nil
}

// decodeText decodes plain text as UTF-8, falling back to Latin-1 so legacy
// exports still come through readable.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// convertPDF writes the PDF to a temp file, trims the configured header and
// footer bands, then runs it through the converter sidecar.
func (e *Extractor) convertPDF(ctx context.Context, data []byte, filename string) (string, error) {
	if e.CropTop <= 0 && e.CropBottom <= 0 {
		return e.convert(ctx, data, filename)
	}

	tmp, err := os.CreateTemp("", "extract-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := cropHeaderFooter(tmpPath, tmpPath, e.CropTop, e.CropBottom); err != nil {
		return "", err
	}

	cropped, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", err
	}
	return e.convert(ctx, cropped, filename)
}

// convert posts the document to the converter sidecar and returns the
// markdown text it produced.
func (e *Extractor) convert(ctx context.Context, data []byte, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.converterURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("converter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("converter error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var converted converterResponse
	if err := json.NewDecoder(resp.Body).Decode(&converted); err != nil {
		return "", fmt.Errorf("decode converter response: %w", err)
	}
	return converted.Document.MdContent, nil
}
