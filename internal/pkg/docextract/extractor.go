// Package docextract downloads documents and extracts their plain text.
package docextract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	FormatPDF   = ".pdf"
	FormatDOCX  = ".docx"
	FormatXLSX  = ".xlsx"
	FormatODT   = ".odt"
	FormatRTF   = ".rtf"
	FormatPlain = ".txt"
)

var (
	ErrInvalidURL = errors.New("invalid document url")
	ErrFetch      = errors.New("document download failed")
	ErrTooLarge   = errors.New("document exceeds size limit")
	ErrPageLimit  = errors.New("document exceeds page limit")
)

// Extraction is the text of one document plus its page and word counts.
type Extraction struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
	WordCount int    `json:"word_count"`
	Format    string `json:"format"`
}

type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	MaxPages int
}

type Extractor struct {
	httpClient *http.Client
	maxBytes   int64
	maxPages   int
}

func New(opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 50 << 20
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 500
	}
	return &Extractor{
		httpClient: &http.Client{Timeout: opts.Timeout},
		maxBytes:   opts.MaxBytes,
		maxPages:   opts.MaxPages,
	}
}

// Extract downloads rawURL and extracts its text. documentType is an optional
// MIME type that takes precedence over the URL extension and response headers.
func (e *Extractor) Extract(ctx context.Context, rawURL, documentType string) (*Extraction, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request failed: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}
	if resp.ContentLength > e.maxBytes {
		return nil, ErrTooLarge
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if int64(len(content)) > e.maxBytes {
		return nil, ErrTooLarge
	}

	format := formatFromMIME(documentType)
	if format == "" {
		format = formatFromPath(parsed.Path)
	}
	if format == "" {
		format = formatFromMIME(resp.Header.Get("Content-Type"))
	}
	if format == "" {
		format = FormatPlain
	}
	return e.ExtractBytes(content, format)
}

// ExtractBytes extracts text from content of the given format (extension with
// leading dot). Unknown formats are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, format string) (*Extraction, error) {
	var (
		text  string
		pages = 1
		err   error
	)
	switch format {
	case FormatPDF:
		text, pages, err = extractPDF(content, e.maxPages)
	case FormatDOCX:
		text, err = extractDOCX(content)
	case FormatXLSX:
		text, err = extractExcel(content)
	case FormatODT, FormatRTF:
		text, err = extractWithCat(content)
	default:
		format = FormatPlain
		text, err = extractPlain(content)
	}
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	return &Extraction{
		Text:      text,
		PageCount: pages,
		WordCount: CountWords(text),
		Format:    format,
	}, nil
}

func CountWords(text string) int {
	return len(strings.Fields(text))
}

func formatFromMIME(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(contentType)
	}
	switch mediaType {
	case "application/pdf":
		return FormatPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDOCX
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case "application/vnd.oasis.opendocument.text":
		return FormatODT
	case "application/rtf", "text/rtf":
		return FormatRTF
	case "text/plain", "text/markdown", "text/csv":
		return FormatPlain
	}
	return ""
}

func formatFromPath(p string) string {
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case FormatPDF, FormatDOCX, FormatXLSX, FormatODT, FormatRTF:
		return ext
	case ".txt", ".md", ".csv", ".rst":
		return FormatPlain
	}
	return ""
}
