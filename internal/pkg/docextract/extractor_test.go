package docextract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?><w:document><w:body>` + body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(docxDocumentXMLPath)
	require.NoError(t, err)
	_, err = w.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "region"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "revenue"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "north"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "42"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestExtractBytes_Plain(t *testing.T) {
	e := New(Options{})
	got, err := e.ExtractBytes([]byte("  the quick brown fox\n\njumps over  "), FormatPlain)
	require.NoError(t, err)

	assert.Equal(t, "the quick brown fox\n\njumps over", got.Text)
	assert.Equal(t, 6, got.WordCount)
	assert.Equal(t, 1, got.PageCount)
	assert.Equal(t, FormatPlain, got.Format)
}

func TestExtractBytes_UnknownFormatFallsBackToPlain(t *testing.T) {
	e := New(Options{})
	got, err := e.ExtractBytes([]byte("hello world"), ".weird")
	require.NoError(t, err)
	assert.Equal(t, FormatPlain, got.Format)
	assert.Equal(t, 2, got.WordCount)
}

func TestExtractBytes_InvalidUTF8IsRepaired(t *testing.T) {
	e := New(Options{})
	got, err := e.ExtractBytes([]byte{'o', 'k', ' ', 0xff, 'x'}, FormatPlain)
	require.NoError(t, err)
	assert.Equal(t, "ok �x", got.Text)
}

func TestExtractBytes_DOCX(t *testing.T) {
	e := New(Options{})
	got, err := e.ExtractBytes(buildDOCX(t, "Introduction", "The conclusion is positive."), FormatDOCX)
	require.NoError(t, err)

	assert.Equal(t, "Introduction\n\nThe conclusion is positive.", got.Text)
	assert.Equal(t, 5, got.WordCount)
}

func TestExtractBytes_DOCXDecodesEntities(t *testing.T) {
	got, err := New(Options{}).ExtractBytes(buildDOCX(t, "R&amp;D spend &lt;10%"), FormatDOCX)
	require.NoError(t, err)

	assert.Equal(t, "R&D spend <10%", got.Text)
	assert.Equal(t, 3, got.WordCount)
}

func TestExtractBytes_DOCXWithoutDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = New(Options{}).ExtractBytes(buf.Bytes(), FormatDOCX)
	assert.Error(t, err)
}

func TestExtractBytes_XLSX(t *testing.T) {
	e := New(Options{})
	got, err := e.ExtractBytes(buildXLSX(t), FormatXLSX)
	require.NoError(t, err)

	assert.Contains(t, got.Text, "region\trevenue")
	assert.Contains(t, got.Text, "north\t42")
	assert.Equal(t, 4, got.WordCount)
}

// buildPDF writes a minimal PDF with the given number of empty pages and a
// valid xref table.
func buildPDF(t *testing.T, pages int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	total := pages + 2
	offsets := make([]int, total+1)
	writeObj := func(n int, body string) {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		writeObj(i+3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", total+1)
	for n := 1; n <= total; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xrefAt)
	return buf.Bytes()
}

func TestExtractBytes_PDFPageCount(t *testing.T) {
	got, err := New(Options{MaxPages: 5}).ExtractBytes(buildPDF(t, 3), FormatPDF)
	require.NoError(t, err)

	assert.Equal(t, 3, got.PageCount)
	assert.Equal(t, FormatPDF, got.Format)
}

func TestExtractBytes_PDFPageLimit(t *testing.T) {
	_, err := New(Options{MaxPages: 1}).ExtractBytes(buildPDF(t, 3), FormatPDF)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPageLimit), "got %v", err)

	_, err = New(Options{MaxPages: 3}).ExtractBytes(buildPDF(t, 3), FormatPDF)
	assert.NoError(t, err)
}

func TestExtractBytes_InvalidPDF(t *testing.T) {
	_, err := New(Options{}).ExtractBytes([]byte("not a pdf"), FormatPDF)
	assert.Error(t, err)
}

func TestFormatResolution(t *testing.T) {
	assert.Equal(t, FormatPDF, formatFromMIME("application/pdf"))
	assert.Equal(t, FormatPlain, formatFromMIME("text/plain; charset=utf-8"))
	assert.Equal(t, FormatDOCX, formatFromMIME("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Equal(t, "", formatFromMIME("application/octet-stream"))
	assert.Equal(t, "", formatFromMIME(""))

	assert.Equal(t, FormatPDF, formatFromPath("/files/Report.PDF"))
	assert.Equal(t, FormatPlain, formatFromPath("/notes.md"))
	assert.Equal(t, "", formatFromPath("/download"))
}

func TestExtract_FetchesAndResolvesFormat(t *testing.T) {
	docx := buildDOCX(t, "alpha beta", "gamma")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
			_, _ = w.Write(docx)
		case "/notes.txt":
			_, _ = w.Write([]byte("plain words here"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := New(Options{Timeout: 5 * time.Second})

	got, err := e.Extract(context.Background(), srv.URL+"/doc", "")
	require.NoError(t, err)
	assert.Equal(t, FormatDOCX, got.Format)
	assert.Equal(t, 3, got.WordCount)

	got, err = e.Extract(context.Background(), srv.URL+"/notes.txt", "")
	require.NoError(t, err)
	assert.Equal(t, FormatPlain, got.Format)
	assert.Equal(t, "plain words here", got.Text)

	// explicit document type wins over the response header
	got, err = e.Extract(context.Background(), srv.URL+"/notes.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, FormatPlain, got.Format)

	_, err = e.Extract(context.Background(), srv.URL+"/missing", "")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestExtract_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 2048))
	}))
	defer srv.Close()

	_, err := New(Options{MaxBytes: 1024}).Extract(context.Background(), srv.URL+"/big.txt", "")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestExtract_InvalidURL(t *testing.T) {
	e := New(Options{})
	for _, raw := range []string{"", "ftp://example.com/a.pdf", "not a url", "http://"} {
		_, err := e.Extract(context.Background(), raw, "")
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}
