package docextract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the plain text of every page, separated by blank lines so
// page boundaries survive as paragraph breaks.
func extractPDF(content []byte, maxPages int) (string, int, error) {
	if len(content) == 0 {
		return "", 0, nil
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	if maxPages > 0 && numPages > maxPages {
		return "", numPages, fmt.Errorf("%w: %d pages (max %d)", ErrPageLimit, numPages, maxPages)
	}

	var buf bytes.Buffer
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", numPages, fmt.Errorf("extract page %d: %w", i, err)
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(text)
	}
	return buf.String(), numPages, nil
}
