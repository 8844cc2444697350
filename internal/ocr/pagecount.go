package ocr

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PDFPageCount probes an uploaded PDF for its page count so the batch knows
// how many items to expect from the splitter. Archives report zero; their
// item count is only known once the splitter has walked the entries.
func PDFPageCount(r io.ReaderAt, size int64) (int, error) {
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return doc.NumPage(), nil
}
