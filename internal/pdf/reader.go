// Package pdf turns PDF files into segment.Documents. Only extracted text and
// span font sizes matter downstream; everything else about the format stays
// behind this boundary.
package pdf

import (
	"fmt"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"github.com/VictorGavo/milvus-search/internal/segment"
)

// Read opens the PDF at path and extracts every page as a sequence of
// font-sized spans. Failures wrap segment.ErrUnreadableDocument so callers can
// classify them without knowing the parser.
func Read(path string) (segment.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return segment.Document{}, fmt.Errorf("%w: %s: %v", segment.ErrUnreadableDocument, path, err)
	}
	defer f.Close()

	doc := segment.Document{
		Name: filepath.Base(path),
		Path: path,
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := segment.Page{Number: i}
		p := r.Page(i)
		if !p.V.IsNull() {
			page.Spans = groupSpans(p.Content().Text)
		}
		doc.Pages = append(doc.Pages, page)
	}

	return doc, nil
}

// groupSpans coalesces the per-glyph text fragments the parser emits into
// runs sharing a font size, preserving reading order.
func groupSpans(texts []pdf.Text) []segment.Span {
	var spans []segment.Span
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if n := len(spans); n > 0 && spans[n-1].FontSize == t.FontSize {
			spans[n-1].Text += t.S
			continue
		}
		spans = append(spans, segment.Span{Text: t.S, FontSize: t.FontSize})
	}
	return spans
}
