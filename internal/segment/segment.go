package segment

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrUnreadableDocument wraps any failure to open or parse a source document.
var ErrUnreadableDocument = errors.New("unreadable document")

// Span is one run of text sharing a font size, in reading order.
type Span struct {
	Text     string
	FontSize float64
}

// Page holds the spans of one physical page. Number is 1-based.
type Page struct {
	Number int
	Spans  []Span
}

// Document is the extracted form of a source file. Path is the path the
// document was ingested from and feeds unit id derivation; Name is its base
// name and is what gets persisted alongside each unit.
type Document struct {
	Name  string
	Path  string
	Pages []Page
}

// Unit is one addressable span of document text. Sequence is 1-based and
// strategy-dependent: page number in page mode, emission order in section mode.
type Unit struct {
	Sequence int
	Text     string
}

// Strategy selects how a document is cut into units.
type Strategy string

const (
	// StrategyPage emits one unit per physical page. Empty pages still emit
	// an empty-text unit so page numbering stays aligned with the source.
	StrategyPage Strategy = "page"
	// StrategySection groups spans until a heading-sized span starts a new
	// unit, dropping units shorter than the configured minimum.
	StrategySection Strategy = "section"
)

// DefaultMinSectionLength is the trimmed-length floor below which a section
// unit is discarded as header/footer noise.
const DefaultMinSectionLength = 50

func (p Page) text() string {
	var b strings.Builder
	for _, s := range p.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Pages splits doc into one unit per page. An empty document yields an empty
// slice.
func Pages(doc Document) []Unit {
	units := make([]Unit, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		units = append(units, Unit{Sequence: p.Number, Text: p.text()})
	}
	return units
}

// Sections splits doc at heading boundaries: a span whose font size exceeds
// headingFontSize closes the unit being accumulated and opens a new one that
// starts with the heading span itself. A closed unit is emitted only when its
// trimmed text is at least minLength runes; shorter units are dropped.
// Sequence numbers are 1-based over emitted units only.
func Sections(doc Document, headingFontSize float64, minLength int) []Unit {
	if minLength <= 0 {
		minLength = DefaultMinSectionLength
	}

	var units []Unit
	var current strings.Builder

	flush := func() {
		text := current.String()
		current.Reset()
		if utf8.RuneCountInString(strings.TrimSpace(text)) < minLength {
			return
		}
		units = append(units, Unit{Sequence: len(units) + 1, Text: text})
	}

	for _, page := range doc.Pages {
		for _, span := range page.Spans {
			if span.FontSize > headingFontSize && current.Len() > 0 {
				flush()
			}
			current.WriteString(span.Text)
		}
	}
	flush()

	return units
}

// Split applies the chosen strategy. Unknown strategies fall back to page
// mode, the primary ingestion path.
func Split(doc Document, strategy Strategy, headingFontSize float64, minLength int) []Unit {
	if strategy == StrategySection {
		return Sections(doc, headingFontSize, minLength)
	}
	return Pages(doc)
}
