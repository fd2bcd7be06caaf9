// Package render turns a frozen exam selection into format-neutral
// documents: the student exam sheet, the answer key, and per-topic banks.
package render

// Align is paragraph alignment.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Document is an ordered list of blocks plus the per-question view used to
// check exam/key correspondence.
type Document struct {
	Title    string
	Blocks   []Block
	Items    []Item
	Warnings []string
}

// Item is what a document shows for one question.
type Item struct {
	Number  int
	Stem    string
	Options [4]string // cleaned, without letter prefixes
	// Correct is the revealed answer index, or -1 when hidden.
	Correct   int
	Rationale string
	HasImage  bool
}

// Block is one element of a document body.
type Block interface {
	block()
}

// Run is a span of text with uniform formatting. Size is in points; zero
// means the default size.
type Run struct {
	Text string
	Bold bool
	Size int
}

// Paragraph is a line of runs. Newlines inside a run become line breaks.
type Paragraph struct {
	Runs  []Run
	Align Align
}

// Heading is a title (level 0) or section heading.
type Heading struct {
	Text  string
	Level int
	Align Align
}

// Image is an embedded picture already verified to decode.
type Image struct {
	Data   []byte
	Format string // png, jpeg, gif
	Width  int    // pixels
	Height int
}

// Cell is a table cell.
type Cell struct {
	Paragraphs []Paragraph
}

// Table is a grid of cells. Widths are in twentieths of a point per column.
type Table struct {
	Rows    [][]Cell
	Borders bool
	Widths  []int
}

// PageBreak starts a new page.
type PageBreak struct{}

func (Paragraph) block() {}
func (Heading) block()   {}
func (Image) block()     {}
func (Table) block()     {}
func (PageBreak) block() {}

// Text builds a single-run paragraph.
func Text(s string) Paragraph {
	return Paragraph{Runs: []Run{{Text: s}}}
}

// Bold builds a single bold-run paragraph.
func Bold(s string) Paragraph {
	return Paragraph{Runs: []Run{{Text: s, Bold: true}}}
}

// TextCell builds a cell holding one plain paragraph.
func TextCell(s string) Cell {
	return Cell{Paragraphs: []Paragraph{Text(s)}}
}
