package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"log/slog"
	"regexp"
	"strings"

	"github.com/pavelanni/slidequiz/internal/exam"
	"github.com/pavelanni/slidequiz/internal/model"
)

// Labels holds the user-visible strings the renderers emit.
type Labels struct {
	ExamTitle     string
	KeyTitle      string
	BankTitle     string // formatted with the topic name
	CorrectMarker string
	NoRationale   string
	Rationale     string
	GridTitle     string
	GridNumber    string
	GridAnswer    string
	Answer        string // bank answer prefix
	StudentFields []string
}

// DefaultLabels returns English labels.
func DefaultLabels() Labels {
	return Labels{
		ExamTitle:     "Exam",
		KeyTitle:      "Answer key",
		BankTitle:     "Question bank: %s",
		CorrectMarker: "[CORRECT]",
		NoRationale:   "no rationale provided",
		Rationale:     "Rationale",
		GridTitle:     "CORRECTION TEMPLATE",
		GridNumber:    "No.",
		GridAnswer:    "Answer",
		Answer:        "A",
		StudentFields: []string{"COURSE", "SURNAMES", "NAME", "ID"},
	}
}

// Renderer builds documents from a shared header and label set.
type Renderer struct {
	Header model.SheetHeader
	Labels Labels
}

// New creates a Renderer.
func New(header model.SheetHeader, labels Labels) *Renderer {
	return &Renderer{Header: header, Labels: labels}
}

var optionPrefix = regexp.MustCompile(`(?i)^\s*[a-d]\)\s*`)

// CleanOption strips one leading letter label such as "b) " from an
// option. It is applied exactly once, so "a) a) X" becomes "a) X".
func CleanOption(s string) string {
	return strings.TrimSpace(optionPrefix.ReplaceAllString(s, ""))
}

// RenderExam builds the student-facing sheet. No answer is revealed.
func (r *Renderer) RenderExam(sel *exam.Selection) Document {
	return r.render(sel, r.Labels.ExamTitle, false)
}

// RenderKey builds the answer key for the same selection: identical stems
// and option order, with the correct option marked and the rationale shown.
func (r *Renderer) RenderKey(sel *exam.Selection) Document {
	doc := r.render(sel, r.Labels.KeyTitle, true)
	if len(doc.Items) > 0 {
		doc.Blocks = append(doc.Blocks, PageBreak{})
		doc.Blocks = append(doc.Blocks, Heading{Text: r.Labels.GridTitle, Level: 1, Align: AlignCenter})
		doc.Blocks = append(doc.Blocks, r.correctionGrid(doc.Items))
	}
	return doc
}

func (r *Renderer) render(sel *exam.Selection, title string, reveal bool) Document {
	doc := Document{Title: title}
	doc.Blocks = append(doc.Blocks, r.header(title)...)

	for i, q := range sel.Questions() {
		item := r.newItem(i+1, q, reveal)
		doc.Blocks = append(doc.Blocks, Paragraph{Runs: []Run{
			{Text: fmt.Sprintf("%d. ", item.Number), Bold: true},
			{Text: item.Stem, Bold: true},
		}})
		doc.Blocks, doc.Warnings = r.appendImage(doc.Blocks, doc.Warnings, item.Number, q)
		doc.Blocks = append(doc.Blocks, r.options(item)...)
		if reveal {
			doc.Blocks = append(doc.Blocks, Paragraph{Runs: []Run{
				{Text: r.Labels.Rationale + ": ", Bold: true},
				{Text: item.Rationale},
			}})
		}
		doc.Items = append(doc.Items, item)
	}
	return doc
}

// RenderBank lists every question of one topic with its answer letter and
// rationale.
func (r *Renderer) RenderBank(topic string, questions []model.Question) Document {
	title := fmt.Sprintf(r.Labels.BankTitle, topic)
	doc := Document{Title: title}
	doc.Blocks = append(doc.Blocks, Heading{Text: title, Level: 0})

	for i, q := range questions {
		item := r.newItem(i+1, q, true)
		doc.Blocks = append(doc.Blocks, Paragraph{Runs: []Run{
			{Text: fmt.Sprintf("%d. [%s] ", item.Number, q.Kind.Letter()), Bold: true},
			{Text: item.Stem, Bold: true},
		}})
		doc.Blocks, doc.Warnings = r.appendImage(doc.Blocks, doc.Warnings, item.Number, q)
		for j, opt := range item.Options {
			doc.Blocks = append(doc.Blocks, Text(fmt.Sprintf("%s) %s", model.OptionLetter(j), opt)))
		}
		doc.Blocks = append(doc.Blocks, Paragraph{Runs: []Run{
			{Text: fmt.Sprintf("%s: %s. ", r.Labels.Answer, strings.ToUpper(model.OptionLetter(q.CorrectIndex))), Bold: true},
			{Text: item.Rationale},
		}})
		doc.Items = append(doc.Items, item)
	}
	return doc
}

func (r *Renderer) newItem(n int, q model.Question, reveal bool) Item {
	item := Item{
		Number:   n,
		Stem:     strings.TrimSpace(q.Stem),
		Correct:  -1,
		HasImage: q.HasImage(),
	}
	for i, opt := range q.Options {
		item.Options[i] = CleanOption(opt)
	}
	if reveal {
		item.Correct = q.CorrectIndex
		item.Rationale = strings.TrimSpace(q.Rationale)
		if item.Rationale == "" {
			item.Rationale = r.Labels.NoRationale
		}
	}
	return item
}

func (r *Renderer) options(item Item) []Block {
	out := make([]Block, 0, len(item.Options))
	for i, opt := range item.Options {
		p := Text(fmt.Sprintf("%s) %s", model.OptionLetter(i), opt))
		if i == item.Correct {
			p = Paragraph{Runs: []Run{{
				Text: fmt.Sprintf("%s) %s %s", model.OptionLetter(i), opt, r.Labels.CorrectMarker),
				Bold: true,
			}}}
		}
		out = append(out, p)
	}
	return out
}

func (r *Renderer) appendImage(blocks []Block, warnings []string, n int, q model.Question) ([]Block, []string) {
	if !q.HasImage() {
		return blocks, warnings
	}
	img, err := DecodeImage(q.Image)
	if err != nil {
		slog.Warn("skipping image", "question", q.ID, "position", n, "error", err)
		return blocks, append(warnings, fmt.Sprintf("question %d: image skipped: %v", n, err))
	}
	return append(blocks, img), warnings
}

// DecodeImage checks that data is a supported image and returns it as a block.
func DecodeImage(data []byte) (Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decoding image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Image{}, fmt.Errorf("image has no size (%dx%d)", cfg.Width, cfg.Height)
	}
	return Image{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func (r *Renderer) header(title string) []Block {
	h := r.Header
	var blocks []Block

	left := Cell{}
	if h.Institution != "" {
		left.Paragraphs = append(left.Paragraphs, Paragraph{Runs: []Run{{Text: h.Institution, Bold: true, Size: 14}}})
	}
	if h.Tagline != "" {
		left.Paragraphs = append(left.Paragraphs, Paragraph{Runs: []Run{{Text: h.Tagline, Size: 7}}})
	}
	right := Cell{}
	for _, line := range []string{h.Faculty, h.Department} {
		if line != "" {
			right.Paragraphs = append(right.Paragraphs, Paragraph{Runs: []Run{{Text: line, Bold: true, Size: 9}}, Align: AlignRight})
		}
	}
	if len(left.Paragraphs) > 0 || len(right.Paragraphs) > 0 {
		blocks = append(blocks, Table{Rows: [][]Cell{{left, right}}, Widths: []int{4500, 4500}})
	}

	if h.StudentFields {
		fields := r.Labels.StudentFields
		var rows [][]Cell
		for i := 0; i < len(fields); i += 2 {
			row := []Cell{TextCell(fields[i] + ":")}
			if i+1 < len(fields) {
				row = append(row, TextCell(fields[i+1]+":"))
			} else {
				row = append(row, TextCell(""))
			}
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			blocks = append(blocks, Table{Rows: rows, Borders: true, Widths: []int{4500, 4500}})
		}
	}

	heading := title
	if h.Subject != "" {
		heading = h.Subject + " · " + title
	}
	if h.Course != "" {
		heading = h.Course + " " + heading
	}
	blocks = append(blocks, Heading{Text: heading, Level: 0, Align: AlignCenter})

	if len(h.Instructions) > 0 {
		cell := Cell{}
		for _, line := range h.Instructions {
			cell.Paragraphs = append(cell.Paragraphs, Paragraph{Runs: []Run{{Text: line, Size: 9}}})
		}
		blocks = append(blocks, Table{Rows: [][]Cell{{cell}}, Borders: true, Widths: []int{9000}})
	}
	return blocks
}

func (r *Renderer) correctionGrid(items []Item) Table {
	half := (len(items) + 1) / 2
	rows := [][]Cell{{
		Cell{Paragraphs: []Paragraph{Bold(r.Labels.GridNumber)}},
		Cell{Paragraphs: []Paragraph{Bold(r.Labels.GridAnswer)}},
		Cell{Paragraphs: []Paragraph{Bold(r.Labels.GridNumber)}},
		Cell{Paragraphs: []Paragraph{Bold(r.Labels.GridAnswer)}},
	}}
	answer := func(it Item) string {
		return strings.ToUpper(model.OptionLetter(it.Correct))
	}
	for i := 0; i < half; i++ {
		row := []Cell{TextCell(fmt.Sprint(items[i].Number)), TextCell(answer(items[i]))}
		if j := i + half; j < len(items) {
			row = append(row, TextCell(fmt.Sprint(items[j].Number)), TextCell(answer(items[j])))
		} else {
			row = append(row, TextCell(""), TextCell(""))
		}
		rows = append(rows, row)
	}
	return Table{Rows: rows, Borders: true, Widths: []int{1200, 2200, 1200, 2200}}
}
