package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/slidequiz/internal/exam"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/pool"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func composed(t *testing.T, n int, mutate func(i int, q *model.Question)) *exam.Selection {
	t.Helper()
	p := pool.New()
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			Stem:         fmt.Sprintf("Stem %d", i),
			Options:      [4]string{"a) alpha", "B) beta", "gamma", "d)delta"},
			CorrectIndex: i % 4,
			Rationale:    fmt.Sprintf("because %d", i),
		}
		if mutate != nil {
			mutate(i, &qs[i])
		}
	}
	p.Replace("T1", qs)
	res, err := exam.NewComposer(exam.NewRand(7), exam.Policy{}).Compose(p, n, exam.Automatic())
	require.NoError(t, err)
	return res.Selection
}

// texts flattens every paragraph run in the document body.
func texts(doc Document) []string {
	var out []string
	var walk func(b Block)
	walk = func(b Block) {
		switch v := b.(type) {
		case Paragraph:
			var sb strings.Builder
			for _, r := range v.Runs {
				sb.WriteString(r.Text)
			}
			out = append(out, sb.String())
		case Heading:
			out = append(out, v.Text)
		case Table:
			for _, row := range v.Rows {
				for _, c := range row {
					for _, p := range c.Paragraphs {
						walk(p)
					}
				}
			}
		}
	}
	for _, b := range doc.Blocks {
		walk(b)
	}
	return out
}

func TestCleanOption(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Preeclampsia", "Preeclampsia"},
		{"a) Preeclampsia", "Preeclampsia"},
		{"C) Preeclampsia", "Preeclampsia"},
		{"a) a) Preeclampsia", "a) Preeclampsia"},
		{"  b)Eclampsia ", "Eclampsia"},
		{"e) not a label", "e) not a label"},
		{"(a) parenthesised", "(a) parenthesised"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanOption(tt.in), "CleanOption(%q)", tt.in)
	}
}

func TestCleanOptionIdempotentOnCleanText(t *testing.T) {
	for _, s := range []string{"Preeclampsia", "Hipertensión arterial", "12 mmHg"} {
		assert.Equal(t, s, CleanOption(CleanOption(s)))
	}
}

func TestExamAndKeyCorrespond(t *testing.T) {
	sel := composed(t, 12, nil)
	r := New(model.DefaultSheetHeader(), DefaultLabels())

	ex := r.RenderExam(sel)
	key := r.RenderKey(sel)

	require.Len(t, ex.Items, 12)
	require.Len(t, key.Items, 12)
	for i := range ex.Items {
		assert.Equal(t, i+1, ex.Items[i].Number)
		assert.Equal(t, ex.Items[i].Stem, key.Items[i].Stem)
		assert.Equal(t, ex.Items[i].Options, key.Items[i].Options)
		assert.Equal(t, -1, ex.Items[i].Correct)
		assert.Equal(t, sel.At(i).CorrectIndex, key.Items[i].Correct)
	}
}

func TestExamRevealsNothing(t *testing.T) {
	sel := composed(t, 4, nil)
	r := New(model.DefaultSheetHeader(), DefaultLabels())
	for _, line := range texts(r.RenderExam(sel)) {
		assert.NotContains(t, line, "[CORRECT]")
		assert.NotContains(t, line, "because")
	}
}

func TestExamOptionsAreRelabelled(t *testing.T) {
	sel := composed(t, 1, nil)
	lines := texts(New(model.SheetHeader{}, DefaultLabels()).RenderExam(sel))
	assert.Contains(t, lines, "a) alpha")
	assert.Contains(t, lines, "b) beta")
	assert.Contains(t, lines, "c) gamma")
	assert.Contains(t, lines, "d) delta")
	assert.Contains(t, lines, "1. Stem 0")
}

func TestKeyMarksCorrectOption(t *testing.T) {
	sel := composed(t, 1, func(_ int, q *model.Question) { q.CorrectIndex = 2 })
	doc := New(model.SheetHeader{}, DefaultLabels()).RenderKey(sel)
	lines := texts(doc)
	assert.Contains(t, lines, "c) gamma [CORRECT]")
	assert.Contains(t, lines, "a) alpha")
	assert.Contains(t, lines, "Rationale: because 0")

	var marked int
	for _, b := range doc.Blocks {
		if p, ok := b.(Paragraph); ok && len(p.Runs) == 1 && p.Runs[0].Bold && strings.HasSuffix(p.Runs[0].Text, "[CORRECT]") {
			marked++
		}
	}
	assert.Equal(t, 1, marked)
}

func TestKeyRationalePlaceholder(t *testing.T) {
	sel := composed(t, 1, func(_ int, q *model.Question) { q.Rationale = "  " })
	doc := New(model.SheetHeader{}, DefaultLabels()).RenderKey(sel)
	assert.Equal(t, "no rationale provided", doc.Items[0].Rationale)
	assert.Contains(t, texts(doc), "Rationale: no rationale provided")
}

func TestKeyCorrectionGrid(t *testing.T) {
	sel := composed(t, 5, nil)
	doc := New(model.SheetHeader{}, DefaultLabels()).RenderKey(sel)

	grid, ok := doc.Blocks[len(doc.Blocks)-1].(Table)
	require.True(t, ok, "key must end with the correction grid")
	// header row plus ceil(5/2) rows
	require.Len(t, grid.Rows, 4)
	assert.Equal(t, "1", grid.Rows[1][0].Paragraphs[0].Runs[0].Text)
	assert.Equal(t, "4", grid.Rows[1][2].Paragraphs[0].Runs[0].Text)
	assert.Equal(t, "", grid.Rows[3][2].Paragraphs[0].Runs[0].Text)

	want := strings.ToUpper(model.OptionLetter(sel.At(0).CorrectIndex))
	assert.Equal(t, want, grid.Rows[1][1].Paragraphs[0].Runs[0].Text)
}

func TestSharedHeader(t *testing.T) {
	sel := composed(t, 2, nil)
	r := New(model.DefaultSheetHeader(), DefaultLabels())
	ex := texts(r.RenderExam(sel))
	key := texts(r.RenderKey(sel))

	for _, want := range []string{"FACULTAD DE MEDICINA", "COURSE:", "SURNAMES:"} {
		assert.Contains(t, ex, want)
		assert.Contains(t, key, want)
	}
	assert.Contains(t, ex, "3º Ginecología · Exam")
	assert.Contains(t, key, "3º Ginecología · Answer key")
}

func TestCorruptImageSkipped(t *testing.T) {
	good := pngBytes(t)
	sel := composed(t, 2, func(i int, q *model.Question) {
		if i == 0 {
			q.Stem = "with good image"
			q.SetImage(good)
		} else {
			q.Stem = "with broken image"
			q.SetImage([]byte("not an image"))
		}
	})
	doc := New(model.SheetHeader{}, DefaultLabels()).RenderExam(sel)

	var images []Image
	for _, b := range doc.Blocks {
		if img, ok := b.(Image); ok {
			images = append(images, img)
		}
	}
	require.Len(t, images, 1)
	assert.Equal(t, "png", images[0].Format)
	assert.Equal(t, 4, images[0].Width)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "image skipped")
	assert.Len(t, doc.Items, 2, "text must still render")
}

func TestRenderBank(t *testing.T) {
	qs := []model.Question{
		{Kind: model.KindCaseStudy, Stem: "Case", Options: [4]string{"a) one", "two", "three", "four"}, CorrectIndex: 1, Rationale: "why"},
		{Stem: "Plain", Options: [4]string{"w", "x", "y", "z"}, CorrectIndex: 3},
	}
	doc := New(model.SheetHeader{}, DefaultLabels()).RenderBank("Obstetrics", qs)

	lines := texts(doc)
	assert.Equal(t, "Question bank: Obstetrics", doc.Title)
	assert.Contains(t, lines, "1. [C] Case")
	assert.Contains(t, lines, "a) one")
	assert.Contains(t, lines, "A: B. why")
	assert.Contains(t, lines, "A: D. no rationale provided")
}

func TestRenderEmptySelection(t *testing.T) {
	p := pool.New()
	res, err := exam.NewComposer(exam.NewRand(1), exam.Policy{}).Compose(p, 0, exam.Automatic())
	require.NoError(t, err)
	doc := New(model.DefaultSheetHeader(), DefaultLabels()).RenderKey(res.Selection)
	assert.Empty(t, doc.Items)
	for _, b := range doc.Blocks {
		_, isBreak := b.(PageBreak)
		assert.False(t, isBreak, "no grid page for an empty key")
	}
}
