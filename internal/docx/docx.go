// Package docx writes render.Document values as WordprocessingML (.docx)
// packages.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/pavelanni/slidequiz/internal/render"
)

// ContentType is the MIME type of a .docx file.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Sizes are in EMUs for drawings and twentieths of a point for pages.
const (
	emuPerPixel = 9525 // at 96 dpi
	maxWidthEMU = 6 * 914400
	pageWidth   = 11906 // A4
	pageHeight  = 16838
	pageMargin  = 1134
)

const (
	relOffice  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	relPackage = "http://schemas.openxmlformats.org/package/2006/relationships"
)

type contentTypes struct {
	XMLName   xml.Name     `xml:"Types"`
	Xmlns     string       `xml:"xmlns,attr"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type relationships struct {
	XMLName xml.Name       `xml:"Relationships"`
	Xmlns   string         `xml:"xmlns,attr"`
	Rels    []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type media struct {
	name string
	rel  string
	data []byte
}

// Write encodes doc as a .docx package.
func Write(w io.Writer, doc render.Document) error {
	b := &builder{}
	body := b.body(doc.Blocks)

	zw := zip.NewWriter(w)
	parts := []struct {
		name string
		data func() ([]byte, error)
	}{
		{"[Content_Types].xml", b.contentTypes},
		{"_rels/.rels", packageRels},
		{"word/_rels/document.xml.rels", b.documentRels},
		{"word/styles.xml", func() ([]byte, error) { return []byte(stylesXML), nil }},
		{"word/document.xml", func() ([]byte, error) { return []byte(documentXML(body)), nil }},
	}
	for _, p := range parts {
		data, err := p.data()
		if err != nil {
			return fmt.Errorf("building %s: %w", p.name, err)
		}
		if err := writePart(zw, p.name, data); err != nil {
			return err
		}
	}
	for _, m := range b.media {
		if err := writePart(zw, "word/media/"+m.name, m.data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing docx: %w", err)
	}
	return nil
}

func writePart(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func marshalPart(v any) ([]byte, error) {
	out, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func packageRels() ([]byte, error) {
	return marshalPart(relationships{
		Xmlns: relPackage,
		Rels: []relationship{{
			ID:     "rId1",
			Type:   relOffice + "/officeDocument",
			Target: "word/document.xml",
		}},
	})
}

type builder struct {
	media []media
	ids   int
}

func (b *builder) contentTypes() ([]byte, error) {
	return marshalPart(contentTypes{
		Xmlns: "http://schemas.openxmlformats.org/package/2006/content-types",
		Defaults: []ctDefault{
			{Extension: "rels", ContentType: "application/vnd.openxmlformats-package.relationships+xml"},
			{Extension: "xml", ContentType: "application/xml"},
			{Extension: "png", ContentType: "image/png"},
			{Extension: "jpeg", ContentType: "image/jpeg"},
			{Extension: "gif", ContentType: "image/gif"},
		},
		Overrides: []ctOverride{
			{PartName: "/word/document.xml", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"},
			{PartName: "/word/styles.xml", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"},
		},
	})
}

func (b *builder) documentRels() ([]byte, error) {
	rels := relationships{Xmlns: relPackage}
	rels.Rels = append(rels.Rels, relationship{ID: "rIdStyles", Type: relOffice + "/styles", Target: "styles.xml"})
	for _, m := range b.media {
		rels.Rels = append(rels.Rels, relationship{ID: m.rel, Type: relOffice + "/image", Target: "media/" + m.name})
	}
	return marshalPart(rels)
}

func (b *builder) body(blocks []render.Block) string {
	var sb strings.Builder
	for _, blk := range blocks {
		switch v := blk.(type) {
		case render.Paragraph:
			b.paragraph(&sb, v)
		case render.Heading:
			heading(&sb, v)
		case render.Image:
			b.image(&sb, v)
		case render.Table:
			b.table(&sb, v)
		case render.PageBreak:
			sb.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
	}
	return sb.String()
}

func (b *builder) paragraph(sb *strings.Builder, p render.Paragraph) {
	sb.WriteString("<w:p>")
	writeAlign(sb, "", p.Align)
	for _, r := range p.Runs {
		writeRun(sb, r)
	}
	sb.WriteString("</w:p>")
}

func heading(sb *strings.Builder, h render.Heading) {
	style := "Title"
	if h.Level > 0 {
		style = fmt.Sprintf("Heading%d", min(h.Level, 3))
	}
	sb.WriteString("<w:p>")
	writeAlign(sb, style, h.Align)
	writeRun(sb, render.Run{Text: h.Text})
	sb.WriteString("</w:p>")
}

func writeAlign(sb *strings.Builder, style string, align render.Align) {
	if style == "" && (align == "" || align == render.AlignLeft) {
		return
	}
	sb.WriteString("<w:pPr>")
	if style != "" {
		fmt.Fprintf(sb, `<w:pStyle w:val="%s"/>`, style)
	}
	if align != "" {
		fmt.Fprintf(sb, `<w:jc w:val="%s"/>`, align)
	}
	sb.WriteString("</w:pPr>")
}

func writeRun(sb *strings.Builder, r render.Run) {
	sb.WriteString("<w:r>")
	if r.Bold || r.Size > 0 {
		sb.WriteString("<w:rPr>")
		if r.Bold {
			sb.WriteString("<w:b/>")
		}
		if r.Size > 0 {
			fmt.Fprintf(sb, `<w:sz w:val="%d"/>`, r.Size*2)
		}
		sb.WriteString("</w:rPr>")
	}
	for i, line := range strings.Split(r.Text, "\n") {
		if i > 0 {
			sb.WriteString("<w:br/>")
		}
		sb.WriteString(`<w:t xml:space="preserve">`)
		escape(sb, line)
		sb.WriteString("</w:t>")
	}
	sb.WriteString("</w:r>")
}

func (b *builder) image(sb *strings.Builder, img render.Image) {
	b.ids++
	n := b.ids
	name := fmt.Sprintf("image%d.%s", n, img.Format)
	rel := fmt.Sprintf("rIdImg%d", n)
	b.media = append(b.media, media{name: name, rel: rel, data: img.Data})

	cx, cy := extent(img.Width, img.Height)
	fmt.Fprintf(sb, `<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic><pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic>`+
		`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`,
		cx, cy, n, n, n, name, rel, cx, cy)
}

// extent converts pixel dimensions to EMUs, scaling down to the maximum
// printable width while keeping the aspect ratio.
func extent(w, h int) (int64, int64) {
	cx := int64(w) * emuPerPixel
	cy := int64(h) * emuPerPixel
	if cx > maxWidthEMU {
		cy = cy * maxWidthEMU / cx
		cx = maxWidthEMU
	}
	return cx, cy
}

func (b *builder) table(sb *strings.Builder, t render.Table) {
	sb.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/>`)
	if t.Borders {
		sb.WriteString("<w:tblBorders>")
		for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
			fmt.Fprintf(sb, `<w:%s w:val="single" w:sz="4" w:space="0" w:color="000000"/>`, side)
		}
		sb.WriteString("</w:tblBorders>")
	}
	sb.WriteString("</w:tblPr><w:tblGrid>")
	for _, wd := range t.Widths {
		fmt.Fprintf(sb, `<w:gridCol w:w="%d"/>`, wd)
	}
	sb.WriteString("</w:tblGrid>")
	for _, row := range t.Rows {
		sb.WriteString("<w:tr>")
		for i, cell := range row {
			sb.WriteString("<w:tc>")
			if i < len(t.Widths) {
				fmt.Fprintf(sb, `<w:tcPr><w:tcW w:w="%d" w:type="dxa"/></w:tcPr>`, t.Widths[i])
			}
			if len(cell.Paragraphs) == 0 {
				sb.WriteString("<w:p/>")
			}
			for _, p := range cell.Paragraphs {
				b.paragraph(sb, p)
			}
			sb.WriteString("</w:tc>")
		}
		sb.WriteString("</w:tr>")
	}
	sb.WriteString("</w:tbl>")
	// Word merges adjacent tables without a paragraph between them.
	sb.WriteString("<w:p/>")
}

func escape(sb *strings.Builder, s string) {
	// xml.EscapeText only fails when the writer does.
	_ = xml.EscapeText(sb, []byte(s))
}

func documentXML(body string) string {
	return xml.Header +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
		"<w:body>" + body +
		fmt.Sprintf(`<w:sectPr><w:pgSz w:w="%d" w:h="%d"/>`+
			`<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>`,
			pageWidth, pageHeight, pageMargin, pageMargin, pageMargin, pageMargin) +
		"</w:body></w:document>"
}

const stylesXML = xml.Header + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/>` +
	`<w:sz w:val="22"/><w:lang w:val="es-ES"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="80"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:spacing w:before="120" w:after="240"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:keepNext/></w:pPr><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:keepNext/></w:pPr><w:rPr><w:b/></w:rPr></w:style>` +
	`</w:styles>`
