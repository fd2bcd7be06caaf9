package views

// Renders exam.templ; replaced by templ generate.

import (
	"context"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
)

// ExamPage shows the compose form and the active exam.
func ExamPage(d ExamData) templ.Component {
	return page("ComposeTitle", nil, func(ctx context.Context, h *html) {
		h.messages("errors", d.Errors)
		h.messages("notices", d.Notices)
		h.messages("warnings", d.Warnings)

		h.raw("<section>")
		h.tag("h2", t(ctx, "ActiveExamTitle"))
		if d.Active == nil {
			h.tag("p", t(ctx, "NoActiveExam"))
		} else {
			h.tag("p", activeSummary(ctx, d.Active))
			if s := d.Active.Shortfall(); s > 0 {
				h.raw(`<p class="warnings">`)
				h.text(appI18n.Tp(ctx, "Shortfall", s))
				h.raw("</p>")
			}
			h.raw("<p>")
			h.link(path(ctx, "/exam/exam.docx"), t(ctx, "DownloadExam"))
			h.raw(" · ")
			h.link(path(ctx, "/exam/key.docx"), t(ctx, "DownloadKey"))
			h.raw("</p>")
		}
		h.raw("</section>")

		h.formStart(ctx, "/exam/compose", false)
		h.raw("<fieldset><legend>")
		h.text(t(ctx, "ComposeLegend"))
		h.raw("</legend><label>")
		h.text(t(ctx, "ExamSize"))
		h.rawf(` <input type="number" name="target" min="1" max="500" value="%d"></label>`, d.Target)

		modeRadio(h, "automatic", t(ctx, "ModeAutomatic"), !d.Manual)
		modeRadio(h, "manual", t(ctx, "ModeManual"), d.Manual)

		if len(d.Rows) == 0 {
			h.tag("p", t(ctx, "NoTopics"))
		} else {
			h.raw("<table><thead><tr>")
			h.tag("th", t(ctx, "Topic"))
			h.tag("th", t(ctx, "Available"))
			h.tag("th", t(ctx, "ModeAutomatic"))
			h.tag("th", t(ctx, "ModeManual"))
			h.raw("</tr></thead><tbody>")
			for i, row := range d.Rows {
				h.raw("<tr><td>")
				h.text(row.Topic)
				h.rawf(`<input type="hidden" name="topic_%d"`, i)
				h.attr("value", row.Topic)
				h.raw("></td>")
				h.rawf("<td>%d</td><td>%d</td>", row.Available, row.Automatic)
				h.rawf(`<td><input type="number" name="count_%d" min="0" value="%d"></td></tr>`, i, row.Requested)
			}
			h.raw("</tbody></table>")
		}
		h.raw(`<button type="submit">`)
		h.text(t(ctx, "ComposeButton"))
		h.raw("</button></fieldset></form>")
	})
}

func modeRadio(h *html, value, label string, checked bool) {
	h.raw(`<label><input type="radio" name="mode"`)
	h.attr("value", value)
	if checked {
		h.raw(" checked")
	}
	h.raw("> ")
	h.text(label)
	h.raw("</label>")
}
