package views

// Renders dashboard.templ; replaced by templ generate.

import (
	"context"
	"fmt"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/model"
)

// DashboardPage lists the instructor's topics and the upload forms.
func DashboardPage(d DashboardData) templ.Component {
	return page("TopicsTitle", nil, func(ctx context.Context, h *html) {
		h.messages("notices", d.Notices)
		h.messages("warnings", d.Warnings)

		if len(d.Topics) == 0 {
			h.tag("p", t(ctx, "NoTopics"))
		} else {
			h.raw("<table><thead><tr>")
			h.tag("th", t(ctx, "Topic"))
			h.tag("th", t(ctx, "Questions"))
			h.tag("th", t(ctx, "Images"))
			h.raw("<th></th></tr></thead><tbody>")
			for _, row := range d.Topics {
				topicRow(ctx, h, row, d.Defaults)
			}
			h.raw("</tbody></table>")
			h.link(path(ctx, "/bank/export.json"), t(ctx, "ExportAll"))
		}

		h.formStart(ctx, "/topics/upload", true)
		h.raw("<fieldset><legend>")
		h.text(t(ctx, "UploadTitle"))
		h.raw("</legend><p>")
		h.text(appI18n.Td(ctx, "UploadHelp", map[string]any{"MaxFiles": d.MaxFiles}))
		h.raw(`</p><input type="file" name="files" accept="application/pdf,.pdf" multiple required>`)
		countInputs(ctx, h, d.Defaults)
		h.raw(`<button type="submit">`)
		h.text(t(ctx, "UploadButton"))
		h.raw("</button></fieldset></form>")

		h.formStart(ctx, "/topics/import", true)
		h.raw("<fieldset><legend>")
		h.text(t(ctx, "ImportTitle"))
		h.raw("</legend><p>")
		h.text(t(ctx, "ImportHelp"))
		h.raw(`</p><input type="file" name="bank" accept="application/json,.json" required> <button type="submit">`)
		h.text(t(ctx, "ImportButton"))
		h.raw("</button></fieldset></form>")
	})
}

func topicRow(ctx context.Context, h *html, row TopicRow, defaults model.TypeCounts) {
	id := row.Topic.ID
	h.raw("<tr><td>")
	h.link(path(ctx, fmt.Sprintf("/bank/%d", id)), row.Topic.Name)
	h.raw("</td><td>")
	h.text(appI18n.Tp(ctx, "QuestionCount", row.Questions))
	if row.Invalid > 0 {
		h.raw(` <span class="errors">`)
		h.text(appI18n.Tp(ctx, "InvalidCount", row.Invalid))
		h.raw("</span>")
	}
	h.raw("</td><td>")
	h.rawf("%d", row.Topic.ImageCount)
	h.raw("</td><td>")

	h.link(path(ctx, fmt.Sprintf("/bank/%d/docx", id)), t(ctx, "DownloadDocx"))
	h.raw(" ")
	h.link(path(ctx, fmt.Sprintf("/bank/%d/export.json", id)), t(ctx, "DownloadJSON"))

	h.formStart(ctx, "/topics/generate", false)
	h.rawf(`<input type="hidden" name="topic_id" value="%d">`, id)
	countInputs(ctx, h, defaults)
	h.raw(`<button type="submit">`)
	h.text(t(ctx, "Regenerate"))
	h.raw("</button></form>")

	h.formStart(ctx, fmt.Sprintf("/topics/%d/delete", id), false)
	h.raw(`<button type="submit" onclick="return confirm(this.dataset.confirm)"`)
	h.attr("data-confirm", t(ctx, "ConfirmDelete"))
	h.raw(">")
	h.text(t(ctx, "Delete"))
	h.raw("</button></form></td></tr>")
}

// countInputs renders the per-kind question count fields.
func countInputs(ctx context.Context, h *html, c model.TypeCounts) {
	h.raw(`<div class="counts">`)
	for _, f := range countFields(c) {
		h.raw("<label>")
		h.text(t(ctx, f.Label))
		h.raw(` <input type="number" min="0" max="20"`)
		h.attr("name", f.Name)
		h.rawf(` value="%d"></label>`, f.Value)
	}
	h.raw("</div>")
}
