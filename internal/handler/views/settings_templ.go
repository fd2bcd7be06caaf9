package views

// Renders settings.templ; replaced by templ generate.

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/pavelanni/slidequiz/internal/model"
)

// SettingsPage edits the header printed on exams and keys.
func SettingsPage(hdr model.SheetHeader, notices []string) templ.Component {
	return page("SettingsTitle", nil, func(ctx context.Context, h *html) {
		h.messages("notices", notices)
		h.formStart(ctx, "/settings", false)

		h.raw("<label>")
		h.text(t(ctx, "Institution"))
		h.raw(` <textarea name="institution" rows="2">`)
		h.text(hdr.Institution)
		h.raw("</textarea></label>")
		textField(ctx, h, "tagline", "Tagline", hdr.Tagline)
		textField(ctx, h, "faculty", "Faculty", hdr.Faculty)
		textField(ctx, h, "department", "Department", hdr.Department)
		textField(ctx, h, "course", "Course", hdr.Course)
		textField(ctx, h, "subject", "Subject", hdr.Subject)

		h.raw("<label>")
		h.text(t(ctx, "Instructions"))
		h.raw(` <textarea name="instructions" rows="6">`)
		h.text(strings.Join(hdr.Instructions, "\n"))
		h.raw("</textarea></label>")

		h.raw(`<label><input type="checkbox" name="student_fields" value="1"`)
		if hdr.StudentFields {
			h.raw(" checked")
		}
		h.raw("> ")
		h.text(t(ctx, "StudentFields"))
		h.raw("</label>")

		h.raw(`<button type="submit">`)
		h.text(t(ctx, "Save"))
		h.raw("</button></form>")
	})
}

func textField(ctx context.Context, h *html, name, labelID, value string) {
	h.raw("<label>")
	h.text(t(ctx, labelID))
	h.raw(` <input type="text"`)
	h.attr("name", name)
	h.attr("value", value)
	h.raw("></label>")
}
