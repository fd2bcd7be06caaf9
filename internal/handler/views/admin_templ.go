package views

// Renders admin.templ; replaced by templ generate.

import (
	"context"
	"fmt"

	"github.com/a-h/templ"

	"github.com/pavelanni/slidequiz/internal/model"
)

// AdminUsersPage lists accounts and offers a form to create one.
func AdminUsersPage(users []model.User, msg string) templ.Component {
	return page("UsersTitle", nil, func(ctx context.Context, h *html) {
		if msg != "" {
			h.messages("notices", []string{msg})
		}

		h.raw("<table><thead><tr>")
		h.tag("th", t(ctx, "Username"))
		h.tag("th", t(ctx, "DisplayName"))
		h.tag("th", t(ctx, "Role"))
		h.tag("th", t(ctx, "Status"))
		h.raw("<th></th></tr></thead><tbody>")
		for _, u := range users {
			h.raw("<tr>")
			h.tag("td", u.Username)
			h.tag("td", u.DisplayName)
			h.tag("td", t(ctx, roleLabel(u.Role)))
			h.tag("td", t(ctx, statusLabel(u)))
			h.raw("<td>")
			h.formStart(ctx, fmt.Sprintf("/admin/users/%d/toggle", u.ID), false)
			h.raw(`<button type="submit">`)
			h.text(t(ctx, "Toggle"))
			h.raw("</button></form></td></tr>")
		}
		h.raw("</tbody></table>")

		h.formStart(ctx, "/admin/users", false)
		h.raw("<fieldset><legend>")
		h.text(t(ctx, "CreateUser"))
		h.raw("</legend>")
		for _, f := range userFields {
			h.raw("<label>")
			h.text(t(ctx, f.Label))
			h.raw(" <input")
			h.attr("type", f.Type)
			h.attr("name", f.Name)
			h.raw("></label>")
		}
		h.raw("<label>")
		h.text(t(ctx, "Role"))
		h.raw(` <select name="role">`)
		for _, r := range roles {
			option(h, string(r), t(ctx, roleLabel(r)), false)
		}
		h.raw(`</select></label><button type="submit">`)
		h.text(t(ctx, "CreateUser"))
		h.raw("</button></fieldset></form>")
	})
}
