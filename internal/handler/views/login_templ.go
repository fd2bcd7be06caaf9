package views

// Renders login.templ; replaced by templ generate.

import (
	"context"

	"github.com/a-h/templ"
)

// LoginPage renders the sign-in form. errMsg is shown above it when set.
func LoginPage(errMsg string) templ.Component {
	return page("LoginTitle", nil, func(ctx context.Context, h *html) {
		if errMsg != "" {
			h.messages("errors", []string{errMsg})
		}
		h.formStart(ctx, "/login", false)
		h.raw("<label>")
		h.text(t(ctx, "Username"))
		h.raw(` <input type="text" name="username" autocomplete="username" required></label>`)
		h.raw("<label>")
		h.text(t(ctx, "Password"))
		h.raw(` <input type="password" name="password" autocomplete="current-password" required></label>`)
		h.raw(`<button type="submit">`)
		h.text(t(ctx, "LoginButton"))
		h.raw("</button></form>")
	})
}
