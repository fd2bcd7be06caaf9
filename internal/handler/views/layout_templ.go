package views

// Renders layout.templ; replaced by templ generate.

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/model"
)

// html accumulates output and keeps the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

// attr writes ` name="value"` with the value escaped.
func (h *html) attr(name, value string) {
	h.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (h *html) tag(name, text string) {
	h.raw("<" + name + ">")
	h.text(text)
	h.raw("</" + name + ">")
}

func (h *html) link(href, text string) {
	h.raw("<a")
	h.attr("href", string(templ.URL(href)))
	h.raw(">")
	h.text(text)
	h.raw("</a>")
}

func (h *html) csrf(ctx context.Context) {
	h.raw(`<input type="hidden" name="csrf_token"`)
	h.attr("value", model.CSRFTokenFromContext(ctx))
	h.raw(">")
}

// formStart opens a POST form; multipart for uploads.
func (h *html) formStart(ctx context.Context, action string, multipart bool) {
	h.raw(`<form method="post"`)
	h.attr("action", string(templ.URL(path(ctx, action))))
	if multipart {
		h.raw(` enctype="multipart/form-data"`)
	}
	h.raw(">")
	h.csrf(ctx)
}

func (h *html) messages(class string, lines []string) {
	if len(lines) == 0 {
		return
	}
	h.raw("<ul")
	h.attr("class", class)
	h.raw(">")
	for _, l := range lines {
		h.tag("li", l)
	}
	h.raw("</ul>")
}

type body func(ctx context.Context, h *html)

// page wraps content in the common document shell and navigation. The
// title is the translation of titleID filled with data.
func page(titleID string, data map[string]any, content body) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := appI18n.Td(ctx, titleID, data)
		h := &html{w: w}
		h.raw("<!DOCTYPE html>\n<html")
		h.attr("lang", appI18n.Lang(ctx))
		h.raw(`><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.tag("title", title+" · "+t(ctx, "AppTitle"))
		h.raw("<style>" + stylesheet + "</style></head><body>")

		h.raw("<header><nav>")
		h.raw(`<strong class="brand">`)
		h.text(t(ctx, "AppTitle"))
		h.raw("</strong>")
		if u := model.UserFromContext(ctx); u != nil {
			h.link(path(ctx, "/"), t(ctx, "NavTopics"))
			h.link(path(ctx, "/exam"), t(ctx, "NavExam"))
			h.link(path(ctx, "/settings"), t(ctx, "NavSettings"))
			if u.Role == model.UserRoleAdmin {
				h.link(path(ctx, "/admin/users"), t(ctx, "NavUsers"))
			}
			h.raw(`<span class="spacer"></span>`)
			for _, lang := range appI18n.Supported() {
				h.link("?lang="+lang, lang)
			}
			h.raw(`<span class="user">`)
			h.text(u.DisplayName)
			h.raw("</span>")
			h.formStart(ctx, "/logout", false)
			h.raw(`<button type="submit" class="link">`)
			h.text(t(ctx, "Logout"))
			h.raw("</button></form>")
		}
		h.raw("</nav></header><main>")
		h.tag("h1", title)
		if h.err != nil {
			return h.err
		}
		content(ctx, h)
		h.raw("</main></body></html>")
		return h.err
	})
}
