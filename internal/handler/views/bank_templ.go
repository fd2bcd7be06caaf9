package views

// Renders bank.templ; replaced by templ generate.

import (
	"context"
	"fmt"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/model"
)

// BankPage shows every question of a topic as an editable form.
func BankPage(d BankData) templ.Component {
	return page("BankTitle", map[string]any{"Topic": d.Topic.Name}, func(ctx context.Context, h *html) {
		h.messages("notices", d.Notices)
		h.raw("<p>")
		h.link(path(ctx, "/"), t(ctx, "BackToTopics"))
		h.raw(" · ")
		h.link(path(ctx, fmt.Sprintf("/bank/%d/docx", d.Topic.ID)), t(ctx, "DownloadDocx"))
		h.raw("</p>")
		if len(d.Questions) == 0 {
			h.tag("p", t(ctx, "NoQuestions"))
			return
		}
		for i, q := range d.Questions {
			questionForm(ctx, h, d.Topic, i+1, q)
		}
	})
}

func questionForm(ctx context.Context, h *html, topic model.Topic, n int, q model.Question) {
	h.raw("<fieldset")
	h.attr("id", "q-"+q.ID)
	h.attr("class", questionClass(q))
	h.raw("><legend>")
	h.rawf("%d", n)
	h.raw("</legend>")
	if msg := questionProblems(ctx, q); msg != "" {
		h.messages("errors", []string{msg})
	}

	h.formStart(ctx, fmt.Sprintf("/bank/%d/questions/%s", topic.ID, q.ID), false)

	h.raw("<label>")
	h.text(t(ctx, "Kind"))
	h.raw(` <select name="kind">`)
	for _, k := range model.Kinds {
		option(h, string(k), t(ctx, kindLabels[k]), k == q.Kind)
	}
	h.raw("</select></label>")

	h.raw("<label>")
	h.text(t(ctx, "Stem"))
	h.raw(` <textarea name="stem" rows="3">`)
	h.text(q.Stem)
	h.raw("</textarea></label>")

	for i, opt := range q.Options {
		letter := model.OptionLetter(i)
		h.raw("<label>")
		h.raw(`<input type="radio" name="correct"`)
		h.rawf(` value="%d"`, i)
		if i == q.CorrectIndex {
			h.raw(" checked")
		}
		h.raw("> ")
		h.text(letter + ")")
		h.raw(` <input type="text"`)
		h.attr("name", "option_"+letter)
		h.attr("value", opt)
		h.raw("></label>")
	}

	h.raw("<label>")
	h.text(t(ctx, "Rationale"))
	h.raw(` <textarea name="rationale" rows="2">`)
	h.text(q.Rationale)
	h.raw("</textarea></label>")

	if topic.ImageCount > 0 || q.HasImage() {
		h.raw("<label>")
		h.text(t(ctx, "Image"))
		h.raw(` <select name="image">`)
		option(h, "keep", t(ctx, "ImageKeep"), true)
		option(h, "none", t(ctx, "ImageNone"), false)
		for i := 0; i < topic.ImageCount; i++ {
			option(h, fmt.Sprint(i), appI18n.Td(ctx, "ImageN", map[string]any{"N": i + 1}), false)
		}
		h.raw("</select></label>")
	}

	h.raw(`<button type="submit">`)
	h.text(t(ctx, "Save"))
	h.raw("</button></form></fieldset>")
}

func option(h *html, value, label string, selected bool) {
	h.raw("<option")
	h.attr("value", value)
	if selected {
		h.raw(" selected")
	}
	h.raw(">")
	h.text(label)
	h.raw("</option>")
}
