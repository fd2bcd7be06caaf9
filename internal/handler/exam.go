package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pavelanni/slidequiz/internal/exam"
	"github.com/pavelanni/slidequiz/internal/handler/views"
	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/render"
	"github.com/pavelanni/slidequiz/internal/workspace"
)

// composeForm is what the instructor submitted, echoed back on the page.
type composeForm struct {
	target int
	manual bool
	counts map[string]int
}

func (h *Handler) handleExamPage(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	h.renderExam(w, r, ws, http.StatusOK, composeForm{target: h.config.ExamSize}, views.ExamData{})
}

func (h *Handler) renderExam(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace,
	status int, form composeForm, d views.ExamData) {
	alloc := exam.AutomaticAllocation(ws.Pool(), form.target)
	for _, e := range ws.Pool().Snapshot() {
		row := views.ComposeRow{Topic: e.Topic, Automatic: alloc[e.Topic]}
		for _, q := range e.Questions {
			if q.Usable() {
				row.Available++
			}
		}
		row.Requested = row.Automatic
		if n, ok := form.counts[e.Topic]; ok {
			row.Requested = n
		}
		d.Rows = append(d.Rows, row)
	}
	d.Target = form.target
	d.Manual = form.manual
	if sel, ok := ws.ActiveExam(); ok {
		d.Active = sel
	}
	renderPage(w, r, status, views.ExamPage(d))
}

func (h *Handler) handleCompose(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	form := composeForm{
		target: formInt(r, "target", h.config.ExamSize),
		manual: r.FormValue("mode") == string(exam.ModeManual),
		counts: make(map[string]int),
	}
	for i := 0; ; i++ {
		topic := strings.TrimSpace(r.FormValue(fmt.Sprintf("topic_%d", i)))
		if topic == "" {
			break
		}
		form.counts[topic] = formInt(r, fmt.Sprintf("count_%d", i), 0)
	}

	mode := exam.Automatic()
	if form.manual {
		mode = exam.Manual(form.counts)
	}

	res, err := ws.Compose(form.target, mode)
	d := views.ExamData{Warnings: res.Warnings}
	if res.Excluded > 0 {
		d.Warnings = append(d.Warnings, appI18n.Tp(ctx, "ExcludedInvalid", res.Excluded))
	}
	var incomplete *exam.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		d.Errors = append(d.Errors, appI18n.Td(ctx, "ExamIncomplete", map[string]any{
			"Want": incomplete.Want,
			"Got":  incomplete.Got,
		}))
		h.renderExam(w, r, ws, http.StatusUnprocessableEntity, form, d)
		return
	case err != nil:
		httpError(w, err)
		return
	}
	d.Notices = append(d.Notices, appI18n.Td(ctx, "ExamComposed", map[string]any{
		"Count":  res.Selection.Len(),
		"Target": form.target,
	}))
	h.renderExam(w, r, ws, http.StatusOK, form, d)
}

func (h *Handler) handleExamDocx(w http.ResponseWriter, r *http.Request) {
	h.serveActive(w, r, "exam", (*workspace.Workspace).WriteExam)
}

func (h *Handler) handleKeyDocx(w http.ResponseWriter, r *http.Request) {
	h.serveActive(w, r, "key", (*workspace.Workspace).WriteKey)
}

// serveActive sends a document rendered from the active exam. The file name
// carries the selection ID so an exam and its key can be matched up; name
// and content come from the same selection even if a compose runs meanwhile.
func (h *Handler) serveActive(w http.ResponseWriter, r *http.Request, kind string,
	write func(*workspace.Workspace, io.Writer, *exam.Selection, render.Labels) ([]string, error)) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	sel, ok := ws.ActiveExam()
	if !ok {
		httpError(w, workspace.ErrNoActiveExam)
		return
	}
	id := sel.ID()
	if len(id) > 8 {
		id = id[:8]
	}
	h.writeDocx(w, r, fmt.Sprintf("%s-%s.docx", kind, id), func(out io.Writer) ([]string, error) {
		return write(ws, out, sel, appI18n.DocumentLabels(r.Context()))
	})
}
