package handler

import (
	"net/http"
	"strings"

	"github.com/pavelanni/slidequiz/internal/handler/views"
	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/model"
)

func (h *Handler) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	hdr, err := ws.Header()
	if err != nil {
		httpError(w, err)
		return
	}
	renderPage(w, r, http.StatusOK, views.SettingsPage(hdr, nil))
}

func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	hdr := model.SheetHeader{
		Institution:   strings.TrimSpace(strings.ReplaceAll(r.FormValue("institution"), "\r\n", "\n")),
		Tagline:       strings.TrimSpace(r.FormValue("tagline")),
		Faculty:       strings.TrimSpace(r.FormValue("faculty")),
		Department:    strings.TrimSpace(r.FormValue("department")),
		Course:        strings.TrimSpace(r.FormValue("course")),
		Subject:       strings.TrimSpace(r.FormValue("subject")),
		Instructions:  splitLines(r.FormValue("instructions")),
		StudentFields: r.FormValue("student_fields") != "",
	}
	if err := ws.SetHeader(hdr); err != nil {
		httpError(w, err)
		return
	}
	renderPage(w, r, http.StatusOK, views.SettingsPage(hdr, []string{appI18n.T(r.Context(), "SettingsSaved")}))
}

// splitLines returns the non-blank lines of a textarea value.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
