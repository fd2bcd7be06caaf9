package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/slidequiz/internal/docx"
	"github.com/pavelanni/slidequiz/internal/handler/views"
	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/intake"
	"github.com/pavelanni/slidequiz/internal/metrics"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/workspace"
)

// maxCountPerKind bounds a single generation request.
const maxCountPerKind = 20

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	h.renderDashboard(w, r, ws, http.StatusOK, nil, nil)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace,
	status int, notices, warnings []string) {
	topics, err := ws.Topics()
	if err != nil {
		httpError(w, err)
		return
	}
	rows := make([]views.TopicRow, 0, len(topics))
	for _, t := range topics {
		row := views.TopicRow{Topic: t}
		for _, q := range ws.Pool().Questions(t.Name) {
			row.Questions++
			if !q.Usable() {
				row.Invalid++
			}
		}
		rows = append(rows, row)
	}
	renderPage(w, r, status, views.DashboardPage(views.DashboardData{
		Topics:   rows,
		Defaults: h.config.DefaultCounts,
		MaxFiles: h.config.MaxFiles,
		Notices:  notices,
		Warnings: warnings,
	}))
}

// formCounts reads the per-kind generation counts, falling back to the
// configured defaults.
func (h *Handler) formCounts(r *http.Request) model.TypeCounts {
	d := h.config.DefaultCounts
	return model.TypeCounts{
		Direct:     min(formInt(r, "direct", d.Direct), maxCountPerKind),
		Integrated: min(formInt(r, "integrated", d.Integrated), maxCountPerKind),
		CaseStudy:  min(formInt(r, "case_study", d.CaseStudy), maxCountPerKind),
	}
}

func uploadedFiles(r *http.Request, field string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(maxRequestBytes); err != nil {
			return nil
		}
	}
	return r.MultipartForm.File[field]
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	files := uploadedFiles(r, "files")
	if len(files) == 0 {
		h.renderDashboard(w, r, ws, http.StatusBadRequest, nil, []string{appI18n.T(ctx, "NoFiles")})
		return
	}
	if h.config.MaxFiles > 0 && len(files) > h.config.MaxFiles {
		h.renderDashboard(w, r, ws, http.StatusBadRequest, nil,
			[]string{appI18n.Td(ctx, "TooManyFiles", map[string]any{"MaxFiles": h.config.MaxFiles})})
		return
	}

	counts := h.formCounts(r)
	uploads := make([]workspace.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			slog.Error("failed to open upload", "filename", fh.Filename, "error", err)
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		defer f.Close()
		uploads = append(uploads, workspace.Upload{
			Filename: fh.Filename,
			Reader:   f,
			Size:     fh.Size,
			Counts:   counts,
		})
	}

	reports, err := ws.ImportTopics(ctx, uploads)
	if err != nil {
		httpError(w, err)
		return
	}
	var notices, warnings []string
	for _, rep := range reports {
		warnings = append(warnings, rep.Warnings...)
		if rep.Skipped {
			continue
		}
		notices = append(notices, appI18n.Td(ctx, "ImportSummary", map[string]any{
			"Topic":    rep.Topic,
			"Accepted": rep.Accepted,
		}))
	}
	h.renderDashboard(w, r, ws, http.StatusOK, notices, warnings)
}

func (h *Handler) handleImportBank(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	files := uploadedFiles(r, "bank")
	if len(files) == 0 {
		h.renderDashboard(w, r, ws, http.StatusBadRequest, nil, []string{appI18n.T(ctx, "NoFiles")})
		return
	}
	f, err := files[0].Open()
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	fallback := workspace.TopicName(strings.TrimSuffix(files[0].Filename, ".json"))
	topics, err := intake.ParseBank(data, fallback)
	if err != nil {
		slog.Info("rejected bank import", "filename", files[0].Filename, "error", err)
		h.renderDashboard(w, r, ws, http.StatusBadRequest, nil,
			[]string{appI18n.Td(ctx, "ImportFailed", map[string]any{"Error": err.Error()})})
		return
	}

	var notices, warnings []string
	for _, t := range topics {
		for _, rej := range t.Rejected {
			warnings = append(warnings, fmt.Sprintf("%s: %v", t.Name, rej))
		}
		if len(t.Questions) == 0 {
			warnings = append(warnings, appI18n.Td(ctx, "ImportEmpty", map[string]any{"Topic": t.Name}))
			continue
		}
		if _, err := ws.ImportQuestions(t.Name, t.Questions); err != nil {
			httpError(w, err)
			return
		}
		metrics.QuestionsIngested.WithLabelValues("imported").Add(float64(len(t.Questions)))
		notices = append(notices, appI18n.Td(ctx, "ImportSummary", map[string]any{
			"Topic":    t.Name,
			"Accepted": len(t.Questions),
		}))
	}
	h.renderDashboard(w, r, ws, http.StatusOK, notices, warnings)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	topicID, err := strconv.ParseInt(r.FormValue("topic_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid topic ID", http.StatusBadRequest)
		return
	}
	rep, err := ws.Regenerate(r.Context(), topicID, h.formCounts(r))
	if err != nil {
		httpError(w, err)
		return
	}
	var notices []string
	if rep.Accepted > 0 {
		notices = append(notices, appI18n.Td(r.Context(), "ImportSummary", map[string]any{
			"Topic":    rep.Topic,
			"Accepted": rep.Accepted,
		}))
	}
	h.renderDashboard(w, r, ws, http.StatusOK, notices, rep.Warnings)
}

func (h *Handler) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	topicID, err := topicIDParam(r)
	if err != nil {
		http.Error(w, "invalid topic ID", http.StatusBadRequest)
		return
	}
	if err := ws.RemoveTopic(topicID); err != nil {
		httpError(w, err)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleBankPage(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	topicID, err := topicIDParam(r)
	if err != nil {
		http.Error(w, "invalid topic ID", http.StatusBadRequest)
		return
	}
	h.renderBank(w, r, ws, topicID, nil)
}

func (h *Handler) renderBank(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, topicID int64, notices []string) {
	topic, qs, err := ws.Topic(topicID)
	if err != nil {
		httpError(w, err)
		return
	}
	renderPage(w, r, http.StatusOK, views.BankPage(views.BankData{
		Topic:     *topic,
		Questions: qs,
		Notices:   notices,
	}))
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	topicID, err := topicIDParam(r)
	if err != nil {
		http.Error(w, "invalid topic ID", http.StatusBadRequest)
		return
	}
	questionID := chi.URLParam(r, "questionID")

	edit := workspace.QuestionEdit{
		Kind:         model.ParseKind(r.FormValue("kind")),
		Stem:         r.FormValue("stem"),
		CorrectIndex: formInt(r, "correct", -1),
		Rationale:    r.FormValue("rationale"),
		Image:        workspace.KeepImage,
	}
	for i := range edit.Options {
		edit.Options[i] = r.FormValue("option_" + model.OptionLetter(i))
	}
	switch v := r.FormValue("image"); v {
	case "", "keep":
	case "none":
		edit.Image = workspace.NoImage
	default:
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid image", http.StatusBadRequest)
			return
		}
		edit.Image = n
	}

	q, err := ws.UpdateQuestion(topicID, questionID, edit)
	if err != nil {
		httpError(w, err)
		return
	}
	notice := appI18n.T(r.Context(), "QuestionSaved")
	if !q.Usable() {
		notice = appI18n.T(r.Context(), "QuestionSavedInvalid")
	}
	h.renderBank(w, r, ws, topicID, []string{notice})
}

func (h *Handler) handleBankDocx(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	topicID, err := topicIDParam(r)
	if err != nil {
		http.Error(w, "invalid topic ID", http.StatusBadRequest)
		return
	}
	topic, _, err := ws.Topic(topicID)
	if err != nil {
		httpError(w, err)
		return
	}
	h.writeDocx(w, r, topic.Name+".docx", func(out io.Writer) ([]string, error) {
		return ws.WriteBank(out, topicID, appI18n.DocumentLabels(r.Context()))
	})
}

// handleExportBank serves one topic, or every topic when the route has no
// topic ID, in the JSON shape the import form accepts.
func (h *Handler) handleExportBank(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var topicID int64
	if chi.URLParam(r, "topicID") != "" {
		id, err := topicIDParam(r)
		if err != nil {
			http.Error(w, "invalid topic ID", http.StatusBadRequest)
			return
		}
		topicID = id
	}
	bank, err := ws.Export(topicID)
	if err != nil {
		httpError(w, err)
		return
	}
	name := "bank.json"
	if topicID != 0 && len(bank.Topics) == 1 {
		name = bank.Topics[0].Name + ".json"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(name))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bank); err != nil {
		slog.Error("failed to write bank export", "error", err)
	}
}

// writeDocx buffers a document so that a rendering failure can still be
// reported with a proper status code.
func (h *Handler) writeDocx(w http.ResponseWriter, r *http.Request, filename string,
	write func(io.Writer) ([]string, error)) {
	var buf bytes.Buffer
	warnings, err := write(&buf)
	if err != nil {
		httpError(w, err)
		return
	}
	for _, warn := range warnings {
		slog.Warn("document warning", "path", r.URL.Path, "warning", warn)
	}
	w.Header().Set("Content-Type", docx.ContentType)
	w.Header().Set("Content-Disposition", attachment(filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to send document", "path", r.URL.Path, "error", err)
	}
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
