package workspace

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/pavelanni/slidequiz/internal/docx"
	"github.com/pavelanni/slidequiz/internal/exam"
	"github.com/pavelanni/slidequiz/internal/metrics"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/render"
	"github.com/pavelanni/slidequiz/internal/store"
)

// ErrNoActiveExam is returned when a document needs an exam that has not
// been composed yet.
var ErrNoActiveExam = errors.New("no active exam")

// Compose draws a new exam from the pool. A complete exam (or any exam
// when exact length is not required) becomes the active one and replaces
// the previous; an incomplete one is returned with an *exam.IncompleteError
// and the previous exam stays active.
func (w *Workspace) Compose(target int, mode exam.Mode) (exam.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	composer := exam.NewComposer(w.deps.Rand, exam.Policy{RequireExact: w.deps.Config.RequireExact})
	res, err := composer.Compose(w.pool, target, mode)
	complete := res.Selection.Len() == target
	metrics.ExamsComposed.WithLabelValues(string(mode.Kind), strconv.FormatBool(complete)).Inc()
	metrics.ExamShortfall.Add(float64(res.Shortfall))
	if err != nil {
		slog.Info("exam not activated", "user_id", w.userID, "target", target, "got", res.Selection.Len(), "error", err)
		return res, err
	}

	data, err := res.Selection.MarshalJSON()
	if err != nil {
		return res, fmt.Errorf("encode selection: %w", err)
	}
	if err := w.deps.Store.SaveActiveExam(w.userID, store.ActiveExam{
		Selection: data,
		Target:    target,
		Shortfall: res.Shortfall,
		CreatedAt: res.Selection.CreatedAt(),
	}); err != nil {
		return res, fmt.Errorf("save active exam: %w", err)
	}
	w.slot.Set(res.Selection)
	slog.Info("exam composed", "user_id", w.userID, "selection", res.Selection.ID(),
		"mode", mode.Kind, "questions", res.Selection.Len(), "shortfall", res.Shortfall)
	return res, nil
}

// ActiveExam returns the current exam, if one was composed.
func (w *Workspace) ActiveExam() (*exam.Selection, bool) {
	return w.slot.Current()
}

// ClearExam discards the active exam.
func (w *Workspace) ClearExam() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.deps.Store.ClearActiveExam(w.userID); err != nil {
		return err
	}
	w.slot.Clear()
	return nil
}

// Header returns the sheet header used for this user's documents.
func (w *Workspace) Header() (model.SheetHeader, error) {
	return w.deps.Store.GetSheetHeader(w.userID)
}

// SetHeader saves the sheet header.
func (w *Workspace) SetHeader(h model.SheetHeader) error {
	return w.deps.Store.SetSheetHeader(w.userID, h)
}

func (w *Workspace) renderer(labels render.Labels) (*render.Renderer, error) {
	h, err := w.Header()
	if err != nil {
		return nil, err
	}
	return render.New(h, labels), nil
}

// WriteExam writes the exam sheet for sel as a .docx.
func (w *Workspace) WriteExam(out io.Writer, sel *exam.Selection, labels render.Labels) ([]string, error) {
	return w.writeSelection(out, sel, labels, "exam", (*render.Renderer).RenderExam)
}

// WriteKey writes the answer key for sel as a .docx. Given the same
// selection as WriteExam, numbering and answers match the exam sheet.
func (w *Workspace) WriteKey(out io.Writer, sel *exam.Selection, labels render.Labels) ([]string, error) {
	return w.writeSelection(out, sel, labels, "key", (*render.Renderer).RenderKey)
}

func (w *Workspace) writeSelection(out io.Writer, sel *exam.Selection, labels render.Labels, kind string,
	fn func(*render.Renderer, *exam.Selection) render.Document) ([]string, error) {
	if sel == nil {
		return nil, ErrNoActiveExam
	}
	r, err := w.renderer(labels)
	if err != nil {
		return nil, err
	}
	doc := fn(r, sel)
	if err := docx.Write(out, doc); err != nil {
		return doc.Warnings, fmt.Errorf("write %s: %w", kind, err)
	}
	metrics.DocumentsRendered.WithLabelValues(kind).Inc()
	return doc.Warnings, nil
}

// WriteBank writes one topic's questions with answers as a .docx.
func (w *Workspace) WriteBank(out io.Writer, topicID int64, labels render.Labels) ([]string, error) {
	topic, qs, err := w.Topic(topicID)
	if err != nil {
		return nil, err
	}
	r, err := w.renderer(labels)
	if err != nil {
		return nil, err
	}
	doc := r.RenderBank(topic.Name, qs)
	if err := docx.Write(out, doc); err != nil {
		return doc.Warnings, fmt.Errorf("write bank: %w", err)
	}
	metrics.DocumentsRendered.WithLabelValues("bank").Inc()
	return doc.Warnings, nil
}

// Export returns the bank in generator-compatible JSON shape. A topicID of
// zero exports every topic.
func (w *Workspace) Export(topicID int64) (model.BankExport, error) {
	return w.deps.Store.ExportBank(w.userID, topicID)
}
