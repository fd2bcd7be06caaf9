package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pavelanni/slidequiz/internal/extract"
	"github.com/pavelanni/slidequiz/internal/llm"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/pool"
)

// Upload is one PDF to turn into a topic.
type Upload struct {
	Filename string
	Reader   io.ReaderAt
	Size     int64
	Counts   model.TypeCounts
}

// ImportReport describes what happened to one upload.
type ImportReport struct {
	Topic    string
	TopicID  int64
	Accepted int
	Rejected int
	Skipped  bool
	Warnings []string
}

func (r *ImportReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// TopicName derives a topic name from an uploaded file name.
func TopicName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = base[:len(base)-len(ext)]
	}
	return strings.TrimSpace(base)
}

// ImportTopics imports uploads one after another. Problems with a single
// file become warnings on its report; only storage failures are returned.
func (w *Workspace) ImportTopics(ctx context.Context, uploads []Upload) ([]ImportReport, error) {
	reports := make([]ImportReport, 0, len(uploads))
	for _, u := range uploads {
		rep, err := w.ImportTopic(ctx, u)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// ImportTopic extracts the slides, stores the topic and generates its
// questions. Uploading a file under an existing topic name replaces that
// topic's questions.
func (w *Workspace) ImportTopic(ctx context.Context, u Upload) (ImportReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rep := ImportReport{Topic: TopicName(u.Filename)}
	if rep.Topic == "" {
		rep.Skipped = true
		rep.warn("%s: empty topic name", u.Filename)
		return rep, nil
	}

	hash, err := hashReader(u.Reader, u.Size)
	if err != nil {
		rep.Skipped = true
		rep.warn("%s: %v", rep.Topic, err)
		return rep, nil
	}
	dup, err := w.deps.Store.FindTopicByHash(w.userID, hash)
	if err != nil {
		return rep, err
	}
	if dup != nil && dup.Name != rep.Topic {
		rep.Skipped = true
		rep.warn("%s: same file already imported as %q", rep.Topic, dup.Name)
		return rep, nil
	}

	src, err := w.deps.Extractor.Extract(ctx, rep.Topic, u.Reader, u.Size)
	if err != nil {
		rep.Skipped = true
		if errors.Is(err, extract.ErrNoText) {
			rep.warn("%s: no extractable text (scanned slides?)", rep.Topic)
		} else {
			rep.warn("%s: extraction failed: %v", rep.Topic, err)
		}
		slog.Warn("skipping upload", "topic", rep.Topic, "error", err)
		return rep, nil
	}

	topic, err := w.deps.Store.SaveTopic(w.userID, rep.Topic, hash, src.Text)
	if err != nil {
		return rep, err
	}
	rep.TopicID = topic.ID
	if err := w.deps.Store.ReplaceTopicImages(topic.ID, src.Images); err != nil {
		return rep, fmt.Errorf("store images for %q: %w", topic.Name, err)
	}
	if !w.pool.Has(topic.Name) {
		w.pool.Replace(topic.Name, nil)
	}

	if err := w.generate(ctx, topic, u.Counts, &rep); err != nil {
		return rep, err
	}
	slog.Info("imported topic", "user_id", w.userID, "topic", topic.Name,
		"pages", src.Pages, "images", len(src.Images), "accepted", rep.Accepted, "rejected", rep.Rejected)
	return rep, nil
}

// Regenerate drafts a fresh question list from a topic's stored slide text.
func (w *Workspace) Regenerate(ctx context.Context, topicID int64, counts model.TypeCounts) (ImportReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	topic, err := w.topic(topicID)
	if err != nil {
		return ImportReport{}, err
	}
	rep := ImportReport{Topic: topic.Name, TopicID: topic.ID}
	if err := w.generate(ctx, topic, counts, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// generate runs one generation call. A failed call leaves the topic's
// current questions untouched and is reported as a warning.
func (w *Workspace) generate(ctx context.Context, topic *model.Topic, counts model.TypeCounts, rep *ImportReport) error {
	if counts.Total() <= 0 {
		rep.warn("%s: no questions requested", topic.Name)
		return nil
	}
	if w.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.deps.Timeout)
		defer cancel()
	}

	out, err := w.deps.Generator.Generate(ctx, llm.GenerateInput{
		Topic:    topic.Name,
		Text:     topic.SourceText,
		Counts:   counts,
		Language: w.language(),
	})
	if err != nil {
		slog.Warn("generation failed", "topic", topic.Name, "error", err)
		rep.warn("%s: question generation failed: %v", topic.Name, err)
		return nil
	}
	rep.Accepted = len(out.Questions)
	rep.Rejected = len(out.Rejected)
	if rep.Rejected > 0 {
		rep.warn("%s: %d generated questions rejected", topic.Name, rep.Rejected)
	}
	if rep.Accepted == 0 {
		rep.warn("%s: the model returned no usable questions", topic.Name)
		return nil
	}
	if want := counts.Total(); rep.Accepted != want {
		rep.warn("%s: asked for %d questions, got %d", topic.Name, want, rep.Accepted)
	}
	return w.replace(topic, out.Questions)
}

// SetQuestions replaces a topic's whole question list.
func (w *Workspace) SetQuestions(topicID int64, qs []model.Question) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	topic, err := w.topic(topicID)
	if err != nil {
		return err
	}
	return w.replace(topic, qs)
}

// ImportQuestions creates (or replaces) a topic from an already written
// question list, such as an exported bank.
func (w *Workspace) ImportQuestions(name string, qs []model.Question) (*model.Topic, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	topic, err := w.deps.Store.GetTopicByName(w.userID, name)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		if topic, err = w.deps.Store.SaveTopic(w.userID, name, "", ""); err != nil {
			return nil, err
		}
	}
	if err := w.replace(topic, qs); err != nil {
		return nil, err
	}
	return topic, nil
}

// replace saves the list before the pool sees it, so a failed write leaves
// both with the previous questions.
func (w *Workspace) replace(topic *model.Topic, qs []model.Question) error {
	prepared := pool.Prepare(topic.Name, qs)
	if err := w.deps.Store.ReplaceQuestions(topic.ID, prepared); err != nil {
		return fmt.Errorf("store questions for %q: %w", topic.Name, err)
	}
	w.pool.Replace(topic.Name, prepared)
	return nil
}

// Image choices for QuestionEdit.
const (
	KeepImage = -2
	NoImage   = -1
)

// QuestionEdit is an instructor's correction to one question. Image is an
// index into the topic's extracted images, KeepImage or NoImage.
type QuestionEdit struct {
	Kind         model.Kind
	Stem         string
	Options      [model.NumOptions]string
	CorrectIndex int
	Rationale    string
	Image        int
}

// UpdateQuestion applies an edit. The result may be invalid; invalid
// questions stay in the bank but are never drawn into an exam.
func (w *Workspace) UpdateQuestion(topicID int64, questionID string, e QuestionEdit) (model.Question, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	topic, err := w.topic(topicID)
	if err != nil {
		return model.Question{}, err
	}
	var image []byte
	if e.Image >= 0 {
		images, err := w.deps.Store.TopicImages(topic.ID)
		if err != nil {
			return model.Question{}, err
		}
		if e.Image >= len(images) {
			return model.Question{}, fmt.Errorf("topic %q has no image %d", topic.Name, e.Image+1)
		}
		image = images[e.Image]
	}

	var updated model.Question
	err = w.pool.Update(topic.Name, questionID, func(q *model.Question) error {
		q.Kind = e.Kind
		q.Stem = strings.TrimSpace(e.Stem)
		for i, o := range e.Options {
			q.Options[i] = strings.TrimSpace(o)
		}
		q.CorrectIndex = e.CorrectIndex
		q.Rationale = strings.TrimSpace(e.Rationale)
		switch {
		case e.Image == NoImage:
			q.SetImage(nil)
		case e.Image >= 0:
			q.SetImage(image)
		}
		updated = q.Clone()
		return w.deps.Store.UpdateQuestion(topic.ID, updated)
	})
	if err != nil {
		return model.Question{}, err
	}
	if verr := updated.Validate(); verr != nil {
		slog.Info("question saved in invalid state", "topic", topic.Name, "id", questionID, "error", verr)
	}
	return updated, nil
}

// RemoveTopic deletes a topic and its questions. The active exam is a
// frozen copy and is not affected.
func (w *Workspace) RemoveTopic(topicID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	topic, err := w.topic(topicID)
	if err != nil {
		return err
	}
	if err := w.deps.Store.DeleteTopic(w.userID, topic.ID); err != nil {
		return err
	}
	w.pool.Remove(topic.Name)
	slog.Info("removed topic", "user_id", w.userID, "topic", topic.Name)
	return nil
}

func hashReader(r io.ReaderAt, size int64) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(r, 0, size)); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
