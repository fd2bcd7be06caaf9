package workspace

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/slidequiz/internal/exam"
	"github.com/pavelanni/slidequiz/internal/extract"
	"github.com/pavelanni/slidequiz/internal/llm"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/render"
	"github.com/pavelanni/slidequiz/internal/store"
)

type fakeExtractor struct {
	images [][]byte
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, name string, r io.ReaderAt, size int64) (extract.Source, error) {
	f.calls++
	if f.err != nil {
		return extract.Source{Name: name}, f.err
	}
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return extract.Source{}, err
	}
	return extract.Source{Name: name, Text: string(data), Images: f.images, Pages: 1}, nil
}

type fixture struct {
	store     *store.Store
	extractor *fakeExtractor
	provider  *llm.MockProvider
	deps      Deps
	userID    int64
}

func newFixture(t *testing.T, requireExact bool) *fixture {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	uid, err := st.CreateUser(model.User{Username: "maria", DisplayName: "Dra. María", PasswordHash: "x", Role: model.UserRoleInstructor, Active: true})
	require.NoError(t, err)

	provider := llm.NewMockProvider()
	provider.Fallback = llm.DemoQuestions
	gen, err := llm.NewGenerator(provider, "Ginecología", 2048, 0.4)
	require.NoError(t, err)

	ext := &fakeExtractor{}
	return &fixture{
		store:     st,
		extractor: ext,
		provider:  provider,
		userID:    uid,
		deps: Deps{
			Store:     st,
			Extractor: ext,
			Generator: gen,
			Config:    model.AppConfig{RequireExact: requireExact, Language: "es"},
			Rand:      exam.NewRand(7),
		},
	}
}

func (f *fixture) workspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := NewManager(f.deps).Get(f.userID)
	require.NoError(t, err)
	return ws
}

func upload(name, text string) Upload {
	return Upload{
		Filename: name,
		Reader:   strings.NewReader(text),
		Size:     int64(len(text)),
		Counts:   model.TypeCounts{Direct: 2, Integrated: 2, CaseStudy: 1},
	}
}

func questions(topic string, n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			Kind:         model.KindDirect,
			Stem:         fmt.Sprintf("%s pregunta %d", topic, i+1),
			Options:      [4]string{"uno", "dos", "tres", "cuatro"},
			CorrectIndex: i % 4,
			Rationale:    "según las diapositivas",
		}
	}
	return qs
}

func TestTopicName(t *testing.T) {
	tests := map[string]string{
		"Tema 3 - Preeclampsia.pdf":  "Tema 3 - Preeclampsia",
		"slides/Parto.PDF":           "Parto",
		`C:\Users\ana\Ecografia.pdf`: "Ecografia",
		"notas.txt":                  "notas.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, TopicName(in), in)
	}
}

func TestImportTopic(t *testing.T) {
	f := newFixture(t, true)
	f.extractor.images = [][]byte{[]byte("img")}
	ws := f.workspace(t)

	rep, err := ws.ImportTopic(context.Background(), upload("Preeclampsia.pdf", "La preeclampsia es un trastorno hipertensivo del embarazo."))
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
	assert.Equal(t, "Preeclampsia", rep.Topic)
	assert.Equal(t, 3, rep.Accepted)
	assert.Contains(t, strings.Join(rep.Warnings, "\n"), "asked for 5")

	assert.Len(t, ws.Pool().Questions("Preeclampsia"), 3)
	stored, err := f.store.ListQuestions(rep.TopicID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, ws.Pool().Questions("Preeclampsia")[0].ID, stored[0].ID)

	images, err := ws.TopicImages(rep.TopicID)
	require.NoError(t, err)
	assert.Len(t, images, 1)

	require.Equal(t, 1, f.provider.CallCount())
	assert.Contains(t, f.provider.Calls[0].Messages[0].Content, "trastorno hipertensivo")
}

func TestImportTopicWithoutText(t *testing.T) {
	f := newFixture(t, true)
	f.extractor.err = fmt.Errorf("scan.pdf: %w", extract.ErrNoText)
	ws := f.workspace(t)

	rep, err := ws.ImportTopic(context.Background(), upload("scan.pdf", "%PDF"))
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "no extractable text")

	topics, err := ws.Topics()
	require.NoError(t, err)
	assert.Empty(t, topics)
	assert.Equal(t, 0, f.provider.CallCount())
}

func TestImportDuplicateFileUnderAnotherName(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)
	text := "El parto normal se divide en tres periodos clínicos bien definidos."

	_, err := ws.ImportTopic(context.Background(), upload("Parto.pdf", text))
	require.NoError(t, err)
	rep, err := ws.ImportTopic(context.Background(), upload("Parto (copia).pdf", text))
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.Contains(t, rep.Warnings[0], `"Parto"`)
	assert.Equal(t, []string{"Parto"}, ws.Pool().Topics())
}

func TestImportTopicsContinuesPastFailures(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)

	f.provider.Fallback = nil
	reports, err := ws.ImportTopics(context.Background(), []Upload{
		upload("Uno.pdf", "texto del primer tema con contenido suficiente para la prueba"),
		upload("Dos.pdf", "texto del segundo tema con contenido suficiente para la prueba"),
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, rep := range reports {
		assert.Equal(t, 0, rep.Accepted)
		assert.Contains(t, strings.Join(rep.Warnings, "\n"), "generation failed")
	}
	assert.Equal(t, []string{"Uno", "Dos"}, ws.Pool().Topics())
}

func TestRegenerateFailureKeepsQuestions(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)
	rep, err := ws.ImportTopic(context.Background(), upload("Parto.pdf", "texto suficiente para generar preguntas de prueba del parto"))
	require.NoError(t, err)
	before := ws.Pool().Questions("Parto")

	f.provider.Fallback = nil
	again, err := ws.Regenerate(context.Background(), rep.TopicID, model.TypeCounts{Direct: 1})
	require.NoError(t, err)
	assert.Contains(t, again.Warnings[0], "generation failed")
	assert.Equal(t, before, ws.Pool().Questions("Parto"))
}

func TestUpdateQuestionPersists(t *testing.T) {
	f := newFixture(t, true)
	f.extractor.images = [][]byte{[]byte("first"), []byte("second")}
	ws := f.workspace(t)
	rep, err := ws.ImportTopic(context.Background(), upload("Ecografía.pdf", "la ecografía obstétrica del primer trimestre permite datar la gestación"))
	require.NoError(t, err)
	q := ws.Pool().Questions("Ecografía")[0]

	updated, err := ws.UpdateQuestion(rep.TopicID, q.ID, QuestionEdit{
		Kind:         model.KindCaseStudy,
		Stem:         "  Enunciado corregido ",
		Options:      [4]string{"a", "b", "", ""},
		CorrectIndex: 3,
		Image:        1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Enunciado corregido", updated.Stem)
	assert.Equal(t, "second", string(updated.Image))
	assert.False(t, updated.Usable(), "correct option is empty")

	reloaded, err := NewManager(f.deps).Get(f.userID)
	require.NoError(t, err)
	got := reloaded.Pool().Questions("Ecografía")[0]
	assert.Equal(t, q.ID, got.ID)
	assert.Equal(t, model.KindCaseStudy, got.Kind)
	assert.Equal(t, "second", string(got.Image))

	_, err = ws.UpdateQuestion(rep.TopicID, q.ID, QuestionEdit{Stem: "x", Image: 5})
	assert.Error(t, err)
	_, err = ws.UpdateQuestion(rep.TopicID, "missing", QuestionEdit{Stem: "x", Image: KeepImage})
	assert.Error(t, err)
}

func TestFailedStoreWriteKeepsPool(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)
	topic, err := ws.ImportQuestions("Uno", questions("Uno", 3))
	require.NoError(t, err)
	before := ws.Pool().Questions("Uno")

	dup := questions("Uno", 2)
	dup[0].ID, dup[1].ID = "same", "same"
	assert.Error(t, ws.SetQuestions(topic.ID, dup))
	assert.Equal(t, before, ws.Pool().Questions("Uno"))
	stored, err := f.store.ListQuestions(topic.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	require.NoError(t, f.store.ReplaceQuestions(topic.ID, nil))
	_, err = ws.UpdateQuestion(topic.ID, before[0].ID, QuestionEdit{Stem: "nuevo", Image: KeepImage})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, before[0].Stem, ws.Pool().Questions("Uno")[0].Stem)
}

func TestComposeActivatesAndPersists(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)
	_, err := ws.ImportQuestions("Uno", questions("Uno", 10))
	require.NoError(t, err)
	_, err = ws.ImportQuestions("Dos", questions("Dos", 10))
	require.NoError(t, err)

	res, err := ws.Compose(8, exam.Automatic())
	require.NoError(t, err)
	assert.Equal(t, 8, res.Selection.Len())
	assert.Equal(t, map[string]int{"Uno": 4, "Dos": 4}, res.Allocation)

	active, ok := ws.ActiveExam()
	require.True(t, ok)
	assert.Equal(t, res.Selection.ID(), active.ID())

	reloaded, err := NewManager(f.deps).Get(f.userID)
	require.NoError(t, err)
	restored, ok := reloaded.ActiveExam()
	require.True(t, ok)
	assert.Equal(t, active.ID(), restored.ID())
	assert.Equal(t, active.Questions(), restored.Questions())
}

func TestIncompleteExamIsNotActivated(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)
	_, err := ws.ImportQuestions("Uno", questions("Uno", 5))
	require.NoError(t, err)

	first, err := ws.Compose(4, exam.Automatic())
	require.NoError(t, err)

	res, err := ws.Compose(40, exam.Automatic())
	var incomplete *exam.IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 40, incomplete.Want)
	assert.Equal(t, 5, incomplete.Got)
	assert.Equal(t, 35, res.Shortfall)

	active, ok := ws.ActiveExam()
	require.True(t, ok)
	assert.Equal(t, first.Selection.ID(), active.ID())
}

func TestIncompleteExamAllowed(t *testing.T) {
	f := newFixture(t, false)
	ws := f.workspace(t)
	_, err := ws.ImportQuestions("Uno", questions("Uno", 5))
	require.NoError(t, err)

	res, err := ws.Compose(40, exam.Manual(map[string]int{"Uno": 40}))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Selection.Len())
	_, ok := ws.ActiveExam()
	assert.True(t, ok)
}

func TestRemoveTopicKeepsActiveExam(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)
	topic, err := ws.ImportQuestions("Uno", questions("Uno", 4))
	require.NoError(t, err)
	res, err := ws.Compose(4, exam.Automatic())
	require.NoError(t, err)

	require.NoError(t, ws.RemoveTopic(topic.ID))
	assert.False(t, ws.Pool().Has("Uno"))
	active, ok := ws.ActiveExam()
	require.True(t, ok)
	assert.Equal(t, res.Selection.Questions(), active.Questions())

	assert.ErrorIs(t, ws.RemoveTopic(topic.ID), store.ErrNotFound)
}

func TestDocuments(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)

	var buf bytes.Buffer
	_, err := ws.WriteKey(&buf, nil, render.DefaultLabels())
	assert.True(t, errors.Is(err, ErrNoActiveExam))

	topic, err := ws.ImportQuestions("Uno", questions("Uno", 4))
	require.NoError(t, err)
	res, err := ws.Compose(4, exam.Automatic())
	require.NoError(t, err)

	for name, write := range map[string]func(io.Writer, *exam.Selection, render.Labels) ([]string, error){
		"exam": ws.WriteExam,
		"key":  ws.WriteKey,
	} {
		buf.Reset()
		warnings, err := write(&buf, res.Selection, render.DefaultLabels())
		require.NoError(t, err, name)
		assert.Empty(t, warnings, name)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")), name)
	}

	buf.Reset()
	_, err = ws.WriteBank(&buf, topic.ID, render.DefaultLabels())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")))
}

func documentXML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, zf := range zr.File {
		if zf.Name != "word/document.xml" {
			continue
		}
		rc, err := zf.Open()
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(body)
	}
	t.Fatal("word/document.xml missing")
	return ""
}

func TestKeyFollowsGivenSelection(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)
	uno, err := ws.ImportQuestions("Uno", questions("Uno", 4))
	require.NoError(t, err)
	first, err := ws.Compose(4, exam.Automatic())
	require.NoError(t, err)

	require.NoError(t, ws.RemoveTopic(uno.ID))
	_, err = ws.ImportQuestions("Dos", questions("Dos", 4))
	require.NoError(t, err)
	second, err := ws.Compose(4, exam.Automatic())
	require.NoError(t, err)
	active, ok := ws.ActiveExam()
	require.True(t, ok)
	require.Equal(t, second.Selection.ID(), active.ID())

	var buf bytes.Buffer
	_, err = ws.WriteKey(&buf, first.Selection, render.DefaultLabels())
	require.NoError(t, err)
	body := documentXML(t, buf.Bytes())
	assert.Contains(t, body, "Uno pregunta")
	assert.NotContains(t, body, "Dos pregunta")
}

func TestHeaderAndExport(t *testing.T) {
	f := newFixture(t, true)
	ws := f.workspace(t)

	h, err := ws.Header()
	require.NoError(t, err)
	h.Subject = "Obstetricia"
	require.NoError(t, ws.SetHeader(h))
	h, err = ws.Header()
	require.NoError(t, err)
	assert.Equal(t, "Obstetricia", h.Subject)

	topic, err := ws.ImportQuestions("Uno", questions("Uno", 2))
	require.NoError(t, err)
	exp, err := ws.Export(topic.ID)
	require.NoError(t, err)
	require.Len(t, exp.Topics, 1)
	assert.Equal(t, "Dra. María", exp.Owner)
	assert.Len(t, exp.Topics[0].Questions, 2)
}

func TestManagerIsolatesUsers(t *testing.T) {
	f := newFixture(t, true)
	other, err := f.store.CreateUser(model.User{Username: "jose", PasswordHash: "x", Active: true})
	require.NoError(t, err)

	m := NewManager(f.deps)
	a, err := m.Get(f.userID)
	require.NoError(t, err)
	b, err := m.Get(other)
	require.NoError(t, err)
	again, err := m.Get(f.userID)
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = a.ImportQuestions("Uno", questions("Uno", 3))
	require.NoError(t, err)
	assert.Equal(t, 3, a.Pool().Total())
	assert.Equal(t, 0, b.Pool().Total())
}
