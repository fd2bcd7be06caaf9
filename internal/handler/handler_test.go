package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/slidequiz/internal/docx"
	"github.com/pavelanni/slidequiz/internal/exam"
	"github.com/pavelanni/slidequiz/internal/extract"
	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/llm"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/store"
	"github.com/pavelanni/slidequiz/internal/workspace"
)

const testPassword = "s3cret"

type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, name string, r io.ReaderAt, size int64) (extract.Source, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return extract.Source{}, err
	}
	return extract.Source{Name: name, Text: string(data), Pages: 1}, nil
}

type testServer struct {
	*httptest.Server
	store  *store.Store
	client *http.Client
	users  map[string]int64
}

func newTestServer(t *testing.T, cfg model.AppConfig) *testServer {
	t.Helper()
	require.NoError(t, appI18n.Init("en"))

	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	users := make(map[string]int64)
	for name, role := range map[string]model.UserRole{"admin": model.UserRoleAdmin, "maria": model.UserRoleInstructor} {
		id, err := st.CreateUser(model.User{Username: name, DisplayName: name, PasswordHash: string(hash), Role: role, Active: true})
		require.NoError(t, err)
		users[name] = id
	}

	provider := llm.NewMockProvider()
	provider.Fallback = llm.DemoQuestions
	gen, err := llm.NewGenerator(provider, "Ginecología", 2048, 0.4)
	require.NoError(t, err)

	if cfg.DefaultCounts.Total() == 0 {
		cfg.DefaultCounts = model.TypeCounts{Direct: 1, Integrated: 1, CaseStudy: 1}
	}
	spaces := workspace.NewManager(workspace.Deps{
		Store:     st,
		Extractor: textExtractor{},
		Generator: gen,
		Config:    cfg,
		Rand:      exam.NewRand(3),
	})
	h := New(st, spaces, cfg)

	r := chi.NewRouter()
	r.Use(appI18n.Middleware)
	r.Use(h.BasePathMiddleware)
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testServer{Server: srv, store: st, client: client, users: users}
}

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// pageToken returns the hidden csrf_token of the first form on a page.
func pageToken(t *testing.T, body string) string {
	t.Helper()
	m := csrfField.FindStringSubmatch(body)
	require.Len(t, m, 2, "page has no csrf_token field")
	return m[1]
}

// csrfToken reads the token the way a browser form would: from a rendered
// page, not from the cookie.
func (s *testServer) csrfToken(t *testing.T) string {
	t.Helper()
	_, body := s.get(t, "/login")
	return pageToken(t, body)
}

// postWithToken submits a form carrying a token taken from an earlier page.
func (s *testServer) postWithToken(t *testing.T, path, token string, form url.Values) (*http.Response, string) {
	t.Helper()
	form.Set("csrf_token", token)
	resp, err := s.client.PostForm(s.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (s *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := s.client.Get(s.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (s *testServer) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	return s.postWithToken(t, path, s.csrfToken(t), form)
}

func (s *testServer) upload(t *testing.T, path, field string, files map[string]string, form url.Values) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("csrf_token", s.csrfToken(t)))
	for k, vs := range form {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := s.client.Post(s.URL+path, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (s *testServer) login(t *testing.T, username string) {
	t.Helper()
	resp, _ := s.post(t, "/login", url.Values{"username": {username}, "password": {testPassword}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestLoginRequired(t *testing.T) {
	s := newTestServer(t, model.AppConfig{})

	resp, _ := s.get(t, "/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t, model.AppConfig{})

	resp, body := s.post(t, "/login", url.Values{"username": {"maria"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid username or password.")
}

func TestLoginAndLogout(t *testing.T) {
	s := newTestServer(t, model.AppConfig{})
	s.login(t, "maria")

	resp, body := s.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No topics yet.")

	resp, _ = s.post(t, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = s.get(t, "/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestCSRFRequired(t *testing.T) {
	s := newTestServer(t, model.AppConfig{})
	s.login(t, "maria")

	resp, err := s.client.PostForm(s.URL+"/topics/generate", url.Values{"topic_id": {"1"}})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = s.client.PostForm(s.URL+"/topics/generate", url.Values{"topic_id": {"1"}, "csrf_token": {"forged"}})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUploadComposeAndDownload(t *testing.T) {
	s := newTestServer(t, model.AppConfig{ExamSize: 4, MaxFiles: 5})
	s.login(t, "maria")

	resp, body := s.upload(t, "/topics/upload", "files", map[string]string{
		"Hemorragia.pdf":   "slides about postpartum bleeding",
		"Preeclampsia.pdf": "slides about hypertension in pregnancy",
	}, url.Values{"direct": {"1"}, "integrated": {"1"}, "case_study": {"1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Hemorragia: 3 questions stored.")
	assert.Contains(t, body, "Preeclampsia: 3 questions stored.")

	resp, body = s.get(t, "/exam")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No exam has been composed yet.")

	resp, _ = s.get(t, "/exam/exam.docx")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.post(t, "/exam/compose", url.Values{"target": {"4"}, "mode": {"automatic"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "New exam with 4 of 4 questions is now active.")

	for _, kind := range []string{"exam", "key"} {
		resp, body = s.get(t, "/exam/"+kind+".docx")
		require.Equal(t, http.StatusOK, resp.StatusCode, kind)
		assert.Equal(t, docx.ContentType, resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), kind+"-")
		assert.True(t, strings.HasPrefix(body, "PK"), "%s is not a zip archive", kind)
	}
}

func TestFormsSurviveDownloads(t *testing.T) {
	s := newTestServer(t, model.AppConfig{ExamSize: 3, MaxFiles: 5})
	s.login(t, "maria")
	s.upload(t, "/topics/upload", "files", map[string]string{"Parto.pdf": "slides about labour"}, nil)

	resp, body := s.get(t, "/exam")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := pageToken(t, body)

	resp, _ = s.postWithToken(t, "/exam/compose", token, url.Values{"target": {"3"}, "mode": {"automatic"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.get(t, "/exam/key.docx")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.get(t, "/exam/exam.docx")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.postWithToken(t, "/exam/compose", token, url.Values{"target": {"3"}, "mode": {"automatic"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, "New exam with 3 of 3 questions is now active.")
}

func TestManualCompose(t *testing.T) {
	s := newTestServer(t, model.AppConfig{ExamSize: 4, MaxFiles: 5})
	s.login(t, "maria")
	s.upload(t, "/topics/upload", "files", map[string]string{"A.pdf": "a", "B.pdf": "b"}, nil)

	resp, body := s.post(t, "/exam/compose", url.Values{
		"target":  {"3"},
		"mode":    {"manual"},
		"topic_0": {"A"}, "count_0": {"3"},
		"topic_1": {"B"}, "count_1": {"0"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "New exam with 3 of 3 questions is now active.")
}

func TestIncompleteExamIsRejected(t *testing.T) {
	s := newTestServer(t, model.AppConfig{ExamSize: 10, MaxFiles: 5, RequireExact: true})
	s.login(t, "maria")
	s.upload(t, "/topics/upload", "files", map[string]string{"Tema.pdf": "text"}, nil)

	resp, body := s.post(t, "/exam/compose", url.Values{"target": {"10"}, "mode": {"automatic"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Only 3 of 10 questions could be drawn.")

	resp, _ = s.get(t, "/exam/key.docx")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUploadLimits(t *testing.T) {
	s := newTestServer(t, model.AppConfig{MaxFiles: 1})
	s.login(t, "maria")

	resp, body := s.upload(t, "/topics/upload", "files", map[string]string{"a.pdf": "a", "b.pdf": "b"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "At most 1 files can be uploaded at once.")

	resp, body = s.upload(t, "/topics/upload", "files", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "No file was selected.")
}

func TestEditQuestionAndExport(t *testing.T) {
	s := newTestServer(t, model.AppConfig{MaxFiles: 5})
	s.login(t, "maria")
	s.upload(t, "/topics/upload", "files", map[string]string{"Parto.pdf": "text"}, nil)

	topics, err := s.store.ListTopics(s.users["maria"])
	require.NoError(t, err)
	require.Len(t, topics, 1)
	qs, err := s.store.ListQuestions(topics[0].ID)
	require.NoError(t, err)
	require.Len(t, qs, 3)

	resp, body := s.post(t, fmt.Sprintf("/bank/%d/questions/%s", topics[0].ID, qs[0].ID), url.Values{
		"kind":      {"case_study"},
		"stem":      {"Edited stem"},
		"option_a":  {"one"},
		"option_b":  {"two"},
		"option_c":  {"three"},
		"option_d":  {"four"},
		"correct":   {"2"},
		"rationale": {"because"},
		"image":     {"keep"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Question saved.")

	resp, body = s.get(t, fmt.Sprintf("/bank/%d/export.json", topics[0].ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Parto.json")
	var bank model.BankExport
	require.NoError(t, json.Unmarshal([]byte(body), &bank))
	require.Len(t, bank.Topics, 1)
	got := bank.Topics[0].Questions[0]
	assert.Equal(t, "Edited stem", got.Question)
	assert.Equal(t, 2, got.AnswerIndex)
	assert.Equal(t, []string{"one", "two", "three", "four"}, got.Options)

	resp, _ = s.get(t, fmt.Sprintf("/bank/%d/docx", topics[0].ID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.get(t, "/bank/9999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImportBank(t *testing.T) {
	s := newTestServer(t, model.AppConfig{MaxFiles: 5})
	s.login(t, "maria")

	bank := `{"topics": [{"name": "Anatomía", "questions": [
	  {"type": "A", "question": "¿Cuántas capas tiene el útero?", "options": ["1", "2", "3", "4"], "answer_index": 2}
	]}]}`
	resp, body := s.upload(t, "/topics/import", "bank", map[string]string{"bank.json": bank}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Anatomía: 1 questions stored.")

	resp, body = s.upload(t, "/topics/import", "bank", map[string]string{"bad.json": "not json at all"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "The file could not be read")
}

func TestDeleteTopic(t *testing.T) {
	s := newTestServer(t, model.AppConfig{MaxFiles: 5})
	s.login(t, "maria")
	s.upload(t, "/topics/upload", "files", map[string]string{"Tema.pdf": "text"}, nil)
	topics, err := s.store.ListTopics(s.users["maria"])
	require.NoError(t, err)
	require.Len(t, topics, 1)

	resp, _ := s.post(t, fmt.Sprintf("/topics/%d/delete", topics[0].ID), nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	topics, err = s.store.ListTopics(s.users["maria"])
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, model.AppConfig{})
	s.login(t, "maria")

	resp, body := s.post(t, "/settings", url.Values{
		"institution":  {"Universidad"},
		"subject":      {"Obstetricia"},
		"instructions": {"Line one\r\n\r\nLine two\r\n"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Header saved.")

	hdr, err := s.store.GetSheetHeader(s.users["maria"])
	require.NoError(t, err)
	assert.Equal(t, "Obstetricia", hdr.Subject)
	assert.Equal(t, []string{"Line one", "Line two"}, hdr.Instructions)
	assert.False(t, hdr.StudentFields)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, model.AppConfig{})

	s.login(t, "maria")
	resp, _ := s.get(t, "/admin/users")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	s.post(t, "/logout", nil)

	s.login(t, "admin")
	resp, body := s.get(t, "/admin/users")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "maria")

	resp, _ = s.post(t, "/admin/users", url.Values{"username": {"luis"}, "password": {"pw"}, "role": {"instructor"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	u, err := s.store.GetUserByUsername("luis")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.UserRoleInstructor, u.Role)

	resp, body = s.post(t, "/admin/users", url.Values{"username": {"luis"}, "password": {"pw"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "User luis already exists.")

	resp, _ = s.post(t, fmt.Sprintf("/admin/users/%d/toggle", u.ID), nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	u, err = s.store.GetUserByID(u.ID)
	require.NoError(t, err)
	assert.False(t, u.Active)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitLines(" a \n\n b\n"))
	assert.Nil(t, splitLines("  \n "))
}
