// Package workspace is the per-instructor session context: one topic pool,
// one active exam slot, and write-through persistence to the store.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/slidequiz/internal/exam"
	"github.com/pavelanni/slidequiz/internal/extract"
	"github.com/pavelanni/slidequiz/internal/llm"
	"github.com/pavelanni/slidequiz/internal/llm/prompts"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/pool"
	"github.com/pavelanni/slidequiz/internal/store"
)

// Extractor reads uploaded slides.
type Extractor interface {
	Extract(ctx context.Context, name string, r io.ReaderAt, size int64) (extract.Source, error)
}

// Generator drafts questions for one topic.
type Generator interface {
	Generate(ctx context.Context, in llm.GenerateInput) (llm.GenerateOutput, error)
}

// Deps are the collaborators shared by every workspace.
type Deps struct {
	Store     *store.Store
	Extractor Extractor
	Generator Generator
	Config    model.AppConfig
	// Timeout bounds one generation call; zero means no extra limit.
	Timeout time.Duration
	// Rand drives selection and shuffling; nil uses the global source.
	Rand exam.Rand
}

// Manager hands out workspaces by user, loading them from the store on
// first use.
type Manager struct {
	deps   Deps
	mu     sync.Mutex
	spaces map[int64]*Workspace
}

// NewManager creates a Manager.
func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps, spaces: make(map[int64]*Workspace)}
}

// Get returns the user's workspace.
func (m *Manager) Get(userID int64) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.spaces[userID]; ok {
		return ws, nil
	}
	ws := &Workspace{userID: userID, deps: m.deps, pool: pool.New()}
	if err := ws.load(); err != nil {
		return nil, fmt.Errorf("load workspace for user %d: %w", userID, err)
	}
	m.spaces[userID] = ws
	return ws, nil
}

// Forget drops a cached workspace so the next Get reloads it.
func (m *Manager) Forget(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.spaces, userID)
}

// Workspace serializes all mutations for one instructor.
type Workspace struct {
	mu     sync.Mutex
	userID int64
	deps   Deps
	pool   *pool.TopicPool
	slot   exam.Slot
}

func (w *Workspace) load() error {
	st := w.deps.Store
	topics, err := st.ListTopics(w.userID)
	if err != nil {
		return err
	}
	for _, t := range topics {
		qs, err := st.ListQuestions(t.ID)
		if err != nil {
			return err
		}
		w.pool.Replace(t.Name, qs)
	}

	active, err := st.LoadActiveExam(w.userID)
	if err != nil {
		return err
	}
	if active != nil {
		sel, err := exam.UnmarshalSelection(active.Selection)
		if err != nil {
			slog.Warn("discarding unreadable active exam", "user_id", w.userID, "error", err)
			return st.ClearActiveExam(w.userID)
		}
		w.slot.Set(sel)
	}
	slog.Debug("workspace loaded", "user_id", w.userID, "topics", len(topics), "questions", w.pool.Total())
	return nil
}

// Pool exposes the topic pool for reading.
func (w *Workspace) Pool() *pool.TopicPool {
	return w.pool
}

// Topics lists the user's topics in upload order.
func (w *Workspace) Topics() ([]model.Topic, error) {
	return w.deps.Store.ListTopics(w.userID)
}

// Topic returns one topic with its questions.
func (w *Workspace) Topic(topicID int64) (*model.Topic, []model.Question, error) {
	t, err := w.topic(topicID)
	if err != nil {
		return nil, nil, err
	}
	return t, w.pool.Questions(t.Name), nil
}

// TopicImages returns the images extracted from a topic's slides.
func (w *Workspace) TopicImages(topicID int64) ([][]byte, error) {
	if _, err := w.topic(topicID); err != nil {
		return nil, err
	}
	return w.deps.Store.TopicImages(topicID)
}

func (w *Workspace) topic(topicID int64) (*model.Topic, error) {
	t, err := w.deps.Store.GetTopic(w.userID, topicID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("topic %d: %w", topicID, store.ErrNotFound)
	}
	return t, nil
}

func (w *Workspace) language() prompts.Language {
	if prompts.IsValidLanguage(w.deps.Config.Language) {
		return prompts.Language(w.deps.Config.Language)
	}
	return prompts.Spanish
}
