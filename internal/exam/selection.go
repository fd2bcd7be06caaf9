package exam

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/slidequiz/internal/model"
)

// Selection is a frozen, ordered list of questions. Both the exam sheet and
// the answer key are rendered from the same Selection, so position i always
// names the same question in both. A Selection is never modified; composing
// again produces a new one.
type Selection struct {
	id        string
	target    int
	createdAt time.Time
	questions []model.Question
}

func newSelection(target int, qs []model.Question) *Selection {
	frozen := make([]model.Question, len(qs))
	for i, q := range qs {
		frozen[i] = q.Clone()
	}
	return &Selection{
		id:        uuid.NewString(),
		target:    target,
		createdAt: time.Now(),
		questions: frozen,
	}
}

// ID identifies this selection.
func (s *Selection) ID() string { return s.id }

// Target is the requested exam length.
func (s *Selection) Target() int { return s.target }

// CreatedAt is when the selection was frozen.
func (s *Selection) CreatedAt() time.Time { return s.createdAt }

// Len returns the number of questions.
func (s *Selection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.questions)
}

// Shortfall is the gap between the target and the actual length.
func (s *Selection) Shortfall() int {
	return max(0, s.target-s.Len())
}

// Complete reports whether the selection has exactly the target length.
func (s *Selection) Complete() bool {
	return s.Len() == s.target
}

// At returns a copy of the question at position i (0-based).
func (s *Selection) At(i int) model.Question {
	return s.questions[i].Clone()
}

// Questions returns copies of all questions in order.
func (s *Selection) Questions() []model.Question {
	out := make([]model.Question, len(s.questions))
	for i, q := range s.questions {
		out[i] = q.Clone()
	}
	return out
}

type selectionJSON struct {
	ID        string           `json:"id"`
	Target    int              `json:"target"`
	CreatedAt time.Time        `json:"created_at"`
	Questions []model.Question `json:"questions"`
}

// MarshalJSON encodes the frozen selection for persistence.
func (s *Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(selectionJSON{
		ID:        s.id,
		Target:    s.target,
		CreatedAt: s.createdAt,
		Questions: s.questions,
	})
}

// UnmarshalSelection restores a selection saved with MarshalJSON.
func UnmarshalSelection(data []byte) (*Selection, error) {
	var raw selectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &Selection{
		id:        raw.ID,
		target:    raw.Target,
		createdAt: raw.CreatedAt,
		questions: raw.Questions,
	}, nil
}
