package pool

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/slidequiz/internal/model"
)

func q(stem string) model.Question {
	return model.Question{
		Stem:    stem,
		Options: [model.NumOptions]string{"w", "x", "y", "z"},
	}
}

func TestAddAssignsIDsAndTopic(t *testing.T) {
	p := New()
	p.Add("T1", q("one"), q("two"))

	qs := p.Questions("T1")
	require.Len(t, qs, 2)
	for _, got := range qs {
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "T1", got.Topic)
	}
	assert.NotEqual(t, qs[0].ID, qs[1].ID)

	// Identical content still yields distinct identities.
	p.Add("T1", q("one"))
	qs = p.Questions("T1")
	require.Len(t, qs, 3)
	assert.NotEqual(t, qs[0].ID, qs[2].ID)
}

func TestTopicOrderPreserved(t *testing.T) {
	p := New()
	p.Add("b-topic", q("1"))
	p.Add("a-topic", q("2"))
	p.Add("c-topic", q("3"))
	p.Add("b-topic", q("4"))

	assert.Equal(t, []string{"b-topic", "a-topic", "c-topic"}, p.Topics())
	assert.Equal(t, 4, p.Total())

	snap := p.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "b-topic", snap[0].Topic)
	assert.Len(t, snap[0].Questions, 2)

	require.True(t, p.Remove("a-topic"))
	assert.False(t, p.Remove("a-topic"))
	assert.Equal(t, []string{"b-topic", "c-topic"}, p.Topics())
	assert.False(t, p.Has("a-topic"))
}

func TestReplaceKeepsExistingIDs(t *testing.T) {
	p := New()
	p.Add("T", q("old"))

	withID := q("kept")
	withID.ID = "fixed-id"
	p.Replace("T", []model.Question{withID, q("fresh")})

	qs := p.Questions("T")
	require.Len(t, qs, 2)
	assert.Equal(t, "fixed-id", qs[0].ID)
	assert.Equal(t, "kept", qs[0].Stem)
	assert.NotEmpty(t, qs[1].ID)
}

func TestReturnedQuestionsAreCopies(t *testing.T) {
	p := New()
	src := q("stem")
	src.SetImage([]byte{1, 2, 3})
	p.Add("T", src)

	qs := p.Questions("T")
	qs[0].Stem = "mutated"
	qs[0].Image[0] = 42

	again := p.Questions("T")
	assert.Equal(t, "stem", again[0].Stem)
	assert.Equal(t, byte(1), again[0].Image[0])
}

func TestUpdate(t *testing.T) {
	p := New()
	p.Add("T", q("before"))
	id := p.Questions("T")[0].ID

	err := p.Update("T", id, func(q *model.Question) error {
		q.Stem = "after"
		q.ID = "attempted-change"
		return nil
	})
	require.NoError(t, err)
	got := p.Questions("T")[0]
	assert.Equal(t, "after", got.Stem)
	assert.Equal(t, id, got.ID)

	boom := errors.New("boom")
	err = p.Update("T", id, func(q *model.Question) error {
		q.Stem = "discarded"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "after", p.Questions("T")[0].Stem)

	assert.Error(t, p.Update("T", "missing", func(*model.Question) error { return nil }))
	assert.Error(t, p.Update("nope", id, func(*model.Question) error { return nil }))
}

func TestConcurrentReplaceIsAtomic(t *testing.T) {
	p := New()
	batch := func(tag string) []model.Question {
		out := make([]model.Question, 5)
		for i := range out {
			out[i] = q(tag)
		}
		return out
	}
	p.Replace("T", batch("v0"))

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Replace("T", batch(fmt.Sprintf("v%d", i)))
		}(i)
	}
	for i := 0; i < 50; i++ {
		qs := p.Questions("T")
		require.Len(t, qs, 5)
		for _, got := range qs {
			assert.Equal(t, qs[0].Stem, got.Stem, "reader observed a mixed list")
		}
	}
	wg.Wait()
}
