package exam

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/slidequiz/internal/model"
)

func sortedIDs(sel *Selection) []string {
	out := ids(sel)
	sort.Strings(out)
	return out
}

func TestShuffleIsPermutation(t *testing.T) {
	p := newPool(t, 15, 15)
	sel := NewSelector(NewRand(1)).Select(p, 30, Automatic()).Selection
	before := ids(sel)

	for seed := uint64(0); seed < 10; seed++ {
		shuffled := Shuffle(sel, NewRand(seed))
		assert.Equal(t, sel.Len(), shuffled.Len())
		assert.Equal(t, sortedIDs(sel), sortedIDs(shuffled))
		assert.NotEqual(t, sel.ID(), shuffled.ID(), "shuffle must produce a new selection")
	}
	assert.Equal(t, before, ids(sel), "input order must not change")
}

func TestShuffleChangesOrder(t *testing.T) {
	p := newPool(t, 30)
	sel := NewSelector(NewRand(1)).Select(p, 30, Automatic()).Selection
	shuffled := Shuffle(sel, NewRand(2))
	assert.NotEqual(t, ids(sel), ids(shuffled))
}

func TestShuffleEmpty(t *testing.T) {
	sel := newSelection(0, nil)
	assert.Equal(t, 0, Shuffle(sel, NewRand(1)).Len())
}

func TestSelectionIsFrozen(t *testing.T) {
	p := newPool(t, 3)
	sel := NewSelector(NewRand(1)).Select(p, 3, Automatic()).Selection

	first := sel.At(0)
	first.Stem = "changed by caller"
	qs := sel.Questions()
	qs[1].Options[0] = "changed by caller"

	assert.NotEqual(t, "changed by caller", sel.At(0).Stem)
	assert.NotEqual(t, "changed by caller", sel.At(1).Options[0])

	// Later edits in the pool must not leak into an already frozen exam.
	id := sel.At(2).ID
	topic := sel.At(2).Topic
	before := sel.At(2).Stem
	require.NoError(t, p.Update(topic, id, func(q *model.Question) error {
		q.Stem = "edited after compose"
		return nil
	}))
	assert.Equal(t, before, sel.At(2).Stem)
}

func TestSelectionJSONRoundTrip(t *testing.T) {
	p := newPool(t, 4)
	sel := NewSelector(NewRand(1)).Select(p, 5, Automatic()).Selection

	data, err := sel.MarshalJSON()
	require.NoError(t, err)
	back, err := UnmarshalSelection(data)
	require.NoError(t, err)

	assert.Equal(t, sel.ID(), back.ID())
	assert.Equal(t, 5, back.Target())
	assert.Equal(t, 1, back.Shortfall())
	assert.Equal(t, ids(sel), ids(back))
}

func TestComposeExact(t *testing.T) {
	p := newPool(t, 5, 3)
	c := NewComposer(NewRand(11), Policy{RequireExact: true})

	res, err := c.Compose(p, 6, Automatic())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Selection.Len())
	assert.True(t, res.Selection.Complete())
}

func TestComposeIncomplete(t *testing.T) {
	p := newPool(t, 5, 3)

	strict := NewComposer(NewRand(12), Policy{RequireExact: true})
	res, err := strict.Compose(p, 10, Automatic())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncomplete))
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, 10, inc.Want)
	assert.Equal(t, 8, inc.Got)
	assert.Equal(t, 2, res.Shortfall)

	lenient := NewComposer(NewRand(12), Policy{})
	res, err = lenient.Compose(p, 10, Automatic())
	require.NoError(t, err)
	assert.Equal(t, 8, res.Selection.Len())
}

func TestComposeManualOverTarget(t *testing.T) {
	p := newPool(t, 5, 5)
	c := NewComposer(NewRand(13), Policy{RequireExact: true})
	res, err := c.Compose(p, 4, Manual(map[string]int{"T1": 3, "T2": 3}))
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 6, res.Selection.Len())
	assert.Equal(t, 0, res.Shortfall)
}

func TestSlotStates(t *testing.T) {
	var slot Slot
	assert.Equal(t, StateEmpty, slot.State())
	_, ok := slot.Current()
	assert.False(t, ok)

	p := newPool(t, 4)
	c := NewComposer(NewRand(14), Policy{})
	first, err := c.Compose(p, 2, Automatic())
	require.NoError(t, err)
	slot.Set(first.Selection)
	assert.Equal(t, StateComposed, slot.State())

	second, err := c.Compose(p, 2, Automatic())
	require.NoError(t, err)
	slot.Set(second.Selection)
	cur, ok := slot.Current()
	require.True(t, ok)
	assert.Equal(t, second.Selection.ID(), cur.ID())
	assert.NotEqual(t, first.Selection.ID(), cur.ID())

	slot.Clear()
	assert.Equal(t, StateEmpty, slot.State())
}
