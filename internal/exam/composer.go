package exam

import (
	"errors"
	"fmt"
	"sync"
)

// ErrIncomplete is returned when a composed exam does not match its target
// and the policy requires an exact count.
var ErrIncomplete = errors.New("exam incomplete")

// IncompleteError carries the requested and actual exam lengths.
type IncompleteError struct {
	Want int
	Got  int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("exam incomplete: need exactly %d questions, have %d", e.Want, e.Got)
}

func (e *IncompleteError) Unwrap() error { return ErrIncomplete }

// Policy controls when a composed exam may become the active one.
type Policy struct {
	RequireExact bool
}

// Composer runs selection followed by shuffling.
type Composer struct {
	selector *Selector
	rng      Rand
	policy   Policy
}

// NewComposer creates a Composer sharing one random source between
// selection and shuffling.
func NewComposer(rng Rand, policy Policy) *Composer {
	if rng == nil {
		rng = DefaultRand()
	}
	return &Composer{selector: NewSelector(rng), rng: rng, policy: policy}
}

// Compose selects and shuffles. The result is always returned so callers
// can show the shortfall; with RequireExact a length mismatch also yields
// an *IncompleteError.
func (c *Composer) Compose(src Source, target int, mode Mode) (Result, error) {
	res := c.selector.Select(src, target, mode)
	res.Selection = Shuffle(res.Selection, c.rng)
	if c.policy.RequireExact && res.Selection.Len() != target {
		return res, &IncompleteError{Want: target, Got: res.Selection.Len()}
	}
	return res, nil
}

// State is the lifecycle state of the active exam slot.
type State string

const (
	StateEmpty    State = "empty"
	StateComposed State = "composed"
)

// Slot holds the single active exam of a session. Setting a new selection
// replaces the old one; keys must always be re-rendered from the slot.
type Slot struct {
	mu      sync.RWMutex
	current *Selection
}

// State reports whether an exam has been composed.
func (s *Slot) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return StateEmpty
	}
	return StateComposed
}

// Current returns the active selection, if any.
func (s *Slot) Current() (*Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Set makes sel the active exam.
func (s *Slot) Set(sel *Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sel
}

// Clear returns the slot to the empty state.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
