// Package exam assembles a fixed-size exam from a topic pool: per-topic
// selection without replacement, shuffling, and the active-exam slot.
package exam

import (
	"fmt"
	"log/slog"

	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/pool"
)

// ModeKind distinguishes the two allocation strategies.
type ModeKind string

const (
	ModeManual    ModeKind = "manual"
	ModeAutomatic ModeKind = "automatic"
)

// Mode selects how many questions each topic contributes.
type Mode struct {
	Kind   ModeKind
	Counts map[string]int // manual mode only
}

// Manual draws an explicit number of questions per topic.
func Manual(counts map[string]int) Mode {
	return Mode{Kind: ModeManual, Counts: counts}
}

// Automatic spreads the target evenly over non-empty topics.
func Automatic() Mode {
	return Mode{Kind: ModeAutomatic}
}

// Source is anything that can hand out a consistent copy of a topic pool.
type Source interface {
	Snapshot() []pool.Entry
}

// Result is the outcome of one selection.
type Result struct {
	Selection *Selection
	Shortfall int
	// Allocation is the number of questions actually drawn per topic.
	Allocation map[string]int
	// Excluded counts questions skipped because they fail validation.
	Excluded int
	Warnings []string
}

// Selector draws questions from a pool.
type Selector struct {
	rng Rand
}

// NewSelector creates a Selector. A nil source uses DefaultRand.
func NewSelector(rng Rand) *Selector {
	if rng == nil {
		rng = DefaultRand()
	}
	return &Selector{rng: rng}
}

// Select draws up to target questions. Sampling is uniform without
// replacement inside each topic; topics are concatenated in pool order.
// A shortfall is reported, never filled from other topics.
func (s *Selector) Select(src Source, target int, mode Mode) Result {
	res := Result{Allocation: make(map[string]int)}
	if target <= 0 {
		res.Selection = newSelection(max(target, 0), nil)
		return res
	}

	entries := s.usable(src.Snapshot(), &res)

	var plan map[string]int
	switch mode.Kind {
	case ModeManual:
		plan = s.manualPlan(entries, mode.Counts, &res)
	default:
		plan = automaticPlan(entries, target)
	}

	seen := make(map[string]bool)
	var picked []model.Question
	for _, e := range entries {
		n := plan[e.Topic]
		if n <= 0 {
			continue
		}
		for _, q := range s.draw(e.Questions, n) {
			if seen[q.ID] {
				res.Warnings = append(res.Warnings, fmt.Sprintf("question %s appears in more than one topic; drawn once", q.ID))
				continue
			}
			seen[q.ID] = true
			picked = append(picked, q)
			res.Allocation[e.Topic]++
		}
	}

	res.Selection = newSelection(target, picked)
	res.Shortfall = res.Selection.Shortfall()
	if res.Shortfall > 0 {
		slog.Warn("exam selection short of target",
			"target", target, "selected", len(picked), "shortfall", res.Shortfall, "mode", mode.Kind)
	}
	return res
}

// usable drops questions that fail validation and counts them.
func (s *Selector) usable(entries []pool.Entry, res *Result) []pool.Entry {
	out := make([]pool.Entry, 0, len(entries))
	for _, e := range entries {
		kept := make([]model.Question, 0, len(e.Questions))
		for _, q := range e.Questions {
			if err := q.Validate(); err != nil {
				res.Excluded++
				slog.Debug("excluding invalid question", "topic", e.Topic, "error", err)
				continue
			}
			kept = append(kept, q)
		}
		out = append(out, pool.Entry{Topic: e.Topic, Questions: kept})
	}
	if res.Excluded > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d invalid questions excluded from selection", res.Excluded))
	}
	return out
}

func (s *Selector) manualPlan(entries []pool.Entry, counts map[string]int, res *Result) map[string]int {
	known := make(map[string]bool, len(entries))
	plan := make(map[string]int, len(entries))
	for _, e := range entries {
		known[e.Topic] = true
		n := counts[e.Topic]
		if n < 0 {
			n = 0
		}
		if n > len(e.Questions) {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("topic %q: requested %d, only %d available", e.Topic, n, len(e.Questions)))
			n = len(e.Questions)
		}
		plan[e.Topic] = n
	}
	for topic := range counts {
		if !known[topic] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("topic %q not in pool; ignored", topic))
		}
	}
	return plan
}

// automaticPlan assigns target/n questions to each non-empty topic and one
// extra to the first target%n topics, capped by what each topic holds.
func automaticPlan(entries []pool.Entry, target int) map[string]int {
	var nonEmpty []pool.Entry
	for _, e := range entries {
		if len(e.Questions) > 0 {
			nonEmpty = append(nonEmpty, e)
		}
	}
	plan := make(map[string]int, len(nonEmpty))
	if len(nonEmpty) == 0 {
		return plan
	}
	base := target / len(nonEmpty)
	remainder := target % len(nonEmpty)
	for i, e := range nonEmpty {
		assigned := base
		if i < remainder {
			assigned++
		}
		plan[e.Topic] = min(assigned, len(e.Questions))
	}
	return plan
}

// AutomaticAllocation previews the per-topic counts automatic mode would use.
func AutomaticAllocation(src Source, target int) map[string]int {
	var res Result
	s := &Selector{}
	return automaticPlan(s.usable(src.Snapshot(), &res), max(target, 0))
}

// draw picks n distinct elements uniformly with a partial Fisher-Yates pass.
func (s *Selector) draw(qs []model.Question, n int) []model.Question {
	n = min(n, len(qs))
	idx := make([]int, len(qs))
	for i := range idx {
		idx[i] = i
	}
	out := make([]model.Question, n)
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = qs[idx[i]]
	}
	return out
}
