// Package pool holds the per-topic question lists an exam is drawn from.
package pool

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pavelanni/slidequiz/internal/model"
)

// Entry is one topic and its questions, in pool order.
type Entry struct {
	Topic     string
	Questions []model.Question
}

// TopicPool maps topic names to their question lists. Topic insertion order
// is kept for display. Every list replacement happens under the write lock,
// so readers never observe a partially updated topic.
type TopicPool struct {
	mu      sync.RWMutex
	order   []string
	entries map[string][]model.Question
}

// New creates an empty pool.
func New() *TopicPool {
	return &TopicPool{entries: make(map[string][]model.Question)}
}

// Add appends questions to a topic, creating the topic if needed.
// Questions without an ID get a fresh one.
func (p *TopicPool) Add(topic string, qs ...model.Question) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensure(topic)
	p.entries[topic] = append(p.entries[topic], Prepare(topic, qs)...)
}

// Replace swaps the whole question list of a topic.
func (p *TopicPool) Replace(topic string, qs []model.Question) {
	prepared := Prepare(topic, qs)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensure(topic)
	p.entries[topic] = prepared
}

// Remove deletes a topic. It reports whether the topic existed.
func (p *TopicPool) Remove(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[topic]; !ok {
		return false
	}
	delete(p.entries, topic)
	for i, t := range p.order {
		if t == topic {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Update edits one question in place. The callback receives a copy; the
// result replaces the stored record only if fn returns nil.
func (p *TopicPool) Update(topic, id string, fn func(q *model.Question) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	qs, ok := p.entries[topic]
	if !ok {
		return fmt.Errorf("topic %q not found", topic)
	}
	for i := range qs {
		if qs[i].ID != id {
			continue
		}
		q := qs[i].Clone()
		if err := fn(&q); err != nil {
			return err
		}
		q.ID = id
		q.Topic = topic
		qs[i] = q
		return nil
	}
	return fmt.Errorf("question %s not found in topic %q", id, topic)
}

// Has reports whether a topic exists.
func (p *TopicPool) Has(topic string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[topic]
	return ok
}

// Topics returns topic names in insertion order.
func (p *TopicPool) Topics() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// Questions returns copies of a topic's questions.
func (p *TopicPool) Questions(topic string) []model.Question {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneAll(p.entries[topic])
}

// Total returns the number of questions across all topics.
func (p *TopicPool) Total() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, qs := range p.entries {
		n += len(qs)
	}
	return n
}

// Snapshot returns a consistent copy of the whole pool in topic order.
func (p *TopicPool) Snapshot() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Entry, 0, len(p.order))
	for _, t := range p.order {
		out = append(out, Entry{Topic: t, Questions: cloneAll(p.entries[t])})
	}
	return out
}

func (p *TopicPool) ensure(topic string) {
	if _, ok := p.entries[topic]; !ok {
		p.order = append(p.order, topic)
		p.entries[topic] = nil
	}
}

// Prepare returns copies of qs tagged with the topic, assigning an ID to
// every question that has none. IDs already set are kept.
func Prepare(topic string, qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		c := q.Clone()
		c.Topic = topic
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		out[i] = c
	}
	return out
}

func cloneAll(qs []model.Question) []model.Question {
	if qs == nil {
		return nil
	}
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
