package concept

import (
	"encoding/json"
	"fmt"

	"github.com/nidhogg/nuka-mind/internal/budget"
)

// Snapshot is the serialisable form of a concept, used by out-of-process
// subconscious backends and the HTTP API.
type Snapshot struct {
	Term      Term               `json:"term"`
	Budget    budget.Budget      `json:"budget"`
	TaskLinks []TaskLinkSnapshot `json:"task_links,omitempty"`
	TermLinks []TermLinkSnapshot `json:"term_links,omitempty"`
}

type TaskLinkSnapshot struct {
	Task   Task          `json:"task"`
	Budget budget.Budget `json:"budget"`
}

type TermLinkSnapshot struct {
	Target Term          `json:"target"`
	Budget budget.Budget `json:"budget"`
}

// Snapshot copies the concept and its links.
func (c *Concept) Snapshot() Snapshot {
	s := Snapshot{Term: c.term, Budget: c.budget}
	for _, l := range c.taskLinks.Values() {
		s.TaskLinks = append(s.TaskLinks, TaskLinkSnapshot{Task: *l.Task, Budget: l.b})
	}
	for _, l := range c.termLinks.Values() {
		s.TermLinks = append(s.TermLinks, TermLinkSnapshot{Target: l.Target, Budget: l.b})
	}
	return s
}

// Restore rebuilds a concept from s. Links are re-inserted in reverse
// snapshot order so the lowest ones are the first to be evicted again.
func Restore(s Snapshot, p Params) *Concept {
	c := New(s.Term, s.Budget, p)
	for i := len(s.TaskLinks) - 1; i >= 0; i-- {
		ls := s.TaskLinks[i]
		task := ls.Task
		c.taskLinks.Put(NewTaskLink(&task, ls.Budget))
	}
	for i := len(s.TermLinks) - 1; i >= 0; i-- {
		ls := s.TermLinks[i]
		c.termLinks.Put(NewTermLink(ls.Target, ls.Budget))
	}
	return c
}

// Encode marshals c as a JSON snapshot.
func Encode(c *Concept) ([]byte, error) {
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode concept %s: %w", c.term, err)
	}
	return data, nil
}

// Decode restores a concept from a JSON snapshot.
func Decode(data []byte, p Params) (*Concept, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode concept: %w", err)
	}
	if s.Term == "" {
		return nil, fmt.Errorf("decode concept: empty term")
	}
	return Restore(s, p), nil
}
