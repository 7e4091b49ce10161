package concept

import (
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/nuka-mind/internal/budget"
)

// Task is a judgement about a term carried into memory with its own budget.
type Task struct {
	ID      uuid.UUID     `json:"id"`
	Term    Term          `json:"term"`
	Truth   budget.Truth  `json:"truth"`
	Budget  budget.Budget `json:"budget"`
	Created time.Time     `json:"created"`
}

// NewTask creates a task with a fresh ID.
func NewTask(term Term, truth budget.Truth, b budget.Budget) *Task {
	return &Task{
		ID:      uuid.New(),
		Term:    term,
		Truth:   budget.NewTruth(truth.Frequency, truth.Confidence),
		Budget:  b.Normalized(),
		Created: time.Now().UTC(),
	}
}

// Key identifies the task by content: two tasks on the same term with the
// same truth are the same task for linking purposes.
func (t *Task) Key() string {
	return string(t.Term) + " " + t.Truth.String()
}

// TaskLink points a concept at a task that concerns it.
type TaskLink struct {
	Task *Task
	b    budget.Budget
}

// NewTaskLink links to task with budget b.
func NewTaskLink(task *Task, b budget.Budget) *TaskLink {
	return &TaskLink{Task: task, b: b.Normalized()}
}

func (l *TaskLink) Key() string             { return l.Task.Key() }
func (l *TaskLink) Budget() *budget.Budget { return &l.b }

// TermLink points a concept at a related term.
type TermLink struct {
	Target Term
	b      budget.Budget
}

// NewTermLink links to target with budget b.
func NewTermLink(target Term, b budget.Budget) *TermLink {
	return &TermLink{Target: target, b: b.Normalized()}
}

func (l *TermLink) Key() Term               { return l.Target }
func (l *TermLink) Budget() *budget.Budget { return &l.b }
