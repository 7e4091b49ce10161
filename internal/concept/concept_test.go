package concept

import (
	"testing"

	"github.com/nidhogg/nuka-mind/internal/budget"
)

func TestTaskKey(t *testing.T) {
	a := NewTask("bird", budget.NewTruth(1, 0.9), budget.New(0.8, 0.5, 0.5))
	b := NewTask("bird", budget.NewTruth(1, 0.9), budget.New(0.2, 0.5, 0.5))
	if a.Key() != b.Key() {
		t.Errorf("same term and truth gave keys %q and %q", a.Key(), b.Key())
	}
	if a.ID == b.ID {
		t.Error("tasks share an ID")
	}
	if a.Key() != "bird %1.00;0.90%" {
		t.Errorf("Key() = %q", a.Key())
	}
}

func TestConceptLinks(t *testing.T) {
	c := New("bird", budget.New(0.5, 0.5, 0.5), DefaultParams())
	if c.Key() != "bird" {
		t.Fatalf("Key() = %q", c.Key())
	}

	task := NewTask("bird", budget.NewTruth(1, 0.9), budget.New(0.8, 0.5, 0.5))
	c.AddTaskLink(NewTaskLink(task, budget.New(0.3, 0.5, 0.5)))
	c.AddTaskLink(NewTaskLink(task, budget.New(0.9, 0.5, 0.5)))
	if c.TaskLinkCount() != 1 {
		t.Errorf("duplicate task link stored twice: %d", c.TaskLinkCount())
	}

	c.AddTermLink(NewTermLink("animal", budget.New(0.9, 0.5, 0.5)))
	c.AddTermLink(NewTermLink("wing", budget.New(0.2, 0.5, 0.5)))
	top := c.TopTermLinks(1)
	if len(top) != 1 || top[0].Target != "animal" {
		t.Errorf("TopTermLinks(1) = %v", top)
	}
	if _, ok := c.TermLink("wing"); !ok {
		t.Error("TermLink(wing) missing")
	}
}

func TestLinkBagsBounded(t *testing.T) {
	p := DefaultParams()
	p.TermLinks.Capacity = 2
	c := New("x", budget.New(0.5, 0.5, 0.5), p)
	c.AddTermLink(NewTermLink("a", budget.New(0.9, 0.5, 0.5)))
	c.AddTermLink(NewTermLink("b", budget.New(0.8, 0.5, 0.5)))
	out, ok := c.AddTermLink(NewTermLink("c", budget.New(0.1, 0.5, 0.5)))
	if !ok || out.Target != "c" {
		t.Errorf("overflow = %v, %v; want c rejected", out, ok)
	}
	if c.TermLinkCount() != 2 {
		t.Errorf("TermLinkCount = %d", c.TermLinkCount())
	}
}

func TestEncodeDecode(t *testing.T) {
	b := budget.NewAt(0.6, 0.7, 0.4, 12)
	c := New("bird", b, DefaultParams())
	task := NewTask("bird", budget.NewTruth(0.9, 0.8), budget.New(0.8, 0.5, 0.5))
	c.AddTaskLink(NewTaskLink(task, budget.New(0.7, 0.5, 0.5)))
	c.AddTermLink(NewTermLink("animal", budget.New(0.9, 0.5, 0.5)))
	c.AddTermLink(NewTermLink("wing", budget.New(0.2, 0.5, 0.5)))

	data, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, DefaultParams())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Term() != "bird" || *got.Budget() != c.budget {
		t.Errorf("restored %s, want %s", got, c)
	}
	if got.Budget().LastForgetTime != 12 {
		t.Errorf("LastForgetTime = %d, want 12", got.Budget().LastForgetTime)
	}
	if got.TaskLinkCount() != 1 || got.TermLinkCount() != 2 {
		t.Errorf("links = %d/%d, want 1/2", got.TaskLinkCount(), got.TermLinkCount())
	}
	links := got.TopTaskLinks(1)
	if links[0].Task.ID != task.ID {
		t.Errorf("task ID = %s, want %s", links[0].Task.ID, task.ID)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("{"), DefaultParams()); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := Decode([]byte(`{"budget":{}}`), DefaultParams()); err == nil {
		t.Error("expected error for missing term")
	}
}
