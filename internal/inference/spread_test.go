package inference

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/concept"
)

func TestSpreadWithoutTargets(t *testing.T) {
	s := NewSpreader(SpreadOpts{}, zap.NewNop())
	c := concept.New("bird", budget.New(0.9, 0.5, 0.5), concept.DefaultParams())
	out, err := s.Fire(context.Background(), c, nil)
	if err != nil || len(out) != 0 {
		t.Errorf("Fire = %v, %v; want nothing", out, err)
	}
}

func TestSpreadOwnBudget(t *testing.T) {
	s := NewSpreader(DefaultSpreadOpts(), zap.NewNop())
	c := concept.New("bird", budget.New(0.8, 0.6, 0.5), concept.DefaultParams())
	c.AddTermLink(concept.NewTermLink("animal", budget.New(0.5, 0.4, 0.5)))
	c.AddTermLink(concept.NewTermLink("dust", budget.New(0.01, 0.4, 0.5)))

	out, err := s.Fire(context.Background(), c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("derived %d, want 1 above threshold", len(out))
	}
	d := out[0]
	if d.Term != "animal" || d.Truth != nil {
		t.Errorf("derivation = %+v", d)
	}
	if want := 0.7 * 0.8 * 0.5; math.Abs(d.Budget.Priority-want) > 1e-12 {
		t.Errorf("priority = %f, want %f", d.Budget.Priority, want)
	}
	if math.Abs(d.Budget.Durability-0.5) > 1e-12 {
		t.Errorf("durability = %f, want 0.5", d.Budget.Durability)
	}
}

func TestSpreadTaskTruth(t *testing.T) {
	s := NewSpreader(DefaultSpreadOpts(), zap.NewNop())
	c := concept.New("bird", budget.New(0.8, 0.6, 0.5), concept.DefaultParams())
	c.AddTermLink(concept.NewTermLink("animal", budget.New(1, 0.5, 0.5)))
	task := concept.NewTask("bird", budget.NewTruth(0.9, 0.8), budget.New(0.9, 0.5, 0.5))
	link := concept.NewTaskLink(task, budget.New(0.9, 0.5, 0.5))

	out, err := s.Fire(context.Background(), c, []*concept.TaskLink{link})
	if err != nil || len(out) != 1 {
		t.Fatalf("Fire = %v, %v", out, err)
	}
	tr := out[0].Truth
	if tr == nil || tr.Frequency != 0.9 || math.Abs(tr.Confidence-0.56) > 1e-12 {
		t.Errorf("truth = %+v, want %%0.90;0.56%%", tr)
	}
}

func TestSpreadHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSpreader(DefaultSpreadOpts(), zap.NewNop())
	c := concept.New("bird", budget.New(0.8, 0.6, 0.5), concept.DefaultParams())
	if _, err := s.Fire(ctx, c, nil); err == nil {
		t.Error("expected context error")
	}
}
