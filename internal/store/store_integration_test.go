//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/concept"
	"github.com/nidhogg/nuka-mind/internal/subcon"
)

func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("nuka_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}
	s, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func newConcept(term string, p float64) *concept.Concept {
	return concept.New(concept.Term(term), budget.New(p, 0.5, 0.5), concept.DefaultParams())
}

func TestSubconsciousRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)
	sc := s.Subconscious(subcon.Options{Params: concept.DefaultParams()})

	c := newConcept("bird", 0.4)
	c.AddTermLink(concept.NewTermLink("animal", budget.New(0.7, 0.5, 0.5)))
	if err := sc.Add(ctx, c); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sc.Add(ctx, c); err != nil {
		t.Fatalf("re-Add: %v", err)
	}
	if n, _ := sc.Len(ctx); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}

	got, err := sc.Take(ctx, "bird")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got.Term() != "bird" || got.TermLinkCount() != 1 {
		t.Errorf("restored %s with %d term links", got, got.TermLinkCount())
	}
	if _, err := sc.Take(ctx, "bird"); !errors.Is(err, subcon.ErrNotFound) {
		t.Errorf("second Take err = %v, want ErrNotFound", err)
	}
}

func TestSubconsciousTrim(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)

	var evicted []concept.Term
	sc := s.Subconscious(subcon.Options{MaxItems: 2, Params: concept.DefaultParams(), OnEvict: func(c *concept.Concept) {
		evicted = append(evicted, c.Term())
	}})

	for _, c := range []*concept.Concept{newConcept("mid", 0.5), newConcept("low", 0.2), newConcept("high", 0.9)} {
		if err := sc.Add(ctx, c); err != nil {
			t.Fatalf("Add(%s): %v", c.Term(), err)
		}
	}
	if len(evicted) != 1 || evicted[0] != "low" {
		t.Errorf("evicted = %v, want [low]", evicted)
	}
	if err := sc.Add(ctx, newConcept("tiny", 0.01)); !errors.Is(err, subcon.ErrRejected) {
		t.Errorf("Add(tiny) err = %v, want ErrRejected", err)
	}
}

func TestStatsHistory(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)

	for i := int64(1); i <= 3; i++ {
		if err := s.RecordStats(ctx, StatsRow{Cycle: i * 10, Concepts: int(i), Mass: 0.5}); err != nil {
			t.Fatalf("RecordStats: %v", err)
		}
	}
	rows, err := s.RecentStats(ctx, 2)
	if err != nil {
		t.Fatalf("RecentStats: %v", err)
	}
	if len(rows) != 2 || rows[0].Cycle != 30 {
		t.Errorf("RecentStats = %+v", rows)
	}
}

func TestMigrateSkipsApplied(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)

	// Rerunning the same directory is a no-op.
	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("applied migrations = %d, want 2", n)
	}

	extra := fstest.MapFS{
		"003_extra_table.up.sql": {Data: []byte(`CREATE TABLE extra_table (id INT)`)},
		"003_extra_table.down.sql": {Data: []byte(`DROP TABLE extra_table`)},
	}
	if err := s.MigrateFS(ctx, extra); err != nil {
		t.Fatalf("MigrateFS: %v", err)
	}
	if err := s.MigrateFS(ctx, extra); err != nil {
		t.Fatalf("MigrateFS rerun: %v", err)
	}
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("applied migrations = %d, want 3", n)
	}
}

func TestMigrateRollsBackFailedFile(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)

	bad := fstest.MapFS{
		"010_broken.up.sql": {Data: []byte(`CREATE TABLE half_done (id INT); SELECT nope FROM missing`)},
	}
	if err := s.MigrateFS(ctx, bad); err == nil {
		t.Fatal("expected migration error")
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT to_regclass('half_done') IS NOT NULL`).Scan(&exists); err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("failed migration left half_done behind")
	}
}
