package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/nuka-mind/internal/bag"
	"github.com/nidhogg/nuka-mind/internal/budget"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mind.json")
	data := `{
		"server": {"port": 9090},
		"memory": {"capacity": 50, "policy": "fast", "activation": "max"},
		"runtime": {"workers": 4}
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.LogLevel != "info" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Memory.Capacity != 50 || cfg.Memory.Levels != 100 {
		t.Errorf("memory bag = %+v", cfg.Memory.BagConfig)
	}

	p := cfg.MemoryParams()
	if p.Concepts.Policy != bag.PolicyFast || !p.Concepts.Concurrent {
		t.Errorf("concept options = %+v", p.Concepts)
	}
	if p.Concepts.FireThreshold != 50 {
		t.Errorf("fire threshold level = %d, want 50", p.Concepts.FireThreshold)
	}
	if p.Activation != budget.ActivateMax {
		t.Errorf("activation = %v", p.Activation)
	}
	if p.Links.TaskLinks.Capacity != 20 || !p.Links.TaskLinks.Concurrent {
		t.Errorf("task link options = %+v", p.Links.TaskLinks)
	}
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("NUKA_TEST_DSN", "postgres://mind@db/mind")
	cfg, err := Parse([]byte(`{
		"subconscious": {"backend": "postgres"},
		"database": {
			"postgres": {"dsn": "${NUKA_TEST_DSN}"},
			"redis": {"url": "${NUKA_TEST_UNSET:redis://localhost:6379}"}
		}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.Postgres.DSN != "postgres://mind@db/mind" {
		t.Errorf("dsn = %q", cfg.Database.Postgres.DSN)
	}
	if cfg.Database.Redis.URL != "redis://localhost:6379" {
		t.Errorf("redis url = %q", cfg.Database.Redis.URL)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Memory.FireThreshold = 1.5
	cfg.Memory.Policy = "random"
	cfg.Subconscious.Backend = "redis"
	cfg.Runtime.Workers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"fire_threshold", "policy", "database.redis.url", "runtime.workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseRejectsBadJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"server": `)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	cfg.Runtime.TickMS = 25
	cfg.Subconscious.TTLSeconds = 60
	if cfg.TickInterval() != 25*time.Millisecond {
		t.Errorf("tick = %v", cfg.TickInterval())
	}
	if cfg.SubconsciousTTL() != time.Minute {
		t.Errorf("ttl = %v", cfg.SubconsciousTTL())
	}
	if cfg.Concurrent() {
		t.Error("one worker should not be concurrent")
	}
}
