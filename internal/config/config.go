package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/nidhogg/nuka-mind/internal/bag"
	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/concept"
	"github.com/nidhogg/nuka-mind/internal/inference"
	"github.com/nidhogg/nuka-mind/internal/memory"
)

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Memory       MemoryConfig       `json:"memory"`
	Subconscious SubconsciousConfig `json:"subconscious"`
	Runtime      RuntimeConfig      `json:"runtime"`
	Inference    InferenceConfig    `json:"inference"`
	Database     DatabaseConfig     `json:"database"`
	Events       EventsConfig       `json:"events"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// BagConfig sizes one LevelBag. FireThreshold is a fraction of Levels.
type BagConfig struct {
	Levels        int     `json:"levels"`
	Capacity      int     `json:"capacity"`
	FireThreshold float64 `json:"fire_threshold"`
	Policy        string  `json:"policy"`
}

type MemoryConfig struct {
	BagConfig
	DecayRate        float64   `json:"decay_rate"`
	QualityRatio     float64   `json:"quality_ratio"`
	TaskLinksPerFire int       `json:"task_links_per_fire"`
	Activation       string    `json:"activation"` // merge, max or or
	Seed             uint64    `json:"seed"`
	CheckInvariants  bool      `json:"check_invariants"`
	TaskLinks        BagConfig `json:"task_links"`
	TermLinks        BagConfig `json:"term_links"`
}

type SubconsciousConfig struct {
	Backend    string `json:"backend"` // none, memory, ristretto, redis or postgres
	MaxItems   int    `json:"max_items"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type RuntimeConfig struct {
	TickMS        int `json:"tick_ms"`
	CyclesPerTick int `json:"cycles_per_tick"`
	Workers       int `json:"workers"`
	ReportEvery   int `json:"report_every"`
}

type InferenceConfig struct {
	DecayFactor float64 `json:"decay_factor"`
	Threshold   float64 `json:"threshold"`
	MaxTargets  int     `json:"max_targets"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `json:"postgres"`
	Redis         RedisConfig    `json:"redis"`
	MigrationsDir string         `json:"migrations_dir"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type EventsConfig struct {
	Stream string `json:"stream"` // Redis stream name, empty disables publishing
}

// Backend names accepted in subconscious.backend.
const (
	BackendNone      = "none"
	BackendMemory    = "memory"
	BackendRistretto = "ristretto"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
)

// Default returns the configuration used for any field a file leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, LogLevel: "info"},
		Memory: MemoryConfig{
			BagConfig:        BagConfig{Levels: 100, Capacity: 1000, FireThreshold: 0.5, Policy: "default"},
			DecayRate:        0.1,
			QualityRatio:     budget.DefaultQualityRatio,
			TaskLinksPerFire: 3,
			Activation:       "merge",
			TaskLinks:        BagConfig{Levels: 10, Capacity: 20, FireThreshold: 0.5},
			TermLinks:        BagConfig{Levels: 10, Capacity: 50, FireThreshold: 0.5},
		},
		Subconscious: SubconsciousConfig{Backend: BackendMemory, MaxItems: 10000},
		Runtime:      RuntimeConfig{TickMS: 10, CyclesPerTick: 1, Workers: 1, ReportEvery: 500},
		Inference:    InferenceConfig{DecayFactor: 0.7, Threshold: 0.05, MaxTargets: 5},
		Database:     DatabaseConfig{MigrationsDir: "migrations"},
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file over Default and substitutes environment
// variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSON config bytes over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	cfg := Default()
	if err := json.Unmarshal([]byte(resolved), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	for name, b := range map[string]BagConfig{
		"memory":            c.Memory.BagConfig,
		"memory.task_links": c.Memory.TaskLinks,
		"memory.term_links": c.Memory.TermLinks,
	} {
		check(b.Levels > 0, "%s.levels must be positive", name)
		check(b.Capacity > 0, "%s.capacity must be positive", name)
		check(b.FireThreshold >= 0 && b.FireThreshold <= 1, "%s.fire_threshold %v not in [0, 1]", name, b.FireThreshold)
		if _, err := bag.ParsePolicy(b.Policy); err != nil {
			errs = append(errs, fmt.Errorf("%s.policy: %w", name, err))
		}
	}
	check(c.Memory.DecayRate > 0, "memory.decay_rate must be positive")
	check(c.Memory.QualityRatio > 0 && c.Memory.QualityRatio <= 1, "memory.quality_ratio %v not in (0, 1]", c.Memory.QualityRatio)
	switch c.Memory.Activation {
	case "", "merge", "max", "or":
	default:
		errs = append(errs, fmt.Errorf("memory.activation: unknown mode %q", c.Memory.Activation))
	}

	switch c.Subconscious.Backend {
	case BackendNone, BackendMemory:
	case BackendRistretto:
		check(c.Subconscious.MaxItems > 0, "subconscious.max_items must be positive for ristretto")
	case BackendRedis:
		check(c.Database.Redis.URL != "", "subconscious.backend redis needs database.redis.url")
	case BackendPostgres:
		check(c.Database.Postgres.DSN != "", "subconscious.backend postgres needs database.postgres.dsn")
	default:
		errs = append(errs, fmt.Errorf("subconscious.backend: unknown backend %q", c.Subconscious.Backend))
	}
	check(c.Subconscious.MaxItems >= 0, "subconscious.max_items must not be negative")

	check(c.Runtime.TickMS > 0, "runtime.tick_ms must be positive")
	check(c.Runtime.CyclesPerTick > 0, "runtime.cycles_per_tick must be positive")
	check(c.Runtime.Workers > 0, "runtime.workers must be positive")

	return errors.Join(errs...)
}

// Options converts a bag section. concurrent is set when several workers
// share the bag.
func (b BagConfig) Options(concurrent bool) bag.Options {
	policy, _ := bag.ParsePolicy(b.Policy)
	return bag.Options{
		Levels:        b.Levels,
		Capacity:      b.Capacity,
		FireThreshold: int(math.Round(b.FireThreshold * float64(b.Levels))),
		Policy:        policy,
		Concurrent:    concurrent,
	}
}

// Concurrent reports whether cycles run on more than one worker.
func (c *Config) Concurrent() bool { return c.Runtime.Workers > 1 }

// MemoryParams builds the control loop tuning.
func (c *Config) MemoryParams() memory.Params {
	m := c.Memory
	concepts := m.Options(c.Concurrent())
	concepts.Seed = m.Seed
	concepts.CheckInvariants = m.CheckInvariants
	return memory.Params{
		Concepts: concepts,
		Links: concept.Params{
			TaskLinks: m.TaskLinks.Options(c.Concurrent()),
			TermLinks: m.TermLinks.Options(c.Concurrent()),
		},
		DecayRate:        m.DecayRate,
		QualityRatio:     m.QualityRatio,
		TaskLinksPerFire: m.TaskLinksPerFire,
		Activation:       budget.ParseMode(strings.ToLower(m.Activation)),
	}
}

// SpreadOpts builds the spreading firer tuning.
func (c *Config) SpreadOpts() inference.SpreadOpts {
	return inference.SpreadOpts{
		DecayFactor: c.Inference.DecayFactor,
		Threshold:   c.Inference.Threshold,
		MaxTargets:  c.Inference.MaxTargets,
	}
}

// TickInterval is the clock period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Runtime.TickMS) * time.Millisecond
}

// SubconsciousTTL is the expiry for out-of-process backends.
func (c *Config) SubconsciousTTL() time.Duration {
	return time.Duration(c.Subconscious.TTLSeconds) * time.Second
}
