package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/clock"
	"github.com/nidhogg/nuka-mind/internal/concept"
	"github.com/nidhogg/nuka-mind/internal/events"
	"github.com/nidhogg/nuka-mind/internal/memory"
	"github.com/nidhogg/nuka-mind/internal/store"
	"go.uber.org/zap"
)

// maxCyclesPerRequest bounds POST /api/cycles.
const maxCyclesPerRequest = 10000

// StatsHistory serves recorded stats samples; *store.Store implements it.
type StatsHistory interface {
	RecentStats(ctx context.Context, limit int) ([]store.StatsRow, error)
}

// EventLog serves recent events; *events.RedisStream implements it.
type EventLog interface {
	Recent(ctx context.Context, n int64) ([]events.Event, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	mem     *memory.Memory
	runner  clock.CycleRunner
	counter *events.Counter
	history StatsHistory
	events  EventLog
	logger  *zap.Logger
}

// Option configures optional handler dependencies.
type Option func(*Handler)

// WithRunner runs POST /api/cycles through r instead of the memory itself.
func WithRunner(r clock.CycleRunner) Option { return func(h *Handler) { h.runner = r } }

// WithCounter adds event counts to /api/stats.
func WithCounter(c *events.Counter) Option { return func(h *Handler) { h.counter = c } }

// WithHistory enables /api/stats?history=N.
func WithHistory(s StatsHistory) Option { return func(h *Handler) { h.history = s } }

// WithEvents enables /api/events.
func WithEvents(l EventLog) Option { return func(h *Handler) { h.events = l } }

// NewHandler creates a new API handler.
func NewHandler(mem *memory.Memory, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{mem: mem, runner: mem, logger: logger}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/stats", h.stats)
		r.Get("/events", h.recentEvents)

		r.Get("/concepts", h.listConcepts)
		r.Post("/concepts", h.activate)
		r.Get("/concepts/{term}", h.getConcept)
		r.Delete("/concepts/{term}", h.removeConcept)

		r.Post("/tasks", h.inputTask)
		r.Post("/links", h.link)

		r.Post("/cycles", h.runCycles)
		r.Get("/peek", h.peek)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.mem.Err(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "corrupted", "time": h.mem.Time(), "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": h.mem.Time()})
}

type statsResponse struct {
	Memory  memory.Stats     `json:"memory"`
	Events  *events.Counts   `json:"events,omitempty"`
	History []store.StatsRow `json:"history,omitempty"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Memory: h.mem.Stats(r.Context())}
	if h.counter != nil {
		c := h.counter.Snapshot()
		resp.Events = &c
	}

	if n := queryInt(r, "history", 0); n > 0 {
		if h.history == nil {
			writeError(w, http.StatusServiceUnavailable, "stats history not configured")
			return
		}
		rows, err := h.history.RecentStats(r.Context(), n)
		if err != nil {
			h.logger.Error("load stats history", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.History = rows
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recentEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	evs, err := h.events.Recent(r.Context(), int64(queryInt(r, "limit", 50)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (h *Handler) listConcepts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mem.Concepts(queryInt(r, "limit", 20)))
}

func (h *Handler) getConcept(w http.ResponseWriter, r *http.Request) {
	term, ok := termParam(w, r)
	if !ok {
		return
	}
	s, found := h.mem.Concept(term)
	if !found {
		writeError(w, http.StatusNotFound, "concept not in memory")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) removeConcept(w http.ResponseWriter, r *http.Request) {
	term, ok := termParam(w, r)
	if !ok {
		return
	}
	removed, err := h.mem.Remove(term)
	if err != nil {
		h.memoryError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "concept not in memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type budgetRequest struct {
	Priority   float64  `json:"priority"`
	Durability float64  `json:"durability"`
	Quality    *float64 `json:"quality,omitempty"`
}

func (b budgetRequest) toBudget() budget.Budget {
	q := 0.5
	if b.Quality != nil {
		q = *b.Quality
	}
	return budget.New(b.Priority, b.Durability, q)
}

type activateRequest struct {
	Term concept.Term `json:"term"`
	budgetRequest
}

// activate reinforces a concept, creating it if needed. 202 means the
// concept did not make it into memory.
func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Term == "" {
		writeError(w, http.StatusBadRequest, "term is required")
		return
	}
	if err := h.mem.Activate(r.Context(), req.Term, req.toBudget()); err != nil {
		h.memoryError(w, err)
		return
	}
	s, ok := h.mem.Concept(req.Term)
	if !ok {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "not admitted"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type taskRequest struct {
	Term       concept.Term `json:"term"`
	Frequency  float64      `json:"frequency"`
	Confidence float64      `json:"confidence"`
	budgetRequest
}

func (h *Handler) inputTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Term == "" {
		writeError(w, http.StatusBadRequest, "term is required")
		return
	}
	task, err := h.mem.InputTask(r.Context(), req.Term, budget.NewTruth(req.Frequency, req.Confidence), req.toBudget())
	if err != nil {
		h.memoryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

type linkRequest struct {
	From concept.Term `json:"from"`
	To   concept.Term `json:"to"`
	budgetRequest
}

func (h *Handler) link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !decode(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	if err := h.mem.Link(r.Context(), req.From, req.To, req.toBudget()); err != nil {
		h.memoryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "linked"})
}

type cyclesRequest struct {
	N int `json:"n"`
}

func (h *Handler) runCycles(w http.ResponseWriter, r *http.Request) {
	req := cyclesRequest{N: 1}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if req.N <= 0 || req.N > maxCyclesPerRequest {
		writeError(w, http.StatusBadRequest, "n must be between 1 and "+strconv.Itoa(maxCyclesPerRequest))
		return
	}
	ran, err := h.runner.Run(r.Context(), req.N)
	if err != nil && errors.Is(err, memory.ErrInvariant) {
		h.memoryError(w, err)
		return
	}
	resp := map[string]any{"ran": ran, "time": h.mem.Time()}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) peek(w http.ResponseWriter, r *http.Request) {
	s, ok, err := h.mem.PeekNext()
	if err != nil {
		h.memoryError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "memory is empty")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) memoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, memory.ErrInvariant) {
		h.logger.Error("memory corrupted", zap.Error(err))
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func termParam(w http.ResponseWriter, r *http.Request) (concept.Term, bool) {
	raw := chi.URLParam(r, "term")
	term, err := url.PathUnescape(raw)
	if err != nil || term == "" {
		writeError(w, http.StatusBadRequest, "invalid term")
		return "", false
	}
	return concept.Term(term), true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
