package rules

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

// cacheEntry is a compiled condition together with the rule version it was built from.
type cacheEntry struct {
	condition Condition
	version   int64
}

// Engine compiles rules into conditions and evaluates them.
// It is safe for concurrent use; the compiled-condition cache is shared.
type Engine struct {
	logger        *slog.Logger
	cache         map[int64]cacheEntry
	degradations  [numDegradations]atomic.Int64
	hits          atomic.Int64
	misses        atomic.Int64
	compileErrors atomic.Int64
	maxEntries    int
	mu            sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithCacheSize bounds the number of cached conditions. Zero means unbounded.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxEntries = n
		}
	}
}

// WithLogger sets the logger used for degradation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a rule engine with an empty cache.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cache:  make(map[int64]cacheEntry),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile returns the condition for rule, reusing the cached one when the
// rule's version has not changed since it was compiled.
func (e *Engine) Compile(rule model.Rule) (Condition, error) {
	e.mu.RLock()
	entry, ok := e.cache[rule.ID]
	e.mu.RUnlock()

	if ok && entry.version == rule.Version {
		e.hits.Add(1)
		return entry.condition, nil
	}
	e.misses.Add(1)

	op, err := OperatorFor(rule.ConditionType)
	if err != nil {
		e.compileErrors.Add(1)
		return Condition{}, fmt.Errorf("rule %d (%s): %w: %w", rule.ID, rule.Name, err, common.ErrDatabaseCorrupted)
	}

	cond := NewCondition(rule.FieldName, op, rule.FieldValue)

	e.mu.Lock()
	if e.maxEntries > 0 && len(e.cache) >= e.maxEntries {
		if _, replacing := e.cache[rule.ID]; !replacing {
			e.cache = make(map[int64]cacheEntry, e.maxEntries)
		}
	}
	e.cache[rule.ID] = cacheEntry{condition: cond, version: rule.Version}
	e.mu.Unlock()

	return cond, nil
}

// Evaluate evaluates a condition and records any degradation.
func (e *Engine) Evaluate(c Condition, record model.Record) bool {
	ok, reason := evaluate(c, record)
	if reason != DegradeNone {
		e.degradations[reason].Add(1)
		if reason.IsDefect() {
			e.logger.Warn("rule condition degraded to no match",
				"condition", c.String(),
				"reason", reason.String())
		} else {
			e.logger.Debug("condition skipped record",
				"field", c.Field,
				"reason", reason.String())
		}
	}
	return ok
}

// EvaluateAll evaluates conditions joined by comb, recording degradations.
func (e *Engine) EvaluateAll(conds []Condition, record model.Record, comb Combinator) (bool, error) {
	ok, err := combine(conds, comb, func(c Condition) bool { return e.Evaluate(c, record) })
	if err != nil {
		e.logger.Warn("unsupported combinator", "combinator", string(comb))
	}
	return ok, err
}

// Matches compiles rule and evaluates it against record.
func (e *Engine) Matches(rule model.Rule, record model.Record) (bool, error) {
	cond, err := e.Compile(rule)
	if err != nil {
		return false, err
	}
	return e.Evaluate(cond, record), nil
}

// Len returns the number of cached conditions.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// Forget drops the cached condition of a deleted rule.
func (e *Engine) Forget(ruleID int64) {
	e.mu.Lock()
	delete(e.cache, ruleID)
	e.mu.Unlock()
}

// Metrics is a snapshot of engine counters.
type Metrics struct {
	Degradations  map[string]int64
	CacheHits     int64
	CacheMisses   int64
	CompileErrors int64
}

// Metrics returns a snapshot of the engine counters.
func (e *Engine) Metrics() Metrics {
	m := Metrics{
		CacheHits:     e.hits.Load(),
		CacheMisses:   e.misses.Load(),
		CompileErrors: e.compileErrors.Load(),
		Degradations:  make(map[string]int64),
	}
	for i := DegradeMissingField; i < numDegradations; i++ {
		if n := e.degradations[i].Load(); n > 0 {
			m.Degradations[i.String()] = n
		}
	}
	return m
}

// DefectCount is the number of degradations caused by broken rules.
func (m Metrics) DefectCount() int64 {
	var n int64
	for i := DegradeMissingField; i < numDegradations; i++ {
		if i.IsDefect() {
			n += m.Degradations[i.String()]
		}
	}
	return n
}
