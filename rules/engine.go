package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/ledger"
)

type compiledRule struct {
	rule      Rule
	updatedAt time.Time
}

// Engine evaluates the active rule definitions of one program. Definitions are compiled
// once and recompiled when they change. Safe for concurrent use.
type Engine struct {
	store    RuleStore
	cache    RulesCache // active definitions, ordered
	compiled map[string]compiledRule
	mu       sync.RWMutex

	// generation counts mutations so a listing taken before a mutation is never cached
	// after it.
	generation uint64
	cacheMu    sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCache replaces the default in-memory definitions cache.
func WithCache(cache RulesCache) EngineOption {
	return func(en *Engine) { en.cache = cache }
}

// NewEngine creates an engine over store and compiles every active definition.
func NewEngine(store RuleStore, opts ...EngineOption) (*Engine, error) {
	en := &Engine{
		store:    store,
		cache:    NewInMemoryRulesCache(DefaultCacheConfig()),
		compiled: make(map[string]compiledRule),
	}
	for _, opt := range opts {
		opt(en)
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// CompileRule compiles def and keeps the result for evaluation.
func (en *Engine) CompileRule(def *Definition) error {
	r, err := Compile(def)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.compiled[def.ID] = compiledRule{rule: r, updatedAt: def.UpdatedAt}
	en.mu.Unlock()

	return nil
}

// CompileAllRules compiles all active definitions and refreshes the cache.
func (en *Engine) CompileAllRules() error {
	defs, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, def := range defs {
		if err := en.CompileRule(def); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", def.ID, err)
		}
	}

	en.cache.Set(defs)
	return nil
}

func (en *Engine) invalidate() {
	en.cacheMu.Lock()
	defer en.cacheMu.Unlock()

	en.generation++
	en.cache.Invalidate()
}

// AddRule validates def, stores it and makes it available for evaluation.
func (en *Engine) AddRule(def *Definition) error {
	if _, err := en.store.Get(def.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrRuleExists, def.ID)
	} else if !errors.Is(err, ErrRuleNotFound) {
		return err
	}

	r, err := Compile(def)
	if err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Add(def); err != nil {
		return err
	}

	en.mu.Lock()
	en.compiled[def.ID] = compiledRule{rule: r, updatedAt: def.UpdatedAt}
	en.mu.Unlock()

	en.invalidate()
	return nil
}

// UpdateRule validates and stores a new version of def.
func (en *Engine) UpdateRule(def *Definition) error {
	r, err := Compile(def)
	if err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Update(def); err != nil {
		return err
	}

	en.mu.Lock()
	en.compiled[def.ID] = compiledRule{rule: r, updatedAt: def.UpdatedAt}
	en.mu.Unlock()

	en.invalidate()
	return nil
}

// DeleteRule removes a definition from the store and the compiled set.
func (en *Engine) DeleteRule(id string) error {
	if err := en.store.Delete(id); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.compiled, id)
	en.mu.Unlock()

	en.invalidate()
	return nil
}

// Definition returns a stored definition.
func (en *Engine) Definition(id string) (*Definition, error) {
	return en.store.Get(id)
}

// Definitions returns every stored definition, active or not, ordered by position.
func (en *Engine) Definitions() ([]*Definition, error) {
	return en.store.List()
}

func (en *Engine) activeDefinitions() ([]*Definition, error) {
	defs := en.cache.Get()
	if defs != nil {
		return defs, nil
	}

	en.cacheMu.Lock()
	gen := en.generation
	en.cacheMu.Unlock()

	defs, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}

	en.cacheMu.Lock()
	if en.generation == gen {
		en.cache.Set(defs)
	}
	en.cacheMu.Unlock()
	return defs, nil
}

// ruleFor returns the compiled form of def, compiling it if it changed since the last
// compilation (for example when another process updated the store).
func (en *Engine) ruleFor(def *Definition) (Rule, error) {
	en.mu.RLock()
	c, ok := en.compiled[def.ID]
	en.mu.RUnlock()

	if ok && !def.UpdatedAt.After(c.updatedAt) {
		return c.rule, nil
	}
	if err := en.CompileRule(def); err != nil {
		return Rule{}, err
	}

	en.mu.RLock()
	defer en.mu.RUnlock()
	return en.compiled[def.ID].rule, nil
}

// Rules returns the active rules in evaluation order. A definition that no longer
// compiles becomes a rule that always fails with the compile error as its message.
func (en *Engine) Rules() ([]Rule, error) {
	defs, err := en.activeDefinitions()
	if err != nil {
		return nil, err
	}

	out := make([]Rule, 0, len(defs))
	for _, def := range defs {
		r, err := en.ruleFor(def)
		if err != nil {
			r = brokenRule(def, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func brokenRule(def *Definition, cause error) Rule {
	return NewRule(def.ID, def.Name, func([]catalog.CourseRecord, ledger.Ledger) Result {
		return Result{Satisfied: false, Message: fmt.Sprintf("rule %s is not compiled: %v", def.ID, cause)}
	})
}

// Evaluate evaluates a single stored rule, active or not.
func (en *Engine) Evaluate(id string, courses []catalog.CourseRecord, l ledger.Ledger) (Result, error) {
	def, err := en.store.Get(id)
	if err != nil {
		return Result{}, err
	}

	r, err := en.ruleFor(def)
	if err != nil {
		return Result{}, err
	}
	return r.Evaluate(courses, l), nil
}

// EvaluateAll evaluates every active rule. Rules are not skipped after a failure.
func (en *Engine) EvaluateAll(courses []catalog.CourseRecord, l ledger.Ledger) (AggregateResult, error) {
	rs, err := en.Rules()
	if err != nil {
		return AggregateResult{}, err
	}
	return Aggregate(rs, courses, l), nil
}

// EvaluateAllConcurrent is EvaluateAll with the rules evaluated in parallel.
func (en *Engine) EvaluateAllConcurrent(ctx context.Context, courses []catalog.CourseRecord, l ledger.Ledger) (AggregateResult, error) {
	rs, err := en.Rules()
	if err != nil {
		return AggregateResult{}, err
	}
	return AggregateConcurrent(ctx, rs, courses, l)
}
