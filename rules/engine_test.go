package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/gradcheck/ledger"
)

func TestNewEngineCompilesExistingRules(t *testing.T) {
	store := NewInMemoryRuleStore()
	for _, def := range []*Definition{
		{ID: "general", Name: "General credits", Kind: KindCredits, Selector: `course.category1 == "一般"`, Minimum: 5, Active: true, Position: 1},
		{ID: "history", Name: "History", Kind: KindRequiredSet, Courses: []string{"歴史学"}, Active: true, Position: 2},
		{ID: "ethics", Name: "Ethics", Kind: KindRequiredSet, Courses: []string{"技術者倫理"}, Active: false, Position: 3},
	} {
		if err := store.Add(def); err != nil {
			t.Fatalf("Failed to add definition: %v", err)
		}
	}

	engine, err := NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	l := ledger.Ledger{"G1": ledger.CreditEarned, "G2": ledger.CreditEarned}
	agg, err := engine.EvaluateAll(sampleCatalog(), l)
	if err != nil {
		t.Fatalf("EvaluateAll() failed: %v", err)
	}

	if len(agg.Results) != 2 {
		t.Fatalf("EvaluateAll() returned %d results, want 2 (inactive rules are skipped)", len(agg.Results))
	}
	if agg.Results[0].ID != "general" || agg.Results[1].ID != "history" {
		t.Errorf("Result order = [%s %s], want [general history]", agg.Results[0].ID, agg.Results[1].ID)
	}
	if !agg.Satisfied {
		t.Errorf("Satisfied = false, want true: %+v", agg.Results)
	}

	// Inactive rules can still be evaluated on their own.
	res, err := engine.Evaluate("ethics", sampleCatalog(), l)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if res.Satisfied {
		t.Error("ethics should not be satisfied")
	}
}

func TestNewEngineRejectsInvalidStoredRule(t *testing.T) {
	store := NewInMemoryRuleStore()
	store.Add(&Definition{ID: "bad", Name: "Bad", Kind: KindCredits, Selector: `course.credits >=`, Active: true})

	if _, err := NewEngine(store); err == nil {
		t.Error("NewEngine() should fail when an active definition does not compile")
	}
}

func TestEvaluateNotFound(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore())

	_, err := engine.Evaluate("missing", nil, nil)
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Evaluate() error = %v, want ErrRuleNotFound", err)
	}
}

func TestEngineAddRule(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore())

	def := &Definition{ID: "count", Name: "Count", Kind: KindCount, Selector: `true`, Minimum: 2, Active: true}
	if err := engine.AddRule(def); err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}

	agg, err := engine.EvaluateAll(sampleCatalog(), ledger.Ledger{"G1": ledger.CreditEarned})
	if err != nil {
		t.Fatalf("EvaluateAll() failed: %v", err)
	}
	if len(agg.Results) != 1 || agg.Results[0].Satisfied {
		t.Errorf("EvaluateAll() = %+v, want one unsatisfied result", agg.Results)
	}

	err = engine.AddRule(&Definition{ID: "count", Name: "Again", Kind: KindCount, Selector: `true`, Active: true})
	if !errors.Is(err, ErrRuleExists) {
		t.Errorf("AddRule() with duplicate ID error = %v, want ErrRuleExists", err)
	}
}

func TestEngineAddRuleValidation(t *testing.T) {
	store := NewInMemoryRuleStore()
	engine, _ := NewEngine(store)

	err := engine.AddRule(&Definition{ID: "bad", Name: "Bad", Kind: KindCredits, Selector: `course.credits >=`, Active: true})
	if err == nil {
		t.Fatal("AddRule() should fail for an invalid selector")
	}
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("AddRule() error = %v, want ErrInvalidDefinition", err)
	}
	if _, err := store.Get("bad"); err == nil {
		t.Error("An invalid definition should not be stored")
	}
}

type failingStore struct {
	*InMemoryRuleStore
}

func (s failingStore) Add(*Definition) error { return errors.New("disk full") }

func TestEngineAddRuleAtomicity(t *testing.T) {
	engine, _ := NewEngine(failingStore{NewInMemoryRuleStore()})

	err := engine.AddRule(&Definition{ID: "r", Name: "R", Kind: KindCount, Selector: `true`, Active: true})
	if err == nil {
		t.Fatal("AddRule() should fail when the store fails")
	}

	engine.mu.RLock()
	_, compiled := engine.compiled["r"]
	engine.mu.RUnlock()
	if compiled {
		t.Error("A definition rejected by the store should not stay compiled")
	}
}

func TestEngineUpdateRule(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore())
	engine.AddRule(&Definition{ID: "credits", Name: "Credits", Kind: KindCredits, Selector: `true`, Minimum: 100, Active: true})

	courses := sampleCatalog()
	l := ledger.Ledger{"G1": ledger.CreditEarned, "G2": ledger.CreditEarned, "G3": ledger.CreditEarned}

	agg, _ := engine.EvaluateAll(courses, l)
	if agg.Satisfied {
		t.Fatal("Rule should be unsatisfied before the update")
	}

	if err := engine.UpdateRule(&Definition{ID: "credits", Name: "Credits", Kind: KindCredits, Selector: `true`, Minimum: 9, Active: true}); err != nil {
		t.Fatalf("UpdateRule() failed: %v", err)
	}

	agg, _ = engine.EvaluateAll(courses, l)
	if !agg.Satisfied {
		t.Errorf("Rule should be satisfied after lowering the minimum: %+v", agg.Results)
	}
}

func TestEngineUpdateRuleValidation(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore())
	engine.AddRule(&Definition{ID: "r", Name: "R", Kind: KindCount, Selector: `true`, Minimum: 1, Active: true})

	err := engine.UpdateRule(&Definition{ID: "r", Name: "R", Kind: KindCount, Selector: `course.credits >=`, Active: true})
	if err == nil {
		t.Fatal("UpdateRule() should fail for an invalid selector")
	}

	def, _ := engine.Definition("r")
	if def.Selector != `true` {
		t.Errorf("Stored selector = %q, want the previous one", def.Selector)
	}

	err = engine.UpdateRule(&Definition{ID: "missing", Name: "M", Kind: KindCount, Selector: `true`, Active: true})
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("UpdateRule() on a missing rule error = %v, want ErrRuleNotFound", err)
	}
}

func TestEngineUpdateDeactivates(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore())
	engine.AddRule(&Definition{ID: "r", Name: "R", Kind: KindCount, Selector: `true`, Minimum: 1, Active: true})

	engine.UpdateRule(&Definition{ID: "r", Name: "R", Kind: KindCount, Selector: `true`, Minimum: 1, Active: false})

	agg, _ := engine.EvaluateAll(sampleCatalog(), nil)
	if len(agg.Results) != 0 {
		t.Errorf("A deactivated rule should not be evaluated, got %d results", len(agg.Results))
	}

	defs, _ := engine.Definitions()
	if len(defs) != 1 {
		t.Errorf("Definitions() should still list the inactive rule, got %d", len(defs))
	}
}

func TestEngineDeleteRule(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore())
	engine.AddRule(&Definition{ID: "r", Name: "R", Kind: KindCount, Selector: `true`, Active: true})

	if err := engine.DeleteRule("r"); err != nil {
		t.Fatalf("DeleteRule() failed: %v", err)
	}

	agg, _ := engine.EvaluateAll(sampleCatalog(), nil)
	if len(agg.Results) != 0 {
		t.Errorf("Deleted rule was still evaluated")
	}
	if err := engine.DeleteRule("r"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("DeleteRule() twice error = %v, want ErrRuleNotFound", err)
	}
}

func TestEngineCacheInvalidation(t *testing.T) {
	cache := NewInMemoryRulesCache(DefaultCacheConfig())
	engine, _ := NewEngine(NewInMemoryRuleStore(), WithCache(cache))

	if !cache.IsValid() {
		t.Fatal("Cache should be populated by NewEngine()")
	}

	engine.AddRule(&Definition{ID: "r", Name: "R", Kind: KindCount, Selector: `true`, Active: true})
	if cache.IsValid() {
		t.Error("AddRule() should invalidate the cache")
	}

	engine.EvaluateAll(sampleCatalog(), nil)
	if !cache.IsValid() || len(cache.Get()) != 1 {
		t.Error("EvaluateAll() should repopulate the cache")
	}
}

func TestEnginePicksUpExternalUpdates(t *testing.T) {
	store := NewInMemoryRuleStore()
	engine, _ := NewEngine(store, WithCache(NewInMemoryRulesCache(CacheConfig{TTL: time.Millisecond})))

	// Written by another process sharing the store.
	store.Add(&Definition{ID: "ext", Name: "External", Kind: KindCount, Selector: `true`, Minimum: 0, Active: true})
	time.Sleep(5 * time.Millisecond)

	agg, err := engine.EvaluateAll(sampleCatalog(), nil)
	if err != nil {
		t.Fatalf("EvaluateAll() failed: %v", err)
	}
	if len(agg.Results) != 1 || !agg.Results[0].Satisfied {
		t.Errorf("EvaluateAll() = %+v, want the external rule compiled and satisfied", agg.Results)
	}
}

func TestEngineBrokenExternalRule(t *testing.T) {
	store := NewInMemoryRuleStore()
	engine, _ := NewEngine(store, WithCache(NewInMemoryRulesCache(CacheConfig{TTL: time.Millisecond})))

	store.Add(&Definition{ID: "ok", Name: "OK", Kind: KindCount, Selector: `true`, Active: true, Position: 1})
	store.Add(&Definition{ID: "broken", Name: "Broken", Kind: "bogus", Active: true, Position: 2})
	time.Sleep(5 * time.Millisecond)

	agg, err := engine.EvaluateAll(sampleCatalog(), nil)
	if err != nil {
		t.Fatalf("EvaluateAll() failed: %v", err)
	}
	if len(agg.Results) != 2 {
		t.Fatalf("EvaluateAll() returned %d results, want 2", len(agg.Results))
	}
	if !agg.Results[0].Satisfied {
		t.Error("The valid rule should still be evaluated")
	}
	if agg.Results[1].Satisfied || !strings.Contains(agg.Results[1].Message, "not compiled") {
		t.Errorf("Broken rule result = %+v", agg.Results[1])
	}
	if agg.Satisfied {
		t.Error("A broken rule should fail the aggregate")
	}
}

func TestEngineEvaluateAllConcurrent(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore())
	for i := 0; i < 10; i++ {
		engine.AddRule(&Definition{
			ID: fmt.Sprintf("r%d", i), Name: "R", Kind: KindCredits, Selector: `true`,
			Minimum: i, Active: true, Position: i,
		})
	}

	l := ledger.Ledger{"G1": ledger.CreditEarned, "G2": ledger.PlannedEnrollment}
	want, _ := engine.EvaluateAll(sampleCatalog(), l)
	got, err := engine.EvaluateAllConcurrent(context.Background(), sampleCatalog(), l)
	if err != nil {
		t.Fatalf("EvaluateAllConcurrent() failed: %v", err)
	}
	for i := range want.Results {
		if got.Results[i].ID != want.Results[i].ID || got.Results[i].Satisfied != want.Results[i].Satisfied {
			t.Errorf("Result %d = %+v, want %+v", i, got.Results[i], want.Results[i])
		}
	}
	if got.Satisfied != want.Satisfied || got.Passed() != 6 {
		t.Errorf("Passed() = %d, want 6", got.Passed())
	}
}

func TestEngineConcurrentReadWrite(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore())
	for i := 0; i < 5; i++ {
		engine.AddRule(&Definition{ID: fmt.Sprintf("base-%d", i), Name: "Base", Kind: KindCount, Selector: `true`, Active: true})
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := engine.EvaluateAll(sampleCatalog(), nil); err != nil {
					t.Errorf("Concurrent EvaluateAll() failed: %v", err)
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id := fmt.Sprintf("w%d-%d", w, j)
				engine.AddRule(&Definition{ID: id, Name: "W", Kind: KindCount, Selector: `true`, Active: true})
				engine.DeleteRule(id)
			}
		}(i)
	}

	wg.Wait()

	agg, _ := engine.EvaluateAll(sampleCatalog(), nil)
	if len(agg.Results) != 5 {
		t.Errorf("After concurrent writes, got %d results, want 5", len(agg.Results))
	}
}
