// Package rules provides the pricing rule evaluation engine.
package rules

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/silaiwala/darzi/internal/domain"
)

// Rule-result clamp band: after all rules have run, the adjusted price stays
// within [0.7, 1.5]× the pre-rule price. Protects against runaway compounding
// from many stacked rules.
const (
	clampLower = 0.7
	clampUpper = 1.5
)

// Engine evaluates prioritized pricing rules against a feature context.
// Rules are validated at load time and held read-only between reloads.
type Engine struct {
	mu    sync.RWMutex
	rules []*domain.PricingRule // sorted: priority desc, name asc
}

// NewEngine creates an empty rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// LoadRule validates and adds a single rule, replacing any loaded rule with
// the same ID. Inactive rules are stored but never evaluated.
func (e *Engine) LoadRule(rule *domain.PricingRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.ID == rule.ID {
			e.rules[i] = rule
			sortRules(e.rules)
			return nil
		}
	}
	e.rules = append(e.rules, rule)
	sortRules(e.rules)
	return nil
}

// ReloadRules replaces the loaded rule set wholesale. Any invalid rule
// rejects the whole batch, leaving the previous set in place.
func (e *Engine) ReloadRules(rules []*domain.PricingRule) error {
	next := make([]*domain.PricingRule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("reload rejected: %w", err)
		}
		next = append(next, r)
	}
	sortRules(next)

	e.mu.Lock()
	e.rules = next
	e.mu.Unlock()
	return nil
}

// ValidateRule checks a rule without mutating the loaded set.
func (e *Engine) ValidateRule(rule *domain.PricingRule) error {
	return rule.Validate()
}

// GetLoadedRules returns the currently loaded rules in evaluation order.
func (e *Engine) GetLoadedRules() []*domain.PricingRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.PricingRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Apply evaluates every active rule in priority order against the context,
// applying matched actions cumulatively to the running price, then clamps
// the result to [0.7, 1.5]× the starting price. A malformed or inapplicable
// rule is skipped; it never aborts pricing.
func (e *Engine) Apply(fc *domain.FeatureContext, startingPrice float64) float64 {
	// Snapshot under the lock; LoadRule sorts the backing array in place.
	rules := e.GetLoadedRules()

	price := startingPrice
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		matched, err := evaluateCondition(rule.Condition, fc)
		if err != nil {
			slog.Warn("rule evaluation skipped",
				"rule_id", rule.ID,
				"error", err,
			)
			continue
		}
		if matched {
			price = rule.Action.Apply(price)
		}
	}

	min := startingPrice * clampLower
	max := startingPrice * clampUpper
	if price < min {
		price = min
	}
	if price > max {
		price = max
	}
	return price
}

// evaluateCondition resolves the condition field against the context and
// applies the operator. A missing field or non-numeric comparison makes the
// condition false, never an error.
func evaluateCondition(cond domain.RuleCondition, fc *domain.FeatureContext) (bool, error) {
	fieldValue, ok := fc.Field(cond.Field)
	if !ok {
		return false, nil
	}

	switch cond.Operator {
	case domain.OpEquals:
		return valuesEqual(fieldValue, cond.Value), nil

	case domain.OpGreaterThan:
		fv, ok1 := toFloat(fieldValue)
		cv, ok2 := toFloat(cond.Value)
		if !ok1 || !ok2 {
			return false, nil
		}
		return fv > cv, nil

	case domain.OpLessThan:
		fv, ok1 := toFloat(fieldValue)
		cv, ok2 := toFloat(cond.Value)
		if !ok1 || !ok2 {
			return false, nil
		}
		return fv < cv, nil

	case domain.OpIn:
		list, ok := cond.Value.([]interface{})
		if !ok {
			return false, nil
		}
		for _, item := range list {
			if valuesEqual(fieldValue, item) {
				return true, nil
			}
		}
		return false, nil
	}

	return false, fmt.Errorf("unknown operator %q", cond.Operator)
}

// valuesEqual compares a context value with a rule value, tolerating the
// numeric type mixing JSON decoding introduces.
func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func sortRules(rules []*domain.PricingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})
}
