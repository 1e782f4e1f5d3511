package domain

import (
	"fmt"
	"time"
)

// Condition operators. Closed set: rules are validated against it at load
// time, not interpreted ad hoc per evaluation.
const (
	OpEquals      = "equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpIn          = "in"
)

// Action types. Closed set.
const (
	ActionMultiply   = "multiply"
	ActionAdd        = "add"
	ActionPercentage = "percentage"
)

// RuleCondition is a single field/operator/value predicate over a
// FeatureContext.
type RuleCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// RuleAction is the price transform applied when a rule's condition matches.
type RuleAction struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// PricingRule is a prioritized condition→action pair. Rules are read-only
// configuration during a pricing run; they change only through administrative
// update followed by a reload.
type PricingRule struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Condition RuleCondition `json:"condition"`
	Action    RuleAction    `json:"action"`
	Priority  int           `json:"priority"` // higher runs first
	IsActive  bool          `json:"isActive"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Validate checks the rule against the closed operator and action
// vocabularies. Malformed rules are rejected here, at load time, instead of
// being silently skipped per request.
func (r *PricingRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}
	if r.Condition.Field == "" {
		return fmt.Errorf("%w: rule %s: condition field is required", ErrInvalidInput, r.ID)
	}

	switch r.Condition.Operator {
	case OpEquals, OpGreaterThan, OpLessThan:
	case OpIn:
		if _, ok := r.Condition.Value.([]interface{}); !ok {
			return fmt.Errorf("%w: rule %s: 'in' condition requires a list value", ErrInvalidInput, r.ID)
		}
	default:
		return fmt.Errorf("%w: rule %s: unknown operator %q", ErrInvalidInput, r.ID, r.Condition.Operator)
	}

	switch r.Action.Type {
	case ActionMultiply, ActionAdd, ActionPercentage:
	default:
		return fmt.Errorf("%w: rule %s: unknown action type %q", ErrInvalidInput, r.ID, r.Action.Type)
	}

	return nil
}

// Apply returns the price after this rule's action.
func (a RuleAction) Apply(price float64) float64 {
	switch a.Type {
	case ActionMultiply:
		return price * a.Value
	case ActionAdd:
		return price + a.Value
	case ActionPercentage:
		return price * (1 + a.Value/100)
	}
	return price
}
