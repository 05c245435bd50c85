package rules

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/model"
)

// Engine evaluates an ordered rule list against one document. Evaluation is
// total: every supplied rule yields exactly one result, in input order, with
// no reordering, deduping or short-circuiting. A rule that panics is
// converted into a failing ERROR result and never aborts its siblings.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an evaluation engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// WithNow fixes the clock for testing.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate runs every rule against the context and returns one result per
// rule in input order.
func (e *Engine) Evaluate(ec *EvalContext, ruleList []Rule) []model.RuleResult {
	results := make([]model.RuleResult, 0, len(ruleList))
	for _, r := range ruleList {
		results = append(results, e.evaluateOne(ec, r))
	}
	return results
}

func (e *Engine) evaluateOne(ec *EvalContext, r Rule) (res model.RuleResult) {
	res = model.RuleResult{
		RuleID:       r.ID,
		RuleName:     r.Name,
		Severity:     r.Severity,
		CheckedAt:    e.now().UTC(),
		DocumentType: ec.DocumentType,
		DocumentID:   ec.DocumentID,
	}
	if ec.Shipment != nil && ec.Shipment.Shipment != nil {
		res.ShipmentID = ec.Shipment.Shipment.ID
	}

	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("rules: rule panicked",
				zap.String("rule_id", r.ID),
				zap.Any("panic", rec),
			)
			res.Passed = false
			res.Severity = model.SeverityError
			res.Message = fmt.Sprintf("internal error evaluating rule %s: %v", r.ID, rec)
		}
	}()

	out := r.Check(ec)
	res.Passed = out.Passed
	res.Message = out.Message
	res.FieldPath = out.FieldPath
	res.Expected = out.Expected
	res.Actual = out.Actual
	return res
}
