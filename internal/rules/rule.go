// Package rules defines the declarative validation rules run against
// canonical trade documents and the engine that evaluates them.
package rules

import (
	"github.com/tradeware/exportguard/internal/model"
)

// Outcome is what a rule's check function reports. Skipped marks "needed
// data absent" outcomes, which count as passes: a missing Packing List is
// not a Bill of Lading defect.
type Outcome struct {
	Passed    bool
	Skipped   bool
	Message   string
	FieldPath string
	Expected  string
	Actual    string
}

// Pass returns a passing outcome.
func Pass() Outcome { return Outcome{Passed: true} }

// Fail returns a failing outcome with a message.
func Fail(message string) Outcome { return Outcome{Message: message} }

// Skip returns a no-data outcome, treated as an implicit pass.
func Skip(message string) Outcome { return Outcome{Passed: true, Skipped: true, Message: message} }

// ShipmentContext carries the cross-document view a rule may consult. All
// fields are optional; rules report Skip when the data they need is absent.
type ShipmentContext struct {
	Shipment  *model.Shipment
	Documents []*model.Document
	Products  []model.Product
}

// DocumentsOfType returns the shipment's documents of the given type.
func (sc *ShipmentContext) DocumentsOfType(dt model.DocumentType) []*model.Document {
	if sc == nil {
		return nil
	}
	var out []*model.Document
	for _, d := range sc.Documents {
		if d.DocumentType == dt {
			out = append(out, d)
		}
	}
	return out
}

// EvalContext is the input to one rule evaluation: the document under test
// plus the optional shipment-wide context.
type EvalContext struct {
	Doc          *model.CanonicalBoL
	DocumentID   string
	DocumentType model.DocumentType
	Shipment     *ShipmentContext
}

// Rule is the atomic validation unit: a stable identifier, a severity, and a
// pure check function. Rules are immutable and independently testable.
type Rule struct {
	ID       string
	Name     string
	Severity model.Severity
	Check    func(*EvalContext) Outcome
}
