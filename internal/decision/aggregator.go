// Package decision reduces rule results, lifecycle states and overrides into
// APPROVE/HOLD/REJECT outcomes at document and shipment scope.
package decision

import (
	"time"

	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/model"
	"github.com/tradeware/exportguard/internal/rules"
)

// Config carries the business thresholds. These are carried-over operational
// constants, configurable rather than hard-coded.
type Config struct {
	// AutoSyncConfidence is the minimum parser confidence for auto-applying
	// parsed fields to the shipment record.
	AutoSyncConfidence float64
	// WeightTolerance is the CROSS-001 relative weight tolerance.
	WeightTolerance float64
}

// DefaultConfig returns the operational defaults.
func DefaultConfig() Config {
	return Config{AutoSyncConfidence: 0.70, WeightTolerance: 0.10}
}

// Aggregator computes compliance decisions. It is a pure function of its
// inputs and safe to use from any number of goroutines.
type Aggregator struct {
	cfg    Config
	engine *rules.Engine
	now    func() time.Time
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg, engine: rules.NewEngine(), now: time.Now}
}

// WithNow fixes the clock for testing.
func (a *Aggregator) WithNow(now func() time.Time) *Aggregator {
	a.now = now
	a.engine = a.engine.WithNow(now)
	return a
}

// overriddenRules collects rule IDs whose failures have been explicitly
// overridden on the document.
func overriddenRules(issues []model.DocumentIssue) map[string]bool {
	m := make(map[string]bool)
	for _, is := range issues {
		if is.IsOverridden {
			m[is.RuleID] = true
		}
	}
	return m
}

// unresolvedFailure reports whether any failing result of the given severity
// remains unresolved (not overridden).
func unresolvedFailure(results []model.RuleResult, overridden map[string]bool, sev model.Severity) bool {
	for _, r := range results {
		if !r.Passed && r.Severity == sev && !overridden[r.RuleID] {
			return true
		}
	}
	return false
}

// DocumentDecision reduces one document's rule results (plus its recorded
// issues, which carry override state) into a decision:
// REJECT on any unresolved ERROR failure; HOLD when the document is not yet
// in a terminal state or an unresolved WARNING failed; otherwise APPROVE.
func (a *Aggregator) DocumentDecision(doc *model.Document, results []model.RuleResult) model.Decision {
	overridden := overriddenRules(doc.Issues)

	if unresolvedFailure(results, overridden, model.SeverityError) {
		return model.DecisionReject
	}
	if !doc.Status.IsTerminal() {
		return model.DecisionHold
	}
	if unresolvedFailure(results, overridden, model.SeverityWarning) {
		return model.DecisionHold
	}
	return model.DecisionApprove
}

// ShipmentDecision rolls all of a shipment's documents up into one decision.
// Precedence, in order:
//  1. an explicit admin override forces APPROVE, recorded but absolute;
//  2. no documents, or any still pending upload/classification: HOLD;
//  3. any COMPLIANCE_FAILED document with an unresolved ERROR issue: REJECT;
//  4. any unresolved WARNING issue or non-terminal document: HOLD;
//  5. otherwise APPROVE.
func (a *Aggregator) ShipmentDecision(shipment *model.Shipment, docs []*model.Document) model.Decision {
	if shipment.Overridden() {
		zap.L().Info("decision: shipment override in force",
			zap.String("shipment_id", shipment.ID),
			zap.String("reason", shipment.ValidationOverrideReason),
			zap.String("overridden_by", shipment.ValidationOverrideBy),
		)
		return model.DecisionApprove
	}

	if len(docs) == 0 {
		return model.DecisionHold
	}
	for _, d := range docs {
		if d.Status == model.StatusDraft || d.Status == model.StatusUploaded ||
			d.DocumentType == model.DocTypeUnknown {
			return model.DecisionHold
		}
	}

	for _, d := range docs {
		if d.Status == model.StatusComplianceFailed && len(d.UnresolvedIssues(model.SeverityError)) > 0 {
			return model.DecisionReject
		}
	}

	for _, d := range docs {
		if len(d.UnresolvedIssues(model.SeverityWarning)) > 0 || !d.Status.IsTerminal() {
			return model.DecisionHold
		}
	}

	return model.DecisionApprove
}

// CrossValidateWeights compares a parsed Bill of Lading's cargo gross weight
// against the shipment's declared product weights. Beyond tolerance it emits
// exactly one WARNING result (CROSS-001); it never forces a REJECT.
func (a *Aggregator) CrossValidateWeights(shipment *model.Shipment, bol *model.CanonicalBoL, products []model.Product) []model.RuleResult {
	ec := &rules.EvalContext{
		Doc:          bol,
		DocumentType: model.DocTypeBillOfLading,
		Shipment: &rules.ShipmentContext{
			Shipment: shipment,
			Products: products,
		},
	}
	var failed []model.RuleResult
	for _, r := range a.engine.Evaluate(ec, rules.CrossRules(a.cfg.WeightTolerance)) {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
