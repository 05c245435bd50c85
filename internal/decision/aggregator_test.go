package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeware/exportguard/internal/model"
)

func fixedAggregator() *Aggregator {
	return New(DefaultConfig()).WithNow(func() time.Time {
		return time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	})
}

func failingResult(ruleID string, sev model.Severity) model.RuleResult {
	return model.RuleResult{RuleID: ruleID, Passed: false, Severity: sev}
}

func passingResult(ruleID string) model.RuleResult {
	return model.RuleResult{RuleID: ruleID, Passed: true, Severity: model.SeverityError}
}

func docWithStatus(status model.DocumentStatus) *model.Document {
	d := model.NewDocument("shp-1", "org-1", model.DocTypeBillOfLading)
	d.Status = status
	return d
}

func TestDocumentDecision_RejectOnUnresolvedError(t *testing.T) {
	a := fixedAggregator()
	doc := docWithStatus(model.StatusComplianceOK)

	dec := a.DocumentDecision(doc, []model.RuleResult{
		passingResult("BOL-001"),
		failingResult("BOL-002", model.SeverityError),
	})
	assert.Equal(t, model.DecisionReject, dec)
}

func TestDocumentDecision_OverriddenErrorDoesNotReject(t *testing.T) {
	a := fixedAggregator()
	doc := docWithStatus(model.StatusComplianceOK)
	doc.Issues = []model.DocumentIssue{{
		RuleID:       "BOL-002",
		Severity:     model.SeverityError,
		IsOverridden: true,
		OverriddenBy: "user-7",
	}}

	dec := a.DocumentDecision(doc, []model.RuleResult{failingResult("BOL-002", model.SeverityError)})
	assert.Equal(t, model.DecisionApprove, dec)
}

func TestDocumentDecision_NonTerminalHolds(t *testing.T) {
	a := fixedAggregator()
	for _, st := range []model.DocumentStatus{model.StatusDraft, model.StatusUploaded, model.StatusValidated} {
		dec := a.DocumentDecision(docWithStatus(st), []model.RuleResult{passingResult("BOL-001")})
		assert.Equal(t, model.DecisionHold, dec, string(st))
	}
}

func TestDocumentDecision_WarningHoldsCleanApproves(t *testing.T) {
	a := fixedAggregator()
	doc := docWithStatus(model.StatusComplianceOK)

	dec := a.DocumentDecision(doc, []model.RuleResult{failingResult("BOL-004", model.SeverityWarning)})
	assert.Equal(t, model.DecisionHold, dec)

	dec = a.DocumentDecision(doc, []model.RuleResult{passingResult("BOL-001")})
	assert.Equal(t, model.DecisionApprove, dec)
}

// REJECT must always be explained by at least one unresolved ERROR result.
func TestDocumentDecision_RejectImpliesError(t *testing.T) {
	a := fixedAggregator()
	sets := [][]model.RuleResult{
		{passingResult("BOL-001")},
		{failingResult("BOL-004", model.SeverityWarning)},
		{failingResult("BOL-002", model.SeverityError)},
		{failingResult("BOL-008", model.SeverityInfo), failingResult("BOL-004", model.SeverityWarning)},
		nil,
	}
	for _, results := range sets {
		doc := docWithStatus(model.StatusComplianceOK)
		if a.DocumentDecision(doc, results) == model.DecisionReject {
			found := false
			for _, r := range results {
				if !r.Passed && r.Severity == model.SeverityError {
					found = true
				}
			}
			assert.True(t, found)
		}
	}
}

func failedDoc() *model.Document {
	d := docWithStatus(model.StatusComplianceFailed)
	d.Issues = []model.DocumentIssue{{
		RuleID:   "BOL-002",
		Severity: model.SeverityError,
	}}
	return d
}

func TestShipmentDecision_OverrideTakesAbsolutePrecedence(t *testing.T) {
	a := fixedAggregator()
	now := time.Now().UTC()
	shp := &model.Shipment{
		ID:                       "shp-1",
		ValidationOverrideReason: "Manual approval",
		ValidationOverrideBy:     "admin-1",
		ValidationOverrideAt:     &now,
	}

	// Even with every document failed, the override forces APPROVE.
	dec := a.ShipmentDecision(shp, []*model.Document{failedDoc(), failedDoc()})
	assert.Equal(t, model.DecisionApprove, dec)

	// And with no documents at all.
	dec = a.ShipmentDecision(shp, nil)
	assert.Equal(t, model.DecisionApprove, dec)
}

func TestShipmentDecision_EmptyOrPendingHolds(t *testing.T) {
	a := fixedAggregator()
	shp := &model.Shipment{ID: "shp-1"}

	assert.Equal(t, model.DecisionHold, a.ShipmentDecision(shp, nil))

	assert.Equal(t, model.DecisionHold, a.ShipmentDecision(shp, []*model.Document{
		docWithStatus(model.StatusUploaded),
	}))

	unclassified := docWithStatus(model.StatusValidated)
	unclassified.DocumentType = model.DocTypeUnknown
	assert.Equal(t, model.DecisionHold, a.ShipmentDecision(shp, []*model.Document{unclassified}))
}

func TestShipmentDecision_FailedWithUnresolvedErrorRejects(t *testing.T) {
	a := fixedAggregator()
	shp := &model.Shipment{ID: "shp-1"}

	dec := a.ShipmentDecision(shp, []*model.Document{
		docWithStatus(model.StatusComplianceOK),
		failedDoc(),
	})
	assert.Equal(t, model.DecisionReject, dec)
}

func TestShipmentDecision_RejectBeforePendingHold(t *testing.T) {
	a := fixedAggregator()
	shp := &model.Shipment{ID: "shp-1"}

	// A failed document and a validated-but-not-terminal sibling: the REJECT
	// condition is checked before the still-pending HOLD condition.
	dec := a.ShipmentDecision(shp, []*model.Document{
		failedDoc(),
		docWithStatus(model.StatusValidated),
	})
	assert.Equal(t, model.DecisionReject, dec)
}

func TestShipmentDecision_OverriddenIssueDowngradesToHoldOrApprove(t *testing.T) {
	a := fixedAggregator()
	shp := &model.Shipment{ID: "shp-1"}

	d := failedDoc()
	d.Issues[0].IsOverridden = true
	d.Issues[0].OverrideReason = "accepted by compliance"

	// COMPLIANCE_FAILED with every issue overridden no longer rejects; the
	// status is terminal and nothing unresolved remains, so APPROVE.
	dec := a.ShipmentDecision(shp, []*model.Document{d})
	assert.Equal(t, model.DecisionApprove, dec)
}

func TestShipmentDecision_WarningsHoldCleanApproves(t *testing.T) {
	a := fixedAggregator()
	shp := &model.Shipment{ID: "shp-1"}

	warned := docWithStatus(model.StatusComplianceOK)
	warned.Issues = []model.DocumentIssue{{RuleID: "BOL-004", Severity: model.SeverityWarning}}
	assert.Equal(t, model.DecisionHold, a.ShipmentDecision(shp, []*model.Document{warned}))

	for _, st := range []model.DocumentStatus{model.StatusComplianceOK, model.StatusLinked, model.StatusArchived} {
		assert.Equal(t, model.DecisionApprove,
			a.ShipmentDecision(shp, []*model.Document{docWithStatus(st)}), string(st))
	}
}

func TestCrossValidateWeights_ExactlyOneWarning(t *testing.T) {
	a := fixedAggregator()
	shp := &model.Shipment{ID: "shp-1"}
	weight := 25000.0
	bol := &model.CanonicalBoL{
		Cargo: []model.CargoLine{{Description: "DRIED COW HOOVES", GrossWeightKg: &weight}},
	}

	issues := a.CrossValidateWeights(shp, bol, []model.Product{{QuantityGrossKg: 20000.0}})
	require.Len(t, issues, 1)
	assert.Equal(t, "CROSS-001", issues[0].RuleID)
	assert.Equal(t, model.SeverityWarning, issues[0].Severity)

	// Within tolerance: nothing emitted.
	issues = a.CrossValidateWeights(shp, bol, []model.Product{{QuantityGrossKg: 24500.0}})
	assert.Empty(t, issues)
}
