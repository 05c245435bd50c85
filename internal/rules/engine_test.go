package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeware/exportguard/internal/model"
)

func fixedEngine() *Engine {
	return NewEngine().WithNow(func() time.Time {
		return time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	})
}

func testDoc(t *testing.T) *model.CanonicalBoL {
	t.Helper()
	doc, err := model.NewCanonicalBoL("APU106546",
		model.Party{Name: "VIBOTAJ GLOBAL NIGERIA LIMITED"},
		model.Party{Name: "HAGES GMBH"},
	)
	require.NoError(t, err)
	doc.AddContainer(model.Container{Number: "MRSU4825686"})
	doc.VesselName = "MSC MARINA"
	doc.PortOfLoading = "Apapa (NGAPP)"
	doc.PortOfDischarge = "Hamburg (DEHAM)"
	return doc
}

func TestEvaluate_OneResultPerRuleInOrder(t *testing.T) {
	ruleList := []Rule{
		{ID: "T-001", Name: "first", Severity: model.SeverityInfo, Check: func(*EvalContext) Outcome { return Pass() }},
		{ID: "T-002", Name: "second", Severity: model.SeverityError, Check: func(*EvalContext) Outcome { return Fail("nope") }},
		{ID: "T-003", Name: "third", Severity: model.SeverityWarning, Check: func(*EvalContext) Outcome { return Skip("no data") }},
	}

	results := fixedEngine().Evaluate(&EvalContext{Doc: testDoc(t)}, ruleList)
	require.Len(t, results, 3)
	assert.Equal(t, "T-001", results[0].RuleID)
	assert.Equal(t, "T-002", results[1].RuleID)
	assert.Equal(t, "T-003", results[2].RuleID)

	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)
	assert.True(t, results[2].Passed) // skipped counts as implicit pass
}

func TestEvaluate_PanicIsolatedPerRule(t *testing.T) {
	ruleList := []Rule{
		{ID: "T-001", Name: "panics", Severity: model.SeverityInfo, Check: func(*EvalContext) Outcome {
			panic("boom")
		}},
		{ID: "T-002", Name: "still runs", Severity: model.SeverityInfo, Check: func(*EvalContext) Outcome { return Pass() }},
	}

	results := fixedEngine().Evaluate(&EvalContext{Doc: testDoc(t)}, ruleList)
	require.Len(t, results, 2)

	assert.False(t, results[0].Passed)
	assert.Equal(t, model.SeverityError, results[0].Severity)
	assert.Contains(t, results[0].Message, "internal error")
	assert.Contains(t, results[0].Message, "boom")

	assert.True(t, results[1].Passed)
}

func TestEvaluate_NilRuleFuncRecovered(t *testing.T) {
	results := fixedEngine().Evaluate(&EvalContext{Doc: testDoc(t)}, []Rule{
		{ID: "T-001", Name: "nil check", Severity: model.SeverityInfo},
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, model.SeverityError, results[0].Severity)
}

func TestEvaluate_EmptyRuleList(t *testing.T) {
	results := fixedEngine().Evaluate(&EvalContext{Doc: testDoc(t)}, nil)
	assert.Empty(t, results)
}

func TestEvaluate_CarriesLinkage(t *testing.T) {
	ec := &EvalContext{
		Doc:          testDoc(t),
		DocumentID:   "doc-1",
		DocumentType: model.DocTypeBillOfLading,
		Shipment:     &ShipmentContext{Shipment: &model.Shipment{ID: "shp-1"}},
	}
	results := fixedEngine().Evaluate(ec, StandardRules())
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "doc-1", r.DocumentID)
		assert.Equal(t, "shp-1", r.ShipmentID)
		assert.Equal(t, model.DocTypeBillOfLading, r.DocumentType)
		assert.False(t, r.CheckedAt.IsZero())
	}
}
