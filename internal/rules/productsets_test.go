package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeware/exportguard/internal/model"
)

func shipmentCtx(docs ...*model.Document) *ShipmentContext {
	return &ShipmentContext{
		Shipment:  &model.Shipment{ID: "shp-1", OrganizationID: "org-1"},
		Documents: docs,
	}
}

func docOfType(dt model.DocumentType, rawText string) *model.Document {
	d := model.NewDocument("shp-1", "org-1", dt)
	d.Canonical = &model.CanonicalBoL{RawText: rawText}
	return d
}

func TestAnimalRules_MissingVetCertFails(t *testing.T) {
	ec := &EvalContext{Doc: testDoc(t), Shipment: shipmentCtx()}
	results := fixedEngine().Evaluate(ec, AnimalProductRules())

	r := resultByID(t, results, "VET-001")
	assert.False(t, r.Passed)
	assert.Equal(t, model.SeverityError, r.Severity)

	// No cert: the CHED reference rule has nothing to inspect.
	r2 := resultByID(t, results, "VET-002")
	assert.True(t, r2.Passed)
}

func TestAnimalRules_VetCertWithCHEDPasses(t *testing.T) {
	cert := docOfType(model.DocTypeVeterinaryCert, "EXPORT HEALTH CERTIFICATE\nCHEDP.DE.2025.0012345")
	ec := &EvalContext{Doc: testDoc(t), Shipment: shipmentCtx(cert)}

	results := fixedEngine().Evaluate(ec, AnimalProductRules())
	assert.True(t, resultByID(t, results, "VET-001").Passed)
	assert.True(t, resultByID(t, results, "VET-002").Passed)
}

func TestAnimalRules_VetCertWithoutCHEDWarns(t *testing.T) {
	cert := docOfType(model.DocTypeVeterinaryCert, "EXPORT HEALTH CERTIFICATE no reference here")
	ec := &EvalContext{Doc: testDoc(t), Shipment: shipmentCtx(cert)}

	results := fixedEngine().Evaluate(ec, AnimalProductRules())
	r := resultByID(t, results, "VET-002")
	assert.False(t, r.Passed)
	assert.Equal(t, model.SeverityWarning, r.Severity)
}

func TestAnimalRules_NoContextSkips(t *testing.T) {
	results := fixedEngine().Evaluate(&EvalContext{Doc: testDoc(t)}, AnimalProductRules())
	for _, r := range results[:2] {
		assert.True(t, r.Passed, r.RuleID)
	}
}

const validDDS = `EUDR DUE DILIGENCE STATEMENT
Reference: 25NLCB1234567890
Plot geolocation:
{"type":"Point","coordinates":[3.3792,6.5244]}`

func TestEUDRRules_MissingStatementFails(t *testing.T) {
	ec := &EvalContext{Doc: testDoc(t), Shipment: shipmentCtx()}
	results := fixedEngine().Evaluate(ec, EUDRRules())

	r := resultByID(t, results, "EUDR-001")
	assert.False(t, r.Passed)
	assert.Equal(t, model.SeverityError, r.Severity)

	assert.True(t, resultByID(t, results, "EUDR-002").Passed) // nothing to check
}

func TestEUDRRules_ValidStatementPasses(t *testing.T) {
	dds := docOfType(model.DocTypeDueDiligence, validDDS)
	ec := &EvalContext{Doc: testDoc(t), Shipment: shipmentCtx(dds)}

	results := fixedEngine().Evaluate(ec, EUDRRules())
	for _, r := range results {
		assert.True(t, r.Passed, r.RuleID)
	}
}

func TestEUDRRules_OutOfRangeCoordinateFails(t *testing.T) {
	dds := docOfType(model.DocTypeDueDiligence,
		`{"type":"Point","coordinates":[200.0,95.0]}`)
	ec := &EvalContext{Doc: testDoc(t), Shipment: shipmentCtx(dds)}

	results := fixedEngine().Evaluate(ec, EUDRRules())
	r := resultByID(t, results, "EUDR-002")
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "out of range")
}

func TestEUDRRules_NoGeolocationFails(t *testing.T) {
	dds := docOfType(model.DocTypeDueDiligence, "statement without coordinates")
	ec := &EvalContext{Doc: testDoc(t), Shipment: shipmentCtx(dds)}

	results := fixedEngine().Evaluate(ec, EUDRRules())
	r := resultByID(t, results, "EUDR-002")
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "no geolocation")
}

func TestValidGeolocation_PolygonAndFeature(t *testing.T) {
	polygon := `{"type":"Polygon","coordinates":[[[3.1,6.1],[3.2,6.1],[3.2,6.2],[3.1,6.1]]]}`
	ok, reason := validGeolocation(polygon)
	assert.True(t, ok, reason)

	feature := `{"type":"Feature","geometry":{"type":"Point","coordinates":[3.3792,6.5244]},"properties":{"plot":"A"}}`
	ok, reason = validGeolocation(feature)
	assert.True(t, ok, reason)

	ok, _ = validGeolocation("no json here")
	assert.False(t, ok)
}

func TestCrossWeightRule(t *testing.T) {
	weight := 25000.0
	doc := testDoc(t)
	doc.Cargo = []model.CargoLine{{Description: "DRIED COW HOOVES", GrossWeightKg: &weight}}

	sc := shipmentCtx()
	sc.Products = []model.Product{{QuantityGrossKg: 20000.0}}
	ec := &EvalContext{Doc: doc, Shipment: sc}

	// 25000 on the BoL vs 20000 declared is a 20% difference: outside 10%.
	results := fixedEngine().Evaluate(ec, CrossRules(0.10))
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "CROSS-001", r.RuleID)
	assert.False(t, r.Passed)
	assert.Equal(t, model.SeverityWarning, r.Severity)

	// Within tolerance passes.
	sc.Products = []model.Product{{QuantityGrossKg: 24000.0}}
	results = fixedEngine().Evaluate(ec, CrossRules(0.10))
	assert.True(t, results[0].Passed)

	// No products: skip, not a failure.
	sc.Products = nil
	results = fixedEngine().Evaluate(ec, CrossRules(0.10))
	assert.True(t, results[0].Passed)
}
