package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeware/exportguard/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testShipment(org string) *model.Shipment {
	return &model.Shipment{
		OrganizationID: org,
		Reference:      "SHP-2026-0042",
		ProductType:    model.ProductCocoa,
		ShipperName:    "VIBOTAJ GLOBAL NIG LTD",
		BoLNumber:      "APU106546",
	}
}

func TestSQLiteStore_ShipmentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sh := testShipment("org-a")
	require.NoError(t, s.CreateShipment(ctx, sh))
	require.NotEmpty(t, sh.ID)

	got, err := s.GetShipment(ctx, "org-a", sh.ID)
	require.NoError(t, err)
	assert.Equal(t, sh.Reference, got.Reference)
	assert.Equal(t, model.ProductCocoa, got.ProductType)
	assert.Nil(t, got.ValidationOverrideAt)

	byRef, err := s.GetShipmentByReference(ctx, "org-a", sh.Reference)
	require.NoError(t, err)
	assert.Equal(t, sh.ID, byRef.ID)

	got.VesselName = "MSC MARINA"
	now := time.Now().UTC().Truncate(time.Second)
	got.ValidationOverrideReason = "customer escalation"
	got.ValidationOverrideBy = "admin-1"
	got.ValidationOverrideAt = &now
	require.NoError(t, s.UpdateShipment(ctx, got))

	again, err := s.GetShipment(ctx, "org-a", sh.ID)
	require.NoError(t, err)
	assert.Equal(t, "MSC MARINA", again.VesselName)
	assert.True(t, again.Overridden())
	require.NotNil(t, again.ValidationOverrideAt)
}

func TestSQLiteStore_ShipmentTenantIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sh := testShipment("org-a")
	require.NoError(t, s.CreateShipment(ctx, sh))

	_, err := s.GetShipment(ctx, "org-b", sh.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetShipmentByReference(ctx, "org-b", sh.Reference)
	assert.ErrorIs(t, err, ErrNotFound)

	other := testShipment("org-b")
	other.VesselName = "updated elsewhere"
	other.ID = sh.ID
	assert.ErrorIs(t, s.UpdateShipment(ctx, other), ErrNotFound)

	list, err := s.ListShipments(ctx, "org-b", ShipmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteStore_ListShipmentsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testShipment("org-a")
	require.NoError(t, s.CreateShipment(ctx, a))

	b := testShipment("org-a")
	b.Reference = "SHP-2026-0043"
	b.ProductType = model.ProductHornHoof
	require.NoError(t, s.CreateShipment(ctx, b))

	cocoa, err := s.ListShipments(ctx, "org-a", ShipmentFilter{ProductType: model.ProductCocoa})
	require.NoError(t, err)
	require.Len(t, cocoa, 1)
	assert.Equal(t, a.ID, cocoa[0].ID)

	all, err := s.ListShipments(ctx, "org-a", ShipmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testDocumentFor(t *testing.T, s *SQLiteStore, org string) *model.Document {
	t.Helper()
	ctx := context.Background()
	sh := testShipment(org)
	require.NoError(t, s.CreateShipment(ctx, sh))

	bol, err := model.NewCanonicalBoL("APU106546",
		model.Party{Name: "VIBOTAJ GLOBAL NIG LTD"},
		model.Party{Name: "HAGES GMBH"},
	)
	require.NoError(t, err)

	d := model.NewDocument(sh.ID, org, model.DocTypeBillOfLading)
	d.Canonical = bol
	d.Confidence = 0.83
	require.NoError(t, s.CreateDocument(ctx, d))
	return d
}

func TestSQLiteStore_DocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := testDocumentFor(t, s, "org-a")

	got, err := s.GetDocument(ctx, "org-a", d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, got.Status)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.IsPrimary)
	assert.InDelta(t, 0.83, got.Confidence, 1e-9)
	require.NotNil(t, got.Canonical)
	assert.Equal(t, "APU106546", got.Canonical.BoLNumber)
	assert.Empty(t, got.Issues)

	_, err = s.GetDocument(ctx, "org-b", d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpdateDocumentOptimistic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := testDocumentFor(t, s, "org-a")

	d.Status = model.StatusValidated
	require.NoError(t, s.UpdateDocument(ctx, d))
	assert.Equal(t, 2, d.Version)

	stale := *d
	stale.Version = 1
	assert.ErrorIs(t, s.UpdateDocument(ctx, &stale), ErrVersionConflict)

	missing := *d
	missing.ID = "nope"
	assert.ErrorIs(t, s.UpdateDocument(ctx, &missing), ErrNotFound)

	got, err := s.GetDocument(ctx, "org-a", d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValidated, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestSQLiteStore_Products(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sh := testShipment("org-a")
	require.NoError(t, s.CreateShipment(ctx, sh))

	first := []model.Product{
		{OrganizationID: "org-a", ProductType: model.ProductCocoa, HSCode: "180100", QuantityGrossKg: 25000},
		{OrganizationID: "org-a", ProductType: model.ProductGinger, HSCode: "091011", QuantityGrossKg: 4000},
	}
	require.NoError(t, s.ReplaceProducts(ctx, sh.ID, first))

	got, err := s.ListProducts(ctx, "org-a", sh.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "091011", got[0].HSCode) // ordered by hs_code

	// Replace swaps the whole set.
	require.NoError(t, s.ReplaceProducts(ctx, sh.ID, []model.Product{
		{OrganizationID: "org-a", ProductType: model.ProductCocoa, HSCode: "180100", QuantityGrossKg: 20000},
	}))
	got, err = s.ListProducts(ctx, "org-a", sh.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 20000, got[0].QuantityGrossKg, 1e-9)
}

func TestSQLiteStore_SaveIssuesPreservesOverrides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := testDocumentFor(t, s, "org-a")

	require.NoError(t, s.SaveIssues(ctx, d.ID, []model.DocumentIssue{
		{RuleID: "BOL-002", RuleName: "Shipper present", Severity: model.SeverityError, Message: "shipper is a placeholder"},
		{RuleID: "BOL-004", RuleName: "Container listed", Severity: model.SeverityWarning, Message: "no containers"},
	}))

	got, err := s.GetDocument(ctx, "org-a", d.ID)
	require.NoError(t, err)
	require.Len(t, got.Issues, 2)

	var errIssue model.DocumentIssue
	for _, is := range got.Issues {
		if is.RuleID == "BOL-002" {
			errIssue = is
		}
	}
	require.NotEmpty(t, errIssue.ID)
	require.NoError(t, s.OverrideIssue(ctx, d.ID, errIssue.ID, "compliance-1", "verified against carrier portal"))

	// A re-run writes a fresh unresolved set; the overridden row stays.
	require.NoError(t, s.SaveIssues(ctx, d.ID, []model.DocumentIssue{
		{RuleID: "BOL-004", RuleName: "Container listed", Severity: model.SeverityWarning, Message: "no containers"},
	}))

	got, err = s.GetDocument(ctx, "org-a", d.ID)
	require.NoError(t, err)
	require.Len(t, got.Issues, 2)

	byRule := map[string]model.DocumentIssue{}
	for _, is := range got.Issues {
		byRule[is.RuleID] = is
	}
	assert.True(t, byRule["BOL-002"].IsOverridden)
	assert.Equal(t, "compliance-1", byRule["BOL-002"].OverriddenBy)
	assert.NotNil(t, byRule["BOL-002"].OverriddenAt)
	assert.False(t, byRule["BOL-004"].IsOverridden)
}

func TestSQLiteStore_SaveIssuesUpsertsOverriddenRule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := testDocumentFor(t, s, "org-a")

	require.NoError(t, s.SaveIssues(ctx, d.ID, []model.DocumentIssue{
		{RuleID: "BOL-002", RuleName: "Shipper present", Severity: model.SeverityError, Message: "shipper is a placeholder"},
	}))
	got, err := s.GetDocument(ctx, "org-a", d.ID)
	require.NoError(t, err)
	require.Len(t, got.Issues, 1)
	require.NoError(t, s.OverrideIssue(ctx, d.ID, got.Issues[0].ID, "compliance-1", "verified"))

	// Saving the same rule again lands on the overridden row: the message is
	// refreshed, the override and the row identity survive.
	require.NoError(t, s.SaveIssues(ctx, d.ID, []model.DocumentIssue{
		{RuleID: "BOL-002", RuleName: "Shipper present", Severity: model.SeverityError, Message: "shipper still a placeholder"},
	}))

	got, err = s.GetDocument(ctx, "org-a", d.ID)
	require.NoError(t, err)
	require.Len(t, got.Issues, 1)
	is := got.Issues[0]
	assert.True(t, is.IsOverridden)
	assert.Equal(t, "compliance-1", is.OverriddenBy)
	assert.Equal(t, "shipper still a placeholder", is.Message)
}

func TestSQLiteStore_OverrideIssueNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.OverrideIssue(context.Background(), "doc-x", "issue-x", "actor", "reason")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ComplianceResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveComplianceResults(ctx, []model.ComplianceResult{
		{OrganizationID: "org-a", ShipmentID: "shp-1", RuleID: "BOL-001", Passed: true, Severity: model.SeverityError, CheckedAt: now},
		{OrganizationID: "org-a", ShipmentID: "shp-1", RuleID: "CROSS-001", Passed: false, Severity: model.SeverityWarning, Message: "weight mismatch", CheckedAt: now},
		{OrganizationID: "org-b", ShipmentID: "shp-1", RuleID: "BOL-001", Passed: true, Severity: model.SeverityError, CheckedAt: now},
	}))

	got, err := s.ListComplianceResults(ctx, "org-a", "shp-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BOL-001", got[0].RuleID)
	assert.Equal(t, "CROSS-001", got[1].RuleID)
	assert.False(t, got[1].Passed)
}

func TestSQLiteStore_RecordTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := testDocumentFor(t, s, "org-a")

	d.Status = model.StatusValidated
	tr := model.DocumentTransition{
		DocumentID:     d.ID,
		OrganizationID: "org-a",
		FromState:      model.StatusUploaded,
		ToState:        model.StatusValidated,
		ActorID:        "ops-1",
		Reason:         "parse complete",
		Metadata:       map[string]string{"confidence": "0.83"},
	}
	require.NoError(t, s.RecordTransition(ctx, d, tr))
	assert.Equal(t, 2, d.Version)

	got, err := s.GetDocument(ctx, "org-a", d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValidated, got.Status)
	assert.Equal(t, 2, got.Version)

	trs, err := s.ListTransitions(ctx, "org-a", d.ID)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	assert.Equal(t, model.StatusUploaded, trs[0].FromState)
	assert.Equal(t, model.StatusValidated, trs[0].ToState)
	assert.Equal(t, "ops-1", trs[0].ActorID)
	assert.Equal(t, "0.83", trs[0].Metadata["confidence"])
}

func TestSQLiteStore_RecordTransitionConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := testDocumentFor(t, s, "org-a")

	stale := *d
	stale.Version = 99
	stale.Status = model.StatusValidated
	err := s.RecordTransition(ctx, &stale, model.DocumentTransition{
		DocumentID: stale.ID, OrganizationID: "org-a",
		FromState: model.StatusUploaded, ToState: model.StatusValidated,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	missing := *d
	missing.ID = "nope"
	err = s.RecordTransition(ctx, &missing, model.DocumentTransition{
		DocumentID: "nope", OrganizationID: "org-a",
		FromState: model.StatusUploaded, ToState: model.StatusValidated,
	})
	assert.ErrorIs(t, err, ErrNotFound)

	// A failed transition leaves no audit row.
	trs, err := s.ListTransitions(ctx, "org-a", d.ID)
	require.NoError(t, err)
	assert.Empty(t, trs)
}
