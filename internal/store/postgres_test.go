package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeware/exportguard/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetShipmentNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM shipments").
		WithArgs("shp-1", "org-a").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetShipment(context.Background(), "org-a", "shp-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateShipmentNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE shipments").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	sh := testShipment("org-a")
	sh.ID = "shp-1"
	assert.ErrorIs(t, s.UpdateShipment(context.Background(), sh), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordTransitionCommits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO document_transitions").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	doc := &model.Document{
		ID: "doc-1", OrganizationID: "org-a",
		Status: model.StatusValidated, Version: 1,
	}
	err := s.RecordTransition(context.Background(), doc, model.DocumentTransition{
		DocumentID:     "doc-1",
		OrganizationID: "org-a",
		FromState:      model.StatusUploaded,
		ToState:        model.StatusValidated,
		ActorID:        "ops-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordTransitionStaleVersion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT 1 FROM documents").
		WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectRollback()

	doc := &model.Document{
		ID: "doc-1", OrganizationID: "org-a",
		Status: model.StatusValidated, Version: 7,
	}
	err := s.RecordTransition(context.Background(), doc, model.DocumentTransition{
		DocumentID: "doc-1", OrganizationID: "org-a",
		FromState: model.StatusUploaded, ToState: model.StatusValidated,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 7, doc.Version, "failed transition must not bump the version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveComplianceResultsUsesCopy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"compliance_results"},
		[]string{"id", "organization_id", "shipment_id", "document_id", "rule_id",
			"rule_name", "passed", "severity", "message", "field_path", "checked_at"}).
		WillReturnResult(2)

	now := time.Now().UTC()
	err := s.SaveComplianceResults(context.Background(), []model.ComplianceResult{
		{OrganizationID: "org-a", ShipmentID: "shp-1", RuleID: "BOL-001", Passed: true, Severity: model.SeverityError, CheckedAt: now},
		{OrganizationID: "org-a", ShipmentID: "shp-1", RuleID: "EUDR-001", Passed: false, Severity: model.SeverityError, CheckedAt: now},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveComplianceResultsEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	// No rows, no round trip.
	require.NoError(t, s.SaveComplianceResults(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
