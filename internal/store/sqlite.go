package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tradeware/exportguard/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS shipments (
	id               TEXT PRIMARY KEY,
	organization_id  TEXT NOT NULL,
	reference        TEXT NOT NULL,
	product_type     TEXT NOT NULL DEFAULT 'GENERAL',
	shipper_name     TEXT NOT NULL DEFAULT '',
	consignee_name   TEXT NOT NULL DEFAULT '',
	vessel_name      TEXT NOT NULL DEFAULT '',
	voyage_number    TEXT NOT NULL DEFAULT '',
	container_number TEXT NOT NULL DEFAULT '',
	bol_number       TEXT NOT NULL DEFAULT '',
	override_reason  TEXT NOT NULL DEFAULT '',
	override_by      TEXT NOT NULL DEFAULT '',
	override_at      DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (organization_id, reference)
);

CREATE TABLE IF NOT EXISTS documents (
	id                    TEXT PRIMARY KEY,
	shipment_id           TEXT NOT NULL REFERENCES shipments(id),
	organization_id       TEXT NOT NULL,
	document_type         TEXT NOT NULL DEFAULT 'UNKNOWN',
	status                TEXT NOT NULL DEFAULT 'DRAFT',
	canonical             TEXT,
	confidence            REAL NOT NULL DEFAULT 0,
	compliance_status     TEXT NOT NULL DEFAULT '',
	compliance_checked_at DATETIME,
	version               INTEGER NOT NULL DEFAULT 1,
	is_primary            INTEGER NOT NULL DEFAULT 1,
	supersedes_id         TEXT NOT NULL DEFAULT '',
	storage_key           TEXT NOT NULL DEFAULT '',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS products (
	id                TEXT PRIMARY KEY,
	shipment_id       TEXT NOT NULL REFERENCES shipments(id),
	organization_id   TEXT NOT NULL,
	product_type      TEXT NOT NULL DEFAULT 'GENERAL',
	hs_code           TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	quantity_gross_kg REAL NOT NULL DEFAULT 0,
	quantity_net_kg   REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS document_issues (
	id              TEXT PRIMARY KEY,
	document_id     TEXT NOT NULL REFERENCES documents(id),
	rule_id         TEXT NOT NULL,
	rule_name       TEXT NOT NULL DEFAULT '',
	passed          INTEGER NOT NULL DEFAULT 0,
	severity        TEXT NOT NULL,
	message         TEXT NOT NULL DEFAULT '',
	field_path      TEXT NOT NULL DEFAULT '',
	is_overridden   INTEGER NOT NULL DEFAULT 0,
	overridden_by   TEXT NOT NULL DEFAULT '',
	overridden_at   DATETIME,
	override_reason TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (document_id, rule_id)
);

CREATE TABLE IF NOT EXISTS compliance_results (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	shipment_id     TEXT NOT NULL,
	document_id     TEXT NOT NULL DEFAULT '',
	rule_id         TEXT NOT NULL,
	rule_name       TEXT NOT NULL DEFAULT '',
	passed          INTEGER NOT NULL DEFAULT 0,
	severity        TEXT NOT NULL,
	message         TEXT NOT NULL DEFAULT '',
	field_path      TEXT NOT NULL DEFAULT '',
	checked_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS document_transitions (
	id              TEXT PRIMARY KEY,
	document_id     TEXT NOT NULL REFERENCES documents(id),
	organization_id TEXT NOT NULL,
	from_state      TEXT NOT NULL,
	to_state        TEXT NOT NULL,
	actor_id        TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT '',
	metadata        TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_shipments_org ON shipments(organization_id);
CREATE INDEX IF NOT EXISTS idx_documents_shipment ON documents(shipment_id);
CREATE INDEX IF NOT EXISTS idx_documents_org_status ON documents(organization_id, status);
CREATE INDEX IF NOT EXISTS idx_products_shipment ON products(shipment_id);
CREATE INDEX IF NOT EXISTS idx_issues_document ON document_issues(document_id);
CREATE INDEX IF NOT EXISTS idx_results_shipment ON compliance_results(organization_id, shipment_id);
CREATE INDEX IF NOT EXISTS idx_transitions_document ON document_transitions(document_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Shipments

func (s *SQLiteStore) CreateShipment(ctx context.Context, sh *model.Shipment) error {
	if sh.ID == "" {
		sh.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	sh.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shipments
		 (id, organization_id, reference, product_type, shipper_name, consignee_name,
		  vessel_name, voyage_number, container_number, bol_number,
		  override_reason, override_by, override_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.OrganizationID, sh.Reference, string(sh.ProductType),
		sh.ShipperName, sh.ConsigneeName, sh.VesselName, sh.VoyageNumber,
		sh.ContainerNumber, sh.BoLNumber,
		sh.ValidationOverrideReason, sh.ValidationOverrideBy, sh.ValidationOverrideAt,
		sh.CreatedAt, sh.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert shipment %s", sh.Reference)
}

const shipmentColumns = `id, organization_id, reference, product_type, shipper_name,
 consignee_name, vessel_name, voyage_number, container_number, bol_number,
 override_reason, override_by, override_at, created_at, updated_at`

func (s *SQLiteStore) GetShipment(ctx context.Context, orgID, id string) (*model.Shipment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = ? AND organization_id = ?`,
		id, orgID,
	)
	return scanShipment(row)
}

func (s *SQLiteStore) GetShipmentByReference(ctx context.Context, orgID, reference string) (*model.Shipment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE reference = ? AND organization_id = ?`,
		reference, orgID,
	)
	return scanShipment(row)
}

func (s *SQLiteStore) UpdateShipment(ctx context.Context, sh *model.Shipment) error {
	sh.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE shipments SET
		 reference = ?, product_type = ?, shipper_name = ?, consignee_name = ?,
		 vessel_name = ?, voyage_number = ?, container_number = ?, bol_number = ?,
		 override_reason = ?, override_by = ?, override_at = ?, updated_at = ?
		 WHERE id = ? AND organization_id = ?`,
		sh.Reference, string(sh.ProductType), sh.ShipperName, sh.ConsigneeName,
		sh.VesselName, sh.VoyageNumber, sh.ContainerNumber, sh.BoLNumber,
		sh.ValidationOverrideReason, sh.ValidationOverrideBy, sh.ValidationOverrideAt,
		sh.UpdatedAt, sh.ID, sh.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update shipment %s", sh.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListShipments(ctx context.Context, orgID string, filter ShipmentFilter) ([]model.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE organization_id = ?`
	args := []any{orgID}

	if filter.Reference != "" {
		query += ` AND reference = ?`
		args = append(args, filter.Reference)
	}
	if filter.ProductType != "" {
		query += ` AND product_type = ?`
		args = append(args, string(filter.ProductType))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list shipments")
	}
	defer rows.Close()

	var out []model.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sh)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list shipments iterate")
}

// Documents

func (s *SQLiteStore) CreateDocument(ctx context.Context, d *model.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Version == 0 {
		d.Version = 1
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	canonicalJSON, err := marshalCanonical(d.Canonical)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents
		 (id, shipment_id, organization_id, document_type, status, canonical, confidence,
		  compliance_status, compliance_checked_at, version, is_primary, supersedes_id,
		  storage_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ShipmentID, d.OrganizationID, string(d.DocumentType), string(d.Status),
		canonicalJSON, d.Confidence, string(d.ComplianceStatus), d.ComplianceCheckedAt,
		d.Version, d.IsPrimary, d.SupersedesID, d.StorageKey, d.CreatedAt, d.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert document %s", d.ID)
}

const documentColumns = `id, shipment_id, organization_id, document_type, status,
 canonical, confidence, compliance_status, compliance_checked_at, version,
 is_primary, supersedes_id, storage_key, created_at, updated_at`

func (s *SQLiteStore) GetDocument(ctx context.Context, orgID, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ? AND organization_id = ?`,
		id, orgID,
	)
	d, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	issues, err := s.listIssues(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Issues = issues
	return d, nil
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, d *model.Document) error {
	canonicalJSON, err := marshalCanonical(d.Canonical)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET
		 document_type = ?, status = ?, canonical = ?, confidence = ?,
		 compliance_status = ?, compliance_checked_at = ?, is_primary = ?,
		 supersedes_id = ?, storage_key = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND organization_id = ? AND version = ?`,
		string(d.DocumentType), string(d.Status), canonicalJSON, d.Confidence,
		string(d.ComplianceStatus), d.ComplianceCheckedAt, d.IsPrimary,
		d.SupersedesID, d.StorageKey, now, d.ID, d.OrganizationID, d.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document %s", d.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return s.documentConflict(ctx, d.ID, d.OrganizationID)
	}
	d.Version++
	d.UpdatedAt = now
	return nil
}

// documentConflict distinguishes a stale version from a missing row.
func (s *SQLiteStore) documentConflict(ctx context.Context, id, orgID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE id = ? AND organization_id = ?`, id, orgID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: check document %s", id)
	}
	return ErrVersionConflict
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, orgID string, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE organization_id = ?`
	args := []any{orgID}

	if filter.ShipmentID != "" {
		query += ` AND shipment_id = ?`
		args = append(args, filter.ShipmentID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DocumentType != "" {
		query += ` AND document_type = ?`
		args = append(args, string(filter.DocumentType))
	}
	if filter.PrimaryOnly {
		query += ` AND is_primary = 1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

// Products

func (s *SQLiteStore) ReplaceProducts(ctx context.Context, shipmentID string, products []model.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace products")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE shipment_id = ?`, shipmentID); err != nil {
		return eris.Wrapf(err, "sqlite: clear products for %s", shipmentID)
	}
	for i := range products {
		p := &products[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.ShipmentID = shipmentID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products
			 (id, shipment_id, organization_id, product_type, hs_code, description,
			  quantity_gross_kg, quantity_net_kg)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ShipmentID, p.OrganizationID, string(p.ProductType),
			p.HSCode, p.Description, p.QuantityGrossKg, p.QuantityNetKg,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert product for %s", shipmentID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace products")
}

func (s *SQLiteStore) ListProducts(ctx context.Context, orgID, shipmentID string) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, shipment_id, organization_id, product_type, hs_code, description,
		 quantity_gross_kg, quantity_net_kg
		 FROM products WHERE shipment_id = ? AND organization_id = ? ORDER BY hs_code`,
		shipmentID, orgID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		var pt string
		if err := rows.Scan(&p.ID, &p.ShipmentID, &p.OrganizationID, &pt,
			&p.HSCode, &p.Description, &p.QuantityGrossKg, &p.QuantityNetKg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		p.ProductType = model.ProductType(pt)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list products iterate")
}

// Compliance output

func (s *SQLiteStore) SaveIssues(ctx context.Context, documentID string, issues []model.DocumentIssue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save issues")
	}
	defer tx.Rollback()

	// Overridden rows are audit history and survive re-runs.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_issues WHERE document_id = ? AND is_overridden = 0`,
		documentID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: clear issues for %s", documentID)
	}

	for i := range issues {
		is := &issues[i]
		if is.ID == "" {
			is.ID = uuid.New().String()
		}
		is.DocumentID = documentID
		if is.CreatedAt.IsZero() {
			is.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_issues
			 (id, document_id, rule_id, rule_name, passed, severity, message, field_path,
			  is_overridden, overridden_by, overridden_at, override_reason, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (document_id, rule_id) DO UPDATE SET
			 rule_name = excluded.rule_name, passed = excluded.passed,
			 severity = excluded.severity, message = excluded.message,
			 field_path = excluded.field_path`,
			is.ID, is.DocumentID, is.RuleID, is.RuleName, is.Passed, string(is.Severity),
			is.Message, is.FieldPath, is.IsOverridden, is.OverriddenBy, is.OverriddenAt,
			is.OverrideReason, is.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert issue %s", is.RuleID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save issues")
}

func (s *SQLiteStore) OverrideIssue(ctx context.Context, documentID, issueID, actorID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE document_issues
		 SET is_overridden = 1, overridden_by = ?, overridden_at = ?, override_reason = ?
		 WHERE id = ? AND document_id = ?`,
		actorID, time.Now().UTC(), reason, issueID, documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: override issue %s", issueID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) listIssues(ctx context.Context, documentID string) ([]model.DocumentIssue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, rule_id, rule_name, passed, severity, message, field_path,
		 is_overridden, overridden_by, overridden_at, override_reason, created_at
		 FROM document_issues WHERE document_id = ? ORDER BY created_at, rule_id`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list issues")
	}
	defer rows.Close()

	var out []model.DocumentIssue
	for rows.Next() {
		var is model.DocumentIssue
		var sev string
		var overriddenAt sql.NullTime
		if err := rows.Scan(&is.ID, &is.DocumentID, &is.RuleID, &is.RuleName, &is.Passed,
			&sev, &is.Message, &is.FieldPath, &is.IsOverridden, &is.OverriddenBy,
			&overriddenAt, &is.OverrideReason, &is.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan issue")
		}
		is.Severity = model.Severity(sev)
		if overriddenAt.Valid {
			t := overriddenAt.Time
			is.OverriddenAt = &t
		}
		out = append(out, is)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list issues iterate")
}

func (s *SQLiteStore) SaveComplianceResults(ctx context.Context, results []model.ComplianceResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer tx.Rollback()

	for i := range results {
		r := &results[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO compliance_results
			 (id, organization_id, shipment_id, document_id, rule_id, rule_name,
			  passed, severity, message, field_path, checked_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.OrganizationID, r.ShipmentID, r.DocumentID, r.RuleID, r.RuleName,
			r.Passed, string(r.Severity), r.Message, r.FieldPath, r.CheckedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", r.RuleID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save results")
}

func (s *SQLiteStore) ListComplianceResults(ctx context.Context, orgID, shipmentID string) ([]model.ComplianceResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, shipment_id, document_id, rule_id, rule_name,
		 passed, severity, message, field_path, checked_at
		 FROM compliance_results
		 WHERE organization_id = ? AND shipment_id = ?
		 ORDER BY checked_at, rule_id`,
		orgID, shipmentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var out []model.ComplianceResult
	for rows.Next() {
		var r model.ComplianceResult
		var sev string
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.ShipmentID, &r.DocumentID,
			&r.RuleID, &r.RuleName, &r.Passed, &sev, &r.Message, &r.FieldPath,
			&r.CheckedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.Severity = model.Severity(sev)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

// Audit trail

func (s *SQLiteStore) RecordTransition(ctx context.Context, doc *model.Document, tr model.DocumentTransition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transition")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND organization_id = ? AND version = ?`,
		string(doc.Status), now, doc.ID, doc.OrganizationID, doc.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition update %s", doc.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return s.documentConflict(ctx, doc.ID, doc.OrganizationID)
	}

	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = now
	}
	metadataJSON, err := marshalMetadata(tr.Metadata)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_transitions
		 (id, document_id, organization_id, from_state, to_state, actor_id, reason, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.DocumentID, tr.OrganizationID, string(tr.FromState), string(tr.ToState),
		tr.ActorID, tr.Reason, metadataJSON, tr.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert transition %s", tr.ID)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit transition")
	}
	doc.Version++
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) ListTransitions(ctx context.Context, orgID, documentID string) ([]model.DocumentTransition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, organization_id, from_state, to_state, actor_id, reason, metadata, created_at
		 FROM document_transitions
		 WHERE document_id = ? AND organization_id = ?
		 ORDER BY created_at, id`,
		documentID, orgID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list transitions")
	}
	defer rows.Close()

	var out []model.DocumentTransition
	for rows.Next() {
		var tr model.DocumentTransition
		var from, to string
		var metadataJSON sql.NullString
		if err := rows.Scan(&tr.ID, &tr.DocumentID, &tr.OrganizationID, &from, &to,
			&tr.ActorID, &tr.Reason, &metadataJSON, &tr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan transition")
		}
		tr.FromState = model.DocumentStatus(from)
		tr.ToState = model.DocumentStatus(to)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &tr.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal transition metadata")
			}
		}
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list transitions iterate")
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalCanonical(c *model.CanonicalBoL) (any, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal canonical")
	}
	return string(b), nil
}

func marshalMetadata(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal metadata")
	}
	return string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanShipment(row scannable) (*model.Shipment, error) {
	var sh model.Shipment
	var pt string
	var overrideAt sql.NullTime

	err := row.Scan(&sh.ID, &sh.OrganizationID, &sh.Reference, &pt,
		&sh.ShipperName, &sh.ConsigneeName, &sh.VesselName, &sh.VoyageNumber,
		&sh.ContainerNumber, &sh.BoLNumber,
		&sh.ValidationOverrideReason, &sh.ValidationOverrideBy, &overrideAt,
		&sh.CreatedAt, &sh.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan shipment")
	}

	sh.ProductType = model.ProductType(pt)
	if overrideAt.Valid {
		t := overrideAt.Time
		sh.ValidationOverrideAt = &t
	}
	return &sh, nil
}

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	var docType, status, compliance string
	var canonicalJSON sql.NullString
	var checkedAt sql.NullTime

	err := row.Scan(&d.ID, &d.ShipmentID, &d.OrganizationID, &docType, &status,
		&canonicalJSON, &d.Confidence, &compliance, &checkedAt, &d.Version,
		&d.IsPrimary, &d.SupersedesID, &d.StorageKey, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}

	d.DocumentType = model.DocumentType(docType)
	d.Status = model.DocumentStatus(status)
	d.ComplianceStatus = model.Decision(compliance)
	if checkedAt.Valid {
		t := checkedAt.Time
		d.ComplianceCheckedAt = &t
	}
	if canonicalJSON.Valid && canonicalJSON.String != "" {
		d.Canonical = &model.CanonicalBoL{}
		if err := json.Unmarshal([]byte(canonicalJSON.String), d.Canonical); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal canonical")
		}
	}
	return &d, nil
}
