package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tradeware/exportguard/internal/db"
	"github.com/tradeware/exportguard/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_shipment":     `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1 AND organization_id = $2`,
	"get_shipment_ref": `SELECT ` + shipmentColumns + ` FROM shipments WHERE reference = $1 AND organization_id = $2`,
	"get_document":     `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND organization_id = $2`,
	"list_issues": `SELECT id, document_id, rule_id, rule_name, passed, severity, message, field_path,
	 is_overridden, overridden_by, overridden_at, override_reason, created_at
	 FROM document_issues WHERE document_id = $1 ORDER BY created_at, rule_id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., reporting).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS shipments (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	override_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (organization_id, reference)
);

CREATE TABLE IF NOT EXISTS documents (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	shipment_id           TEXT NOT NULL REFERENCES shipments(id),
	organization_id       TEXT NOT NULL,
	document_type         TEXT NOT NULL DEFAULT 'UNKNOWN',
	status                TEXT NOT NULL DEFAULT 'DRAFT',
	canonical             JSONB,
	confidence            DOUBLE PRECISION NOT NULL DEFAULT 0,
	compliance_status     TEXT NOT NULL DEFAULT '',
	compliance_checked_at TIMESTAMPTZ,
	version               INTEGER NOT NULL DEFAULT 1,
	is_primary            BOOLEAN NOT NULL DEFAULT true,
	supersedes_id         TEXT NOT NULL DEFAULT '',
	storage_key           TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	shipment_id       TEXT NOT NULL REFERENCES shipments(id),
	organization_id   TEXT NOT NULL,
	product_type      TEXT NOT NULL DEFAULT 'GENERAL',
	hs_code           TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	quantity_gross_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
	quantity_net_kg   DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS document_issues (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id     TEXT NOT NULL REFERENCES documents(id),
	rule_id         TEXT NOT NULL,
	rule_name       TEXT NOT NULL DEFAULT '',
	passed          BOOLEAN NOT NULL DEFAULT false,
	severity        TEXT NOT NULL,
	message         TEXT NOT NULL DEFAULT '',
	field_path      TEXT NOT NULL DEFAULT '',
	is_overridden   BOOLEAN NOT NULL DEFAULT false,
	overridden_by   TEXT NOT NULL DEFAULT '',
	overridden_at   TIMESTAMPTZ,
	override_reason TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, rule_id)
);

CREATE TABLE IF NOT EXISTS compliance_results (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	organization_id TEXT NOT NULL,
	shipment_id     TEXT NOT NULL,
	document_id     TEXT NOT NULL DEFAULT '',
	rule_id         TEXT NOT NULL,
	rule_name       TEXT NOT NULL DEFAULT '',
	passed          BOOLEAN NOT NULL DEFAULT false,
	severity        TEXT NOT NULL,
	message         TEXT NOT NULL DEFAULT '',
	field_path      TEXT NOT NULL DEFAULT '',
	checked_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS document_transitions (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id     TEXT NOT NULL REFERENCES documents(id),
	organization_id TEXT NOT NULL,
	from_state      TEXT NOT NULL,
	to_state        TEXT NOT NULL,
	actor_id        TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT '',
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_shipments_org ON shipments(organization_id);
CREATE INDEX IF NOT EXISTS idx_documents_shipment ON documents(shipment_id);
CREATE INDEX IF NOT EXISTS idx_documents_org_status ON documents(organization_id, status);
CREATE INDEX IF NOT EXISTS idx_products_shipment ON products(shipment_id);
CREATE INDEX IF NOT EXISTS idx_issues_document ON document_issues(document_id);
CREATE INDEX IF NOT EXISTS idx_results_shipment ON compliance_results(organization_id, shipment_id);
CREATE INDEX IF NOT EXISTS idx_transitions_document ON document_transitions(document_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Shipments

func (s *PostgresStore) CreateShipment(ctx context.Context, sh *model.Shipment) error {
	if sh.ID == "" {
		sh.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	sh.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO shipments
		 (id, organization_id, reference, product_type, shipper_name, consignee_name,
		  vessel_name, voyage_number, container_number, bol_number,
		  override_reason, override_by, override_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sh.ID, sh.OrganizationID, sh.Reference, string(sh.ProductType),
		sh.ShipperName, sh.ConsigneeName, sh.VesselName, sh.VoyageNumber,
		sh.ContainerNumber, sh.BoLNumber,
		sh.ValidationOverrideReason, sh.ValidationOverrideBy, sh.ValidationOverrideAt,
		sh.CreatedAt, sh.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert shipment %s", sh.Reference)
}

func (s *PostgresStore) GetShipment(ctx context.Context, orgID, id string) (*model.Shipment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = $1 AND organization_id = $2`,
		id, orgID,
	)
	return scanPgShipment(row)
}

func (s *PostgresStore) GetShipmentByReference(ctx context.Context, orgID, reference string) (*model.Shipment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE reference = $1 AND organization_id = $2`,
		reference, orgID,
	)
	return scanPgShipment(row)
}

func (s *PostgresStore) UpdateShipment(ctx context.Context, sh *model.Shipment) error {
	sh.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE shipments SET
		 reference = $1, product_type = $2, shipper_name = $3, consignee_name = $4,
		 vessel_name = $5, voyage_number = $6, container_number = $7, bol_number = $8,
		 override_reason = $9, override_by = $10, override_at = $11, updated_at = $12
		 WHERE id = $13 AND organization_id = $14`,
		sh.Reference, string(sh.ProductType), sh.ShipperName, sh.ConsigneeName,
		sh.VesselName, sh.VoyageNumber, sh.ContainerNumber, sh.BoLNumber,
		sh.ValidationOverrideReason, sh.ValidationOverrideBy, sh.ValidationOverrideAt,
		sh.UpdatedAt, sh.ID, sh.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update shipment %s", sh.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListShipments(ctx context.Context, orgID string, filter ShipmentFilter) ([]model.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE organization_id = $1`
	args := []any{orgID}
	argIdx := 2

	if filter.Reference != "" {
		query += fmt.Sprintf(` AND reference = $%d`, argIdx)
		args = append(args, filter.Reference)
		argIdx++
	}
	if filter.ProductType != "" {
		query += fmt.Sprintf(` AND product_type = $%d`, argIdx)
		args = append(args, string(filter.ProductType))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list shipments")
	}
	defer rows.Close()

	var out []model.Shipment
	for rows.Next() {
		sh, err := scanPgShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sh)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list shipments iterate")
}

// Documents

func (s *PostgresStore) CreateDocument(ctx context.Context, d *model.Document) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents
		 (id, shipment_id, organization_id, document_type, status, canonical, confidence,
		  compliance_status, compliance_checked_at, version, is_primary, supersedes_id,
		  storage_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.ShipmentID, d.OrganizationID, string(d.DocumentType), string(d.Status),
		canonicalJSON, d.Confidence, string(d.ComplianceStatus), d.ComplianceCheckedAt,
		d.Version, d.IsPrimary, d.SupersedesID, d.StorageKey, d.CreatedAt, d.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert document %s", d.ID)
}

func (s *PostgresStore) GetDocument(ctx context.Context, orgID, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND organization_id = $2`,
		id, orgID,
	)
	d, err := scanPgDocument(row)
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

func (s *PostgresStore) UpdateDocument(ctx context.Context, d *model.Document) error {
	canonicalJSON, err := marshalCanonical(d.Canonical)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET
		 document_type = $1, status = $2, canonical = $3, confidence = $4,
		 compliance_status = $5, compliance_checked_at = $6, is_primary = $7,
		 supersedes_id = $8, storage_key = $9, version = version + 1, updated_at = $10
		 WHERE id = $11 AND organization_id = $12 AND version = $13`,
		string(d.DocumentType), string(d.Status), canonicalJSON, d.Confidence,
		string(d.ComplianceStatus), d.ComplianceCheckedAt, d.IsPrimary,
		d.SupersedesID, d.StorageKey, now, d.ID, d.OrganizationID, d.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document %s", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return s.documentConflict(ctx, d.ID, d.OrganizationID)
	}
	d.Version++
	d.UpdatedAt = now
	return nil
}

func (s *PostgresStore) documentConflict(ctx context.Context, id, orgID string) error {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM documents WHERE id = $1 AND organization_id = $2`, id, orgID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: check document %s", id)
	}
	return ErrVersionConflict
}

func (s *PostgresStore) ListDocuments(ctx context.Context, orgID string, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE organization_id = $1`
	args := []any{orgID}
	argIdx := 2

	if filter.ShipmentID != "" {
		query += fmt.Sprintf(` AND shipment_id = $%d`, argIdx)
		args = append(args, filter.ShipmentID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.DocumentType != "" {
		query += fmt.Sprintf(` AND document_type = $%d`, argIdx)
		args = append(args, string(filter.DocumentType))
		argIdx++
	}
	if filter.PrimaryOnly {
		query += ` AND is_primary`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanPgDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

// Products

func (s *PostgresStore) ReplaceProducts(ctx context.Context, shipmentID string, products []model.Product) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace products")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM products WHERE shipment_id = $1`, shipmentID); err != nil {
		return eris.Wrapf(err, "postgres: clear products for %s", shipmentID)
	}

	rows := make([][]any, 0, len(products))
	for i := range products {
		p := &products[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.ShipmentID = shipmentID
		rows = append(rows, []any{
			p.ID, p.ShipmentID, p.OrganizationID, string(p.ProductType),
			p.HSCode, p.Description, p.QuantityGrossKg, p.QuantityNetKg,
		})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"products"},
			[]string{"id", "shipment_id", "organization_id", "product_type",
				"hs_code", "description", "quantity_gross_kg", "quantity_net_kg"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return eris.Wrapf(err, "postgres: copy products for %s", shipmentID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace products")
}

func (s *PostgresStore) ListProducts(ctx context.Context, orgID, shipmentID string) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, shipment_id, organization_id, product_type, hs_code, description,
		 quantity_gross_kg, quantity_net_kg
		 FROM products WHERE shipment_id = $1 AND organization_id = $2 ORDER BY hs_code`,
		shipmentID, orgID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		var pt string
		if err := rows.Scan(&p.ID, &p.ShipmentID, &p.OrganizationID, &pt,
			&p.HSCode, &p.Description, &p.QuantityGrossKg, &p.QuantityNetKg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		p.ProductType = model.ProductType(pt)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list products iterate")
}

// Compliance output

func (s *PostgresStore) SaveIssues(ctx context.Context, documentID string, issues []model.DocumentIssue) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save issues")
	}
	defer tx.Rollback(ctx)

	// Overridden rows are audit history and survive re-runs.
	if _, err := tx.Exec(ctx,
		`DELETE FROM document_issues WHERE document_id = $1 AND NOT is_overridden`,
		documentID,
	); err != nil {
		return eris.Wrapf(err, "postgres: clear issues for %s", documentID)
	}

	rows := make([][]any, 0, len(issues))
	for i := range issues {
		is := &issues[i]
		if is.ID == "" {
			is.ID = uuid.New().String()
		}
		is.DocumentID = documentID
		if is.CreatedAt.IsZero() {
			is.CreatedAt = time.Now().UTC()
		}
		rows = append(rows, []any{
			is.ID, is.DocumentID, is.RuleID, is.RuleName, is.Passed, string(is.Severity),
			is.Message, is.FieldPath, is.CreatedAt,
		})
	}
	if _, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
		Table: "document_issues",
		Columns: []string{"id", "document_id", "rule_id", "rule_name", "passed",
			"severity", "message", "field_path", "created_at"},
		ConflictKeys: []string{"document_id", "rule_id"},
		UpdateCols:   []string{"rule_name", "passed", "severity", "message", "field_path"},
	}, rows); err != nil {
		return eris.Wrapf(err, "postgres: upsert issues for %s", documentID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save issues")
}

func (s *PostgresStore) OverrideIssue(ctx context.Context, documentID, issueID, actorID, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE document_issues
		 SET is_overridden = true, overridden_by = $1, overridden_at = $2, override_reason = $3
		 WHERE id = $4 AND document_id = $5`,
		actorID, time.Now().UTC(), reason, issueID, documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: override issue %s", issueID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) listIssues(ctx context.Context, documentID string) ([]model.DocumentIssue, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_issues"], documentID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list issues")
	}
	defer rows.Close()

	var out []model.DocumentIssue
	for rows.Next() {
		var is model.DocumentIssue
		var sev string
		var overriddenAt *time.Time
		if err := rows.Scan(&is.ID, &is.DocumentID, &is.RuleID, &is.RuleName, &is.Passed,
			&sev, &is.Message, &is.FieldPath, &is.IsOverridden, &is.OverriddenBy,
			&overriddenAt, &is.OverrideReason, &is.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan issue")
		}
		is.Severity = model.Severity(sev)
		is.OverriddenAt = overriddenAt
		out = append(out, is)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list issues iterate")
}

// SaveComplianceResults bulk-inserts one audit row per rule result via COPY.
func (s *PostgresStore) SaveComplianceResults(ctx context.Context, results []model.ComplianceResult) error {
	rows := make([][]any, 0, len(results))
	for i := range results {
		r := &results[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		rows = append(rows, []any{
			r.ID, r.OrganizationID, r.ShipmentID, r.DocumentID, r.RuleID, r.RuleName,
			r.Passed, string(r.Severity), r.Message, r.FieldPath, r.CheckedAt,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "compliance_results",
		[]string{"id", "organization_id", "shipment_id", "document_id", "rule_id",
			"rule_name", "passed", "severity", "message", "field_path", "checked_at"},
		rows,
	)
	return eris.Wrap(err, "postgres: save compliance results")
}

func (s *PostgresStore) ListComplianceResults(ctx context.Context, orgID, shipmentID string) ([]model.ComplianceResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, shipment_id, document_id, rule_id, rule_name,
		 passed, severity, message, field_path, checked_at
		 FROM compliance_results
		 WHERE organization_id = $1 AND shipment_id = $2
		 ORDER BY checked_at, rule_id`,
		orgID, shipmentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.ComplianceResult
	for rows.Next() {
		var r model.ComplianceResult
		var sev string
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.ShipmentID, &r.DocumentID,
			&r.RuleID, &r.RuleName, &r.Passed, &sev, &r.Message, &r.FieldPath,
			&r.CheckedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.Severity = model.Severity(sev)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

// Audit trail

func (s *PostgresStore) RecordTransition(ctx context.Context, doc *model.Document, tr model.DocumentTransition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin transition")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE documents SET status = $1, version = version + 1, updated_at = $2
		 WHERE id = $3 AND organization_id = $4 AND version = $5`,
		string(doc.Status), now, doc.ID, doc.OrganizationID, doc.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition update %s", doc.ID)
	}
	if tag.RowsAffected() == 0 {
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
	if _, err := tx.Exec(ctx,
		`INSERT INTO document_transitions
		 (id, document_id, organization_id, from_state, to_state, actor_id, reason, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tr.ID, tr.DocumentID, tr.OrganizationID, string(tr.FromState), string(tr.ToState),
		tr.ActorID, tr.Reason, metadataJSON, tr.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert transition %s", tr.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit transition")
	}
	doc.Version++
	doc.UpdatedAt = now
	return nil
}

func (s *PostgresStore) ListTransitions(ctx context.Context, orgID, documentID string) ([]model.DocumentTransition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, organization_id, from_state, to_state, actor_id, reason, metadata, created_at
		 FROM document_transitions
		 WHERE document_id = $1 AND organization_id = $2
		 ORDER BY created_at, id`,
		documentID, orgID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list transitions")
	}
	defer rows.Close()

	var out []model.DocumentTransition
	for rows.Next() {
		var tr model.DocumentTransition
		var from, to string
		var metadataJSON []byte
		if err := rows.Scan(&tr.ID, &tr.DocumentID, &tr.OrganizationID, &from, &to,
			&tr.ActorID, &tr.Reason, &metadataJSON, &tr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan transition")
		}
		tr.FromState = model.DocumentStatus(from)
		tr.ToState = model.DocumentStatus(to)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &tr.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal transition metadata")
			}
		}
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list transitions iterate")
}

// pg scan helpers

func scanPgShipment(row pgx.Row) (*model.Shipment, error) {
	var sh model.Shipment
	var pt string
	var overrideAt *time.Time

	err := row.Scan(&sh.ID, &sh.OrganizationID, &sh.Reference, &pt,
		&sh.ShipperName, &sh.ConsigneeName, &sh.VesselName, &sh.VoyageNumber,
		&sh.ContainerNumber, &sh.BoLNumber,
		&sh.ValidationOverrideReason, &sh.ValidationOverrideBy, &overrideAt,
		&sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan shipment")
	}

	sh.ProductType = model.ProductType(pt)
	sh.ValidationOverrideAt = overrideAt
	return &sh, nil
}

func scanPgDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	var docType, status, compliance string
	var canonicalJSON []byte
	var checkedAt *time.Time

	err := row.Scan(&d.ID, &d.ShipmentID, &d.OrganizationID, &docType, &status,
		&canonicalJSON, &d.Confidence, &compliance, &checkedAt, &d.Version,
		&d.IsPrimary, &d.SupersedesID, &d.StorageKey, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan document")
	}

	d.DocumentType = model.DocumentType(docType)
	d.Status = model.DocumentStatus(status)
	d.ComplianceStatus = model.Decision(compliance)
	d.ComplianceCheckedAt = checkedAt
	if len(canonicalJSON) > 0 {
		d.Canonical = &model.CanonicalBoL{}
		if err := json.Unmarshal(canonicalJSON, d.Canonical); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal canonical")
		}
	}
	return &d, nil
}
