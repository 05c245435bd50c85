package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tradeware/exportguard/internal/model"
)

// Sentinel errors. Backends wrap driver errors but surface these for the
// cases callers branch on.
var (
	ErrNotFound        = eris.New("store: not found")
	ErrVersionConflict = eris.New("store: version conflict")
)

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	ShipmentID   string               `json:"shipment_id,omitempty"`
	Status       model.DocumentStatus `json:"status,omitempty"`
	DocumentType model.DocumentType   `json:"document_type,omitempty"`
	PrimaryOnly  bool                 `json:"primary_only,omitempty"`
	Limit        int                  `json:"limit,omitempty"`
	Offset       int                  `json:"offset,omitempty"`
}

// ShipmentFilter specifies criteria for listing shipments.
type ShipmentFilter struct {
	Reference   string            `json:"reference,omitempty"`
	ProductType model.ProductType `json:"product_type,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Offset      int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the compliance engine. Every
// read takes the caller's organization ID; rows belonging to other tenants
// behave exactly like rows that do not exist.
type Store interface {
	// Shipments
	CreateShipment(ctx context.Context, s *model.Shipment) error
	GetShipment(ctx context.Context, orgID, id string) (*model.Shipment, error)
	GetShipmentByReference(ctx context.Context, orgID, reference string) (*model.Shipment, error)
	UpdateShipment(ctx context.Context, s *model.Shipment) error
	ListShipments(ctx context.Context, orgID string, filter ShipmentFilter) ([]model.Shipment, error)

	// Documents. GetDocument loads the document's issues; UpdateDocument is
	// optimistic and returns ErrVersionConflict when the stored version moved.
	CreateDocument(ctx context.Context, d *model.Document) error
	GetDocument(ctx context.Context, orgID, id string) (*model.Document, error)
	UpdateDocument(ctx context.Context, d *model.Document) error
	ListDocuments(ctx context.Context, orgID string, filter DocumentFilter) ([]model.Document, error)

	// Products
	ReplaceProducts(ctx context.Context, shipmentID string, products []model.Product) error
	ListProducts(ctx context.Context, orgID, shipmentID string) ([]model.Product, error)

	// Compliance output. SaveIssues replaces the document's unresolved issue
	// set but never touches overridden rows.
	SaveIssues(ctx context.Context, documentID string, issues []model.DocumentIssue) error
	OverrideIssue(ctx context.Context, documentID, issueID, actorID, reason string) error
	SaveComplianceResults(ctx context.Context, results []model.ComplianceResult) error
	ListComplianceResults(ctx context.Context, orgID, shipmentID string) ([]model.ComplianceResult, error)

	// Audit trail. RecordTransition persists the status move and its audit
	// row atomically; it satisfies lifecycle.Recorder.
	RecordTransition(ctx context.Context, doc *model.Document, tr model.DocumentTransition) error
	ListTransitions(ctx context.Context, orgID, documentID string) ([]model.DocumentTransition, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
