package model

import (
	"time"

	"github.com/google/uuid"
)

// Document is a persisted trade document owned by a shipment. It is created
// on upload and only ever mutated through the lifecycle state machine;
// superseded versions are retained for audit via SupersedesID.
type Document struct {
	ID             string         `json:"id"`
	ShipmentID     string         `json:"shipment_id"`
	OrganizationID string         `json:"organization_id"`
	DocumentType   DocumentType   `json:"document_type"`
	Status         DocumentStatus `json:"status"`

	// Parsed payload and parser confidence, absent until extraction runs.
	Canonical  *CanonicalBoL `json:"canonical,omitempty"`
	Confidence float64       `json:"confidence"`

	// Cached result of the last compliance run.
	ComplianceStatus    Decision   `json:"compliance_status,omitempty"`
	ComplianceCheckedAt *time.Time `json:"compliance_checked_at,omitempty"`

	Version      int    `json:"version"`
	IsPrimary    bool   `json:"is_primary"`
	SupersedesID string `json:"supersedes_id,omitempty"`

	Issues []DocumentIssue `json:"issues,omitempty"`

	StorageKey string    `json:"storage_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewDocument creates an UPLOADED document for a shipment.
func NewDocument(shipmentID, orgID string, docType DocumentType) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:             uuid.New().String(),
		ShipmentID:     shipmentID,
		OrganizationID: orgID,
		DocumentType:   docType,
		Status:         StatusUploaded,
		Version:        1,
		IsPrimary:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// UnresolvedIssues returns issues that failed and have not been overridden,
// optionally filtered by severity.
func (d *Document) UnresolvedIssues(sev Severity) []DocumentIssue {
	var out []DocumentIssue
	for _, is := range d.Issues {
		if is.Passed || is.IsOverridden {
			continue
		}
		if sev != "" && is.Severity != sev {
			continue
		}
		out = append(out, is)
	}
	return out
}

// Shipment is the unit an operator evaluates for release.
type Shipment struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	Reference      string      `json:"reference"` // unique per organization
	ProductType    ProductType `json:"product_type"`

	ShipperName     string `json:"shipper_name,omitempty"`
	ConsigneeName   string `json:"consignee_name,omitempty"`
	VesselName      string `json:"vessel_name,omitempty"`
	VoyageNumber    string `json:"voyage_number,omitempty"`
	ContainerNumber string `json:"container_number,omitempty"`
	BoLNumber       string `json:"bol_number,omitempty"`

	// Admin escape hatch: when the reason is set the shipment-level decision
	// is unconditionally APPROVE. Recorded, never silent.
	ValidationOverrideReason string     `json:"validation_override_reason,omitempty"`
	ValidationOverrideBy     string     `json:"validation_override_by,omitempty"`
	ValidationOverrideAt     *time.Time `json:"validation_override_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Overridden reports whether the admin validation override is in force.
func (s *Shipment) Overridden() bool {
	return s.ValidationOverrideReason != ""
}

// Product is one product line on a shipment.
type Product struct {
	ID              string      `json:"id"`
	ShipmentID      string      `json:"shipment_id"`
	OrganizationID  string      `json:"organization_id"`
	ProductType     ProductType `json:"product_type"`
	HSCode          string      `json:"hs_code,omitempty"`
	Description     string      `json:"description,omitempty"`
	QuantityGrossKg float64     `json:"quantity_gross_kg"`
	QuantityNetKg   float64     `json:"quantity_net_kg"`
}
