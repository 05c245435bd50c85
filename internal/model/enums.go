package model

// Severity classifies how serious a failed rule is.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Decision is the compliance outcome for a document or a whole shipment.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionHold    Decision = "HOLD"
	DecisionReject  Decision = "REJECT"
)

// DocumentStatus is the lifecycle state of a trade document.
type DocumentStatus string

const (
	StatusDraft            DocumentStatus = "DRAFT"
	StatusUploaded         DocumentStatus = "UPLOADED"
	StatusValidated        DocumentStatus = "VALIDATED"
	StatusComplianceOK     DocumentStatus = "COMPLIANCE_OK"
	StatusComplianceFailed DocumentStatus = "COMPLIANCE_FAILED"
	StatusLinked           DocumentStatus = "LINKED"
	StatusArchived         DocumentStatus = "ARCHIVED"
)

// AllDocumentStatuses returns every defined lifecycle state.
func AllDocumentStatuses() []DocumentStatus {
	return []DocumentStatus{
		StatusDraft,
		StatusUploaded,
		StatusValidated,
		StatusComplianceOK,
		StatusComplianceFailed,
		StatusLinked,
		StatusArchived,
	}
}

// IsTerminal returns true for states that no longer await validation or a
// compliance run. Terminal here means "the document has a settled compliance
// outcome", not "immutable": LINKED and ARCHIVED are downstream of
// COMPLIANCE_OK.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case StatusComplianceOK, StatusComplianceFailed, StatusLinked, StatusArchived:
		return true
	}
	return false
}

// IsApprovable returns true for states a shipment-level APPROVE may rest on.
func (s DocumentStatus) IsApprovable() bool {
	switch s {
	case StatusComplianceOK, StatusLinked, StatusArchived:
		return true
	}
	return false
}

// ActorRole identifies who is requesting a lifecycle transition.
type ActorRole string

const (
	RoleAdmin      ActorRole = "admin"
	RoleCompliance ActorRole = "compliance"
	RoleOperations ActorRole = "operations"
	RoleSupplier   ActorRole = "supplier"
	RoleViewer     ActorRole = "viewer"
	// RoleSystem marks automatic transitions (e.g. after a clean rule run).
	RoleSystem ActorRole = "system"
)

// DocumentType identifies the kind of trade document.
type DocumentType string

const (
	DocTypeBillOfLading      DocumentType = "BILL_OF_LADING"
	DocTypePackingList       DocumentType = "PACKING_LIST"
	DocTypeCommercialInvoice DocumentType = "COMMERCIAL_INVOICE"
	DocTypeCertificateOrigin DocumentType = "CERTIFICATE_OF_ORIGIN"
	DocTypeVeterinaryCert    DocumentType = "VETERINARY_CERTIFICATE"
	DocTypePhytosanitaryCert DocumentType = "PHYTOSANITARY_CERTIFICATE"
	DocTypeDueDiligence      DocumentType = "EUDR_DUE_DILIGENCE_STATEMENT"
	DocTypeFumigationCert    DocumentType = "FUMIGATION_CERTIFICATE"
	DocTypeUnknown           DocumentType = "UNKNOWN"
)

// ProductType drives which rule set applies to a shipment.
type ProductType string

const (
	ProductHornHoof    ProductType = "HORN_HOOF"
	ProductSweetPotato ProductType = "SWEET_POTATO"
	ProductHibiscus    ProductType = "HIBISCUS"
	ProductGinger      ProductType = "GINGER"
	ProductCocoa       ProductType = "COCOA"
	ProductCoffee      ProductType = "COFFEE"
	ProductPalmOil     ProductType = "PALM_OIL"
	ProductRubber      ProductType = "RUBBER"
	ProductSoya        ProductType = "SOYA"
	ProductGeneral     ProductType = "GENERAL"
)
