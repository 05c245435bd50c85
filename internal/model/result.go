package model

import (
	"time"
)

// RuleResult is the outcome of evaluating one rule against one document or
// document set. A run produces results in evaluation order.
type RuleResult struct {
	RuleID       string       `json:"rule_id"`
	RuleName     string       `json:"rule_name"`
	Passed       bool         `json:"passed"`
	Severity     Severity     `json:"severity"`
	Message      string       `json:"message,omitempty"`
	FieldPath    string       `json:"field_path,omitempty"`
	Expected     string       `json:"expected,omitempty"`
	Actual       string       `json:"actual,omitempty"`
	DocumentType DocumentType `json:"document_type,omitempty"`
	DocumentID   string       `json:"document_id,omitempty"`
	ShipmentID   string       `json:"shipment_id,omitempty"`
	CheckedAt    time.Time    `json:"checked_at"`
}

// DocumentIssue is a persisted failing RuleResult extended with override
// state. An overridden issue no longer triggers REJECT but stays in the audit
// trail.
type DocumentIssue struct {
	ID             string     `json:"id"`
	DocumentID     string     `json:"document_id"`
	RuleID         string     `json:"rule_id"`
	RuleName       string     `json:"rule_name"`
	Passed         bool       `json:"passed"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message,omitempty"`
	FieldPath      string     `json:"field_path,omitempty"`
	IsOverridden   bool       `json:"is_overridden"`
	OverriddenBy   string     `json:"overridden_by,omitempty"`
	OverriddenAt   *time.Time `json:"overridden_at,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IssueFromResult converts a failed RuleResult into a persistable issue.
func IssueFromResult(r RuleResult, documentID string) DocumentIssue {
	return DocumentIssue{
		DocumentID: documentID,
		RuleID:     r.RuleID,
		RuleName:   r.RuleName,
		Passed:     r.Passed,
		Severity:   r.Severity,
		Message:    r.Message,
		FieldPath:  r.FieldPath,
		CreatedAt:  r.CheckedAt,
	}
}

// ComplianceResult is the tenant-scoped audit mirror of a RuleResult, at
// either document or shipment scope. This is the record reporting queries.
type ComplianceResult struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ShipmentID     string    `json:"shipment_id"`
	DocumentID     string    `json:"document_id,omitempty"`
	RuleID         string    `json:"rule_id"`
	RuleName       string    `json:"rule_name"`
	Passed         bool      `json:"passed"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message,omitempty"`
	FieldPath      string    `json:"field_path,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// DocumentTransition is one append-only audit row per successful lifecycle
// transition. Failed transition attempts never produce a row.
type DocumentTransition struct {
	ID             string            `json:"id"`
	DocumentID     string            `json:"document_id"`
	OrganizationID string            `json:"organization_id"`
	FromState      DocumentStatus    `json:"from_state"`
	ToState        DocumentStatus    `json:"to_state"`
	ActorID        string            `json:"actor_id,omitempty"` // empty for system transitions
	Reason         string            `json:"reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ClassificationResult is the contract returned by the document-type
// classification collaborator. The engine trusts DocumentType to pick the
// applicable rule set and canonical schema; Method/Provider are audit detail.
type ClassificationResult struct {
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
	Method       string       `json:"method"`   // "keyword" or "ai"
	Provider     string       `json:"provider"` // e.g. "anthropic"
}
