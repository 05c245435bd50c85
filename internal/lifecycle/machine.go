// Package lifecycle governs legal transitions between document states,
// gated by actor role, and records each successful transition for audit.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/model"
)

// Actor identifies who requests a transition. System transitions use
// SystemActor.
type Actor struct {
	ID   string
	Role model.ActorRole
}

// SystemActor marks automatic transitions (e.g. after a clean rule run);
// the audit row carries no actor id.
var SystemActor = Actor{Role: model.RoleSystem}

// TransitionResult reports the outcome of a transition attempt. An illegal
// transition is a normal, expected outcome in role-gated workflows: it is
// reported here, never as an error.
type TransitionResult struct {
	Success   bool                 `json:"success"`
	FromState model.DocumentStatus `json:"from_state"`
	NewStatus model.DocumentStatus `json:"new_status"`
	Reason    string               `json:"reason,omitempty"`
}

// Recorder persists a successful transition: the document's status update
// and its audit row must be written atomically, in one transaction.
type Recorder interface {
	RecordTransition(ctx context.Context, doc *model.Document, tr model.DocumentTransition) error
}

type edge struct {
	from, to model.DocumentStatus
}

// transitionRoles maps each legal (from, to) pair to the minimum set of
// roles permitted to perform it. A pair absent from the table is illegal
// for everyone.
var transitionRoles = map[edge][]model.ActorRole{
	{model.StatusDraft, model.StatusUploaded}: {
		model.RoleSupplier, model.RoleOperations, model.RoleCompliance, model.RoleAdmin, model.RoleSystem,
	},
	{model.StatusUploaded, model.StatusValidated}: {
		model.RoleOperations, model.RoleCompliance, model.RoleAdmin, model.RoleSystem,
	},
	{model.StatusValidated, model.StatusComplianceOK}: {
		model.RoleCompliance, model.RoleAdmin, model.RoleSystem,
	},
	{model.StatusValidated, model.StatusComplianceFailed}: {
		model.RoleCompliance, model.RoleAdmin, model.RoleSystem,
	},
	// Re-validation after a fix, an override review, or a re-run under
	// changed shipment facts. Both settled compliance states return to
	// VALIDATED so a re-evaluation outcome is always recordable.
	{model.StatusComplianceFailed, model.StatusValidated}: {
		model.RoleCompliance, model.RoleAdmin, model.RoleSystem,
	},
	{model.StatusComplianceOK, model.StatusValidated}: {
		model.RoleCompliance, model.RoleAdmin, model.RoleSystem,
	},
	{model.StatusComplianceFailed, model.StatusComplianceOK}: {
		model.RoleCompliance, model.RoleAdmin,
	},
	{model.StatusComplianceOK, model.StatusLinked}: {
		model.RoleOperations, model.RoleCompliance, model.RoleAdmin, model.RoleSystem,
	},
	// Only admin/compliance may archive, from any settled state.
	{model.StatusDraft, model.StatusArchived}:            {model.RoleCompliance, model.RoleAdmin},
	{model.StatusUploaded, model.StatusArchived}:         {model.RoleCompliance, model.RoleAdmin},
	{model.StatusComplianceOK, model.StatusArchived}:     {model.RoleCompliance, model.RoleAdmin},
	{model.StatusComplianceFailed, model.StatusArchived}: {model.RoleCompliance, model.RoleAdmin},
	{model.StatusLinked, model.StatusArchived}:           {model.RoleCompliance, model.RoleAdmin},
}

// Machine executes role-gated document transitions. With a Recorder
// attached, every successful transition persists exactly one audit row;
// failed attempts persist nothing.
type Machine struct {
	recorder Recorder
	now      func() time.Time
}

// NewMachine creates a Machine. recorder may be nil for pure in-memory use.
func NewMachine(recorder Recorder) *Machine {
	return &Machine{recorder: recorder, now: time.Now}
}

// WithNow fixes the clock for testing.
func (m *Machine) WithNow(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Allowed reports whether the role may move a document between the two
// states.
func Allowed(from, to model.DocumentStatus, role model.ActorRole) bool {
	for _, r := range transitionRoles[edge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

// Transition attempts to move the document to the target status. Illegal
// transitions (unknown pair, or role not permitted) leave the document
// unchanged and report success=false; they are never errors. The returned
// error is reserved for persistence failures, after which the document is
// also left unchanged.
func (m *Machine) Transition(ctx context.Context, doc *model.Document, target model.DocumentStatus, actor Actor, reason string, metadata map[string]string) (TransitionResult, error) {
	from := doc.Status
	res := TransitionResult{FromState: from, NewStatus: from}

	if from == target {
		res.Reason = fmt.Sprintf("document already in state %s", target)
		return res, nil
	}
	if _, ok := transitionRoles[edge{from, target}]; !ok {
		res.Reason = fmt.Sprintf("no transition from %s to %s", from, target)
		return res, nil
	}
	if !Allowed(from, target, actor.Role) {
		res.Reason = fmt.Sprintf("role %s may not transition %s to %s", actor.Role, from, target)
		return res, nil
	}

	now := m.now().UTC()
	prevUpdatedAt := doc.UpdatedAt
	doc.Status = target
	doc.UpdatedAt = now

	if m.recorder != nil {
		tr := model.DocumentTransition{
			ID:             uuid.New().String(),
			DocumentID:     doc.ID,
			OrganizationID: doc.OrganizationID,
			FromState:      from,
			ToState:        target,
			ActorID:        actor.ID,
			Reason:         reason,
			Metadata:       metadata,
			CreatedAt:      now,
		}
		if err := m.recorder.RecordTransition(ctx, doc, tr); err != nil {
			// Leave the in-memory document consistent with storage.
			doc.Status = from
			doc.UpdatedAt = prevUpdatedAt
			res.Reason = "persistence failure"
			return res, eris.Wrap(err, "lifecycle: record transition")
		}
	}

	zap.L().Info("lifecycle: document transitioned",
		zap.String("document_id", doc.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor_id", actor.ID),
		zap.String("role", string(actor.Role)),
	)

	res.Success = true
	res.NewStatus = target
	return res, nil
}
