package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeware/exportguard/internal/model"
)

// memRecorder collects transitions in memory; fail makes it error out.
type memRecorder struct {
	rows []model.DocumentTransition
	fail bool
}

func (m *memRecorder) RecordTransition(_ context.Context, _ *model.Document, tr model.DocumentTransition) error {
	if m.fail {
		return errors.New("db down")
	}
	m.rows = append(m.rows, tr)
	return nil
}

func fixedMachine(rec Recorder) *Machine {
	return NewMachine(rec).WithNow(func() time.Time {
		return time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	})
}

func draftDoc() *model.Document {
	d := model.NewDocument("shp-1", "org-1", model.DocTypeBillOfLading)
	d.Status = model.StatusDraft
	return d
}

func TestTransition_HappyPathWritesOneAuditRow(t *testing.T) {
	rec := &memRecorder{}
	m := fixedMachine(rec)
	doc := draftDoc()

	res, err := m.Transition(context.Background(), doc, model.StatusUploaded,
		Actor{ID: "user-1", Role: model.RoleSupplier}, "initial upload", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, model.StatusDraft, res.FromState)
	assert.Equal(t, model.StatusUploaded, res.NewStatus)
	assert.Equal(t, model.StatusUploaded, doc.Status)

	require.Len(t, rec.rows, 1)
	row := rec.rows[0]
	assert.Equal(t, doc.ID, row.DocumentID)
	assert.Equal(t, "org-1", row.OrganizationID)
	assert.Equal(t, model.StatusDraft, row.FromState)
	assert.Equal(t, model.StatusUploaded, row.ToState)
	assert.Equal(t, "user-1", row.ActorID)
	assert.Equal(t, "initial upload", row.Reason)
}

func TestTransition_SupplierCannotArchiveDraft(t *testing.T) {
	rec := &memRecorder{}
	m := fixedMachine(rec)
	doc := draftDoc()

	res, err := m.Transition(context.Background(), doc, model.StatusArchived,
		Actor{ID: "user-1", Role: model.RoleSupplier}, "", nil)
	require.NoError(t, err) // illegal transition is not an error
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, model.StatusDraft, doc.Status)
	assert.Empty(t, rec.rows) // no audit row for a failed attempt
}

func TestTransition_UnknownPairFails(t *testing.T) {
	rec := &memRecorder{}
	m := fixedMachine(rec)
	doc := draftDoc()

	res, err := m.Transition(context.Background(), doc, model.StatusLinked,
		Actor{ID: "a", Role: model.RoleAdmin}, "", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, rec.rows)
}

func TestTransition_SystemTransitionHasNoActorID(t *testing.T) {
	rec := &memRecorder{}
	m := fixedMachine(rec)
	doc := draftDoc()
	doc.Status = model.StatusValidated

	res, err := m.Transition(context.Background(), doc, model.StatusComplianceOK,
		SystemActor, "all rules passed", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, rec.rows, 1)
	assert.Empty(t, rec.rows[0].ActorID)
}

func TestTransition_PersistenceFailureLeavesDocumentUnchanged(t *testing.T) {
	rec := &memRecorder{fail: true}
	m := fixedMachine(rec)
	doc := draftDoc()
	doc.UpdatedAt = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	res, err := m.Transition(context.Background(), doc, model.StatusUploaded,
		Actor{ID: "user-1", Role: model.RoleAdmin}, "", nil)
	assert.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.StatusDraft, doc.Status)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), doc.UpdatedAt)
}

func TestTransition_SameStateIsNoOp(t *testing.T) {
	rec := &memRecorder{}
	m := fixedMachine(rec)
	doc := draftDoc()

	res, err := m.Transition(context.Background(), doc, model.StatusDraft,
		Actor{ID: "a", Role: model.RoleAdmin}, "", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, rec.rows)
}

func TestTransition_NilRecorderStillTransitions(t *testing.T) {
	m := fixedMachine(nil)
	doc := draftDoc()

	res, err := m.Transition(context.Background(), doc, model.StatusUploaded,
		Actor{ID: "u", Role: model.RoleOperations}, "", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, model.StatusUploaded, doc.Status)
}

func TestAllowed_RoleGates(t *testing.T) {
	tests := []struct {
		from, to model.DocumentStatus
		role     model.ActorRole
		want     bool
	}{
		{model.StatusDraft, model.StatusUploaded, model.RoleSupplier, true},
		{model.StatusDraft, model.StatusArchived, model.RoleSupplier, false},
		{model.StatusDraft, model.StatusArchived, model.RoleAdmin, true},
		{model.StatusLinked, model.StatusArchived, model.RoleCompliance, true},
		{model.StatusLinked, model.StatusArchived, model.RoleOperations, false},
		{model.StatusValidated, model.StatusComplianceOK, model.RoleSystem, true},
		{model.StatusValidated, model.StatusComplianceOK, model.RoleSupplier, false},
		{model.StatusComplianceFailed, model.StatusComplianceOK, model.RoleSystem, false},
		{model.StatusComplianceOK, model.StatusValidated, model.RoleSystem, true},
		{model.StatusComplianceOK, model.StatusValidated, model.RoleSupplier, false},
		{model.StatusUploaded, model.StatusValidated, model.RoleViewer, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Allowed(tt.from, tt.to, tt.role),
			"%s -> %s as %s", tt.from, tt.to, tt.role)
	}
}

func TestTransition_FullLifecycleWalk(t *testing.T) {
	rec := &memRecorder{}
	m := fixedMachine(rec)
	doc := draftDoc()
	ctx := context.Background()

	steps := []struct {
		to    model.DocumentStatus
		actor Actor
	}{
		{model.StatusUploaded, Actor{ID: "sup-1", Role: model.RoleSupplier}},
		{model.StatusValidated, SystemActor},
		{model.StatusComplianceOK, SystemActor},
		{model.StatusValidated, SystemActor}, // re-evaluation
		{model.StatusComplianceOK, SystemActor},
		{model.StatusLinked, Actor{ID: "ops-1", Role: model.RoleOperations}},
		{model.StatusArchived, Actor{ID: "adm-1", Role: model.RoleAdmin}},
	}
	for _, s := range steps {
		res, err := m.Transition(ctx, doc, s.to, s.actor, "", nil)
		require.NoError(t, err)
		require.True(t, res.Success, "to %s", s.to)
	}
	assert.Equal(t, model.StatusArchived, doc.Status)
	assert.Len(t, rec.rows, len(steps)) // exactly one row per transition
}
