package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csmodels "claimdesk/internal/claimstage/models"
	"claimdesk/internal/claimstage/service"
	csstore "claimdesk/internal/claimstage/store"
	wfmodels "claimdesk/internal/workflow/models"
	wfservice "claimdesk/internal/workflow/service"
	wfstore "claimdesk/internal/workflow/store"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

type fixture struct {
	svc      *service.Service
	catalog  *wfservice.Service
	workflow *wfmodels.Workflow
	stages   []*wfmodels.Stage
}

type stageSpec struct {
	name       string
	mandatory  bool
	allowSkip  bool
	blocksNext bool
	active     bool
}

func newFixture(t *testing.T, specs []stageSpec) *fixture {
	t.Helper()
	ctx := context.Background()
	catalog := wfservice.New(wfstore.NewMemory())

	w, err := catalog.CreateWorkflow(ctx, wfmodels.CreateWorkflowRequest{
		CompanyID: id.CompanyID(uuid.New()),
		Name:      "claims intake",
		IsDefault: true,
	})
	require.NoError(t, err)

	var stages []*wfmodels.Stage
	for i, spec := range specs {
		active := spec.active
		st, err := catalog.CreateStage(ctx, wfmodels.CreateStageRequest{
			WorkflowID: w.ID,
			Name:       spec.name,
			Order:      (i + 1) * 10,
			Mandatory:  spec.mandatory,
			AllowSkip:  spec.allowSkip,
			BlocksNext: spec.blocksNext,
			Active:     &active,
		})
		require.NoError(t, err)
		stages = append(stages, st)
	}

	return &fixture{
		svc:      service.New(csstore.NewMemory(), catalog),
		catalog:  catalog,
		workflow: w,
		stages:   stages,
	}
}

func threeStageSpecs() []stageSpec {
	return []stageSpec{
		{name: "document intake", mandatory: true, blocksNext: true, active: true},
		{name: "assessment", mandatory: true, active: true},
		{name: "settlement", mandatory: true, active: true},
	}
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("creates one pending row per active stage", func(t *testing.T) {
		specs := threeStageSpecs()
		specs = append(specs, stageSpec{name: "dormant", active: false})
		f := newFixture(t, specs)
		claimID := id.ClaimID(uuid.New())

		rows, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		for _, row := range rows {
			assert.Equal(t, csmodels.StatePending, row.State)
			assert.Equal(t, claimID, row.ClaimID)
			assert.Equal(t, f.workflow.ID, row.WorkflowID)
		}
	})

	t.Run("second initialization is a conflict", func(t *testing.T) {
		f := newFixture(t, threeStageSpecs())
		claimID := id.ClaimID(uuid.New())

		_, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
		require.NoError(t, err)

		_, err = f.svc.Initialize(ctx, claimID, f.workflow.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("workflow without active stages is invalid", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Initialize(ctx, id.ClaimID(uuid.New()), f.workflow.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("unknown workflow is not found", func(t *testing.T) {
		f := newFixture(t, threeStageSpecs())
		_, err := f.svc.Initialize(ctx, id.ClaimID(uuid.New()), id.WorkflowID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestBlockingProgression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, threeStageSpecs())
	claimID := id.ClaimID(uuid.New())
	_, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
	require.NoError(t, err)

	gate, assessment, settlement := f.stages[0], f.stages[1], f.stages[2]

	t.Run("open blocking stage pins the advance determination", func(t *testing.T) {
		adv, err := f.svc.Advance(ctx, claimID)
		require.NoError(t, err)
		require.True(t, adv.Blocked())
		assert.Equal(t, gate.ID, adv.Blocker.Stage.ID)
	})

	t.Run("completion is never gated by the blocker", func(t *testing.T) {
		row, err := f.svc.Complete(ctx, claimID, assessment.ID, nil, "")
		require.NoError(t, err)
		assert.Equal(t, csmodels.StateCompleted, row.State)
	})

	t.Run("completing the blocker makes the progression actionable", func(t *testing.T) {
		_, err := f.svc.Complete(ctx, claimID, gate.ID, nil, "all documents in")
		require.NoError(t, err)

		adv, err := f.svc.Advance(ctx, claimID)
		require.NoError(t, err)
		assert.False(t, adv.Blocked())
		require.NotNil(t, adv.Next)
		assert.Equal(t, settlement.ID, adv.Next.Stage.ID)
	})

	t.Run("re-completing is a conflict", func(t *testing.T) {
		_, err := f.svc.Complete(ctx, claimID, gate.ID, nil, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestCompleteRecordsEvidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, threeStageSpecs())
	claimID := id.ClaimID(uuid.New())
	_, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
	require.NoError(t, err)

	doc := id.DocumentID(uuid.New())
	row, err := f.svc.Complete(ctx, claimID, f.stages[0].ID, &doc, "inspection report")
	require.NoError(t, err)
	require.NotNil(t, row.EvidenceDocID)
	assert.Equal(t, doc, *row.EvidenceDocID)
	assert.Equal(t, "inspection report", row.Note)

	reloaded, err := f.svc.List(ctx, claimID)
	require.NoError(t, err)
	require.NotNil(t, reloaded[0].ClaimStage.EvidenceDocID)
	assert.Equal(t, doc, *reloaded[0].ClaimStage.EvidenceDocID)
}

func TestSkipReleasesBlocker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []stageSpec{
		{name: "optional review", allowSkip: true, blocksNext: true, active: true},
		{name: "settlement", mandatory: true, active: true},
	})
	claimID := id.ClaimID(uuid.New())
	_, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
	require.NoError(t, err)

	review, settlement := f.stages[0], f.stages[1]

	adv, err := f.svc.Advance(ctx, claimID)
	require.NoError(t, err)
	require.True(t, adv.Blocked())
	assert.Equal(t, review.ID, adv.Blocker.Stage.ID)

	row, err := f.svc.Skip(ctx, claimID, review.ID, "not needed for this claim")
	require.NoError(t, err)
	assert.Equal(t, csmodels.StateSkipped, row.State)

	adv, err = f.svc.Advance(ctx, claimID)
	require.NoError(t, err)
	assert.False(t, adv.Blocked())
	require.NotNil(t, adv.Next)
	assert.Equal(t, settlement.ID, adv.Next.Stage.ID)

	_, err = f.svc.Complete(ctx, claimID, settlement.ID, nil, "")
	require.NoError(t, err)
}

func TestSkipRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, threeStageSpecs())
	claimID := id.ClaimID(uuid.New())
	_, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
	require.NoError(t, err)

	t.Run("skip is refused when the definition forbids it", func(t *testing.T) {
		_, err := f.svc.Skip(ctx, claimID, f.stages[0].ID, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("stage outside the progression is not found", func(t *testing.T) {
		_, err := f.svc.Skip(ctx, claimID, id.StageID(uuid.New()), "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestStartGating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, threeStageSpecs())
	claimID := id.ClaimID(uuid.New())
	_, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, claimID, f.stages[1].ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	row, err := f.svc.Start(ctx, claimID, f.stages[0].ID)
	require.NoError(t, err)
	assert.Equal(t, csmodels.StateInProgress, row.State)

	// An in_progress stage can still be completed.
	row, err = f.svc.Complete(ctx, claimID, f.stages[0].ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, csmodels.StateCompleted, row.State)
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, threeStageSpecs())
	claimID := id.ClaimID(uuid.New())
	_, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
	require.NoError(t, err)

	adv, err := f.svc.Advance(ctx, claimID)
	require.NoError(t, err)
	require.NotNil(t, adv.Next)
	assert.Equal(t, f.stages[0].ID, adv.Next.Stage.ID)
	assert.Equal(t, 3, adv.Remaining)
	// document intake blocks and is still pending.
	require.True(t, adv.Blocked())
	assert.Equal(t, f.stages[0].ID, adv.Blocker.Stage.ID)

	for _, st := range f.stages {
		_, err := f.svc.Complete(ctx, claimID, st.ID, nil, "")
		require.NoError(t, err)
	}

	adv, err = f.svc.Advance(ctx, claimID)
	require.NoError(t, err)
	assert.True(t, adv.Done)
	assert.Nil(t, adv.Next)
	assert.False(t, adv.Blocked())

	t.Run("advance never mutates state", func(t *testing.T) {
		progress, err := f.svc.List(ctx, claimID)
		require.NoError(t, err)
		for _, p := range progress {
			assert.Equal(t, csmodels.StateCompleted, p.ClaimStage.State)
		}
	})

	t.Run("uninitialized claim is not found", func(t *testing.T) {
		_, err := f.svc.Advance(ctx, id.ClaimID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestListSurvivesDeletedDefinition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, threeStageSpecs())
	claimID := id.ClaimID(uuid.New())
	_, err := f.svc.Initialize(ctx, claimID, f.workflow.ID)
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeleteStage(ctx, f.stages[2].ID))

	progress, err := f.svc.List(ctx, claimID)
	require.NoError(t, err)
	// The deleted definition drops out of the rendered progression but the
	// remaining rows keep their order.
	require.Len(t, progress, 2)
	assert.Equal(t, f.stages[0].ID, progress[0].Stage.ID)
	assert.Equal(t, f.stages[1].ID, progress[1].Stage.ID)
}
