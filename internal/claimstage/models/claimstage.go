package models

import (
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// State is the lifecycle state of one claim stage.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateSkipped    State = "skipped"
)

func (s State) Valid() bool {
	switch s {
	case StatePending, StateInProgress, StateCompleted, StateSkipped:
		return true
	}
	return false
}

// Terminal states accept no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateSkipped
}

// ClaimStage is the per-claim progress row created from a stage definition
// when a claim's stages are initialized.
//
// Invariants:
//   - At most one row per (claim, stage) pair
//   - State transitions: pending -> in_progress -> completed,
//     pending -> completed, pending -> skipped. Terminal states are final.
//   - CompletedAt and CompletedBy are set exactly when the row reaches a
//     terminal state.
type ClaimStage struct {
	ID            id.ClaimStageID `json:"id"`
	ClaimID       id.ClaimID      `json:"claim_id"`
	WorkflowID    id.WorkflowID   `json:"workflow_id"`
	StageID       id.StageID      `json:"stage_id"`
	State         State           `json:"state"`
	Note          string          `json:"note,omitempty"`
	EvidenceDocID *id.DocumentID  `json:"evidence_doc_id,omitempty"`
	DueAt         *time.Time      `json:"due_at,omitempty"`
	CompletedBy   *id.UserID      `json:"completed_by,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func NewClaimStage(claimStageID id.ClaimStageID, claimID id.ClaimID, workflowID id.WorkflowID, stageID id.StageID, now time.Time) (*ClaimStage, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim stage requires a claim")
	}
	if workflowID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim stage requires a workflow")
	}
	if stageID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim stage requires a stage definition")
	}
	return &ClaimStage{
		ID:         claimStageID,
		ClaimID:    claimID,
		WorkflowID: workflowID,
		StageID:    stageID,
		State:      StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Start moves a pending stage into progress.
func (cs *ClaimStage) Start(now time.Time) error {
	if cs.State != StatePending {
		return dErrors.Newf(dErrors.CodeInvalidState, "stage cannot start from state %q", cs.State)
	}
	cs.State = StateInProgress
	cs.UpdatedAt = now
	return nil
}

// Complete finishes the stage, recording the actor and an optional evidence
// document. Completing an already completed stage is a conflict so retried
// requests surface rather than silently overwrite the original completion
// record.
func (cs *ClaimStage) Complete(actor id.UserID, evidence *id.DocumentID, note string, now time.Time) error {
	if cs.State == StateCompleted {
		return dErrors.New(dErrors.CodeConflict, "stage is already completed")
	}
	if cs.State == StateSkipped {
		return dErrors.New(dErrors.CodeConflict, "stage was skipped and cannot be completed")
	}
	cs.State = StateCompleted
	if note != "" {
		cs.Note = note
	}
	if evidence != nil && !evidence.IsNil() {
		cs.EvidenceDocID = evidence
	}
	if !actor.IsNil() {
		cs.CompletedBy = &actor
	}
	cs.CompletedAt = &now
	cs.UpdatedAt = now
	return nil
}

// Skip marks a pending stage as skipped. allowSkip comes from the stage
// definition.
func (cs *ClaimStage) Skip(actor id.UserID, note string, allowSkip bool, now time.Time) error {
	if !allowSkip {
		return dErrors.New(dErrors.CodeInvalidState, "stage does not allow skipping")
	}
	if cs.State != StatePending {
		return dErrors.Newf(dErrors.CodeInvalidState, "only pending stages can be skipped, state is %q", cs.State)
	}
	cs.State = StateSkipped
	if note != "" {
		cs.Note = note
	}
	if !actor.IsNil() {
		cs.CompletedBy = &actor
	}
	cs.CompletedAt = &now
	cs.UpdatedAt = now
	return nil
}

// Settled reports whether the stage no longer gates later stages.
func (cs *ClaimStage) Settled() bool {
	return cs.State.Terminal()
}
