package audit

import (
	"time"

	id "claimdesk/pkg/domain"
)

// Event is emitted from domain logic to capture key actions on claims and
// their workflow records. Keep it transport-agnostic so stores and sinks can
// fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     id.UserID `json:"actor_id"`
	Action    Action    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Action names what happened. Values are stable strings persisted in the
// activity log.
type Action string

const (
	ActionWorkflowCreated    Action = "workflow_created"
	ActionWorkflowUpdated    Action = "workflow_updated"
	ActionWorkflowDeleted    Action = "workflow_deleted"
	ActionWorkflowDefaultSet Action = "workflow_default_set"
	ActionStageCreated       Action = "stage_created"
	ActionStageUpdated       Action = "stage_updated"
	ActionStageDeleted       Action = "stage_deleted"
	ActionStagesInitialized  Action = "claim_stages_initialized"
	ActionStageCompleted     Action = "claim_stage_completed"
	ActionStageSkipped       Action = "claim_stage_skipped"
	ActionClaimCreated       Action = "claim_created"
	ActionClaimUpdated       Action = "claim_updated"
	ActionClaimCodeAssigned  Action = "claim_code_assigned"
	ActionVersionCreated     Action = "description_version_created"
	ActionVersionRestored    Action = "description_version_restored"
	ActionVersionDeleted     Action = "description_version_deleted"
)

// Entity kinds referenced by Event.Entity.
const (
	EntityWorkflow = "workflow"
	EntityStage    = "stage"
	EntityClaim    = "claim"
	EntityVersion  = "description_version"
)
