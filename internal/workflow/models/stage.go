package models

import (
	"strings"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// Stage is one workflow-step definition.
//
// Invariants:
//   - Name is non-empty and at most 100 characters
//   - Order is a positive integer; ordering is caller-defined and never
//     auto-renumbered. Duplicate orders are accepted but make "current stage"
//     determination ambiguous, so admin UIs should avoid them.
//   - BlocksNext gates advancement: later stages are not actionable until
//     every earlier stage with BlocksNext=true is completed.
type Stage struct {
	ID                id.StageID    `json:"id"`
	WorkflowID        id.WorkflowID `json:"workflow_id"`
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	Order             int           `json:"order"`
	Mandatory         bool          `json:"mandatory"`
	AllowSkip         bool          `json:"allow_skip"`
	BlocksNext        bool          `json:"blocks_next"`
	RequiredDocTypeID *id.DocTypeID `json:"required_doc_type_id,omitempty"`
	Active            bool          `json:"active"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	DeletedAt         *time.Time    `json:"deleted_at,omitempty"`
}

func (s *Stage) IsDeleted() bool {
	return s.DeletedAt != nil
}

// Selectable reports whether the stage participates in new initializations.
func (s *Stage) Selectable() bool {
	return s.Active && !s.IsDeleted()
}

func (s *Stage) SoftDelete(now time.Time) error {
	if s.IsDeleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "stage is already deleted")
	}
	s.DeletedAt = &now
	s.UpdatedAt = now
	return nil
}

func NewStage(stageID id.StageID, workflowID id.WorkflowID, name, description string, order int, mandatory, allowSkip, blocksNext bool, requiredDocType *id.DocTypeID, active bool, now time.Time) (*Stage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stage name cannot be empty")
	}
	if len(name) > 100 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stage name must be 100 characters or less")
	}
	if order <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stage order must be a positive integer")
	}
	if workflowID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stage requires a workflow")
	}
	return &Stage{
		ID:                stageID,
		WorkflowID:        workflowID,
		Name:              name,
		Description:       description,
		Order:             order,
		Mandatory:         mandatory,
		AllowSkip:         allowSkip,
		BlocksNext:        blocksNext,
		RequiredDocTypeID: requiredDocType,
		Active:            active,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
