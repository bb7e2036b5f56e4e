package models

import (
	"strings"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// Workflow is an ordered set of stage definitions applicable to claims within
// a company/area scope.
//
// Invariants:
//   - Name is non-empty and at most 100 characters
//   - AreaID nil means the workflow is company-general
//   - At most one workflow per (company, area) scope has IsDefault=true,
//     counting the (company, nil) scope as its own scope. Enforced by the
//     catalog service inside a scope-keyed transaction, not here.
//   - Deletion is a tombstone (DeletedAt), never row removal. A deleted
//     workflow can no longer be selected for new stage initializations, but
//     existing claim stages keep referencing its stage definitions.
type Workflow struct {
	ID          id.WorkflowID `json:"id"`
	CompanyID   id.CompanyID  `json:"company_id"`
	AreaID      *id.AreaID    `json:"area_id,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Active      bool          `json:"active"`
	IsDefault   bool          `json:"is_default"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
}

func (w *Workflow) IsDeleted() bool {
	return w.DeletedAt != nil
}

// Selectable reports whether the workflow may back new stage
// initializations.
func (w *Workflow) Selectable() bool {
	return w.Active && !w.IsDeleted()
}

// Scope returns the default-exclusivity scope this workflow competes in.
func (w *Workflow) Scope() Scope {
	return Scope{CompanyID: w.CompanyID, AreaID: w.AreaID}
}

// SoftDelete applies the tombstone. Deleting twice is invalid.
func (w *Workflow) SoftDelete(now time.Time) error {
	if w.IsDeleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "workflow is already deleted")
	}
	w.DeletedAt = &now
	w.UpdatedAt = now
	return nil
}

func NewWorkflow(workflowID id.WorkflowID, companyID id.CompanyID, areaID *id.AreaID, name, description string, active, isDefault bool, now time.Time) (*Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "workflow name cannot be empty")
	}
	if len(name) > 100 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "workflow name must be 100 characters or less")
	}
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "workflow requires a company")
	}
	return &Workflow{
		ID:          workflowID,
		CompanyID:   companyID,
		AreaID:      areaID,
		Name:        name,
		Description: description,
		Active:      active,
		IsDefault:   isDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Scope identifies a (company, area) default-resolution scope. A nil AreaID
// is the company-general scope.
type Scope struct {
	CompanyID id.CompanyID
	AreaID    *id.AreaID
}

// Key renders the scope as a stable string for lock sharding and cache keys.
func (s Scope) Key() string {
	if s.AreaID == nil {
		return s.CompanyID.String() + ":-"
	}
	return s.CompanyID.String() + ":" + s.AreaID.String()
}

// General returns the company-general scope for fallback resolution.
func (s Scope) General() Scope {
	return Scope{CompanyID: s.CompanyID}
}

// Matches reports whether a workflow belongs to exactly this scope.
func (s Scope) Matches(w *Workflow) bool {
	if w.CompanyID != s.CompanyID {
		return false
	}
	if s.AreaID == nil {
		return w.AreaID == nil
	}
	return w.AreaID != nil && *w.AreaID == *s.AreaID
}
