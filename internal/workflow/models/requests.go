package models

import (
	"strings"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

type CreateWorkflowRequest struct {
	CompanyID   id.CompanyID `json:"company_id"`
	AreaID      *id.AreaID   `json:"area_id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Active      *bool        `json:"active,omitempty"`
	IsDefault   bool         `json:"is_default"`
}

func (r *CreateWorkflowRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateWorkflowRequest) Validate() error {
	if r.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "company_id is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// ActiveOrDefault applies the catalog default of active=true.
func (r *CreateWorkflowRequest) ActiveOrDefault() bool {
	if r.Active == nil {
		return true
	}
	return *r.Active
}

// UpdateWorkflowRequest patches mutable workflow fields. The (company, area)
// scope is fixed at creation; re-scoping a workflow would silently move its
// default flag between scopes, so it is deliberately not patchable.
type UpdateWorkflowRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	IsDefault   *bool   `json:"is_default,omitempty"`
}

func (r *UpdateWorkflowRequest) Normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
}

func (r *UpdateWorkflowRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	return nil
}

type CreateStageRequest struct {
	WorkflowID        id.WorkflowID `json:"workflow_id"`
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	Order             int           `json:"order"`
	Mandatory         bool          `json:"mandatory"`
	AllowSkip         bool          `json:"allow_skip"`
	BlocksNext        bool          `json:"blocks_next"`
	RequiredDocTypeID *id.DocTypeID `json:"required_doc_type_id,omitempty"`
	Active            *bool         `json:"active,omitempty"`
}

func (r *CreateStageRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateStageRequest) Validate() error {
	if r.WorkflowID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "workflow_id is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Order <= 0 {
		return dErrors.New(dErrors.CodeValidation, "order must be a positive integer")
	}
	return nil
}

func (r *CreateStageRequest) ActiveOrDefault() bool {
	if r.Active == nil {
		return true
	}
	return *r.Active
}

type UpdateStageRequest struct {
	Name              *string       `json:"name,omitempty"`
	Description       *string       `json:"description,omitempty"`
	Order             *int          `json:"order,omitempty"`
	Mandatory         *bool         `json:"mandatory,omitempty"`
	AllowSkip         *bool         `json:"allow_skip,omitempty"`
	BlocksNext        *bool         `json:"blocks_next,omitempty"`
	RequiredDocTypeID *id.DocTypeID `json:"required_doc_type_id,omitempty"`
	// ClearRequiredDocType removes the evidence requirement; a nil
	// RequiredDocTypeID alone means "leave unchanged".
	ClearRequiredDocType bool  `json:"clear_required_doc_type,omitempty"`
	Active               *bool `json:"active,omitempty"`
}

func (r *UpdateStageRequest) Normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
}

func (r *UpdateStageRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	if r.Order != nil && *r.Order <= 0 {
		return dErrors.New(dErrors.CodeValidation, "order must be a positive integer")
	}
	return nil
}

// WorkflowDetails bundles a workflow with its stage definitions, ordered by
// stage order.
type WorkflowDetails struct {
	Workflow *Workflow `json:"workflow"`
	Stages   []*Stage  `json:"stages"`
}
