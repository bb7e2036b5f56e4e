package models

import (
	"strings"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// Claim is an insurance claim file.
//
// Invariants:
//   - Number is the external claim number, non-empty and unique per company
//   - Code is the generated tracking code; empty until a provenance party
//     is assigned and allocation succeeds. Allocation failures never fail
//     claim creation, the code is backfilled on a later update.
//   - Deletion is a tombstone (DeletedAt), never row removal.
type Claim struct {
	ID           id.ClaimID       `json:"id"`
	CompanyID    id.CompanyID     `json:"company_id"`
	AreaID       *id.AreaID       `json:"area_id,omitempty"`
	WorkflowID   id.WorkflowID    `json:"workflow_id"`
	ProvenanceID *id.ProvenanceID `json:"provenance_id,omitempty"`
	Number       string           `json:"number"`
	Code         string           `json:"code,omitempty"`
	Title        string           `json:"title"`
	ClaimDate    time.Time        `json:"claim_date"`
	Description  string           `json:"description,omitempty"`
	CreatedBy    *id.UserID       `json:"created_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	DeletedAt    *time.Time       `json:"deleted_at,omitempty"`
}

func (c *Claim) IsDeleted() bool {
	return c.DeletedAt != nil
}

func (c *Claim) SoftDelete(now time.Time) error {
	if c.IsDeleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "claim is already deleted")
	}
	c.DeletedAt = &now
	c.UpdatedAt = now
	return nil
}

func NewClaim(claimID id.ClaimID, companyID id.CompanyID, areaID *id.AreaID, workflowID id.WorkflowID, number, title string, claimDate time.Time, now time.Time) (*Claim, error) {
	number = strings.TrimSpace(number)
	title = strings.TrimSpace(title)
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim requires a company")
	}
	if workflowID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim requires a workflow")
	}
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim number cannot be empty")
	}
	if len(number) > 50 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim number must be 50 characters or less")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim title cannot be empty")
	}
	if claimDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim requires an incident date")
	}
	return &Claim{
		ID:         claimID,
		CompanyID:  companyID,
		AreaID:     areaID,
		WorkflowID: workflowID,
		Number:     number,
		Title:      title,
		ClaimDate:  claimDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

type CreateClaimRequest struct {
	CompanyID    id.CompanyID     `json:"company_id"`
	AreaID       *id.AreaID       `json:"area_id,omitempty"`
	ProvenanceID *id.ProvenanceID `json:"provenance_id,omitempty"`
	Number       string           `json:"number"`
	Title        string           `json:"title"`
	ClaimDate    time.Time        `json:"claim_date"`
	Description  string           `json:"description,omitempty"`
}

func (r *CreateClaimRequest) Normalize() {
	r.Number = strings.TrimSpace(r.Number)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateClaimRequest) Validate() error {
	if r.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "company_id is required")
	}
	if r.Number == "" {
		return dErrors.New(dErrors.CodeValidation, "number is required")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.ClaimDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "claim_date is required")
	}
	return nil
}

type UpdateClaimRequest struct {
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	ClaimDate    *time.Time       `json:"claim_date,omitempty"`
	ProvenanceID *id.ProvenanceID `json:"provenance_id,omitempty"`
}

func (r *UpdateClaimRequest) Normalize() {
	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		r.Title = &trimmed
	}
}

func (r *UpdateClaimRequest) Validate() error {
	if r.Title != nil && *r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title cannot be empty")
	}
	if r.ClaimDate != nil && r.ClaimDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "claim_date cannot be cleared")
	}
	return nil
}

// Provenance is a catalog entry describing where a claim originated. Its
// short code prefixes generated claim codes.
type Provenance struct {
	ID   id.ProvenanceID `json:"id"`
	Code string          `json:"code"`
	Name string          `json:"name"`
}
