package models

import (
	"strings"
	"time"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// DescriptionVersion is one immutable revision of a claim's description.
//
// Invariants:
//   - Version numbers per claim start at 1 and only grow; a deleted version
//     never frees its number
//   - Exactly one non-deleted version per claim has IsCurrent=true
//   - Text is immutable after creation; only the annotation note may change
//   - The current version cannot be deleted
type DescriptionVersion struct {
	ID        id.VersionID `json:"id"`
	ClaimID   id.ClaimID   `json:"claim_id"`
	Version   int          `json:"version"`
	Text      string       `json:"text"`
	Note      string       `json:"note,omitempty"`
	IsCurrent bool         `json:"is_current"`
	CreatedBy *id.UserID   `json:"created_by,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty"`
}

func (v *DescriptionVersion) IsDeleted() bool {
	return v.DeletedAt != nil
}

func (v *DescriptionVersion) SoftDelete(now time.Time) error {
	if v.IsCurrent {
		return dErrors.New(dErrors.CodeConflict, "the current version cannot be deleted")
	}
	if v.IsDeleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "version is already deleted")
	}
	v.DeletedAt = &now
	v.UpdatedAt = now
	return nil
}

func NewDescriptionVersion(versionID id.VersionID, claimID id.ClaimID, version int, text, note string, now time.Time) (*DescriptionVersion, error) {
	if claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version requires a claim")
	}
	if version <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version number must be positive")
	}
	if strings.TrimSpace(text) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version text cannot be empty")
	}
	return &DescriptionVersion{
		ID:        versionID,
		ClaimID:   claimID,
		Version:   version,
		Text:      text,
		Note:      note,
		IsCurrent: true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
