package domain

import (
	"github.com/google/uuid"

	dErrors "claimdesk/pkg/domain-errors"
)

// Typed identifiers prevent cross-entity ID mix-ups at compile time. All IDs
// are UUID-backed; parsing enforces the "valid, non-empty, non-nil" invariant
// at trust boundaries so internal code can assume well-formed IDs.
type (
	CompanyID    uuid.UUID
	AreaID       uuid.UUID
	WorkflowID   uuid.UUID
	StageID      uuid.UUID
	ClaimID      uuid.UUID
	ClaimStageID uuid.UUID
	VersionID    uuid.UUID
	UserID       uuid.UUID
	DocumentID   uuid.UUID
	DocTypeID    uuid.UUID
	ProvenanceID uuid.UUID
)

func parseUUID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", field)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", field)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", field)
	}
	return id, nil
}

func ParseCompanyID(s string) (CompanyID, error) {
	id, err := parseUUID("company_id", s)
	return CompanyID(id), err
}

func ParseAreaID(s string) (AreaID, error) {
	id, err := parseUUID("area_id", s)
	return AreaID(id), err
}

func ParseWorkflowID(s string) (WorkflowID, error) {
	id, err := parseUUID("workflow_id", s)
	return WorkflowID(id), err
}

func ParseStageID(s string) (StageID, error) {
	id, err := parseUUID("stage_id", s)
	return StageID(id), err
}

func ParseClaimID(s string) (ClaimID, error) {
	id, err := parseUUID("claim_id", s)
	return ClaimID(id), err
}

func ParseClaimStageID(s string) (ClaimStageID, error) {
	id, err := parseUUID("claim_stage_id", s)
	return ClaimStageID(id), err
}

func ParseVersionID(s string) (VersionID, error) {
	id, err := parseUUID("version_id", s)
	return VersionID(id), err
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID("user_id", s)
	return UserID(id), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	id, err := parseUUID("document_id", s)
	return DocumentID(id), err
}

func ParseDocTypeID(s string) (DocTypeID, error) {
	id, err := parseUUID("document_type_id", s)
	return DocTypeID(id), err
}

func ParseProvenanceID(s string) (ProvenanceID, error) {
	id, err := parseUUID("provenance_party_id", s)
	return ProvenanceID(id), err
}

func (id CompanyID) String() string    { return uuid.UUID(id).String() }
func (id AreaID) String() string       { return uuid.UUID(id).String() }
func (id WorkflowID) String() string   { return uuid.UUID(id).String() }
func (id StageID) String() string      { return uuid.UUID(id).String() }
func (id ClaimID) String() string      { return uuid.UUID(id).String() }
func (id ClaimStageID) String() string { return uuid.UUID(id).String() }
func (id VersionID) String() string    { return uuid.UUID(id).String() }
func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id DocumentID) String() string   { return uuid.UUID(id).String() }
func (id DocTypeID) String() string    { return uuid.UUID(id).String() }
func (id ProvenanceID) String() string { return uuid.UUID(id).String() }

func (id CompanyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AreaID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id WorkflowID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id StageID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ClaimStageID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VersionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DocTypeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProvenanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText keeps typed IDs readable in JSON payloads and slog output.
func (id CompanyID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id AreaID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id WorkflowID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id StageID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ClaimID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ClaimStageID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id VersionID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id DocTypeID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ProvenanceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CompanyID) UnmarshalText(b []byte) error {
	v, err := ParseCompanyID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *AreaID) UnmarshalText(b []byte) error {
	v, err := ParseAreaID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *WorkflowID) UnmarshalText(b []byte) error {
	v, err := ParseWorkflowID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *StageID) UnmarshalText(b []byte) error {
	v, err := ParseStageID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *ClaimID) UnmarshalText(b []byte) error {
	v, err := ParseClaimID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *ClaimStageID) UnmarshalText(b []byte) error {
	v, err := ParseClaimStageID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *VersionID) UnmarshalText(b []byte) error {
	v, err := ParseVersionID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	v, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *DocumentID) UnmarshalText(b []byte) error {
	v, err := ParseDocumentID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *DocTypeID) UnmarshalText(b []byte) error {
	v, err := ParseDocTypeID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id *ProvenanceID) UnmarshalText(b []byte) error {
	v, err := ParseProvenanceID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
