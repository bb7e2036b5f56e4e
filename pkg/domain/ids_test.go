package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "claimdesk/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseClaimID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseClaimID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseClaimID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseClaimID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ClaimID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// If this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	claimID := ClaimID(uuid.New())
	workflowID := WorkflowID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ ClaimID = workflowID   // compile error
	// var _ WorkflowID = claimID   // compile error

	assert.NotEqual(t, uuid.UUID(claimID), uuid.UUID(workflowID))
}

// TestParseID_SecurityInvariants validates trust boundary parsing rules:
// attack vectors must be rejected at API entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE claims;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400​-e29b-41d4-a716-446655440000", true},

		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types share identical
// parsing behavior; inconsistent validation across types would create holes.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errCompany := ParseCompanyID(validUUID)
		_, errWorkflow := ParseWorkflowID(validUUID)
		_, errStage := ParseStageID(validUUID)
		_, errClaim := ParseClaimID(validUUID)
		_, errVersion := ParseVersionID(validUUID)
		_, errProvenance := ParseProvenanceID(validUUID)

		require.NoError(t, errCompany)
		require.NoError(t, errWorkflow)
		require.NoError(t, errStage)
		require.NoError(t, errClaim)
		require.NoError(t, errVersion)
		require.NoError(t, errProvenance)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errCompany := ParseCompanyID(input)
			_, errWorkflow := ParseWorkflowID(input)
			_, errStage := ParseStageID(input)
			_, errClaim := ParseClaimID(input)
			_, errVersion := ParseVersionID(input)
			_, errProvenance := ParseProvenanceID(input)

			require.Error(t, errCompany)
			require.Error(t, errWorkflow)
			require.Error(t, errStage)
			require.Error(t, errClaim)
			require.Error(t, errVersion)
			require.Error(t, errProvenance)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	original := WorkflowID(uuid.New())
	text, err := original.MarshalText()
	require.NoError(t, err)

	var decoded WorkflowID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, original, decoded)
}
