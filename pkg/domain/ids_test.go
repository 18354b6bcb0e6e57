package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verihire/pkg/domain-errors"
)

// TestParseVerificationID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseVerificationID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseVerificationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseVerificationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseVerificationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		parsed, err := ParseVerificationID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, VerificationID(valid), parsed)
	})
}

func TestParseCandidateID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE candidates;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "cand\x00idate", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "cand\u200Bidate", true},
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},

		{"World ID nullifier", "0x2ae86d6d747702b3b2c81811cd2b39875e8fa6b780ee4a207bdc203a7860b535", false},
		{"UUID", uuid.NewString(), false},
		{"Namespaced", "user:42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCandidateID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errVerification := ParseVerificationID(validUUID)
		_, errEntry := ParseEntryID(validUUID)
		_, errCredential := ParseCredentialID(validUUID)

		require.NoError(t, errVerification)
		require.NoError(t, errEntry)
		require.NoError(t, errCredential)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errVerification := ParseVerificationID(input)
			_, errEntry := ParseEntryID(input)
			_, errCredential := ParseCredentialID(input)

			require.Error(t, errVerification)
			require.Error(t, errEntry)
			require.Error(t, errCredential)
		})
	}
}

func TestTypedIDsMarshalAsText(t *testing.T) {
	id := NewEntryID()
	b, err := json.Marshal(map[string]EntryID{"id": id})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"`+id.String()+`"}`, string(b))

	var decoded map[string]EntryID
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, id, decoded["id"])
}
