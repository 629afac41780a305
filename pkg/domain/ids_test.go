package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
)

func TestParseUserID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		userID, err := ParseUserID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(valid), userID)
	})
}

// Report ids arrive in URL paths, so hostile input must always be refused.
func TestParseSightingReportID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE sighting_reports;--", true},
		{"path traversal", "../../../etc/passwd", true},
		{"null byte", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"whitespace only", "   ", true},
		{"nil UUID", uuid.Nil.String(), true},
		{"uppercase UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"lowercase UUID", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSightingReportID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTypedIDsStayDistinct(t *testing.T) {
	raw := uuid.New()
	reportID := SightingReportID(raw)
	caseID := MissingPersonID(raw)

	// var _ SightingReportID = caseID would not compile.
	assert.Equal(t, reportID.String(), caseID.String())
	assert.False(t, reportID.IsNil())
}

func TestTypedIDs_JSON(t *testing.T) {
	type payload struct {
		Report  SightingReportID `json:"report"`
		Officer UserID           `json:"officer"`
	}
	reportID := NewSightingReportID()

	b, err := json.Marshal(payload{Report: reportID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"report":"`+reportID.String()+`","officer":""}`, string(b))

	var decoded payload
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, reportID, decoded.Report)
	assert.True(t, decoded.Officer.IsNil())
}
