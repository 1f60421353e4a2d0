package capability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/credence/internal/model"
)

func TestValidate_CheckResponse(t *testing.T) {
	tests := []struct {
		name    string
		resp    CheckResponse
		wantErr bool
	}{
		{"valid", CheckResponse{Status: StatusVerified, Confidence: 0.9}, false},
		{"zero confidence", CheckResponse{Status: StatusUnsupported, Confidence: 0}, false},
		{"unknown status", CheckResponse{Status: "MAYBE", Confidence: 0.5}, true},
		{"missing status", CheckResponse{Confidence: 0.5}, true},
		{"confidence above one", CheckResponse{Status: StatusVerified, Confidence: 1.5}, true},
		{"negative confidence", CheckResponse{Status: StatusVerified, Confidence: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.resp)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResponse)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_DecomposeResponse(t *testing.T) {
	assert.NoError(t, Validate(DecomposeResponse{}))
	assert.NoError(t, Validate(DecomposeResponse{Claims: []ExtractedClaim{{ClaimID: 1, ClaimText: "a"}}}))

	err := Validate(DecomposeResponse{Claims: []ExtractedClaim{{ClaimID: 1, ClaimText: "a"}, {ClaimID: 2}}})
	assert.True(t, errors.Is(err, ErrInvalidResponse))
	assert.Contains(t, err.Error(), "ClaimText")
}

func TestClassification(t *testing.T) {
	tests := map[string]model.Classification{
		"VERIFIED":            model.ClassificationVerified,
		"verified":            model.ClassificationVerified,
		"PARTIALLY_SUPPORTED": model.ClassificationPartial,
		"partially supported": model.ClassificationPartial,
		"Partially-Supported": model.ClassificationPartial,
		" UNSUPPORTED ":       model.ClassificationUnsupported,
	}
	for in, want := range tests {
		got, ok := Classification(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := Classification("CONTRADICTED")
	assert.False(t, ok)
}
