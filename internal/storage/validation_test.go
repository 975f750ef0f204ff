package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

func TestValidateContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, validateContext(nil), ErrNilContext)
	assert.NoError(t, validateContext(context.Background()))
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		str     string
		wantErr bool
	}{
		{name: "valid string", str: "test"},
		{name: "empty string", str: "", wantErr: true},
		{name: "whitespace only", str: "   ", wantErr: true},
		{name: "string with spaces", str: "  test  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, "param")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyString)
				assert.Contains(t, err.Error(), "param")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCategory_SelfParent(t *testing.T) {
	id := int64(3)
	cat := &model.Category{ID: 3, TenantID: testTenant, Name: "Loop", ParentID: &id}
	assert.ErrorIs(t, validateCategory(cat), ErrInvalidCategory)
}

func TestValidateID(t *testing.T) {
	assert.ErrorIs(t, validateID(0, "id"), ErrInvalidID)
	assert.ErrorIs(t, validateID(-1, "id"), ErrInvalidID)
	assert.NoError(t, validateID(1, "id"))
}
