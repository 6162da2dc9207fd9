package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulr/haulr/internal/apperr"
)

type sample struct {
	Phone string `json:"phone" validate:"required,min=10"`
	Role  string `json:"role" validate:"required,oneof=customer driver admin"`
	Note  string `json:"note"`
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	v := New()

	err := v.Struct(sample{Phone: "123", Role: "pilot"}, "invalid input")
	require.Error(t, err)

	appErr := apperr.From(err)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "invalid input", appErr.Message)
	assert.Equal(t, []string{"phone", "role"}, Fields(err))
	assert.Equal(t, "must be at least 10 characters", appErr.Details["phone"])
	assert.Equal(t, "must be one of: customer driver admin", appErr.Details["role"])
}

func TestStructPasses(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(sample{Phone: "+15551234567", Role: "driver"}, "invalid input"))
}
