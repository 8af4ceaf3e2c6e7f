package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("create invoice: %w", Invalid("items", "min", "at least one item is required"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "items", verr.Fields[0].Field)
	assert.Contains(t, err.Error(), "items: at least one item is required")
}
