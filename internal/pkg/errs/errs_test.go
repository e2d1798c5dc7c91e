package errs

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", Validation("rating %d out of range", 7), ErrValidation},
		{"not found", NotFound("order %s", "A1"), ErrNotFound},
		{"duplicate", Duplicate("already reviewed"), ErrDuplicate},
		{"unauthorized", Unauthorized("must purchase before reviewing"), ErrUnauthorized},
		{"conflict", Conflict("order already cancelled"), ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.kind))
			assert.True(t, IsDomain(tt.err))

			wrapped := pkgerrors.Wrap(tt.err, "service")
			assert.True(t, errors.Is(wrapped, tt.kind))
		})
	}
}

func TestInvalidCartIsValidation(t *testing.T) {
	err := InvalidCart("cart is empty")

	assert.True(t, errors.Is(err, ErrInvalidCart))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(Validation("x"), ErrInvalidCart))
	assert.Equal(t, "invalid cart: cart is empty", err.Error())
}

func TestIsDomainRejectsInfrastructureErrors(t *testing.T) {
	assert.False(t, IsDomain(errors.New("connection reset")))
	assert.False(t, IsDomain(nil))
}
