package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesSortedFields(t *testing.T) {
	err := Validation("invalid artwork", map[string]string{
		"year":  "is required",
		"title": "is required",
	})

	assert.Equal(t, "invalid artwork (title: is required; year: is required)", err.Error())
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("create order: %w", NotFound("artwork", 7))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindValidation))
}

func TestKindOfUnclassifiedError(t *testing.T) {
	assert.Equal(t, KindPersistence, KindOf(errors.New("connection refused")))
}

func TestPaymentUnwraps(t *testing.T) {
	cause := errors.New("card declined")
	err := Payment("payment processor rejected intent", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "payment processor rejected intent: card declined", err.Error())
}
