package dispatch_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	return validator.New(validator.WithRequiredStructEnabled())
}
