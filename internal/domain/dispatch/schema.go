package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"notico/internal/common"
)

// StructSchema builds a template body validator from a struct type: the
// body must decode into T and satisfy T's validate tags. This replaces
// per-service schema classes with plain typed structs declared next to
// each service.
func StructSchema[T any](validate *validator.Validate) func(body any) error {
	return func(body any) error {
		blob, err := json.Marshal(body)
		if err != nil {
			return common.NewSchemaValidationError(fmt.Sprintf("template body is not serializable: %s", err))
		}

		var structure T
		if err := json.Unmarshal(blob, &structure); err != nil {
			return common.NewSchemaValidationError(fmt.Sprintf("template body does not match schema: %s", err))
		}

		if err := validate.Struct(&structure); err != nil {
			return common.NewSchemaValidationError(fmt.Sprintf("template body failed validation: %s", err))
		}

		return nil
	}
}

// DecodeRendered decodes a rendered template document into the service's
// typed structure for provider dispatch.
func DecodeRendered[T any](rendered any) (T, error) {
	var structure T

	blob, err := json.Marshal(rendered)
	if err != nil {
		return structure, common.NewTemplateParseError("serializing rendered template", err)
	}
	if err := json.Unmarshal(blob, &structure); err != nil {
		return structure, common.NewSchemaValidationError(fmt.Sprintf("rendered template does not match schema: %s", err))
	}

	return structure, nil
}
