package common

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// SchemaValidationError indicates a payload or template body failed
// structural validation.
type SchemaValidationError struct {
	Message string
}

func (e *SchemaValidationError) Error() string {
	return e.Message
}

// NewSchemaValidationError creates a new SchemaValidationError.
func NewSchemaValidationError(message string) *SchemaValidationError {
	return &SchemaValidationError{Message: message}
}

// TemplateParseError indicates a template body could not be parsed for
// variable extraction or substitution.
type TemplateParseError struct {
	Message string
	Err     error
}

func (e *TemplateParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

func (e *TemplateParseError) Unwrap() error {
	return e.Err
}

// NewTemplateParseError creates a new TemplateParseError wrapping err.
func NewTemplateParseError(message string, err error) *TemplateParseError {
	return &TemplateParseError{Message: message, Err: err}
}

// ConfigurationError indicates required credentials or configuration are
// absent for a service. Detected at registration and enforced again on
// every call.
type ConfigurationError struct {
	Service string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("service %s is not configured", e.Service)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(service string) *ConfigurationError {
	return &ConfigurationError{Service: service}
}

// UnsupportedOperationError indicates an operation is not available for a
// given service. The message must tell the caller what to do instead.
type UnsupportedOperationError struct {
	Message string
}

func (e *UnsupportedOperationError) Error() string {
	return e.Message
}

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(message string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Message: message}
}

// UnknownServiceError indicates an unrecognized service name at dispatch
// or registry lookup.
type UnknownServiceError struct {
	Service string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("unknown service: %s", e.Service)
}

// NewUnknownServiceError creates a new UnknownServiceError.
func NewUnknownServiceError(service string) *UnknownServiceError {
	return &UnknownServiceError{Service: service}
}

// UnauthorizedError indicates missing or invalid authentication.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// ProviderError indicates an external provider rejected or failed a call
// after retries were exhausted.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError wrapping the last
// underlying error.
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Message: message, Err: err}
}
