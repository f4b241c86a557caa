package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	// ErrorTypeConfig is a missing or malformed construction option. It is
	// returned synchronously and never reaches a request.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeNotFound is an unknown ingredient or a missing request parameter.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInitialization is a pantry load or bundler setup failure. The
	// owning middleware stays failed for the rest of the process.
	ErrorTypeInitialization ErrorType = "initialization"
	// ErrorTypeRender is a template, markdown or model failure for one request.
	ErrorTypeRender ErrorType = "render"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeConfigInvalid       = "ERR_CONFIG_INVALID"
	ErrCodeMissingParam        = "ERR_MISSING_PARAM"
	ErrCodeIngredientNotFound  = "ERR_INGREDIENT_NOT_FOUND"
	ErrCodePantryLoad          = "ERR_PANTRY_LOAD"
	ErrCodeBundlerSetup        = "ERR_BUNDLER_SETUP"
	ErrCodeTemplateCompile     = "ERR_TEMPLATE_COMPILE"
	ErrCodeTemplateExec        = "ERR_TEMPLATE_EXEC"
	ErrCodeModelLoad           = "ERR_MODEL_LOAD"
	ErrCodeDocumentationRender = "ERR_DOCUMENTATION_RENDER"
	ErrCodeFileNotFound        = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError       = "ERR_INTERNAL"
)

// PantryError is a structured error type with context.
type PantryError struct {
	Type       ErrorType
	Code       string
	Message    string
	Cause      error
	Ingredient string
	FilePath   string
	Context    map[string]interface{}
}

// Error implements the error interface.
func (e *PantryError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Ingredient != "" {
		parts = append(parts, "ingredient:"+e.Ingredient)
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PantryError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so callers can compare against sentinel
// values built with the constructors below.
func (e *PantryError) Is(target error) bool {
	var t *PantryError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PantryError) WithContext(key string, value interface{}) *PantryError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithIngredient records the ingredient the error relates to.
func (e *PantryError) WithIngredient(name string) *PantryError {
	e.Ingredient = name

	return e
}

// WithFile records the file the error relates to.
func (e *PantryError) WithFile(path string) *PantryError {
	e.FilePath = path

	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PantryError {
	return &PantryError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string) *PantryError {
	return &PantryError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewInitializationError creates an initialization error.
func NewInitializationError(code, message string, cause error) *PantryError {
	return &PantryError{
		Type:    ErrorTypeInitialization,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewRenderError creates a render error.
func NewRenderError(code, message string, cause error) *PantryError {
	return &PantryError{
		Type:    ErrorTypeRender,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PantryError {
	return &PantryError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PantryError {
	return &PantryError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the ErrorType of the outermost PantryError in err's chain,
// or ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var pe *PantryError
	if errors.As(err, &pe) {
		return pe.Type
	}

	return ErrorTypeInternal
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	return TypeOf(err) == ErrorTypeConfig
}

// IsInitializationError checks if an error is an initialization error.
func IsInitializationError(err error) bool {
	return TypeOf(err) == ErrorTypeInitialization
}

// HTTPStatus maps an error onto the status code the host reports for it.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInitialization:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
