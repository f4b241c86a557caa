package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Wrap wraps an error with additional context, creating a PantryError if the
// input is not already one. The ingredient and file of an inner PantryError
// are carried over.
func Wrap(err error, errType ErrorType, code, message string) *PantryError {
	if err == nil {
		return nil
	}

	wrapped := &PantryError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}

	var pe *PantryError
	if errors.As(err, &pe) {
		wrapped.Ingredient = pe.Ingredient
		wrapped.FilePath = pe.FilePath
	}

	return wrapped
}

// AsPantryError returns the outermost PantryError in err's chain.
func AsPantryError(err error) (*PantryError, bool) {
	var pe *PantryError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ExtractCause extracts the root cause from a wrapped error
func ExtractCause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}

// FirstError returns the first non-nil error from a list
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// CombineErrors combines multiple errors into a single error
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	messages := make([]string, len(nonNil))
	for i, err := range nonNil {
		messages[i] = err.Error()
	}
	return fmt.Errorf("%d errors occurred: %s: %w", len(nonNil), strings.Join(messages, "; "), errors.Join(nonNil...))
}
