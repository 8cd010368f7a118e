// Package common defines sentinel errors and small helpers shared by the
// gateway, the repositories and the resolver. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrBindingConflict reports that a third-party identifier is already
	// claimed by another live account and the claim could not be reassigned.
	ErrBindingConflict = errors.New("identifier bound to another account")

	// Validation errors.
	ErrInvalidArgument = errors.New("invalid argument")
)
