// Package cmdutil holds the thin glue shared by the cmd/* binaries: exit
// status classification (spec.md §6.7) and logger bootstrap. It carries no
// ingestion logic of its own.
package cmdutil

import (
	"errors"

	"gaplessohlcv/marketerrs"
)

// Exit statuses per spec.md §6.7.
const (
	ExitSuccess            = 0
	ExitBarValidation      = 1
	ExitTransientExhausted = 2
	ExitSchemaMismatch     = 3
	ExitConfigError        = 4
)

// ExitCode classifies err into one of the statuses a command wrapper
// should return. nil maps to ExitSuccess.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var configErr *marketerrs.ConfigError
	if errors.As(err, &configErr) {
		return ExitConfigError
	}

	var schemaErr *marketerrs.SchemaMismatchError
	if errors.As(err, &schemaErr) {
		return ExitSchemaMismatch
	}

	var transientErr *marketerrs.TransientSourceError
	if errors.As(err, &transientErr) {
		return ExitTransientExhausted
	}
	var unfillableErr *marketerrs.UnfillableGapError
	if errors.As(err, &unfillableErr) {
		return ExitTransientExhausted
	}

	var invariantErr *marketerrs.InvariantViolation
	if errors.As(err, &invariantErr) {
		return ExitBarValidation
	}
	var malformedErr *marketerrs.MalformedInputError
	if errors.As(err, &malformedErr) {
		return ExitBarValidation
	}

	return ExitTransientExhausted
}
