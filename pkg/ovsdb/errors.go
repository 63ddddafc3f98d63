package ovsdb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvocationFailure is matched by errors returned when the external tool
	// could not be started or exited non-zero
	ErrInvocationFailure = errors.New("ovsdb command invocation failed")
	// ErrMalformedResult is matched by errors returned when the tool output
	// does not have the shape the commands expect
	ErrMalformedResult = errors.New("malformed ovsdb command result")
	// ErrMalformedValue is returned when a wire value envelope carries an invalid payload
	ErrMalformedValue = errors.New("malformed ovsdb value")
	// ErrUnsupportedOperation is returned for operation variants that are not implemented
	ErrUnsupportedOperation = errors.New("unsupported ovsdb operation")
	// ErrTransactionCommitted is returned when a committed transaction is used again
	ErrTransactionCommitted = errors.New("ovsdb transaction already committed")
)

// InvocationError describes a failed invocation of the external tool
type InvocationError struct {
	Args []string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("unable to execute %q: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

func (e *InvocationError) Is(target error) bool {
	return target == ErrInvocationFailure
}

// MalformedResultError describes output that could not be demultiplexed or decoded
type MalformedResultError struct {
	Output string
	Reason string
	Err    error
}

func (e *MalformedResultError) Error() string {
	msg := fmt.Sprintf("could not interpret ovsdb result %q: %s", e.Output, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResultError) Unwrap() error {
	return e.Err
}

func (e *MalformedResultError) Is(target error) bool {
	return target == ErrMalformedResult
}

// NewUnsupportedOperationError returns an error matching ErrUnsupportedOperation
func NewUnsupportedOperationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, fmt.Sprintf(format, args...))
}
