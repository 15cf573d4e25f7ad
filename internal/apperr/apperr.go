// Package apperr builds the typed errors returned by the service layer.
//
// Errors carry a gRPC status code so every layer (service, HTTP, tests) can
// classify a failure with status.Code without string matching.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NotFound reports an unknown id.
func NotFound(format string, args ...interface{}) error {
	return status.Errorf(codes.NotFound, format, args...)
}

// InvalidArgument reports malformed input.
func InvalidArgument(format string, args ...interface{}) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// Unavailable reports that no delivery agent is free.
func Unavailable(format string, args ...interface{}) error {
	return status.Errorf(codes.Unavailable, format, args...)
}

// PermissionDenied reports an actor acting on an order that is not theirs.
func PermissionDenied(format string, args ...interface{}) error {
	return status.Errorf(codes.PermissionDenied, format, args...)
}

// Conflict reports a request that contradicts the current state of an entity.
func Conflict(format string, args ...interface{}) error {
	return status.Errorf(codes.FailedPrecondition, format, args...)
}

// AlreadyExists reports a uniqueness violation.
func AlreadyExists(format string, args ...interface{}) error {
	return status.Errorf(codes.AlreadyExists, format, args...)
}

// StorageError wraps an I/O or lock failure of the durable store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// GRPCStatus lets status.Code classify storage failures as Aborted.
func (e *StorageError) GRPCStatus() *status.Status {
	return status.New(codes.Aborted, e.Error())
}

// Storage wraps err as a StorageError for the given operation.
func Storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is, or wraps, a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Code returns the status code carried by err, codes.OK for nil and
// codes.Unknown for plain errors.
func Code(err error) codes.Code {
	return status.Code(err)
}

// Message returns the human readable part of a status error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}
