package ingest

import (
	"errors"
	"fmt"
)

// InvalidPayloadError means the queue message body is not a JSON object.
type InvalidPayloadError struct {
	Err error
}

func (e *InvalidPayloadError) Error() string {
	if e.Err == nil {
		return "invalid payload"
	}
	return "invalid payload: " + e.Err.Error()
}

func (e *InvalidPayloadError) Unwrap() error   { return e.Err }
func (e *InvalidPayloadError) Permanent() bool { return true }

// PayloadExtractError means the envelope is well formed but not a delivery
// this service accepts.
type PayloadExtractError struct {
	Reason string
}

func (e *PayloadExtractError) Error() string   { return "payload extract: " + e.Reason }
func (e *PayloadExtractError) Permanent() bool { return true }

func extractErrorf(format string, args ...any) error {
	return &PayloadExtractError{Reason: fmt.Sprintf(format, args...)}
}

// StoreConditionError means the backup result was already stored.
type StoreConditionError struct {
	BackupID string
}

func (e *StoreConditionError) Error() string {
	return "backup result already stored: " + e.BackupID
}

func (e *StoreConditionError) Permanent() bool { return true }

// IsPermanent reports whether err, or an error it wraps, will fail the same
// way on every retry.
func IsPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
