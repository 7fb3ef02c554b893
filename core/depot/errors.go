package depot

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLayer indicates an unknown storage layer name.
	ErrInvalidLayer = errors.New("invalid_layer")
	// ErrLayerDisabled indicates the layer rejects admissions under the active strategy.
	ErrLayerDisabled = errors.New("layer_disabled")
	// ErrCapacityExceeded indicates a layer file or byte limit would be breached.
	ErrCapacityExceeded = errors.New("capacity_exceeded")
	// ErrNotFound indicates an unknown file id.
	ErrNotFound = errors.New("not_found")
	// ErrVersionNotFound indicates an unknown version number for a known file.
	ErrVersionNotFound = errors.New("version_not_found")
	// ErrVersioningDisabled indicates version operations while versioning is off.
	ErrVersioningDisabled = errors.New("versioning_disabled")
	// ErrDuplicateContent marks duplicate-content operation log entries.
	ErrDuplicateContent = errors.New("duplicate_content")
	// ErrChecksumMismatch indicates retrieved content no longer matches its digest.
	ErrChecksumMismatch = errors.New("checksum_mismatch")
	// ErrEngineClosed indicates the engine has been shut down.
	ErrEngineClosed = errors.New("engine_closed")
	// ErrRecordMissing is returned by record stores for unknown record ids.
	ErrRecordMissing = errors.New("record_missing")
	// ErrEmptyContent indicates a store or update with no payload.
	ErrEmptyContent = errors.New("empty_content")
)

// DownstreamError wraps a record store failure with the attempted operation.
type DownstreamError struct {
	Op  string
	Err error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}

func downstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DownstreamError{Op: op, Err: err}
}
