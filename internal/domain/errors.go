package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrNoStore        = errors.New("no audit store configured")
	ErrEmptyPartition = errors.New("empty partition key")
)

type AuditErrorKind string

const (
	LookupFailure      AuditErrorKind = "lookup_failure"
	PersistenceFailure AuditErrorKind = "persistence_failure"
	BroadcastFailure   AuditErrorKind = "broadcast_failure"
)

// AuditError describes a failure of the audit/broadcast side channel. It is
// always recovered locally.
type AuditError struct {
	Kind      AuditErrorKind
	Partition string
	Err       error
}

func NewAuditError(kind AuditErrorKind, partition string, err error) *AuditError {
	return &AuditError{Kind: kind, Partition: partition, Err: err}
}

func (e *AuditError) Error() string {
	if e.Partition == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (partition %s): %v", e.Kind, e.Partition, e.Err)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err carries an AuditError of the given kind,
// looking through wrapped and joined errors.
func IsKind(err error, kind AuditErrorKind) bool {
	for _, ae := range AuditErrors(err) {
		if ae.Kind == kind {
			return true
		}
	}
	return false
}

// AuditErrors flattens err into the AuditErrors it carries.
func AuditErrors(err error) []*AuditError {
	var out []*AuditError

	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ae, ok := e.(*AuditError); ok {
			out = append(out, ae)
			return
		}
		switch x := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)

	return out
}
