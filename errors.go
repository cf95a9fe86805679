package relstore

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors, checked with errors.Is against the typed errors
// below (teacher errors.go pattern: ErrNotFound + NotFoundError.Is).
var (
	// ErrEntityNotFound is returned when a requested row does not exist.
	ErrEntityNotFound = errors.New("relstore: entity not found")

	// ErrEntityAlreadyExists is returned when a create collides with an
	// existing primary key.
	ErrEntityAlreadyExists = errors.New("relstore: entity already exists")

	// ErrConcurrencyConflict is returned when an update or delete targets a
	// stale Version (spec §3 "Entity lifecycle").
	ErrConcurrencyConflict = errors.New("relstore: concurrency conflict")

	// ErrCancelled is returned when a caller-supplied context is cancelled
	// (distinct from a Transient timeout, spec §7).
	ErrCancelled = errors.New("relstore: operation cancelled")

	// ErrTimeout is returned when BusyTimeout/CommandTimeout elapses.
	ErrTimeout = errors.New("relstore: operation timed out")
)

// NotFoundError reports a missing entity, optionally carrying the key and
// version that were looked up.
type NotFoundError struct {
	Entity  string
	Key     any
	Version any
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Version != nil:
		return fmt.Sprintf("relstore: %s not found (key=%v, version=%v)", e.Entity, e.Key, e.Version)
	case e.Key != nil:
		return fmt.Sprintf("relstore: %s not found (key=%v)", e.Entity, e.Key)
	default:
		return fmt.Sprintf("relstore: %s not found", e.Entity)
	}
}

func (e *NotFoundError) Is(target error) bool { return target == ErrEntityNotFound }

// NewNotFoundError returns a NotFoundError for entity with the given key.
func NewNotFoundError(entity string, key any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrEntityNotFound)
}

// AlreadyExistsError reports a primary-key collision on create.
type AlreadyExistsError struct {
	Entity string
	Key    any
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("relstore: %s already exists (key=%v)", e.Entity, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrEntityAlreadyExists }

// NewAlreadyExistsError returns an AlreadyExistsError for entity/key.
func NewAlreadyExistsError(entity string, key any) *AlreadyExistsError {
	return &AlreadyExistsError{Entity: entity, Key: key}
}

// IsAlreadyExists reports whether err is (or wraps) an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var e *AlreadyExistsError
	return errors.As(err, &e) || errors.Is(err, ErrEntityAlreadyExists)
}

// ConflictError reports a failed optimistic-concurrency check: the caller's
// Version did not match the stored row's current Version.
type ConflictError struct {
	Entity        string
	Key           any
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("relstore: concurrency conflict on %s (key=%v): expected version %d, store has %d",
		e.Entity, e.Key, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

// NewConflictError returns a ConflictError.
func NewConflictError(entity string, key any, expected, actual int64) *ConflictError {
	return &ConflictError{Entity: entity, Key: key, ExpectedVersion: expected, ActualVersion: actual}
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e) || errors.Is(err, ErrConcurrencyConflict)
}

// WriteError wraps a failed create/update/delete execution against the
// underlying store.
type WriteError struct {
	Entity string
	Op     string // "create", "update", "delete"
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("relstore: %s %s failed: %v", e.Op, e.Entity, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NewWriteError returns a WriteError.
func NewWriteError(entity, op string, err error) *WriteError {
	return &WriteError{Entity: entity, Op: op, Err: err}
}

// IsWriteError reports whether err is (or wraps) a WriteError.
func IsWriteError(err error) bool {
	var e *WriteError
	return errors.As(err, &e)
}

// MappingReason enumerates the MappingError sub-kinds named in spec §6.3.
type MappingReason uint8

const (
	MappingReasonGeneral MappingReason = iota
	MappingReasonMissingVersion
	MappingReasonMissingCreationTime
	MappingReasonMissingAbsoluteExpiration
	MappingReasonMissingIsArchived
	MappingReasonWrongType
	MappingReasonReadOnlyProperty
	MappingReasonEmptyTableName
)

// MappingError reports a failure building or using an [EntityMapping]: an
// invariant violation, a struct-field/column binding mismatch, or an
// attempt to write a read-only property.
type MappingError struct {
	EntityType string
	Reason     MappingReason
	Detail     string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("relstore: mapping error for %s: %s", e.EntityType, e.Detail)
}

// NewMappingError returns a general MappingError with a free-form detail.
func NewMappingError(entityType, detail string) *MappingError {
	return &MappingError{EntityType: entityType, Reason: MappingReasonGeneral, Detail: detail}
}

// NewMappingErrorReason returns a MappingError tagged with a specific reason.
func NewMappingErrorReason(entityType string, reason MappingReason, detail string) *MappingError {
	return &MappingError{EntityType: entityType, Reason: reason, Detail: detail}
}

// IsMappingError reports whether err is (or wraps) a MappingError.
func IsMappingError(err error) bool {
	var e *MappingError
	return errors.As(err, &e)
}

// TranslationError reports a failure translating a predicate expression or
// an order-by/paging clause into SQL (component D).
type TranslationError struct {
	Entity string
	Detail string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("relstore: translation error for %s: %s", e.Entity, e.Detail)
}

// NewTranslationError returns a TranslationError.
func NewTranslationError(entity, detail string) *TranslationError {
	return &TranslationError{Entity: entity, Detail: detail}
}

// IsTranslationError reports whether err is (or wraps) a TranslationError.
func IsTranslationError(err error) bool {
	var e *TranslationError
	return errors.As(err, &e)
}

// ValidationError reports a field validator rejecting a value before
// create/update.
type ValidationError struct {
	Entity string
	Field  string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("relstore: validation failed for %s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError returns a ValidationError.
func NewValidationError(entity, field string, err error) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Err: err}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// CancelledError reports that the caller's context was cancelled, as
// distinct from a Transient timeout (spec §7: "Cancellation requested by
// the caller's token is not transient").
type CancelledError struct {
	Op  string
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("relstore: %s cancelled: %v", e.Op, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// NewCancelledError returns a CancelledError.
func NewCancelledError(op string, err error) *CancelledError {
	return &CancelledError{Op: op, Err: err}
}

// IsCancelled reports whether err is (or wraps) a CancelledError.
func IsCancelled(err error) bool {
	var e *CancelledError
	return errors.As(err, &e) || errors.Is(err, ErrCancelled)
}

// TimeoutError reports that BusyTimeout or CommandTimeout elapsed.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("relstore: %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// NewTimeoutError returns a TimeoutError.
func NewTimeoutError(op string, err error) *TimeoutError {
	return &TimeoutError{Op: op, Err: err}
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e) || errors.Is(err, ErrTimeout)
}

// TransientError wraps a storage failure the retry policy (component E)
// classified as transient, surfaced only after retries are disabled or
// exhausted (spec §7).
type TransientError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("relstore: %s: transient storage error after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError returns a TransientError.
func NewTransientError(op string, attempts int, err error) *TransientError {
	return &TransientError{Op: op, Attempts: attempts, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}

// AggregateError collects multiple per-entity errors from a batch or bulk
// operation (spec §7 "Recovery").
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "relstore: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "relstore: %d errors:", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError returns an AggregateError over the non-nil errs, or nil
// if none are non-nil, or the single error unwrapped if there is exactly
// one.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return &AggregateError{Errors: filtered}
	}
}

// IsAggregate reports whether err is (or wraps) an AggregateError.
func IsAggregate(err error) bool {
	var e *AggregateError
	return errors.As(err, &e)
}
