// Package apperr implements a small closed error taxonomy: every HTTP
// adapter and bus handler maps a Kind to a status code or retry decision in
// one place, rather than inline per call site.
package apperr

import "fmt"

// Kind is one of the taxonomy's closed set of error categories.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindTransient          Kind = "transient"
	KindPermanent          Kind = "permanent"
	KindDuplicate          Kind = "duplicate"
	KindCapacity           Kind = "capacity"
	KindIntegrityViolation Kind = "integrity_violation"
)

// Error carries a Kind, a stable Code for the response envelope, a
// human Message, and the correlation ID that produced it.
type Error struct {
	Kind          Kind
	Code          string
	Message       string
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// WithCorrelation returns a copy of e carrying correlationID — used at the
// boundary where the ambient context is still available.
func (e *Error) WithCorrelation(correlationID string) *Error {
	cp := *e
	cp.CorrelationID = correlationID
	return &cp
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// reports false otherwise so callers can fall back to a generic mapping.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if asError(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Envelope is the wire shape every error response carries: {code, message,
// correlation_id}. Never includes a stack trace.
type Envelope struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

func (e *Error) Envelope() Envelope {
	return Envelope{Code: e.Code, Message: e.Message, CorrelationID: e.CorrelationID}
}

// StoreUnavailable is a Transient-kind error specific to the idempotency
// store: a transient backend error must fail open to the caller rather
// than silently treating an unknown key as a duplicate.
func StoreUnavailable(err error) *Error {
	return Wrap(KindTransient, "store_unavailable", "idempotency backend unavailable", err)
}

// ErrDuplicateKey is returned by the repository when a natural-key collision
// (timestamp, sensor_id) occurs — distinct from idempotency duplicates.
var ErrDuplicateKey = New(KindDuplicate, "duplicate_key", "reading already exists for (sensor_id, timestamp)")

// ErrQueueFull is returned by the event bus when publish could not enqueue
// within the configured timeout.
var ErrQueueFull = New(KindCapacity, "queue_full", "event bus queue is full")

// ErrFeatureSchemaMismatch is raised by the anomaly agent when the computed
// feature vector does not match the model's persisted feature order.
var ErrFeatureSchemaMismatch = New(KindPermanent, "feature_schema_mismatch", "feature vector does not match model's persisted feature schema")

// IntegrityViolation is raised when a loaded artifact's content hash does
// not match the hash recorded at registration time.
func IntegrityViolation(modelName string, version int) *Error {
	return New(KindIntegrityViolation, "integrity_violation", fmt.Sprintf("content hash mismatch for %s v%d", modelName, version))
}
