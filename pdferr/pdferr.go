// Package pdferr implements a closed error taxonomy: parse_failure,
// validation_failure, not_found, unsupported_operation, internal_failure,
// and cancellation. Each is a plain struct with an Error() string rather
// than a third-party error-wrapping library.
package pdferr

import "fmt"

// Kind identifies which branch of the taxonomy an error belongs to.
type Kind string

const (
	KindParseFailure      Kind = "parse_failure"
	KindValidationFailure Kind = "validation_failure"
	KindNotFound          Kind = "not_found"
	KindUnsupported       Kind = "unsupported_operation"
	KindInternal          Kind = "internal_failure"
	KindCancelled         Kind = "cancelled"
)

// ParseFailure reports malformed PDF or malformed embedded structures.
// Offset is -1 when unavailable.
type ParseFailure struct {
	Message string
	Offset  int64
	Err     error
}

func (e ParseFailure) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("parse failure at offset %d: %s", e.Offset, e.Message)
	}
	return fmt.Sprintf("parse failure: %s", e.Message)
}

func (e ParseFailure) Unwrap() error { return e.Err }
func (ParseFailure) Kind() Kind      { return KindParseFailure }

// ValidationFailure reports an instruction that fails a precondition the
// handler requires (out of scope deserialization validation; this is for
// invariant checks internal to a handler).
type ValidationFailure struct {
	Message string
}

func (e ValidationFailure) Error() string { return fmt.Sprintf("validation failure: %s", e.Message) }
func (ValidationFailure) Kind() Kind      { return KindValidationFailure }

// NotFound reports a missing node id, page, annotation index, or font
// resource key. What/Container identify the lookup for the message.
type NotFound struct {
	What      string
	Container string
}

func (e NotFound) Error() string {
	return fmt.Sprintf("not found: %s in %s", e.What, e.Container)
}
func (NotFound) Kind() Kind { return KindNotFound }

// Unsupported reports an operation the pipeline refuses to perform (e.g.
// mutating an encrypted document).
type Unsupported struct {
	Op string
}

func (e Unsupported) Error() string { return fmt.Sprintf("unsupported operation: %s", e.Op) }
func (Unsupported) Kind() Kind       { return KindUnsupported }

// Internal reports a failure that should not be reachable given the
// module's own invariants.
type Internal struct {
	Message string
	Err     error
}

func (e Internal) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal failure: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("internal failure: %s", e.Message)
}
func (e Internal) Unwrap() error { return e.Err }
func (Internal) Kind() Kind      { return KindInternal }

// Cancelled reports cooperative cancellation, which the interpreter
// observes between its stages; handlers do not check for it inside their
// per-page loops. This is a distinct kind, not a failure.
type Cancelled struct{}

func (Cancelled) Error() string { return "operation cancelled" }
func (Cancelled) Kind() Kind    { return KindCancelled }

// Classified is implemented by every error in this package, letting
// callers recover the Kind without a type switch over every variant.
type Classified interface {
	error
	Kind() Kind
}
