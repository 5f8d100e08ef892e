package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure so the HTTP layer can pick a status
// without string-matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound covers both "absent" and "owned by someone else": the two
	// are indistinguishable to callers so folder/file existence never leaks
	// across tenants.
	KindNotFound
	KindConflict
	KindForbidden
	KindExpired
	KindQuotaExceeded
	// KindPhysicalIO marks a byte-store failure. The logical state is left
	// unchanged so the caller can retry.
	KindPhysicalIO
)

// Error carries the failure kind and the resource it concerns.
type Error struct {
	Kind     Kind
	Resource string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func notFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Resource: resource, Message: resource + " not found"}
}

func conflictf(resource, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Resource: resource, Message: fmt.Sprintf(format, args...)}
}

func forbidden(resource string) *Error {
	return &Error{Kind: KindForbidden, Resource: resource, Message: "no permission for " + resource}
}

func expired(resource string) *Error {
	return &Error{Kind: KindExpired, Resource: resource, Message: resource + " expired"}
}

func quotaExceeded(need, remaining int64) *Error {
	return &Error{
		Kind:     KindQuotaExceeded,
		Resource: "storage",
		Message:  fmt.Sprintf("upload of %d bytes exceeds remaining quota of %d bytes", need, remaining),
	}
}

func physicalIO(resource string, err error) *Error {
	return &Error{Kind: KindPhysicalIO, Resource: resource, Message: "storage operation failed on " + resource, Err: err}
}
