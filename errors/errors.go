package errors

import (
	// Go Internal Packages
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error by how callers should react to it.
type Kind uint8

const (
	Other             Kind = iota
	Invalid                // rejected before any mutation
	NotFound               // client or session missing
	Conflict               // duplicate key or lost race, safe to retry with fresh input
	InsufficientFunds      // business rejection
	Unavailable            // store or broker unreachable, retryable
	Internal
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case InsufficientFunds:
		return "insufficient_funds"
	case Unavailable:
		return "unavailable"
	case Internal:
		return "internal"
	default:
		return "other"
	}
}

// Error is the error type shared by every layer of the service. Code is a stable,
// client-facing identifier; two errors with the same non-empty Code match under Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// E builds an error of the given kind wrapping err.
func E(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// New builds a coded error, mostly used for sentinels.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap keeps the kind and code of sentinel but records err as the cause.
func Wrap(sentinel *Error, err error) error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind != Other {
			return e.Kind
		}
		err = stderrors.Unwrap(err)
	}
	return Other
}

// CodeOf returns the first non-empty code in the chain.
func CodeOf(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code != "" {
			return e.Code
		}
		err = stderrors.Unwrap(err)
	}
	return ""
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// ValidationErrors collects per-field messages.
type ValidationErrors struct {
	fields map[string][]string
}

func ValidationErrs() *ValidationErrors {
	return &ValidationErrors{fields: make(map[string][]string)}
}

func (v *ValidationErrors) Add(field, msg string) {
	v.fields[field] = append(v.fields[field], msg)
}

func (v *ValidationErrors) Len() int {
	return len(v.fields)
}

// Fields returns a copy of the collected messages keyed by field.
func (v *ValidationErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(v.fields))
	for k, msgs := range v.fields {
		out[k] = append([]string(nil), msgs...)
	}
	return out
}

func (v *ValidationErrors) Error() string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.fields[k], ", ")))
	}
	return strings.Join(parts, "; ")
}

// Err returns nil when nothing was collected.
func (v *ValidationErrors) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return v
}
