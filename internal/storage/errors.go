package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrSerialization      = errors.New("serialization failure")
)

// Error carries the failure kind together with the operation that produced it.
// errors.Is matches both the kind sentinel and the underlying cause.
type Error struct {
	Kind       error
	Op         string
	Collection string
	Key        string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Collection != "" {
		b.WriteString(" ")
		b.WriteString(e.Collection)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, "[%s]", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, collection, key string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Collection: collection, Key: key, Err: cause}
}

// aborted wraps a backend failure unless it already carries a storage kind.
func aborted(op, collection, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return newError(ErrTransactionAborted, op, collection, key, err)
}

// KindOf reports the storage failure kind of err, or nil if err is not a storage error.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrDuplicateKey, ErrSerialization, ErrTransactionAborted} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
