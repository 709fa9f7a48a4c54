package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredField indicates a record lacks a field the sync
	// flows cannot work without, such as its date.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrFetchFailed indicates the remote store could not be read.
	ErrFetchFailed = errors.New("remote fetch failed")
	// ErrSaveFailed indicates the remote store rejected or failed a write.
	ErrSaveFailed = errors.New("remote save failed")
	// ErrAccountInaccessible indicates the remote account cannot be used.
	ErrAccountInaccessible = errors.New("remote account inaccessible")
	// ErrDuplicateRecord indicates an insert collided with an existing day.
	ErrDuplicateRecord = errors.New("record already exists")
)

// MissingField returns an error wrapping ErrMissingRequiredField.
func MissingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingRequiredField, name)
}

// RemoteError is a hard failure reported by a remote store.
type RemoteError struct {
	Kind   error // ErrFetchFailed or ErrSaveFailed
	Reason string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *RemoteError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// FetchFailure builds a RemoteError of kind ErrFetchFailed.
func FetchFailure(reason string, err error) error {
	return &RemoteError{Kind: ErrFetchFailed, Reason: reason, Err: err}
}

// SaveFailure builds a RemoteError of kind ErrSaveFailed.
func SaveFailure(reason string, err error) error {
	return &RemoteError{Kind: ErrSaveFailed, Reason: reason, Err: err}
}

// InaccessibleError carries the account status that made the remote store
// unusable. Sync flows treat it as a soft condition.
type InaccessibleError struct {
	Status AccountStatus
}

func (e *InaccessibleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAccountInaccessible, e.Status)
}

func (e *InaccessibleError) Unwrap() error { return ErrAccountInaccessible }
