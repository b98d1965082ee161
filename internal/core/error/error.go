package errx

import (
	"errors"
	"fmt"
)

// Kind classifies failures by how the bot should react to them in a chat.
type Kind string

const (
	KindUpstream         Kind = "upstream"
	KindNotFound         Kind = "not_found"
	KindSessionExpired   Kind = "session_expired"
	KindInvalidSelection Kind = "invalid_selection"
	KindDelivery         Kind = "delivery"
	KindStorage          Kind = "storage"
	KindInternal         Kind = "internal"
)

const (
	// SystemErrorMessage is the generic apology for anything unexpected.
	SystemErrorMessage = "An error occurred. Please try again."
	// UpstreamErrorMessage is shown when an extraction or search API fails.
	UpstreamErrorMessage = "could not retrieve media"
	// SessionExpiredMessage is the alert for stale buttons.
	SessionExpiredMessage = "Session expired. Please send the link again."
	// StorageErrorMessage describes session backend failures.
	StorageErrorMessage = "session store operation failed"
	// NotFoundMessage describes a missing key.
	NotFoundMessage = "not found"
)

// Error wraps an underlying error with a Kind and a message that is safe to
// show to a chat user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches either another *Error of the same Kind or the wrapped error.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) && t != nil && t.Message == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return errors.Is(e.Err, target)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// WrapUpstream marks err as a failed call to an external collaborator.
func WrapUpstream(err error, service string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUpstream, Message: service + ": " + UpstreamErrorMessage, Err: err}
}

// KindOf returns the Kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinels usable with errors.Is.
var (
	ErrUpstream         = &Error{Kind: KindUpstream}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrSessionExpired   = &Error{Kind: KindSessionExpired}
	ErrInvalidSelection = &Error{Kind: KindInvalidSelection}
	ErrDelivery         = &Error{Kind: KindDelivery}
)

// UserMessage returns the text that may be shown in a chat for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		switch e.Kind {
		case KindUpstream, KindSessionExpired, KindInvalidSelection:
			return e.Message
		}
	}
	return SystemErrorMessage
}
