package domain

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrAlreadyQueued        = errors.New("participant already queued")
	ErrAlreadyPresenting    = errors.New("participant already presenting")
	ErrNotPresenting        = errors.New("participant not presenting")
	ErrScreenShareInUse     = errors.New("screen share in use")
	ErrNotFound             = errors.New("not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrCapacityExceeded     = errors.New("capacity exceeded")

	ErrAlreadyJoined = errors.New("participant already joined")
	ErrSessionClosed = errors.New("session closed")
)

// Kind is the stable wire name of an error, used by the transports.
type Kind string

const (
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindInvalidTransition    Kind = "invalid_transition"
	KindAlreadyQueued        Kind = "already_queued"
	KindAlreadyPresenting    Kind = "already_presenting"
	KindNotPresenting        Kind = "not_presenting"
	KindScreenShareInUse     Kind = "screen_share_in_use"
	KindNotFound             Kind = "not_found"
	KindPermissionDenied     Kind = "permission_denied"
	KindCapacityExceeded     Kind = "capacity_exceeded"
	KindAlreadyJoined        Kind = "already_joined"
	KindSessionClosed        Kind = "session_closed"
	KindInternal             Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidConfiguration, KindInvalidConfiguration},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrAlreadyQueued, KindAlreadyQueued},
	{ErrAlreadyPresenting, KindAlreadyPresenting},
	{ErrNotPresenting, KindNotPresenting},
	{ErrScreenShareInUse, KindScreenShareInUse},
	{ErrNotFound, KindNotFound},
	{ErrPermissionDenied, KindPermissionDenied},
	{ErrCapacityExceeded, KindCapacityExceeded},
	{ErrAlreadyJoined, KindAlreadyJoined},
	{ErrSessionClosed, KindSessionClosed},
}

// KindOf returns the kind of a domain error; unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
