package grpcx

import (
	"errors"

	"github.com/cwrk-planet/breakout-service/internal/auth"
	"github.com/cwrk-planet/breakout-service/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, auth.ErrUnauthorized) {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return status.Error(codeFor(domain.KindOf(err)), err.Error())
}

func codeFor(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindInvalidConfiguration:
		return codes.InvalidArgument
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindPermissionDenied:
		return codes.PermissionDenied
	case domain.KindCapacityExceeded:
		return codes.ResourceExhausted
	case domain.KindAlreadyJoined, domain.KindAlreadyQueued:
		return codes.AlreadyExists
	case domain.KindSessionClosed:
		return codes.Unavailable
	case domain.KindInvalidTransition,
		domain.KindAlreadyPresenting,
		domain.KindNotPresenting,
		domain.KindScreenShareInUse:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
