package api

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/condfields/internal/types"
)

// Auth errors are mapped in the auth package interceptor.
// Storage errors map to UNAVAILABLE.
// Validation errors map to INVALID_ARGUMENT.
// Context timeouts map to DEADLINE_EXCEEDED.

var invalidArgument = []error{
	types.ErrInvalidRule,
	types.ErrInvalidOption,
	types.ErrSameField,
	types.ErrRequiredFieldHidden,
	types.ErrFieldNotFound,
	types.ErrUnknownFormElement,
	types.ErrDuplicateElement,
	types.ErrDependencyCycle,
}

var notFound = []error{
	types.ErrRuleNotFound,
	types.ErrDisplayNotFound,
}

// toStatus converts a domain error into a gRPC status error.
func toStatus(method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case isAny(err, invalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case isAny(err, notFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrStorage):
		logrus.WithError(err).WithField("method", method).Warn("rule storage unavailable")
		return status.Error(codes.Unavailable, "rule storage unavailable")
	default:
		logrus.WithError(err).WithField("method", method).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// invalid builds an INVALID_ARGUMENT status for malformed requests.
func invalid(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}
