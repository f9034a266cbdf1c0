package api

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/listingkeeper/internal/core/auth"
	"github.com/solatis/listingkeeper/internal/types"
)

// Auth errors are mapped in the auth package interceptor.
// Rule store errors map to UNAVAILABLE.
// Malformed requests map to INVALID_ARGUMENT.
// Context timeouts map to DEADLINE_EXCEEDED.

// toStatus converts an engine or store error into a gRPC status error.
func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrRuleStore):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func invalidArgument(format string, args ...any) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf(format, args...))
}

// requireUser returns the authenticated user ID from ctx.
func requireUser(ctx context.Context) (string, error) {
	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		return "", status.Error(codes.Internal, "missing user_id in context")
	}
	return userID, nil
}
