// Package auth provides HMAC-based API key authentication for gRPC services.
//
// Keys are never stored: the api_keys table holds HMAC-SHA256(secret, key)
// where secret is selected by the secret_id embedded in the key. Rotating a
// secret therefore invalidates exactly the keys issued under it.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// userIDKey is the context key for storing the authenticated user ID.
const userIDKey = contextKey("user_id")

// APIKeyHeader is the metadata key carrying the API key.
const APIKeyHeader = "x-api-key"

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
		now:     time.Now,
	}
}

// Authenticate validates apiKey and returns the owning user ID.
// Returns one of the package errors for each failure mode; store failures
// wrap ErrKeyStore.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique, so at most one row matches
	var result struct {
		APIKeyID   string       `db:"api_key_id"`
		UserID     string       `db:"user_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyStore, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// Throttled to one write per key per minute
	now := a.now()
	if shouldUpdateLastUsed(result.LastUsedAt, now) {
		if _, err := a.queries.Exec(ctx, "update-last-used", now.UTC(), result.APIKeyID); err != nil {
			a.logger.Warn("failed to update api key last_used_at",
				zap.String("api_key_id", result.APIKeyID), zap.Error(err))
		}
	}

	return result.UserID, nil
}

// shouldUpdateLastUsed implements 1-minute throttle to reduce write amplification.
func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > time.Minute
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Methods listed in skip (full method names) bypass authentication.
func (a *Authenticator) UnaryInterceptor(skip ...string) grpc.UnaryServerInterceptor {
	bypass := make(map[string]bool, len(skip))
	for _, m := range skip {
		bypass[m] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if bypass[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(APIKeyHeader)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		userID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			return nil, status.Error(StatusCode(err), err.Error())
		}

		return handler(WithUserID(ctx, userID), req)
	}
}

// StatusCode maps an Authenticate error to its gRPC status code.
func StatusCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrKeyRevoked):
		return codes.PermissionDenied
	case errors.Is(err, ErrKeyStore):
		return codes.Unavailable
	default:
		return codes.Unauthenticated
	}
}

// WithUserID returns a context carrying userID as the authenticated user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID from context.
// Returns empty string if not found.
func UserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}
