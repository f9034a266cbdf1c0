package server

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/listingkeeper/internal/core/auth"
)

// RateLimiter enforces a token bucket per authenticated user.
// Idle buckets are evicted after limiterIdleTTL.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.Cache
	mu       sync.Mutex
	onReject func()
}

const limiterIdleTTL = 10 * time.Minute

// NewRateLimiter allows perSecond requests per user with the given burst.
// onReject, if set, is called for every rejected request.
func NewRateLimiter(perSecond float64, burst int, onReject func()) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: cache.New(limiterIdleTTL, 2*limiterIdleTTL),
		onReject: onReject,
	}
}

func (r *RateLimiter) limiter(userID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, found := r.limiters.Get(userID); found {
		// Touch to extend the idle window
		r.limiters.SetDefault(userID, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.limiters.SetDefault(userID, l)
	return l
}

// Allow reports whether userID may make a request now.
func (r *RateLimiter) Allow(userID string) bool {
	return r.limiter(userID).Allow()
}

// UnaryInterceptor rejects requests over the caller's budget with
// RESOURCE_EXHAUSTED. Must run after authentication; requests without a
// user (unauthenticated methods) are not limited.
func (r *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		userID := auth.UserIDFromContext(ctx)
		if userID != "" && !r.Allow(userID) {
			if r.onReject != nil {
				r.onReject()
			}
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every request with its status code and duration.
// Runs outside authentication, so rejected requests are logged too.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Debug("request handled", fields...)
		case codes.Internal, codes.Unavailable, codes.Unknown:
			logger.Error("request failed", append(fields, zap.Error(err))...)
		default:
			logger.Info("request rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
