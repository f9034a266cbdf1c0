package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/listingkeeper/internal/core/auth"
	"github.com/solatis/listingkeeper/internal/core/metrics"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/listingkeeper.rules.v1.ProductRules/Evaluate"}

func okHandler(ctx context.Context, req any) (any, error) { return "ok", nil }

func TestRateLimiter_PerUser(t *testing.T) {
	rejected := 0
	limiter := NewRateLimiter(0.0001, 2, func() { rejected++ })
	interceptor := limiter.UnaryInterceptor()

	user1 := auth.WithUserID(context.Background(), "user-1")
	user2 := auth.WithUserID(context.Background(), "user-2")

	for i := 0; i < 2; i++ {
		if _, err := interceptor(user1, nil, testInfo, okHandler); err != nil {
			t.Fatalf("request %d within burst rejected: %v", i, err)
		}
	}

	_, err := interceptor(user1, nil, testInfo, okHandler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("code = %v, want ResourceExhausted", status.Code(err))
	}
	if rejected != 1 {
		t.Errorf("onReject called %d times, want 1", rejected)
	}

	if _, err := interceptor(user2, nil, testInfo, okHandler); err != nil {
		t.Errorf("user-2 limited by user-1's budget: %v", err)
	}
}

func TestRateLimiter_SkipsAnonymous(t *testing.T) {
	interceptor := NewRateLimiter(0.0001, 1, nil).UnaryInterceptor()
	for i := 0; i < 5; i++ {
		if _, err := interceptor(context.Background(), nil, testInfo, okHandler); err != nil {
			t.Fatalf("anonymous request %d rejected: %v", i, err)
		}
	}
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	interceptor := LoggingInterceptor(zap.New(core))

	failing := func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.Unavailable, "db down")
	}
	rejecting := func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "bad")
	}

	interceptor(context.Background(), nil, testInfo, okHandler)
	interceptor(context.Background(), nil, testInfo, failing)
	interceptor(context.Background(), nil, testInfo, rejecting)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d log entries, want 3", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.ErrorLevel, zapcore.InfoLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, wantLevels[i])
		}
		if e.ContextMap()["method"] != testInfo.FullMethod {
			t.Errorf("entry %d method = %v", i, e.ContextMap()["method"])
		}
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	interceptor := LoggingInterceptor(zap.NewNop())
	want := errors.New("plain error")
	_, err := interceptor(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestMetricsRouter(t *testing.T) {
	collector := metrics.New()
	collector.ObserveRule("matched")
	router := NewMetricsRouter(collector.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("/health = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "listingkeeper_rule_outcomes_total") {
		t.Error("/metrics missing rule outcome counter")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/missing status = %d, want 404", rec.Code)
	}
}
