// Package api provides the gRPC ProductRules service for listingkeeper.
package api

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/listingkeeper/internal/core/config"
	"github.com/solatis/listingkeeper/internal/rules"
)

// Invalidator drops a user's cached rules. Implemented by *rulecache.Source.
type Invalidator interface {
	Invalidate(userID string)
}

// LogObserver receives execution log persistence outcomes.
// Implemented by *metrics.Collector.
type LogObserver interface {
	ObserveLogs(n int, persisted bool)
}

// Service implements ProductRulesServer.
// Thin orchestration layer delegating to the rule engine and stores.
type Service struct {
	engine   *rules.Engine
	rules    rules.RuleSource
	logs     rules.LogSink
	cache    Invalidator
	audit    *AuditLog
	observer LogObserver
	cfg      *config.RulesAPIConfig
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the rule cache flushed by InvalidateRules.
func WithCache(cache Invalidator) Option {
	return func(s *Service) { s.cache = cache }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithLogObserver sets the observer notified after each log append.
func WithLogObserver(o LogObserver) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates the service. ruleSource backs ListRules and should
// read the store directly; the engine may sit behind a cache. logs may be
// nil, in which case responses report logs_persisted=false.
// Creates the audit directory under cfg.DataDir when DataDir is set.
func NewService(cfg *config.RulesAPIConfig, engine *rules.Engine, ruleSource rules.RuleSource, logs rules.LogSink, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if ruleSource == nil {
		return nil, fmt.Errorf("ruleSource cannot be nil")
	}

	s := &Service{
		engine: engine,
		rules:  ruleSource,
		logs:   logs,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.DataDir != "" {
		audit, err := NewAuditLog(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		s.audit = audit
	}

	return s, nil
}

// withTimeout bounds a request by the configured request timeout.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

// now is used for audit file rotation.
var now = func() time.Time { return time.Now().UTC() }

var _ ProductRulesServer = (*Service)(nil)
