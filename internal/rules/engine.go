// internal/rules/engine.go
package rules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/listingkeeper/internal/types"
)

/*
 * Rule engine orchestration.
 *
 * Run loads the acting user's rules, compiles them and performs one
 * evaluation pass over a product. Process is the pure pass over an
 * already compiled rule set; RunBatch shares one compiled snapshot across
 * many products (batch.go).
 *
 * Pass semantics:
 *   1. rules run in ascending priority (stable for ties)
 *   2. marketplace-scoped rules skip when a different marketplace is given
 *   3. a matching rule snapshots the working copy, applies its actions in
 *      order and records a log entry with before/after snapshots
 *   4. later rules evaluate against the already mutated working copy
 *
 * Failure policy: only a rule source failure aborts. Rules that fail to
 * compile are skipped; a panic while applying a rule's actions is
 * recovered, logged with Success=false, and the working copy rolls back to
 * the rule's before snapshot. The engine never persists logs.
 */

// RuleSource supplies a user's enabled rules, ordered by ascending priority.
type RuleSource interface {
	ListEnabledRules(ctx context.Context, userID string) ([]types.Rule, error)
}

// LogSink persists execution logs. Called by hosts after a run, never by the engine.
type LogSink interface {
	AppendLogs(ctx context.Context, logs []types.LogEntry) error
}

// Observer receives evaluation telemetry. Implemented by internal/core/metrics.
type Observer interface {
	ObserveRule(outcome string)
	ObserveRun(duration time.Duration, applied int)
}

// Rule outcomes reported to Observer.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Result is the output of one evaluation pass.
type Result struct {
	ModifiedData   types.Record
	AppliedRuleIDs []types.RuleID
	Logs           []types.LogEntry
}

// Engine evaluates product records against user rules.
// Safe for concurrent use; holds no per-run state.
type Engine struct {
	source   RuleSource
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
	workers  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithObserver sets the telemetry observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock overrides the clock used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWorkers sets the RunBatch worker pool size (minimum 1).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an engine reading rules from source.
func NewEngine(source RuleSource, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		logger:   zap.NewNop(),
		observer: nopObserver{},
		now:      time.Now,
		workers:  4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates one product for userID. marketplace may be empty.
// Returns an error wrapping types.ErrRuleStore when rules cannot be loaded.
func (e *Engine) Run(ctx context.Context, userID, productID string, record types.Record, marketplace string) (*Result, error) {
	compiled, err := e.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.Process(compiled, userID, productID, record, marketplace), nil
}

// Load fetches and compiles userID's rule snapshot: disabled rules are
// dropped, the rest stable-sorted by priority, uncompilable rules skipped.
func (e *Engine) Load(ctx context.Context, userID string) ([]*CompiledRule, error) {
	rules, err := e.source.ListEnabledRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRuleStore, err)
	}

	enabled := make([]types.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	compiled := make([]*CompiledRule, 0, len(enabled))
	for i := range enabled {
		cr, err := Compile(&enabled[i])
		if err != nil {
			e.logger.Warn("skipping rule that failed to compile",
				zap.String("rule_id", string(enabled[i].ID)),
				zap.String("user_id", userID),
				zap.Error(err))
			e.observer.ObserveRule(OutcomeFailed)
			continue
		}
		compiled = append(compiled, cr)
	}
	return compiled, nil
}

// Process performs one pure evaluation pass over precompiled rules.
func (e *Engine) Process(compiled []*CompiledRule, userID, productID string, record types.Record, marketplace string) *Result {
	return e.pass(userID, marketplace).process(compiled, productID, record)
}

func (e *Engine) pass(userID, marketplace string) *pass {
	return &pass{engine: e, userID: userID, marketplace: marketplace}
}

// pass carries the per-call context of one evaluation.
type pass struct {
	engine      *Engine
	userID      string
	marketplace string
}

func (p *pass) process(compiled []*CompiledRule, productID string, record types.Record) *Result {
	start := p.engine.now()
	result := &Result{
		ModifiedData:   record.Clone(),
		AppliedRuleIDs: []types.RuleID{},
		Logs:           []types.LogEntry{},
	}

	for _, rule := range compiled {
		if !rule.AppliesTo(p.marketplace) {
			p.engine.observer.ObserveRule(OutcomeSkipped)
			continue
		}
		if !rule.Matches(result.ModifiedData) {
			p.engine.observer.ObserveRule(OutcomeUnmatched)
			continue
		}

		before := result.ModifiedData
		after, err := p.applyRule(rule, before)
		entry := types.LogEntry{
			ID:                types.NewLogID(),
			RuleID:            rule.RuleID,
			UserID:            p.userID,
			ProductID:         productID,
			Marketplace:       p.marketplace,
			ExecutedAt:        p.engine.now().UTC(),
			Success:           err == nil,
			ConditionsMatched: true,
			ActionsApplied:    actionNames(rule),
			BeforeData:        before.Clone(),
		}
		if err != nil {
			p.engine.logger.Error("rule actions failed; working copy rolled back",
				zap.String("rule_id", string(rule.RuleID)),
				zap.String("product_id", productID),
				zap.Error(err))
			p.engine.observer.ObserveRule(OutcomeFailed)
			entry.AfterData = before.Clone()
			result.Logs = append(result.Logs, entry)
			continue
		}

		entry.AfterData = after.Clone()
		result.ModifiedData = after
		result.AppliedRuleIDs = append(result.AppliedRuleIDs, rule.RuleID)
		result.Logs = append(result.Logs, entry)
		p.engine.observer.ObserveRule(OutcomeMatched)
		p.engine.logger.Debug("rule applied",
			zap.String("rule_id", string(rule.RuleID)),
			zap.String("product_id", productID),
			zap.Int("actions", len(rule.Actions)))
	}

	p.engine.observer.ObserveRun(p.engine.now().Sub(start), len(result.AppliedRuleIDs))
	return result
}

// applyRule applies every action of rule to working, recovering panics.
// Actions render against the snapshot taken when the rule started.
func (p *pass) applyRule(rule *CompiledRule, working types.Record) (out types.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic applying rule %s: %v", rule.RuleID, r)
		}
	}()

	original := working
	for i := range rule.Actions {
		working = applyAction(&rule.Actions[i], working, original)
	}
	return working, nil
}

func actionNames(rule *CompiledRule) []string {
	names := make([]string, len(rule.Actions))
	for i, a := range rule.Actions {
		names[i] = string(a.Type)
	}
	return names
}

type nopObserver struct{}

func (nopObserver) ObserveRule(string) {}
func (nopObserver) ObserveRun(time.Duration, int) {}
