// Package rulecache caches per-user rule sets in front of a slower RuleSource.
//
// Entries expire after a TTL and can be dropped explicitly with Invalidate,
// for example after rules are imported. Callers always receive their own
// copy of the cached slice.
package rulecache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/solatis/listingkeeper/internal/rules"
	"github.com/solatis/listingkeeper/internal/types"
)

// Source is a caching rules.RuleSource.
type Source struct {
	next  rules.RuleSource
	ttl   time.Duration
	cache *cache.Cache
}

// New wraps next with a cache holding each user's rules for ttl.
// A ttl of zero disables caching: every call reaches next.
func New(next rules.RuleSource, ttl time.Duration) *Source {
	// go-cache treats a zero default expiration as "never expire"
	cleanup := 2 * ttl
	if ttl <= 0 {
		ttl, cleanup = 0, 0
	}
	return &Source{
		next:  next,
		ttl:   ttl,
		cache: cache.New(ttl, cleanup),
	}
}

// ListEnabledRules returns userID's rules from the cache, loading them from
// the wrapped source on a miss. Errors are not cached.
func (s *Source) ListEnabledRules(ctx context.Context, userID string) ([]types.Rule, error) {
	if cached, found := s.cache.Get(userID); found {
		return copyRules(cached.([]types.Rule)), nil
	}

	loaded, err := s.next.ListEnabledRules(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		s.cache.Set(userID, copyRules(loaded), s.ttl)
	}
	return loaded, nil
}

// Invalidate drops userID's cached rules.
func (s *Source) Invalidate(userID string) {
	s.cache.Delete(userID)
}

// Flush drops every cached rule set.
func (s *Source) Flush() {
	s.cache.Flush()
}

// copyRules copies the slice and the per-rule slices the engine may share.
// Condition values and action options are treated as immutable.
func copyRules(in []types.Rule) []types.Rule {
	out := make([]types.Rule, len(in))
	copy(out, in)
	for i := range out {
		out[i].ConditionGroups = append([]types.ConditionGroup(nil), in[i].ConditionGroups...)
		out[i].Actions = append([]types.Action(nil), in[i].Actions...)
		out[i].TargetMarketplaces = append([]string(nil), in[i].TargetMarketplaces...)
	}
	return out
}
