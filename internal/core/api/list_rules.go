package api

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/listingkeeper/internal/types"
)

type listRulesRequest struct {
	IfNoneMatch string `json:"if_none_match"`
}

type listRulesResponse struct {
	Rules       []types.Rule `json:"rules"`
	ETag        string       `json:"etag"`
	NotModified bool         `json:"not_modified,omitempty"`
}

// ListRules returns the caller's enabled rules in evaluation order.
//
// Request:  {if_none_match?}
// Response: {rules, etag, not_modified?}
//
// When if_none_match equals the current etag the rule list is omitted and
// not_modified is set.
func (s *Service) ListRules(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	var req listRulesRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	list, err := s.rules.ListEnabledRules(ctx, userID)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", types.ErrRuleStore, err))
	}

	etag := computeETag(list)
	if req.IfNoneMatch != "" && req.IfNoneMatch == etag {
		return encodeResponse(listRulesResponse{Rules: []types.Rule{}, ETag: etag, NotModified: true})
	}
	if list == nil {
		list = []types.Rule{}
	}
	return encodeResponse(listRulesResponse{Rules: list, ETag: etag})
}

// InvalidateRules drops the caller's cached rule snapshot so the next
// evaluation reloads from the store.
//
// Request:  {}
// Response: {}
func (s *Service) InvalidateRules(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := decodeRequest(in, &struct{}{}); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
	return &structpb.Struct{}, nil
}

// computeETag hashes sorted rule_id:updated_at pairs. The same rule set
// always yields the same etag regardless of order.
func computeETag(list []types.Rule) string {
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, string(r.ID)+":"+r.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
