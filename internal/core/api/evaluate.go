package api

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/listingkeeper/internal/rules"
	"github.com/solatis/listingkeeper/internal/types"
)

type evaluateRequest struct {
	ProductID   string       `json:"product_id"`
	Marketplace string       `json:"marketplace"`
	Record      types.Record `json:"record"`
}

type evaluateResponse struct {
	ProductID      string           `json:"product_id"`
	ModifiedData   types.Record     `json:"modified_data"`
	AppliedRuleIDs []types.RuleID   `json:"applied_rule_ids"`
	Logs           []types.LogEntry `json:"logs"`
	LogsPersisted  bool             `json:"logs_persisted"`
}

type batchRequest struct {
	Marketplace string          `json:"marketplace"`
	Products    []types.Product `json:"products"`
}

type batchItem struct {
	ProductID      string           `json:"product_id"`
	ModifiedData   types.Record     `json:"modified_data,omitempty"`
	AppliedRuleIDs []types.RuleID   `json:"applied_rule_ids"`
	Logs           []types.LogEntry `json:"logs"`
	Error          string           `json:"error,omitempty"`
}

type batchResponse struct {
	Results       []batchItem `json:"results"`
	LogsPersisted bool        `json:"logs_persisted"`
}

// Evaluate runs the caller's rules against one product record.
//
// Request:  {product_id, marketplace?, record}
// Response: {product_id, modified_data, applied_rule_ids, logs, logs_persisted}
//
// Logs are appended to the log store after the run. A store failure is
// logged and reported as logs_persisted=false; it never fails the call.
func (s *Service) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	var req evaluateRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if req.ProductID == "" {
		return nil, invalidArgument("product_id required")
	}
	if req.Record == nil {
		return nil, invalidArgument("record required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.engine.Run(ctx, userID, req.ProductID, req.Record, req.Marketplace)
	if err != nil {
		return nil, toStatus(err)
	}

	return encodeResponse(evaluateResponse{
		ProductID:      req.ProductID,
		ModifiedData:   result.ModifiedData,
		AppliedRuleIDs: result.AppliedRuleIDs,
		Logs:           result.Logs,
		LogsPersisted:  s.persistLogs(ctx, result.Logs),
	})
}

// EvaluateBatch runs the caller's rules against many products using one
// rule snapshot.
//
// Request:  {marketplace?, products: [{product_id, record}]}
// Response: {results: [{product_id, modified_data, applied_rule_ids, logs, error?}], logs_persisted}
//
// Results keep request order. Batches larger than max_batch_size are rejected.
func (s *Service) EvaluateBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	var req batchRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if len(req.Products) > s.cfg.MaxBatchSize {
		return nil, invalidArgument("batch size exceeds maximum of %d products", s.cfg.MaxBatchSize)
	}
	for i, p := range req.Products {
		if p.ID == "" {
			return nil, invalidArgument("products[%d]: product_id required", i)
		}
		if p.Record == nil {
			return nil, invalidArgument("products[%d]: record required", i)
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	results, err := s.engine.RunBatch(ctx, userID, req.Products, req.Marketplace)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := batchResponse{Results: make([]batchItem, len(results))}
	var logs []types.LogEntry
	for i, r := range results {
		resp.Results[i] = toBatchItem(r)
		if r.Result != nil {
			logs = append(logs, r.Result.Logs...)
		}
	}
	resp.LogsPersisted = s.persistLogs(ctx, logs)

	return encodeResponse(resp)
}

func toBatchItem(r rules.BatchResult) batchItem {
	item := batchItem{
		ProductID:      r.ProductID,
		AppliedRuleIDs: []types.RuleID{},
		Logs:           []types.LogEntry{},
	}
	if r.Err != nil {
		item.Error = r.Err.Error()
		return item
	}
	item.ModifiedData = r.Result.ModifiedData
	item.AppliedRuleIDs = r.Result.AppliedRuleIDs
	item.Logs = r.Result.Logs
	return item
}

// persistLogs appends logs to the log store and the audit mirror.
// Reports whether the store accepted them.
func (s *Service) persistLogs(ctx context.Context, logs []types.LogEntry) bool {
	if s.audit != nil {
		if err := s.audit.Append(now(), logs); err != nil {
			s.logger.Warn("failed to write audit log", zap.Error(err))
		}
	}

	if s.logs == nil {
		return false
	}
	if len(logs) == 0 {
		return true
	}

	// Persist even if the request deadline is nearly spent.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := s.logs.AppendLogs(persistCtx, logs)
	if s.observer != nil {
		s.observer.ObserveLogs(len(logs), err == nil)
	}
	if err != nil {
		s.logger.Error("failed to persist execution logs",
			zap.Int("count", len(logs)),
			zap.Error(err))
		return false
	}
	return true
}
