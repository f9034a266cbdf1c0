package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solatis/listingkeeper/internal/types"
)

/*
 * SQL-backed stores for the rule engine's external collaborators.
 *
 * RuleStore implements rules.RuleSource; LogStore implements rules.LogSink;
 * KeyStore manages the api_keys table read by internal/core/auth.
 *
 * Rule condition trees and actions are stored as one JSON document per
 * rule (definition column) so nested groups need no recursive schema. Scalar
 * rule attributes used for filtering and ordering are real columns.
 *
 * Timestamps are written as RFC3339 UTC strings. SQLite keeps them as TEXT,
 * PostgreSQL parses them into TIMESTAMPTZ; both scan back into strings.
 */

// ruleDefinition is the JSON document stored in rules.definition.
type ruleDefinition struct {
	ConditionGroups    []types.ConditionGroup `json:"condition_groups"`
	Actions            []types.Action         `json:"actions"`
	TargetMarketplaces []string               `json:"target_marketplaces,omitempty"`
}

type ruleRow struct {
	ID         string `db:"rule_id"`
	UserID     string `db:"user_id"`
	Name       string `db:"name"`
	Enabled    bool   `db:"enabled"`
	Priority   int    `db:"priority"`
	RootLogic  string `db:"root_logic"`
	Definition string `db:"definition"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

func (r *ruleRow) toRule() (types.Rule, error) {
	var def ruleDefinition
	if err := json.Unmarshal([]byte(r.Definition), &def); err != nil {
		return types.Rule{}, fmt.Errorf("rule %s: invalid definition: %w", r.ID, err)
	}
	created, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return types.Rule{}, fmt.Errorf("rule %s: created_at: %w", r.ID, err)
	}
	updated, err := parseTimestamp(r.UpdatedAt)
	if err != nil {
		return types.Rule{}, fmt.Errorf("rule %s: updated_at: %w", r.ID, err)
	}
	return types.Rule{
		ID:                 types.RuleID(r.ID),
		UserID:             r.UserID,
		Name:               r.Name,
		Enabled:            r.Enabled,
		Priority:           r.Priority,
		RootLogic:          types.Logic(r.RootLogic),
		ConditionGroups:    def.ConditionGroups,
		Actions:            def.Actions,
		TargetMarketplaces: def.TargetMarketplaces,
		CreatedAt:          created,
		UpdatedAt:          updated,
	}, nil
}

// RuleStore persists rules. Implements rules.RuleSource.
type RuleStore struct {
	queries *Queries
	now     func() time.Time
}

// NewRuleStore creates a rule store over queries.
func NewRuleStore(queries *Queries) *RuleStore {
	return &RuleStore{queries: queries, now: time.Now}
}

// ListEnabledRules returns userID's enabled rules by ascending priority.
// Ties are broken by creation time then ID so the order is stable.
func (s *RuleStore) ListEnabledRules(ctx context.Context, userID string) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.queries.Select(ctx, "list-enabled-rules", &rows, userID, true); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	rules := make([]types.Rule, 0, len(rows))
	for i := range rows {
		rule, err := rows[i].toRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// GetRule returns one of userID's rules. Returns types.ErrRuleNotFound
// when the rule does not exist or belongs to another user.
func (s *RuleStore) GetRule(ctx context.Context, userID string, id types.RuleID) (types.Rule, error) {
	var row ruleRow
	err := s.queries.Get(ctx, "get-rule", &row, string(id), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Rule{}, types.ErrRuleNotFound
	}
	if err != nil {
		return types.Rule{}, fmt.Errorf("failed to get rule: %w", err)
	}
	return row.toRule()
}

// SaveRule inserts or updates rule. A missing ID is generated (UUIDv7);
// CreatedAt is kept on update, UpdatedAt is always set to now.
// rule is updated in place with the stored ID and timestamps.
func (s *RuleStore) SaveRule(ctx context.Context, rule *types.Rule) error {
	if rule.UserID == "" {
		return fmt.Errorf("rule %q has no user_id", rule.Name)
	}
	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	}
	now := s.now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	definition, err := json.Marshal(ruleDefinition{
		ConditionGroups:    rule.ConditionGroups,
		Actions:            rule.Actions,
		TargetMarketplaces: rule.TargetMarketplaces,
	})
	if err != nil {
		return fmt.Errorf("rule %s: failed to encode definition: %w", rule.ID, err)
	}

	rootLogic := rule.RootLogic
	if rootLogic == "" {
		rootLogic = types.LogicAnd
	}

	_, err = s.queries.Exec(ctx, "upsert-rule",
		string(rule.ID), rule.UserID, rule.Name, rule.Enabled, rule.Priority, string(rootLogic),
		string(definition), formatTimestamp(rule.CreatedAt), formatTimestamp(rule.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}
	return nil
}

type logRow struct {
	ID                string `db:"log_id"`
	RuleID            string `db:"rule_id"`
	UserID            string `db:"user_id"`
	ProductID         string `db:"product_id"`
	Marketplace       string `db:"marketplace"`
	ExecutedAt        string `db:"executed_at"`
	Success           bool   `db:"success"`
	ConditionsMatched bool   `db:"conditions_matched"`
	ActionsApplied    string `db:"actions_applied"`
	BeforeData        string `db:"before_data"`
	AfterData         string `db:"after_data"`
}

// LogStore persists execution logs. Implements rules.LogSink.
type LogStore struct {
	queries *Queries
}

// NewLogStore creates a log store over queries.
func NewLogStore(queries *Queries) *LogStore {
	return &LogStore{queries: queries}
}

// AppendLogs writes logs in one transaction: either every entry is stored
// or none is.
func (s *LogStore) AppendLogs(ctx context.Context, logs []types.LogEntry) error {
	if len(logs) == 0 {
		return nil
	}
	return s.queries.WithTx(ctx, func(tx *Queries) error {
		for i := range logs {
			entry := &logs[i]
			actions, err := json.Marshal(entry.ActionsApplied)
			if err != nil {
				return fmt.Errorf("log %s: %w", entry.ID, err)
			}
			before, err := json.Marshal(entry.BeforeData)
			if err != nil {
				return fmt.Errorf("log %s: before_data: %w", entry.ID, err)
			}
			after, err := json.Marshal(entry.AfterData)
			if err != nil {
				return fmt.Errorf("log %s: after_data: %w", entry.ID, err)
			}

			_, err = tx.Exec(ctx, "insert-execution-log",
				string(entry.ID), string(entry.RuleID), entry.UserID, entry.ProductID, entry.Marketplace,
				formatTimestamp(entry.ExecutedAt), entry.Success, entry.ConditionsMatched,
				string(actions), string(before), string(after))
			if err != nil {
				return fmt.Errorf("failed to insert log %s: %w", entry.ID, err)
			}
		}
		return nil
	})
}

// ListLogs returns userID's execution logs for productID, oldest first.
func (s *LogStore) ListLogs(ctx context.Context, userID, productID string) ([]types.LogEntry, error) {
	var rows []logRow
	if err := s.queries.Select(ctx, "list-logs-by-product", &rows, userID, productID); err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}

	logs := make([]types.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry := types.LogEntry{
			ID:                types.LogID(row.ID),
			RuleID:            types.RuleID(row.RuleID),
			UserID:            row.UserID,
			ProductID:         row.ProductID,
			Marketplace:       row.Marketplace,
			Success:           row.Success,
			ConditionsMatched: row.ConditionsMatched,
		}
		var err error
		if entry.ExecutedAt, err = parseTimestamp(row.ExecutedAt); err != nil {
			return nil, fmt.Errorf("log %s: executed_at: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.ActionsApplied), &entry.ActionsApplied); err != nil {
			return nil, fmt.Errorf("log %s: actions_applied: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.BeforeData), &entry.BeforeData); err != nil {
			return nil, fmt.Errorf("log %s: before_data: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.AfterData), &entry.AfterData); err != nil {
			return nil, fmt.Errorf("log %s: after_data: %w", row.ID, err)
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

// KeyStore manages API key records. Keys themselves are never stored,
// only their HMAC (see internal/core/auth).
type KeyStore struct {
	queries *Queries
	now     func() time.Time
}

// NewKeyStore creates a key store over queries.
func NewKeyStore(queries *Queries) *KeyStore {
	return &KeyStore{queries: queries, now: time.Now}
}

// CreateAPIKey records a key hash for userID and returns the new key record ID.
func (s *KeyStore) CreateAPIKey(ctx context.Context, userID, name, secretID string, keyHash []byte) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	_, err := s.queries.Exec(ctx, "insert-api-key", id, userID, name, secretID, keyHash, s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create api key: %w", err)
	}
	return id, nil
}

// RevokeAPIKey marks a key revoked. Returns an error if the key does not
// exist or is already revoked.
func (s *KeyStore) RevokeAPIKey(ctx context.Context, apiKeyID string) error {
	res, err := s.queries.Exec(ctx, "revoke-api-key", s.now().UTC(), apiKeyID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("api key %s not found or already revoked", apiKeyID)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
