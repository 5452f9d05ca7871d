package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/devblac/state-lens/internal/network"
)

// SaveNetworkConfig persists the active network.
func (s *Store) SaveNetworkConfig(ctx context.Context, cfg network.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode network config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO network_config (id, config_json, updated_at)
VALUES (1, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  config_json=excluded.config_json,
  updated_at=CURRENT_TIMESTAMP;
`, string(raw))
	if err != nil {
		return fmt.Errorf("save network config: %w", err)
	}
	return nil
}

// LoadNetworkConfig returns the stored network, sanitized. With nothing
// stored, or a row that does not decode, it returns the futurenet preset.
func (s *Store) LoadNetworkConfig(ctx context.Context) (network.Config, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT config_json FROM network_config WHERE id = 1;`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return network.SanitizeConfig(nil), nil
	}
	if err != nil {
		return network.Config{}, fmt.Errorf("load network config: %w", err)
	}
	var fields any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return network.SanitizeConfig(nil), nil
	}
	return network.SanitizeConfig(fields), nil
}

// SetLastCustomURL remembers the last custom RPC URL the user entered.
func (s *Store) SetLastCustomURL(ctx context.Context, url string) error {
	cfg, err := s.LoadNetworkConfig(ctx)
	if err != nil {
		return err
	}
	raw, _ := json.Marshal(cfg)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO network_config (id, config_json, last_custom_url, updated_at)
VALUES (1, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  last_custom_url=excluded.last_custom_url,
  updated_at=CURRENT_TIMESTAMP;
`, string(raw), strings.TrimSpace(url))
	if err != nil {
		return fmt.Errorf("save last custom url: %w", err)
	}
	return nil
}

// LastCustomURL returns the remembered custom RPC URL, if any.
func (s *Store) LastCustomURL(ctx context.Context) (string, bool, error) {
	var url sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT last_custom_url FROM network_config WHERE id = 1;`).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load last custom url: %w", err)
	}
	return url.String, url.Valid && url.String != "", nil
}

// LoadExpandedNodes returns the expanded tree nodes for scope.
func (s *Store) LoadExpandedNodes(ctx context.Context, scope string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT nodes_json FROM expanded_nodes WHERE scope = ?;`, scope).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load expanded nodes: %w", err)
	}
	return DeserializeExpandedNodes(raw), nil
}

// SaveExpandedNodes replaces the expanded nodes for scope.
func (s *Store) SaveExpandedNodes(ctx context.Context, scope string, nodes []string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO expanded_nodes (scope, nodes_json, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(scope) DO UPDATE SET
  nodes_json=excluded.nodes_json,
  updated_at=CURRENT_TIMESTAMP;
`, scope, SerializeExpandedNodes(nodes))
	if err != nil {
		return fmt.Errorf("save expanded nodes: %w", err)
	}
	return nil
}

// SetNodeExpanded adds or removes one node id. Blank ids are ignored.
func (s *Store) SetNodeExpanded(ctx context.Context, scope, nodeID string, expanded bool) ([]string, error) {
	if strings.TrimSpace(nodeID) == "" {
		return s.LoadExpandedNodes(ctx, scope)
	}
	nodes, err := s.LoadExpandedNodes(ctx, scope)
	if err != nil {
		return nil, err
	}
	next := make([]string, 0, len(nodes)+1)
	for _, n := range nodes {
		if n != nodeID {
			next = append(next, n)
		}
	}
	if expanded {
		next = append(next, nodeID)
	}
	if err := s.SaveExpandedNodes(ctx, scope, next); err != nil {
		return nil, err
	}
	return next, nil
}
