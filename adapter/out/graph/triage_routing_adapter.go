package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"triage_server/core/port/out"
)

// RoutingAdapter stores (:Sender)-[:ROUTED_TO {count}]->(:Department) edges.
type RoutingAdapter struct {
	driver neo4j.DriverWithContext
	dbName string
}

func NewRoutingAdapter(driver neo4j.DriverWithContext, dbName string) *RoutingAdapter {
	return &RoutingAdapter{driver: driver, dbName: dbName}
}

func (a *RoutingAdapter) EnsureIndexes(ctx context.Context) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	queries := []string{
		`CREATE CONSTRAINT sender_address IF NOT EXISTS FOR (s:Sender) REQUIRE s.address IS UNIQUE`,
		`CREATE CONSTRAINT department_name IF NOT EXISTS FOR (d:Department) REQUIRE d.name IS UNIQUE`,
	}
	for _, q := range queries {
		if _, err := session.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to create routing constraint: %w", err)
		}
	}
	return nil
}

const recordRoutingQuery = `
	MERGE (s:Sender {address: $sender})
	WITH s
	UNWIND $categories AS category
	MERGE (d:Department {name: category})
	MERGE (s)-[r:ROUTED_TO]->(d)
	ON CREATE SET r.count = 0, r.confidence_sum = 0.0
	SET r.count = r.count + 1,
		r.confidence_sum = r.confidence_sum + $confidence,
		r.last_confidence = $confidence,
		r.updated_at = timestamp()
`

func (a *RoutingAdapter) RecordRouting(ctx context.Context, sender string, categories []string, confidence float64) error {
	sender = normalizeSender(sender)
	if sender == "" || len(categories) == 0 {
		return nil
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, recordRoutingQuery, map[string]any{
		"sender":     sender,
		"categories": categories,
		"confidence": confidence,
	})
	if err != nil {
		return fmt.Errorf("failed to record routing: %w", err)
	}
	return nil
}

// TopDepartments returns the departments this sender was routed to most often.
func (a *RoutingAdapter) TopDepartments(ctx context.Context, sender string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (:Sender {address: $sender})-[r:ROUTED_TO]->(d:Department)
		RETURN d.name AS name
		ORDER BY r.count DESC, d.name ASC
		LIMIT $limit
	`, map[string]any{"sender": normalizeSender(sender), "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to query routing history: %w", err)
	}

	var names []string
	for result.Next(ctx) {
		if v, ok := result.Record().Get("name"); ok {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read routing history: %w", err)
	}
	return names, nil
}

func normalizeSender(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var _ out.RoutingGraph = (*RoutingAdapter)(nil)
