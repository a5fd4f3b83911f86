package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/opsgraph/opsgraph/pkg/common"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/store"
)

const eventBatchSize = 100

// LoadEntities upserts systems with their services, then events linked
// to their systems. A failure on one entity is logged and skipped; the
// remaining entities still load. Only context cancellation aborts the
// whole batch.
func (s *Store) LoadEntities(
	ctx context.Context,
	systems []*common.SystemEntity,
	events []*common.EventEntity,
) (store.LoadCounts, error) {
	counts := store.LoadCounts{}

	for _, system := range systems {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		if err := s.mergeSystem(ctx, system); err != nil {
			logger.Error("Failed to load system", "system_id", system.ID, "err", err)
			continue
		}
		counts.Systems++
	}

	for start := 0; start < len(events); start += eventBatchSize {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		end := min(start+eventBatchSize, len(events))
		batch := events[start:end]
		if err := s.mergeEvents(ctx, batch); err != nil {
			logger.Error("Failed to load event batch", "size", len(batch), "err", err)
			continue
		}
		counts.Events += len(batch)
	}

	logger.Debug("Entities loaded", "systems", counts.Systems, "events", counts.Events)
	return counts, nil
}

func (s *Store) mergeSystem(ctx context.Context, system *common.SystemEntity) error {
	return s.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := consume(ctx, tx, `
			MERGE (s:System {system_id: $system_id})
			SET s += $props
		`, map[string]any{
			"system_id": system.ID,
			"props":     systemProps(system),
		}); err != nil {
			return nil, err
		}

		if len(system.Services) == 0 {
			return nil, nil
		}
		return consume(ctx, tx, `
			MATCH (s:System {system_id: $system_id})
			UNWIND $services AS name
			MERGE (v:Service {name: name})
			MERGE (s)-[:RUNS]->(v)
		`, map[string]any{
			"system_id": system.ID,
			"services":  system.Services,
		})
	})
}

func (s *Store) mergeEvents(ctx context.Context, events []*common.EventEntity) error {
	rows := make([]map[string]any, 0, len(events))
	for _, event := range events {
		rows = append(rows, map[string]any{
			"event_id":  event.ID,
			"system_id": event.SystemID,
			"props":     eventProps(event),
		})
	}

	return s.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := consume(ctx, tx, `
			UNWIND $events AS evt
			MERGE (e:Event {event_id: evt.event_id})
			SET e += evt.props
		`, map[string]any{"events": rows}); err != nil {
			return nil, err
		}

		return consume(ctx, tx, `
			UNWIND $events AS evt
			MATCH (e:Event {event_id: evt.event_id})
			MATCH (s:System {system_id: evt.system_id})
			MERGE (s)-[:HAS_EVENT]->(e)
		`, map[string]any{"events": rows})
	})
}

// MergeGraphDocument upserts the nodes and relationships of one
// extraction result. Nodes are keyed by name within their label;
// relationship endpoints must already exist in the document.
func (s *Store) MergeGraphDocument(ctx context.Context, doc *common.GraphDocument) (store.LoadCounts, error) {
	counts := store.LoadCounts{}
	if doc.Empty() {
		return counts, nil
	}

	nodesByLabel := map[string][]map[string]any{}
	for _, node := range doc.Nodes {
		label := sanitizeLabel(node.Label)
		props := sanitizeProps(node.Properties)
		props["system_id"] = doc.SystemID
		nodesByLabel[label] = append(nodesByLabel[label], map[string]any{
			"name":  node.Name,
			"props": props,
		})
	}

	for label, rows := range nodesByLabel {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		cypher := fmt.Sprintf(`
			UNWIND $nodes AS node
			MERGE (n:%s {name: node.name})
			SET n += node.props
		`, label)
		err := s.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return consume(ctx, tx, cypher, map[string]any{"nodes": rows})
		})
		if err != nil {
			logger.Error("Failed to merge nodes", "label", label, "count", len(rows), "err", err)
			continue
		}
		counts.Nodes += len(rows)
	}

	for _, rel := range doc.Relationships {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		cypher := fmt.Sprintf(`
			MATCH (a:%s {name: $source})
			MATCH (b:%s {name: $target})
			MERGE (a)-[r:%s]->(b)
			SET r += $props
		`, sanitizeLabel(rel.SourceLabel), sanitizeLabel(rel.TargetLabel), sanitizeLabel(rel.Type))
		err := s.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return consume(ctx, tx, cypher, map[string]any{
				"source": rel.SourceName,
				"target": rel.TargetName,
				"props":  sanitizeProps(rel.Properties),
			})
		})
		if err != nil {
			logger.Error("Failed to merge relationship",
				"type", rel.Type,
				"source", rel.SourceName,
				"target", rel.TargetName,
				"err", err,
			)
			continue
		}
		counts.Relationships++
	}

	logger.Debug("Graph document merged",
		"system_id", doc.SystemID,
		"nodes", counts.Nodes,
		"relationships", counts.Relationships,
	)
	return counts, nil
}

func systemProps(system *common.SystemEntity) map[string]any {
	props := sanitizeProps(system.Properties)
	props["name"] = system.Name
	props["system_type"] = system.Type
	props["version"] = system.Version
	props["environment"] = system.Environment
	if system.Location != "" {
		props["location"] = system.Location
	}
	if len(system.Components) > 0 {
		props["components"] = system.Components
	}
	if len(system.Tags) > 0 {
		props["tags"] = system.Tags
	}
	return props
}

func eventProps(event *common.EventEntity) map[string]any {
	props := sanitizeProps(event.Properties)
	props["system_id"] = event.SystemID
	props["event_type"] = event.Type
	props["timestamp"] = event.Timestamp.UTC().Format(time.RFC3339)
	props["severity"] = event.Severity
	props["status"] = event.Status
	props["title"] = event.Title
	if event.Description != "" {
		props["description"] = event.Description
	}
	if event.Source != "" {
		props["source"] = event.Source
	}
	if len(event.Tags) > 0 {
		props["tags"] = event.Tags
	}
	return props
}

// sanitizeProps keeps only property values Neo4j can store directly;
// anything else is stringified.
func sanitizeProps(in map[string]any) map[string]any {
	props := make(map[string]any, len(in))
	for k, v := range in {
		switch v := v.(type) {
		case nil:
			continue
		case bool, int, int32, int64, float32, float64, string, []string, []any:
			props[k] = v
		case time.Time:
			props[k] = v.UTC().Format(time.RFC3339)
		default:
			props[k] = fmt.Sprintf("%v", v)
		}
	}
	return props
}
