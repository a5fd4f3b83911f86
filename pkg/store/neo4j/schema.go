package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/opsgraph/opsgraph/pkg/logger"
)

var schemaStatements = []string{
	"CREATE CONSTRAINT system_id_unique IF NOT EXISTS FOR (s:System) REQUIRE s.system_id IS UNIQUE",
	"CREATE CONSTRAINT event_id_unique IF NOT EXISTS FOR (e:Event) REQUIRE e.event_id IS UNIQUE",
	"CREATE INDEX system_environment IF NOT EXISTS FOR (s:System) ON (s.environment)",
	"CREATE INDEX event_timestamp IF NOT EXISTS FOR (e:Event) ON (e.timestamp)",
	"CREATE INDEX event_severity IF NOT EXISTS FOR (e:Event) ON (e.severity)",
}

// EnsureSchema creates the uniqueness constraints and indexes that the
// merge queries key on. All statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", stmt, err)
		}
	}

	logger.Debug("Graph schema ensured", "statements", len(schemaStatements))
	return nil
}

// sanitizeLabel strips everything but alphanumerics and underscores from
// a label or relationship type before it is interpolated into Cypher.
// Labels cannot be passed as query parameters.
func sanitizeLabel(label string) string {
	result := make([]rune, 0, len(label))
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result = append(result, c)
		}
	}
	if len(result) == 0 {
		return "Entity"
	}
	return string(result)
}

// consume drains a result so ExecuteWrite can retry cleanly.
func consume(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (any, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Consume(ctx)
}
