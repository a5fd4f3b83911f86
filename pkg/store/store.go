// Package store defines the graph persistence sink used by the pipeline.
package store

import (
	"context"
	"errors"

	"github.com/opsgraph/opsgraph/pkg/common"
)

// ErrBackupUnsupported is returned when a clear is requested together
// with a pre-clear backup. No backup mechanism exists, so the
// combination is refused outright instead of silently clearing.
var ErrBackupUnsupported = errors.New("backup before clear is not supported")

// LoadCounts tallies what a persistence operation wrote.
type LoadCounts struct {
	Systems       int `json:"systems"`
	Events        int `json:"events"`
	Nodes         int `json:"nodes"`
	Relationships int `json:"relationships"`
}

// Add accumulates another tally into this one.
func (c *LoadCounts) Add(other LoadCounts) {
	c.Systems += other.Systems
	c.Events += other.Events
	c.Nodes += other.Nodes
	c.Relationships += other.Relationships
}

// GraphStore persists extracted entities and graph documents. All writes
// are idempotent merges: loading the same data twice leaves the graph
// unchanged.
type GraphStore interface {
	// EnsureSchema creates the uniqueness constraints and indexes the
	// loaders depend on.
	EnsureSchema(ctx context.Context) error

	// LoadEntities upserts systems and their events. A failure on one
	// entity is recorded and skipped; it does not abort the batch.
	LoadEntities(ctx context.Context, systems []*common.SystemEntity, events []*common.EventEntity) (LoadCounts, error)

	// MergeGraphDocument upserts the nodes and relationships of one
	// extraction result.
	MergeGraphDocument(ctx context.Context, doc *common.GraphDocument) (LoadCounts, error)

	// Clear removes all nodes and relationships.
	Clear(ctx context.Context) error

	// Close releases the underlying connection. Safe to call twice.
	Close(ctx context.Context) error
}
