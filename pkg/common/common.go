package common

import (
	"fmt"
	"strings"
	"time"
)

// SystemEntity describes one managed target: a host, device, or
// application tracked by the pipeline. The ID is globally unique within a
// processing run and never changes after construction.
type SystemEntity struct {
	ID          string         `json:"system_id"`
	Name        string         `json:"name"`
	Type        string         `json:"system_type"`
	Version     string         `json:"version"`
	Environment string         `json:"environment"`
	Location    string         `json:"location"`
	Properties  map[string]any `json:"properties,omitempty"`
	Services    []string       `json:"services,omitempty"`
	Components  []string       `json:"components,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewSystemEntity creates a SystemEntity with defaulted fields. Name
// defaults to the id.
func NewSystemEntity(id string) *SystemEntity {
	return &SystemEntity{
		ID:          id,
		Name:        id,
		Type:        "unknown",
		Version:     "unknown",
		Environment: "unknown",
		Properties:  map[string]any{},
		Metadata:    map[string]any{},
	}
}

// EventEntity describes a timestamped observation tied to a system: an
// incident, change, or log-derived occurrence.
type EventEntity struct {
	ID          string         `json:"event_id"`
	SystemID    string         `json:"system_id"`
	Type        string         `json:"event_type"`
	Timestamp   time.Time      `json:"timestamp"`
	Severity    string         `json:"severity"`
	Status      string         `json:"status"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Source      string         `json:"source"`
	Properties  map[string]any `json:"properties,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewEventEntity creates an EventEntity with defaulted fields. The
// timestamp defaults to the current time and the title is derived from the
// event type and id when absent.
func NewEventEntity(id string) *EventEntity {
	e := &EventEntity{
		ID:         id,
		Type:       "unknown",
		Timestamp:  time.Now(),
		Severity:   "info",
		Status:     "unknown",
		Properties: map[string]any{},
		Metadata:   map[string]any{},
	}
	e.Title = defaultEventTitle(e.Type, id)
	return e
}

// DefaultTitle fills the title from the event type and id when it is empty.
func (e *EventEntity) DefaultTitle() {
	if e.Title == "" {
		e.Title = defaultEventTitle(e.Type, e.ID)
	}
}

func defaultEventTitle(eventType, id string) string {
	t := eventType
	if t == "" {
		t = "unknown"
	}
	return fmt.Sprintf("%s Event %s", titleCase(t), id)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// DocumentEntity is the intermediate carrier for one processed artifact
// between text processing and graph extraction. It is not persisted as a
// graph node by the AI strategy; the consolidated context subsumes it.
type DocumentEntity struct {
	ID               string         `json:"document_id"`
	SourcePath       string         `json:"source_path"`
	Type             string         `json:"document_type"`
	Content          string         `json:"content"`
	ProcessedContent string         `json:"processed_content"`
	EntitiesFound    []string       `json:"entities_found,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// NewDocumentEntity creates a DocumentEntity with the timestamp defaulted
// to the current time.
func NewDocumentEntity(id string) *DocumentEntity {
	return &DocumentEntity{
		ID:        id,
		Type:      "unknown",
		Timestamp: time.Now(),
		Metadata:  map[string]any{},
	}
}

// Node is one typed node produced by graph extraction. The label must come
// from the configured allow-list; out-of-vocabulary labels are dropped
// before persistence, never renamed.
type Node struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Relationship is one typed, directed edge between two extracted nodes,
// addressed by the endpoint names and labels.
type Relationship struct {
	ID          string         `json:"id"`
	SourceName  string         `json:"source_name"`
	SourceLabel string         `json:"source_label"`
	TargetName  string         `json:"target_name"`
	TargetLabel string         `json:"target_label"`
	Type        string         `json:"type"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// GraphDocument is the structured output of one extraction call for one
// system.
type GraphDocument struct {
	SystemID      string         `json:"system_id"`
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// Empty reports whether the document carries no nodes and no relationships.
func (d *GraphDocument) Empty() bool {
	return d == nil || (len(d.Nodes) == 0 && len(d.Relationships) == 0)
}
