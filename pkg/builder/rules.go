package builder

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/opsgraph/opsgraph/pkg/common"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/store"
	"github.com/opsgraph/opsgraph/pkg/textproc"
)

// Rule is one deterministic extraction rule: content matching Pattern
// becomes a node with the given label, connected to the system node by
// the given relationship type.
type Rule struct {
	Name         string
	Pattern      string
	Label        string
	Relationship string
}

type compiledRule struct {
	name         string
	re           *regexp.Regexp
	label        string
	relationship string
}

// RuleBuilder is the deterministic GraphBuilder strategy. It derives the
// graph from parsed structured data and configured regex rules; it has
// no external failure modes beyond the store.
type RuleBuilder struct {
	rules []compiledRule
	store store.GraphStore

	closeOnce sync.Once
}

// NewRuleBuilderParams configures a RuleBuilder.
type NewRuleBuilderParams struct {
	Rules []Rule
	Store store.GraphStore
}

// NewRuleBuilder creates the rule-based strategy. Rules are compiled up
// front; an invalid pattern is a construction-time error.
func NewRuleBuilder(params NewRuleBuilderParams) (*RuleBuilder, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("graph store is required")
	}

	rules := make([]compiledRule, 0, len(params.Rules))
	for _, rule := range params.Rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid rule pattern %s: %w", rule.Name, err)
		}
		if !AllowedNodeLabel(rule.Label) {
			return nil, fmt.Errorf("rule %s uses label %q outside the vocabulary", rule.Name, rule.Label)
		}
		if !AllowedRelationshipType(rule.Relationship) {
			return nil, fmt.Errorf("rule %s uses relationship %q outside the vocabulary", rule.Name, rule.Relationship)
		}
		rules = append(rules, compiledRule{
			name:         rule.Name,
			re:           re,
			label:        rule.Label,
			relationship: rule.Relationship,
		})
	}

	logger.Info("Rule-based graph builder initialized", "rules", len(rules))
	return &RuleBuilder{rules: rules, store: params.Store}, nil
}

// CreateKnowledgeGraph derives entities from the parsed data, persists
// the system and its events, and merges the derived graph document.
func (b *RuleBuilder) CreateKnowledgeGraph(ctx context.Context, systemID string, processed *textproc.Result) (bool, error) {
	if processed == nil || len(processed.Files) == 0 {
		logger.Warn("No content available for extraction", "system_id", systemID)
		return false, nil
	}

	system := processed.SystemEntity()
	events := b.deriveEvents(systemID, processed)
	doc := FilterGraphDocument(b.deriveGraphDocument(systemID, processed))

	entityCounts, err := b.store.LoadEntities(ctx, []*common.SystemEntity{system}, events)
	if err != nil {
		return false, fmt.Errorf("failed to load entities for %s: %w", systemID, err)
	}

	docCounts, err := b.store.MergeGraphDocument(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("failed to persist graph for %s: %w", systemID, err)
	}

	logger.Info("Knowledge graph created",
		"system_id", systemID,
		"systems", entityCounts.Systems,
		"events", entityCounts.Events,
		"nodes", docCounts.Nodes,
		"relationships", docCounts.Relationships,
	)
	return true, nil
}

// deriveEvents turns parsed log entries into events. Event ids are
// derived from the system id and entry position, keeping repeat loads
// idempotent.
func (b *RuleBuilder) deriveEvents(systemID string, processed *textproc.Result) []*common.EventEntity {
	var events []*common.EventEntity
	seq := 0
	for _, file := range processed.Files {
		if file.Parsed == nil {
			continue
		}
		for _, entry := range file.Parsed.LogEntries {
			event := common.NewEventEntity(fmt.Sprintf("%s-evt-%04d", systemID, seq))
			seq++

			event.SystemID = systemID
			event.Type = "log_event"
			event.Severity = severityFromLine(entry.Line)
			event.Description = entry.Line
			event.Source = file.Path
			if msg, ok := entry.Fields["message"]; ok {
				event.Title = msg
			} else {
				event.Title = ""
				event.DefaultTitle()
			}
			for k, v := range entry.Fields {
				event.Properties[k] = v
			}
			events = append(events, event)
		}
	}
	return events
}

func (b *RuleBuilder) deriveGraphDocument(systemID string, processed *textproc.Result) *common.GraphDocument {
	doc := &common.GraphDocument{SystemID: systemID}
	doc.Nodes = append(doc.Nodes, common.Node{
		ID:    systemID,
		Name:  systemID,
		Label: "System",
	})

	addNode := func(node common.Node, relType string) {
		doc.Nodes = append(doc.Nodes, node)
		doc.Relationships = append(doc.Relationships, common.Relationship{
			ID:          fmt.Sprintf("%s-%s-%s", systemID, relType, node.Name),
			SourceName:  systemID,
			SourceLabel: "System",
			TargetName:  node.Name,
			TargetLabel: node.Label,
			Type:        relType,
		})
	}

	for _, name := range processed.ServiceNames() {
		addNode(common.Node{ID: name, Name: name, Label: "Service"}, "RUNS")
	}

	for _, file := range processed.Files {
		if file.Parsed == nil || len(file.Parsed.Config) == 0 {
			continue
		}
		addNode(common.Node{
			ID:    file.Path,
			Name:  file.Path,
			Label: "Configuration",
			Properties: map[string]any{
				"entries": len(file.Parsed.Config),
			},
		}, "CONTAINS")
	}

	for _, file := range processed.Files {
		if file.Failed() || file.Content == "" {
			continue
		}
		for _, rule := range b.rules {
			for _, match := range dedupe(rule.re.FindAllString(file.Content, -1)) {
				addNode(common.Node{
					ID:    fmt.Sprintf("%s-%s", rule.name, match),
					Name:  match,
					Label: rule.label,
					Properties: map[string]any{
						"rule":   rule.name,
						"source": file.Path,
					},
				}, rule.relationship)
			}
		}
	}
	return doc
}

// SupportedDomains reports the structured data domains the rules handle.
func (b *RuleBuilder) SupportedDomains() []string {
	return []string{"infrastructure", "logs", "configurations"}
}

// Close is a no-op beyond idempotence bookkeeping; the store is owned by
// the caller.
func (b *RuleBuilder) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		logger.Debug("Rule-based graph builder closed")
	})
	return nil
}

func severityFromLine(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "fail") || strings.Contains(lower, "critical"):
		return "error"
	case strings.Contains(lower, "warn"):
		return "warning"
	default:
		return "info"
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
