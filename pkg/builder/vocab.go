package builder

import (
	"github.com/opsgraph/opsgraph/pkg/common"
	"github.com/opsgraph/opsgraph/pkg/logger"
)

// NodeLabels is the universal node vocabulary. Extracted nodes with any
// other label are dropped before persistence, never renamed.
var NodeLabels = []string{
	// Core infrastructure
	"System", "Server", "Database", "Network", "Device",
	"Service", "Process", "Application", "Component",

	// Events and operations
	"Event", "Incident", "Alert", "Log", "Metric",
	"Change", "Deployment", "Backup", "Update",

	// Configuration and code
	"Configuration", "Setting", "Parameter", "Variable",
	"Code", "Repository", "Package", "Library",

	// Business and organization
	"Organization", "Team", "User", "Role", "Permission",
	"Project", "Environment", "Location", "Vendor",

	// Documents and knowledge
	"Document", "Manual", "Policy", "Procedure", "Guide",
	"Report", "Dashboard", "Chart", "Analysis",

	// Security and compliance
	"Vulnerability", "Threat", "Risk", "Control", "Audit",
	"Certificate", "Credential", "Token", "Key",
}

// RelationshipTypes is the universal relationship vocabulary.
var RelationshipTypes = []string{
	// Operational
	"RUNS", "EXECUTES", "HOSTS", "CONTAINS", "INCLUDES",
	"DEPENDS_ON", "REQUIRES", "USES", "CONNECTS_TO",

	// Hierarchical
	"PARENT_OF", "CHILD_OF", "BELONGS_TO", "PART_OF",
	"MANAGES", "CONTROLS", "OWNS", "MAINTAINS",

	// Events
	"GENERATES", "TRIGGERS", "CAUSES", "RESOLVES",
	"MONITORS", "ALERTS", "LOGS", "REPORTS",

	// Data
	"READS", "WRITES", "ACCESSES", "STORES",
	"PROCESSES", "TRANSFORMS", "VALIDATES", "ENCRYPTS",

	// Business
	"ASSIGNED_TO", "RESPONSIBLE_FOR", "APPROVES", "REVIEWS",
	"IMPLEMENTS", "DOCUMENTS", "SUPPORTS", "ESCALATES",

	// Security
	"AUTHENTICATES", "AUTHORIZES", "PROTECTS", "THREATENS",
	"MITIGATES", "COMPLIES_WITH", "VIOLATES", "AUDITS",
}

var (
	nodeLabelSet        = toSet(NodeLabels)
	relationshipTypeSet = toSet(RelationshipTypes)
)

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// AllowedNodeLabel reports whether a label is in the node vocabulary.
func AllowedNodeLabel(label string) bool {
	return nodeLabelSet[label]
}

// AllowedRelationshipType reports whether a type is in the relationship
// vocabulary.
func AllowedRelationshipType(relType string) bool {
	return relationshipTypeSet[relType]
}

// FilterGraphDocument removes out-of-vocabulary nodes and relationships
// from a document. Relationships whose endpoints were dropped go with
// them. The input document is not modified.
func FilterGraphDocument(doc *common.GraphDocument) *common.GraphDocument {
	filtered := &common.GraphDocument{SystemID: doc.SystemID}

	type endpoint struct{ name, label string }
	kept := map[endpoint]bool{}

	dropped := 0
	for _, node := range doc.Nodes {
		if !AllowedNodeLabel(node.Label) {
			dropped++
			continue
		}
		filtered.Nodes = append(filtered.Nodes, node)
		kept[endpoint{node.Name, node.Label}] = true
	}

	for _, rel := range doc.Relationships {
		if !AllowedRelationshipType(rel.Type) {
			dropped++
			continue
		}
		if !kept[endpoint{rel.SourceName, rel.SourceLabel}] || !kept[endpoint{rel.TargetName, rel.TargetLabel}] {
			dropped++
			continue
		}
		filtered.Relationships = append(filtered.Relationships, rel)
	}

	if dropped > 0 {
		logger.Debug("Dropped out-of-vocabulary graph elements",
			"system_id", doc.SystemID,
			"dropped", dropped,
		)
	}
	return filtered
}
