package builder

import (
	"fmt"
	"strings"

	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/textproc"
)

// maxFileContextSize caps how much of one file's cleaned content goes
// into the consolidated analysis context.
const maxFileContextSize = 8000

const analysisInstructions = `
KNOWLEDGE GRAPH INSTRUCTIONS:
Analyze the system data above and create a comprehensive knowledge graph.

Focus on extracting:
1. SYSTEMS: servers, databases, applications with their properties
2. SERVICES: running processes, APIs, daemons with status and ports
3. COMPONENTS: software packages, libraries, modules
4. EVENTS: incidents, changes, deployments, errors
5. CONFIGURATIONS: settings, parameters, environment variables
6. RELATIONSHIPS: how entities connect, depend on, or interact

System Context: %s
Extract entities that represent real infrastructure, applications, and
operational elements.
`

// BuildAnalysisContext assembles the consolidated text the AI strategy
// analyzes: a system header, one marked section per file in path order,
// and trailing extraction instructions. Files that failed processing or
// produced no content are left out. With no usable content the result is
// empty.
func BuildAnalysisContext(systemID string, processed *textproc.Result) string {
	var sections []string
	for _, file := range processed.Files {
		if file.Failed() {
			continue
		}
		content := strings.TrimSpace(file.Content)
		if content == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("=== %s: %s ===", file.Type, file.Path))
		sections = append(sections, util.TruncateString(content, maxFileContextSize))
	}
	if len(sections) == 0 {
		return ""
	}

	parts := make([]string, 0, len(sections)+2)
	parts = append(parts, "SYSTEM ANALYSIS: "+systemID)
	parts = append(parts, sections...)
	parts = append(parts, fmt.Sprintf(analysisInstructions, systemID))
	return strings.Join(parts, "\n")
}
