package textproc

import (
	"strings"

	"github.com/opsgraph/opsgraph/pkg/common"
)

// SystemEntity derives the summary entity for the processed system:
// environment guessed from the system id, services from unit files,
// release details, and package and log entry counts. Both extraction
// strategies and the load summary share this derivation.
func (r *Result) SystemEntity() *common.SystemEntity {
	system := common.NewSystemEntity(r.SystemID)
	system.Type = "server"
	system.Environment = EnvironmentFromID(r.SystemID)
	system.Services = r.ServiceNames()

	if release := r.Release(); release != nil {
		if release.Version != "" {
			system.Version = release.Version
		}
		if release.Codename != "" {
			system.Properties["os_codename"] = release.Codename
		}
		if release.Raw != "" {
			system.Properties["os_release"] = release.Raw
		}
	}

	if count := r.PackageCount(); count > 0 {
		system.Properties["package_count"] = count
	}
	if entries := r.LogEntries(); len(entries) > 0 {
		system.Properties["log_entry_count"] = len(entries)
	}

	return system
}

// EnvironmentFromID guesses the deployment environment from naming
// conventions in the system id.
func EnvironmentFromID(systemID string) string {
	id := strings.ToLower(systemID)
	switch {
	case strings.Contains(id, "prod"):
		return "production"
	case strings.Contains(id, "stage") || strings.Contains(id, "staging"):
		return "staging"
	case strings.Contains(id, "dev"):
		return "development"
	default:
		return "unknown"
	}
}
