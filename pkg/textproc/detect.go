package textproc

import (
	"path"
	"strings"
)

// FileType classifies a system file by its role.
type FileType string

const (
	FileTypeLog              FileType = "log_file"
	FileTypeConfig           FileType = "config_file"
	FileTypeSystemdService   FileType = "systemd_service"
	FileTypePackageList      FileType = "package_list"
	FileTypeReleaseInfo      FileType = "release_info"
	FileTypeRepositoryConfig FileType = "repository_config"
	FileTypeUnknown          FileType = "unknown"
)

// DetectFileType classifies a file by its relative path. Checks run in a
// fixed order and the first match wins, so classification is
// deterministic for any path.
func DetectFileType(relPath string) FileType {
	name := strings.ToLower(path.Base(relPath))
	switch {
	case strings.HasSuffix(name, ".log"):
		return FileTypeLog
	case strings.HasSuffix(name, ".conf"):
		return FileTypeConfig
	case strings.HasSuffix(name, ".service"):
		return FileTypeSystemdService
	case name == "packages.txt":
		return FileTypePackageList
	case name == "redhat-release":
		return FileTypeReleaseInfo
	case strings.HasSuffix(name, ".repo"):
		return FileTypeRepositoryConfig
	default:
		return FileTypeUnknown
	}
}

// serviceUnitName derives the unit name from a systemd unit file path.
func serviceUnitName(relPath string) string {
	return strings.TrimSuffix(path.Base(relPath), ".service")
}
