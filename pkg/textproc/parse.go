package textproc

import (
	"regexp"
	"strings"
)

// defaultLogPatterns is used when no log patterns are configured.
var defaultLogPatterns = map[string]string{
	"syslog": `^(?P<timestamp>\w{3}\s+\d+\s+\d{2}:\d{2}:\d{2})\s+(?P<host>\S+)\s+(?P<process>[^:\[\s]+)(?:\[(?P<pid>\d+)\])?:\s+(?P<message>.*)$`,
}

var (
	releaseVersionPattern  = regexp.MustCompile(`release (\d+\.\d+)`)
	releaseCodenamePattern = regexp.MustCompile(`\(([^)]+)\)`)
)

// LogEntry is one structured record extracted from a log line.
type LogEntry struct {
	// Pattern names the log pattern that matched the line.
	Pattern string

	// Fields holds the named capture groups of the matching pattern.
	Fields map[string]string

	// Line is the original line.
	Line string
}

// ReleaseInfo is the parsed operating system release description.
type ReleaseInfo struct {
	Raw      string
	Version  string
	Codename string
}

// ParsedContent holds the structured data extracted from one file. Only
// the section matching the file type is populated.
type ParsedContent struct {
	LogEntries []LogEntry
	Config     map[string]string
	Packages   []string
	Release    *ReleaseInfo
}

// Parse extracts structured data from line-preserving cleaned content
// according to the file type. Unknown file types yield an empty result.
func (p *Processor) Parse(fileType FileType, content string) (*ParsedContent, error) {
	parsed := &ParsedContent{}
	switch fileType {
	case FileTypeLog:
		parsed.LogEntries = p.parseLog(content)
	case FileTypeConfig, FileTypeSystemdService, FileTypeRepositoryConfig:
		parsed.Config = parseConfig(content)
	case FileTypePackageList:
		parsed.Packages = parsePackageList(content)
	case FileTypeReleaseInfo:
		parsed.Release = parseReleaseInfo(content)
	}
	return parsed, nil
}

// parseLog matches every line against the configured patterns in name
// order; the first matching pattern wins. Lines no pattern recognizes
// are dropped.
func (p *Processor) parseLog(content string) []LogEntry {
	var entries []LogEntry
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, pattern := range p.logPatterns {
			match := pattern.re.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			fields := map[string]string{}
			for i, name := range pattern.re.SubexpNames() {
				if name != "" && match[i] != "" {
					fields[name] = match[i]
				}
			}
			entries = append(entries, LogEntry{
				Pattern: pattern.name,
				Fields:  fields,
				Line:    line,
			})
			break
		}
	}
	return entries
}

// parseConfig extracts key=value pairs. Blank lines, comments, and
// section headers are skipped; a key with an empty value is kept.
func parseConfig(content string) map[string]string {
	entries := map[string]string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "[") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		entries[key] = strings.TrimSpace(value)
	}
	return entries
}

// parsePackageList returns one entry per non-blank line.
func parsePackageList(content string) []string {
	var packages []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			packages = append(packages, line)
		}
	}
	return packages
}

// parseReleaseInfo extracts the version and codename from a release
// description line.
func parseReleaseInfo(content string) *ReleaseInfo {
	info := &ReleaseInfo{Raw: strings.TrimSpace(content)}
	if m := releaseVersionPattern.FindStringSubmatch(content); m != nil {
		info.Version = m[1]
	}
	if m := releaseCodenamePattern.FindStringSubmatch(content); m != nil {
		info.Codename = m[1]
	}
	return info
}
