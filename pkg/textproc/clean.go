package textproc

import (
	"regexp"
	"strings"
)

var (
	ansiPattern       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	debugLinePattern  = regexp.MustCompile(`(?m)^.*\[DEBUG\].*$\n?`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Clean applies the enabled cleaning steps in order: ANSI escape
// removal, debug line removal, then whitespace normalization. With all
// steps disabled the content passes through unchanged.
func (p *Processor) Clean(content string) string {
	return p.normalize(p.cleanLines(content))
}

// cleanLines applies the cleaning steps that keep line structure intact.
func (p *Processor) cleanLines(content string) string {
	if p.removeANSI {
		content = ansiPattern.ReplaceAllString(content, "")
	}
	if p.removeDebug {
		content = debugLinePattern.ReplaceAllString(content, "")
	}
	return content
}

// normalize collapses all whitespace runs to single spaces when
// normalization is enabled.
func (p *Processor) normalize(content string) string {
	if p.normalizeWS {
		content = strings.TrimSpace(whitespacePattern.ReplaceAllString(content, " "))
	}
	return content
}
