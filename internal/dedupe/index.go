package dedupe

import (
	"regexp"
	"strconv"
	"strings"
)

// recentLinePattern matches one release per line in the form
// "artist - title [format] {year}". Year and format are optional.
var recentLinePattern = regexp.MustCompile(`^(.+?)\s+-\s+(.+?)(?:\s+\[([^\]]+)\])?(?:\s+\{(\d{4})\})?\s*$`)

// ParseRecentUploads reads a destination's recent-uploads text index.
// Unparseable lines are skipped; the index is advisory.
func ParseRecentUploads(text, destination string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		match := recentLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		entry := Entry{
			Artist:      strings.TrimSpace(match[1]),
			Title:       strings.TrimSpace(match[2]),
			Format:      strings.TrimSpace(match[3]),
			Destination: destination,
			Origin:      "recent",
		}
		if match[4] != "" {
			if year, err := strconv.Atoi(match[4]); err == nil {
				entry.Year = year
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
