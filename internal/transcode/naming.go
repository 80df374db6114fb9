package transcode

import (
	"regexp"
	"strings"
)

// formatTokenPattern matches the encode token conventionally embedded in
// release folder names, longest variants first.
var formatTokenPattern = regexp.MustCompile(`(?i)24[- ]?bit FLAC|16[- ]?bit FLAC|WEB FLAC|FLAC|MP3 320|MP3 V0|MP3|320|V0`)

// labelFor maps an output format name to its folder token.
func labelFor(format string) string {
	switch strings.ToUpper(strings.TrimSpace(format)) {
	case "16BIT FLAC":
		return "FLAC"
	case "320":
		return "MP3 320"
	case "V0":
		return "MP3 V0"
	default:
		return strings.ToUpper(strings.TrimSpace(format))
	}
}

// OutputFolderName derives the output folder for a format branch by
// substituting the source folder's encode token. A folder without a token
// gets the new one appended in brackets.
func OutputFolderName(sourceFolder, targetFormat string) string {
	label := labelFor(targetFormat)
	if formatTokenPattern.MatchString(sourceFolder) {
		replaced := false
		return formatTokenPattern.ReplaceAllStringFunc(sourceFolder, func(token string) string {
			if replaced {
				return token
			}
			replaced = true
			return label
		})
	}
	return sourceFolder + " [" + label + "]"
}
