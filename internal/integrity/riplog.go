package integrity

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// RipLogSummary holds the fields extracted from a ripper log that matter
// for validation.
type RipLogSummary struct {
	Path         string
	CRCs         []string
	Durations    []time.Duration
	Score        int
	ScorePresent bool
}

var (
	// "Copy CRC 1A2B3C4D" in EAC logs, "CRC32 hash: 1A2B3C4D" in XLD logs.
	logCRCPattern = regexp.MustCompile(`(?i)(?:copy\s+crc|crc32\s+hash)\s*:?\s+([0-9A-F]{8})`)
	// TOC table rows: "  1  |  0:00.00 |  4:12.45 |    0    |  18944".
	tocRowPattern = regexp.MustCompile(`^\s*\d+\s*\|\s*\d+:\d{2}[.:]\d{2}\s*\|\s*(\d+):(\d{2})[.:](\d{2})\s*\|`)
	// Declared score lines, e.g. "Log score: 98" or "100%".
	scorePattern     = regexp.MustCompile(`(?i)(?:log\s+)?score[^0-9-]*(-?\d{1,3})`)
	percentOnlyLine  = regexp.MustCompile(`^\s*(\d{1,3})\s*%\s*$`)
	framesPerSecond  = 75
	maxRipLogSizeMiB = 4
)

// FindRipLog returns the first ripper log in the folder, or "" when none
// exists. Only top-level .log files are considered.
func FindRipLog(folder string) string {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return ""
	}
	names := make([]string, 0, 1)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".log") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	// Deterministic pick when a release carries several logs.
	minName := names[0]
	for _, name := range names[1:] {
		if name < minName {
			minName = name
		}
	}
	return filepath.Join(folder, minName)
}

// ParseRipLog extracts track CRCs, TOC durations, and the declared score
// from a ripper log. Logs are frequently UTF-16; both encodings are read.
func ParseRipLog(path string) (*RipLogSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat rip log: %w", err)
	}
	if info.Size() > int64(maxRipLogSizeMiB)<<20 {
		return nil, fmt.Errorf("rip log %s exceeds %d MiB", filepath.Base(path), maxRipLogSizeMiB)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rip log: %w", err)
	}
	text := decodeLogBytes(raw)

	summary := &RipLogSummary{Path: path}
	for _, line := range strings.Split(text, "\n") {
		if match := logCRCPattern.FindStringSubmatch(line); match != nil {
			summary.CRCs = append(summary.CRCs, strings.ToUpper(match[1]))
			continue
		}
		if match := tocRowPattern.FindStringSubmatch(line); match != nil {
			minutes, _ := strconv.Atoi(match[1])
			seconds, _ := strconv.Atoi(match[2])
			frames, _ := strconv.Atoi(match[3])
			duration := time.Duration(minutes)*time.Minute +
				time.Duration(seconds)*time.Second +
				time.Duration(frames)*time.Second/time.Duration(framesPerSecond)
			summary.Durations = append(summary.Durations, duration)
			continue
		}
		if !summary.ScorePresent {
			if match := scorePattern.FindStringSubmatch(line); match != nil {
				if score, err := strconv.Atoi(match[1]); err == nil {
					summary.Score = score
					summary.ScorePresent = true
				}
				continue
			}
			if match := percentOnlyLine.FindStringSubmatch(line); match != nil {
				if score, err := strconv.Atoi(match[1]); err == nil {
					summary.Score = score
					summary.ScorePresent = true
				}
			}
		}
	}
	return summary, nil
}

// decodeLogBytes converts UTF-16 rip logs to UTF-8 by BOM sniffing and
// passes UTF-8 input through untouched.
func decodeLogBytes(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xFE {
		return decodeUTF16(raw[2:], false)
	}
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		return decodeUTF16(raw[2:], true)
	}
	if len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF {
		raw = raw[3:]
	}
	return string(raw)
}

func decodeUTF16(raw []byte, bigEndian bool) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		if bigEndian {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		} else {
			units = append(units, uint16(raw[i+1])<<8|uint16(raw[i]))
		}
	}
	return string(utf16.Decode(units))
}
