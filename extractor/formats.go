package extractor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Format is one row of the extractor's format table.
type Format struct {
	ID         string `json:"id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	Note       string `json:"note"`
	Type       string `json:"type"`
	Quality    string `json:"quality"`
}

const maxNoteLen = 100

var audioExts = map[string]bool{"m4a": true, "mp3": true, "aac": true, "opus": true}

// ParseFormats parses the table printed by --list-formats. Informational
// lines and anything before the header row are skipped. The result is
// ordered video first, then best quality first.
func ParseFormats(lines []string) []Format {
	var formats []Format
	headerFound := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") ||
			strings.HasPrefix(line, "WARNING") || strings.HasPrefix(line, "ERROR") {
			continue
		}
		if strings.Contains(line, "ID") && (strings.Contains(line, "EXT") || strings.Contains(line, "ext") ||
			strings.Contains(line, "resolution") || strings.Contains(line, "RESOLUTION")) {
			headerFound = true
			continue
		}
		if !headerFound || strings.Trim(line, "-─ ") == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		f := Format{ID: parts[0], Ext: parts[1], Resolution: parts[2]}
		if parts[2] == "audio" && len(parts) > 3 && parts[3] == "only" {
			f.Resolution = "audio only"
			parts = append(parts[:3], parts[4:]...)
		}
		if len(parts) > 3 {
			note := strings.Join(parts[3:], " ")
			if r := []rune(note); len(r) > maxNoteLen {
				note = string(r[:maxNoteLen]) + "..."
			}
			f.Note = note
		}
		f.Type = classify(f)
		f.Quality = quality(f.Note)
		formats = append(formats, f)
	}
	sortFormats(formats)
	return formats
}

func classify(f Format) string {
	resolution := strings.ToLower(f.Resolution)
	note := strings.ToLower(f.Note)
	switch {
	case strings.Contains(resolution, "audio only") || strings.Contains(note, "audio only"):
		return "audio"
	case strings.Contains(note, "video") || strings.Contains(note, "mp4") ||
		strings.Contains(note, "webm") || strings.Contains(note, "mkv"):
		return "video"
	case resolution != "unknown" && resolution != "audio" && resolution != "none":
		return "video"
	case audioExts[f.Ext]:
		return "audio"
	default:
		return "video"
	}
}

func quality(note string) string {
	note = strings.ToLower(note)
	switch {
	case strings.Contains(note, "best"):
		return "best"
	case strings.Contains(note, "worst"):
		return "worst"
	default:
		return "standard"
	}
}

func sortFormats(formats []Format) {
	sort.SliceStable(formats, func(i, j int) bool {
		a, b := formats[i], formats[j]
		if (a.Type == "video") != (b.Type == "video") {
			return a.Type == "video"
		}
		if (a.Quality == "best") != (b.Quality == "best") {
			return a.Quality == "best"
		}
		if (a.Resolution != "audio only") != (b.Resolution != "audio only") {
			return a.Resolution != "audio only"
		}
		return a.ID > b.ID
	})
}

type jsonInfo struct {
	Formats []struct {
		FormatID   any    `json:"format_id"`
		Ext        string `json:"ext"`
		Resolution string `json:"resolution"`
		FormatNote string `json:"format_note"`
		VCodec     string `json:"vcodec"`
	} `json:"formats"`
}

// FormatsFromJSON extracts formats from a --dump-json document. When the
// document lists none, generic best/worst selectors are returned.
func FormatsFromJSON(data []byte) ([]Format, error) {
	var info jsonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	formats := make([]Format, 0, len(info.Formats))
	for _, f := range info.Formats {
		id := "unknown"
		if f.FormatID != nil {
			id = fmt.Sprint(f.FormatID)
		}
		typ := "video"
		if f.VCodec == "none" {
			typ = "audio"
		}
		formats = append(formats, Format{
			ID:         id,
			Ext:        orUnknown(f.Ext),
			Resolution: orUnknown(f.Resolution),
			Note:       f.FormatNote,
			Type:       typ,
			Quality:    "standard",
		})
	}
	if len(formats) == 0 {
		formats = []Format{
			{ID: "best", Ext: "mp4", Resolution: "best", Note: "Best available quality", Type: "video", Quality: "best"},
			{ID: "worst", Ext: "mp4", Resolution: "worst", Note: "Lowest available quality", Type: "video", Quality: "worst"},
		}
	}
	return formats, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
