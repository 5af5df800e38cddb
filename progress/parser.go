// Package progress turns raw extractor and transcoder output lines into
// structured progress events.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

type Kind int

const (
	KindProgress Kind = iota + 1
	KindPhase
)

// Phase names reported by the parser.
const (
	PhaseProcessing = "Processing"
	PhasePlaylist   = "Downloading Playlist"
	PhaseMerging    = "Merging"
)

// Event is a single parsed progress observation. Percent is set for
// KindProgress; Phase and, optionally, Detail for KindPhase.
type Event struct {
	Kind    Kind
	Percent float64
	Phase   string
	Detail  string
}

const downloadMarker = "[download]"

var (
	percentRe      = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)
	playlistItemRe = regexp.MustCompile(`Downloading item (\d+) of (\d+)`)
	transcodeRe    = regexp.MustCompile(`time=\s*(\d{2}:\d{2}:\d{2}(?:\.\d+)?)`)

	processingMarkers = []string{
		"[ExtractAudio]",
		"[ffmpeg]",
		"[Merger]",
		"[VideoConvertor]",
		"[Metadata]",
	}
)

// ParseLine parses one output line. The boolean is false for lines that carry
// no progress information.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	if strings.Contains(line, downloadMarker) {
		if m := playlistItemRe.FindStringSubmatch(line); m != nil {
			return Event{Kind: KindPhase, Phase: PhasePlaylist, Detail: m[1] + "/" + m[2]}, true
		}
		if strings.Contains(line, "Downloading playlist") {
			return Event{Kind: KindPhase, Phase: PhasePlaylist}, true
		}
		if m := percentRe.FindStringSubmatch(line); m != nil {
			pct, err := strconv.ParseFloat(m[1], 64)
			if err != nil || pct > 100 {
				return Event{}, false
			}
			return Event{Kind: KindProgress, Percent: pct}, true
		}
		return Event{}, false
	}

	for _, marker := range processingMarkers {
		if strings.Contains(line, marker) {
			return Event{Kind: KindPhase, Phase: PhaseProcessing}, true
		}
	}

	if strings.Contains(line, "speed=") {
		if m := transcodeRe.FindStringSubmatch(line); m != nil {
			return Event{Kind: KindPhase, Phase: PhaseMerging, Detail: m[1]}, true
		}
	}
	return Event{}, false
}

// Label renders a phase event for display, e.g. "Merging (00:00:04.00)".
func (e Event) Label() string {
	if e.Detail == "" {
		return e.Phase
	}
	return e.Phase + " (" + e.Detail + ")"
}
