package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		want  Event
		match bool
	}{
		{
			name:  "download percentage",
			line:  "[download]  42.5% of 10.00MiB",
			want:  Event{Kind: KindProgress, Percent: 42.5},
			match: true,
		},
		{
			name:  "download percentage with speed and eta",
			line:  "[download]   7.3% of ~ 120.11MiB at  2.51MiB/s ETA 00:44",
			want:  Event{Kind: KindProgress, Percent: 7.3},
			match: true,
		},
		{
			name:  "download complete",
			line:  "[download] 100% of 10.00MiB in 00:00:03",
			want:  Event{Kind: KindProgress, Percent: 100},
			match: true,
		},
		{
			name:  "ffmpeg merger",
			line:  `[ffmpeg] Merging formats into "video.mp4"`,
			want:  Event{Kind: KindPhase, Phase: PhaseProcessing},
			match: true,
		},
		{
			name:  "audio extraction",
			line:  "[ExtractAudio] Destination: song.mp3",
			want:  Event{Kind: KindPhase, Phase: PhaseProcessing},
			match: true,
		},
		{
			name:  "playlist banner",
			line:  "[download] Downloading playlist: My Mix",
			want:  Event{Kind: KindPhase, Phase: PhasePlaylist},
			match: true,
		},
		{
			name:  "playlist item",
			line:  "[download] Downloading item 3 of 12",
			want:  Event{Kind: KindPhase, Phase: PhasePlaylist, Detail: "3/12"},
			match: true,
		},
		{
			name:  "transcoder time marker",
			line:  "frame=  240 fps=120 q=-1.0 size=    2048kB time=00:00:10.01 bitrate=1675.6kbits/s speed=5.01x",
			want:  Event{Kind: KindPhase, Phase: PhaseMerging, Detail: "00:00:10.01"},
			match: true,
		},
		{
			name: "transcoder time without speed",
			line: "time=00:00:10.01",
		},
		{
			name: "unrelated extractor line",
			line: "[youtube] Extracting URL",
		},
		{
			name: "download line without percentage",
			line: "[download] Destination: video.f137.mp4",
		},
		{
			name: "empty",
			line: "   ",
		},
		{
			name: "garbage",
			line: "%%%[download]%%%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.match, ok)
			if tt.match {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEventLabel(t *testing.T) {
	assert.Equal(t, "Processing", Event{Kind: KindPhase, Phase: PhaseProcessing}.Label())
	assert.Equal(t, "Merging (00:00:01.00)", Event{Kind: KindPhase, Phase: PhaseMerging, Detail: "00:00:01.00"}.Label())
}
