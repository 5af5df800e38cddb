package extractor

import "strings"

// Highest is the format selector meaning "best available quality".
const Highest = "highest"

type MediaType string

const (
	Video MediaType = "video"
	Audio MediaType = "audio"
)

// Selection picks what the extractor downloads in one invocation.
type Selection int

const (
	// SelectFormat passes a caller-chosen format id through verbatim.
	SelectFormat Selection = iota
	// SelectVideoOnly fetches the best video-only stream.
	SelectVideoOnly
	// SelectAudioOnly fetches the best audio-only stream.
	SelectAudioOnly
	// SelectAudioMP3 fetches the best audio and converts it to mp3.
	SelectAudioMP3
	// SelectMerged lets the extractor fetch and mux best video and audio
	// itself.
	SelectMerged
)

// commonDownloadFlags keep output line-oriented and uncoloured so progress
// can be parsed. Files keep their local modification time.
var commonDownloadFlags = []string{
	"--newline", "--no-color", "--no-warnings", "--no-mtime",
	"--socket-timeout", "60", "--retries", "3",
}

// BaseArgs returns the per-site request arguments shared by every
// invocation for a: user agent, headers, cookies and any operator-supplied
// extra arguments.
func BaseArgs(a Analysis, cookieFile string, extra []string) []string {
	args := []string{
		"--user-agent", UserAgent(),
		"--add-header", "Accept-Language:en-US,en;q=0.9",
	}
	for _, h := range a.RequiredHeaders {
		switch h {
		case "X-IG-App-ID":
			args = append(args, "--add-header", "X-IG-App-ID:936619743392459")
		case "Referer":
			if a.Platform == TikTok {
				args = append(args, "--add-header", "Referer:https://www.tiktok.com/")
			}
		}
	}
	if a.Platform == Facebook || a.Platform == Instagram {
		args = append(args, "--no-check-certificate")
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	return append(args, extra...)
}

// PredictArgs asks the extractor for the name it would give rawURL without
// downloading anything. For playlists the playlist title is requested. A
// non-empty formatID makes the reported extension match that format.
func PredictArgs(rawURL string, playlist bool, formatID string) []string {
	var args []string
	if formatID != "" {
		args = append(args, "-f", formatID)
	}
	if playlist {
		return append(args, "--get-filename", "--no-warnings", "-o", "%(playlist_title)s", "--playlist-end", "1", "--", rawURL)
	}
	return append(args, "--get-filename", "--no-warnings", "-o", "%(title)s.%(ext)s", "--no-playlist", "--", rawURL)
}

// EscapeTemplate protects a literal path from output-template expansion.
func EscapeTemplate(path string) string {
	return strings.ReplaceAll(path, "%", "%%")
}

// DownloadOptions describes one download invocation.
type DownloadOptions struct {
	URL       string
	Output    string
	Selection Selection
	FormatID  string
	Playlist  bool
}

// DownloadArgs builds the argument list for a download. Exactly one of
// --yes-playlist and --no-playlist is always present.
func DownloadArgs(opts DownloadOptions) []string {
	var args []string
	switch opts.Selection {
	case SelectFormat:
		args = append(args, "-f", opts.FormatID)
	case SelectVideoOnly:
		args = append(args, "-f", "bestvideo[ext=mp4]/bestvideo")
	case SelectAudioOnly:
		args = append(args, "-f", "bestaudio[ext=m4a]/bestaudio")
	case SelectAudioMP3:
		args = append(args, "-f", "bestaudio/best", "-x", "--audio-format", "mp3", "--audio-quality", "0", "--embed-metadata")
	case SelectMerged:
		args = append(args, "-f", "bestvideo+bestaudio/best", "--merge-output-format", "mp4")
	}

	if opts.Playlist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	args = append(args, commonDownloadFlags...)
	return append(args, "-o", opts.Output, "--", opts.URL)
}

// ListFormatsArgs prints the human-readable format table.
func ListFormatsArgs(rawURL string) []string {
	return []string{"--list-formats", "--ignore-errors", "--no-playlist", "--", rawURL}
}

// DumpJSONArgs prints the metadata document, used when the format table
// cannot be parsed.
func DumpJSONArgs(rawURL string) []string {
	return []string{"--dump-json", "--ignore-errors", "--no-playlist", "--", rawURL}
}

// IsHighest reports whether formatID requests the best available quality.
func IsHighest(formatID string) bool {
	return formatID == "" || strings.EqualFold(formatID, Highest)
}
