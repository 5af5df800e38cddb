// Package ffmpeg builds invocations of the transcode tool.
package ffmpeg

import (
	"fmt"
	"os/exec"
	"strings"
)

// Lookup resolves the transcoder binary the same way exec does.
func Lookup(bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("ffmpeg binary not found or not in PATH: %s", bin)
	}
	return path, nil
}

// MergeArgs muxes the video stream of video with the audio stream of audio
// into out. Video is copied, audio is re-encoded to AAC. An existing out is
// overwritten.
func MergeArgs(video, audio, out string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", safePath(video),
		"-i", safePath(audio),
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		safePath(out),
	}
}

// safePath keeps a relative path that starts with '-' from being read as an
// option.
func safePath(p string) string {
	if strings.HasPrefix(p, "-") {
		return "./" + p
	}
	return p
}
