package task

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lithammer/shortuuid/v4"

	"mediadl/extractor"
	"mediadl/ffmpeg"
)

// partialSuffixes mark files the extractor is still writing.
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// mergeDownload fetches the best video and audio streams one after the other
// into temporary files and muxes them into p.path. Temporary files are
// removed whatever the outcome.
func (m *Manager) mergeDownload(j *Job, base []string, p *plan) error {
	stem := filepath.Join(m.cfg.TempDir, "mediadl_"+shortuuid.New())
	defer removeMatching(stem + ".")

	m.transition(j, StatusDownloadingVideo)
	video, err := m.fetchStream(j, base, stem+".video", extractor.SelectVideoOnly)
	if err != nil {
		return fmt.Errorf("video stream: %w", err)
	}

	m.transition(j, StatusDownloadingAudio)
	audio, err := m.fetchStream(j, base, stem+".audio", extractor.SelectAudioOnly)
	if err != nil {
		return fmt.Errorf("audio stream: %w", err)
	}

	if j.isCancelled() {
		return errCancelled
	}
	m.transition(j, StatusMerging)
	partial := p.partialPath()
	if err := m.runTool(j, m.cfg.FFBin, ffmpeg.MergeArgs(video, audio, partial), m.lineHandler(j)); err != nil {
		os.Remove(partial)
		return fmt.Errorf("merge: %w", err)
	}
	if err := os.Rename(partial, p.path); err != nil {
		os.Remove(partial)
		return fmt.Errorf("move merged file into place: %w", err)
	}
	return nil
}

// fetchStream downloads one stream to prefix.<ext> and returns the file the
// extractor produced.
func (m *Manager) fetchStream(j *Job, base []string, prefix string, sel extractor.Selection) (string, error) {
	opts := extractor.DownloadOptions{
		URL:       j.URL,
		Output:    extractor.EscapeTemplate(prefix) + ".%(ext)s",
		Selection: sel,
	}
	args := slices.Concat(base, extractor.DownloadArgs(opts))
	err := m.retry(j.ctx, j.URL, func() error {
		return m.runTool(j, m.cfg.ExtractorBin, args, m.lineHandler(j))
	})
	if err != nil {
		return "", err
	}
	return findOutput(prefix + ".")
}

// findOutput returns the largest complete file whose path starts with
// prefix.
func findOutput(prefix string) (string, error) {
	matches, err := filepath.Glob(globEscape(prefix) + "*")
	if err != nil {
		return "", err
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, match := range matches {
		if isPartial(match) {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = match, info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("downloaded stream not found: %s*", filepath.Base(prefix))
	}
	return best, nil
}

func isPartial(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// globEscape quotes the glob metacharacters in a literal path.
func globEscape(p string) string {
	var b strings.Builder
	for _, r := range p {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		case '\\':
			if filepath.Separator == '\\' {
				b.WriteRune(r)
			} else {
				b.WriteString(`\\`)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
