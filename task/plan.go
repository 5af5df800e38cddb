package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mediadl/extractor"
	"mediadl/naming"
)

// plan is where a job's output goes and how the extractor is asked for it.
type plan struct {
	predicted string
	name      string
	path      string
	opts      extractor.DownloadOptions
	merge     bool
	playlist  bool

	// existed is true when path was already on disk before the job; such a
	// file or directory is never removed by cleanup.
	existed bool
}

// partialPath is where the merge step writes before the final rename.
func (p *plan) partialPath() string {
	ext := filepath.Ext(p.path)
	return strings.TrimSuffix(p.path, ext) + ".part" + ext
}

// plan predicts the output name for j and settles the final path, resolving
// collisions against what is already in the output directory.
func (m *Manager) plan(j *Job, base []string) (*plan, error) {
	highest := extractor.IsHighest(j.Format)
	formatID := ""
	if !highest {
		formatID = j.Format
	}
	overwrite := m.settings.OverwriteExisting()
	p := &plan{
		predicted: m.predictName(j, base, formatID),
		playlist:  j.Playlist,
		opts: extractor.DownloadOptions{
			URL:       j.URL,
			Selection: extractor.SelectFormat,
			FormatID:  formatID,
			Playlist:  j.Playlist,
		},
	}

	if j.Playlist {
		p.name = naming.Resolve(j.OutputDir, p.predicted, overwrite)
		p.path = filepath.Join(j.OutputDir, p.name)
		p.existed = pathExists(p.path)
		if err := os.MkdirAll(p.path, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOutputDir, err)
		}
		switch {
		case highest && j.MediaType == extractor.Audio:
			p.opts.Selection = extractor.SelectAudioMP3
		case highest:
			p.opts.Selection = extractor.SelectMerged
		}
		p.opts.Output = filepath.Join(extractor.EscapeTemplate(p.path), "%(title)s.%(ext)s")
		return p, nil
	}

	name := p.predicted
	switch {
	case highest && j.MediaType == extractor.Audio:
		name = naming.ReplaceExt(name, ".mp3")
		p.opts.Selection = extractor.SelectAudioMP3
	case highest:
		name = naming.ReplaceExt(name, ".mp4")
		p.merge = true
	case j.MediaType == extractor.Audio:
		name = naming.WithDefaultExt(name, ".mp3")
	default:
		name = naming.WithDefaultExt(name, ".mp4")
	}
	p.name = naming.Resolve(j.OutputDir, name, overwrite)
	p.path = filepath.Join(j.OutputDir, p.name)
	p.existed = pathExists(p.path)

	if p.opts.Selection == extractor.SelectAudioMP3 {
		// The extractor names the pre-conversion file itself; only the stem
		// is fixed.
		stem := strings.TrimSuffix(p.path, filepath.Ext(p.path))
		p.opts.Output = extractor.EscapeTemplate(stem) + ".%(ext)s"
	} else {
		p.opts.Output = extractor.EscapeTemplate(p.path)
	}
	return p, nil
}

// predictName asks the extractor what it would call the download. Any
// failure falls back to a name derived from the URL.
func (m *Manager) predictName(j *Job, base []string, formatID string) string {
	ctx, cancel := context.WithTimeout(j.ctx, m.cfg.PredictTimeout)
	defer cancel()

	out, err := m.capture(ctx, m.cfg.ExtractorBin, slices.Concat(base, extractor.PredictArgs(j.URL, j.Playlist, formatID)))
	if err != nil {
		m.logger.Warn("Filename prediction failed", "url", j.URL, "error", err)
	}

	var name string
	for _, line := range out {
		if line = strings.TrimSpace(line); line != "" {
			name = line
			break
		}
	}
	if name == "" || name == "NA" || strings.HasPrefix(name, "NA.") {
		if j.Playlist {
			return "Playlist"
		}
		return naming.Fallback(j.URL, m.now())
	}
	return naming.Sanitize(name)
}

func pathExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
