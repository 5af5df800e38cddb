package task

import (
	"fmt"
	"slices"

	"mediadl/extractor"
	"mediadl/notify"
	"mediadl/process"
	"mediadl/progress"
)

// result is what a successful download leaves behind.
type result struct {
	name string
	path string
	size int64
}

// execute runs every stage of j and returns the verified output. Cleanup of
// partial output happens here for any outcome other than success.
func (m *Manager) execute(j *Job) (res *result, err error) {
	var cookies []extractor.Cookie
	if m.settings.UseCookies() {
		cookies = extractor.PrepareCookies(j.Analysis, j.cookies, m.now())
	}
	cookieFile, removeCookies, err := extractor.WriteCookieFile(m.cfg.TempDir, cookies)
	if err != nil {
		return nil, fmt.Errorf("write cookie file: %w", err)
	}
	defer removeCookies()
	if cookieFile != "" {
		m.logger.Debug("Using cookies", "url", j.URL, "count", len(cookies))
	}

	base := extractor.BaseArgs(j.Analysis, cookieFile, m.extraArgs)

	p, err := m.plan(j, base)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Sealing here makes the cleanup decision final: a cancel arriving
		// after this point is refused.
		if cancelled := j.seal(); err != nil || cancelled {
			m.cleanup(j, p)
		}
	}()
	if j.isCancelled() {
		return nil, errCancelled
	}
	j.setNames(p.predicted, p.name)
	m.transition(j, StatusInitializing)

	if p.merge {
		err = m.mergeDownload(j, base, p)
	} else {
		m.transition(j, StatusDownloading)
		args := slices.Concat(base, extractor.DownloadArgs(p.opts))
		err = m.retry(j.ctx, j.URL, func() error {
			return m.runTool(j, m.cfg.ExtractorBin, args, m.lineHandler(j))
		})
	}
	if err != nil {
		return nil, err
	}
	if j.isCancelled() {
		return nil, errCancelled
	}
	return m.verify(p)
}

// lineHandler turns tool output for j into progress and phase events.
func (m *Manager) lineHandler(j *Job) func(process.Line) {
	return func(l process.Line) {
		if l.Source == process.Stdout {
			m.logger.Debug("Tool output", "url", j.URL, "line", l.Text)
		}
		ev, ok := progress.ParseLine(l.Text)
		if !ok {
			return
		}
		switch ev.Kind {
		case progress.KindProgress:
			if status, publish := j.updateProgress(ev.Percent); publish {
				m.emit(notify.Progress{ID: j.URL, At: m.now(), Status: string(status), Percent: ev.Percent})
			}
		case progress.KindPhase:
			// Each playlist item reports its own 0-100 run.
			if ev.Phase == progress.PhasePlaylist && ev.Detail != "" {
				j.resetProgress()
			}
			m.emit(notify.Phase{ID: j.URL, At: m.now(), Phase: ev.Phase, Detail: ev.Detail})
		}
	}
}
