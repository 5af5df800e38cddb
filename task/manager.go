package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"mediadl/config"
	"mediadl/extractor"
	"mediadl/notify"
)

// Manager is the download orchestrator. It accepts requests, runs one worker
// per job and reports every job's lifecycle through the notifier.
type Manager struct {
	cfg       *config.Config
	settings  *config.Settings
	notifier  *notify.Notifier
	launcher  Launcher
	extraArgs []string
	logger    *slog.Logger
	now       func() time.Time
	verify    func(*plan) (*result, error)

	ctx     context.Context
	stopAll context.CancelFunc

	mu      sync.Mutex
	active  map[string]*Job
	closing bool
	wg      sync.WaitGroup
}

func NewManager(cfg *config.Config, settings *config.Settings, notifier *notify.Notifier, launcher Launcher) (*Manager, error) {
	extra, err := extractor.ParseExtraArgs(cfg.ExtractorArgs)
	if err != nil {
		return nil, fmt.Errorf("EXTRACTOR_ARGS: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		settings:  settings,
		notifier:  notifier,
		launcher:  launcher,
		extraArgs: extra,
		logger:    slog.Default(),
		now:       time.Now,
		verify:    verify,
		ctx:       ctx,
		stopAll:   cancel,
		active:    make(map[string]*Job),
	}, nil
}

// IntakeEnabled reports whether new submissions are accepted.
func (m *Manager) IntakeEnabled() bool {
	m.mu.Lock()
	closing := m.closing
	m.mu.Unlock()
	return !closing && m.settings.IntakeEnabled()
}

// Submit validates req, registers the job and starts its worker. The job id
// is the URL. Errors are returned only for requests rejected before any
// process is started; everything later is reported through the notifier.
func (m *Manager) Submit(req Request) (string, error) {
	if !m.IntakeEnabled() {
		return "", ErrIntakeDisabled
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return "", ErrEmptyURL
	}
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = extractor.Video
	}
	if mediaType != extractor.Video && mediaType != extractor.Audio {
		return "", ErrInvalidMediaType
	}
	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = extractor.Highest
	}

	dir := m.settings.DownloadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputDir, err)
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return "", ErrIntakeDisabled
	}
	if _, ok := m.active[url]; ok {
		m.mu.Unlock()
		return "", ErrDuplicate
	}
	ctx, cancel := context.WithCancel(m.ctx)
	analysis := extractor.Analyze(url)
	j := &Job{
		URL:       url,
		MediaType: mediaType,
		Format:    format,
		Playlist:  analysis.IsPlaylist,
		Analysis:  analysis,
		OutputDir: dir,
		CreatedAt: m.now(),
		cookies:   req.Cookies,
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusQueued,
	}
	m.active[url] = j
	m.wg.Add(1)
	m.mu.Unlock()

	m.checkDiskSpace(dir)
	m.logger.Info("Download submitted", "url", url, "media_type", mediaType, "format", format,
		"playlist", j.Playlist, "platform", analysis.Platform)

	go m.run(j)
	return url, nil
}

// Cancel requests cancellation of the active job for url. Repeated requests
// are accepted and ignored.
func (m *Manager) Cancel(url string) error {
	m.mu.Lock()
	j, ok := m.active[url]
	m.mu.Unlock()
	if !ok {
		return ErrNotActive
	}
	first, ok := j.requestCancel()
	if !ok {
		return ErrNotActive
	}
	if first {
		m.logger.Info("Cancellation requested", "url", url)
	}
	return nil
}

// Get returns a snapshot of the active job for url.
func (m *Manager) Get(url string) (Snapshot, bool) {
	m.mu.Lock()
	j, ok := m.active[url]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return j.Snapshot(), true
}

// Active lists snapshots of all active jobs, oldest first.
func (m *Manager) Active() []Snapshot {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.active))
	for _, j := range m.active {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

// Wait blocks until every worker has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops intake, cancels every active job and waits for the workers
// to report their terminal events.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	jobs := make([]*Job, 0, len(m.active))
	for _, j := range m.active {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	m.logger.Info("Shutting down download manager", "active", len(jobs))
	for _, j := range jobs {
		j.requestCancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.stopAll()
		return nil
	case <-ctx.Done():
		m.stopAll()
		return fmt.Errorf("waiting for downloads to stop: %w", ctx.Err())
	}
}

// run is the job worker. It is the only producer of events for j.
func (m *Manager) run(j *Job) {
	defer m.wg.Done()

	m.emit(notify.Queued{
		ID:        j.URL,
		At:        m.now(),
		Filename:  "Preparing " + string(j.Analysis.Platform) + " download...",
		MediaType: string(j.MediaType),
		Format:    j.Format,
		Playlist:  j.Playlist,
		Platform:  string(j.Analysis.Platform),
	})

	var (
		res *result
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("Download worker panicked", "url", j.URL, "panic", r)
				err = fmt.Errorf("internal error: %v", r)
			}
		}()
		res, err = m.execute(j)
	}()

	m.finish(j, res, err)
}

// finish emits the single terminal event for j and then removes it from the
// active set. A cancellation requested at any point before the outcome is
// sealed wins over a late success or failure. execute seals jobs that got as
// far as planning; seal is idempotent.
func (m *Manager) finish(j *Job, res *result, err error) {
	defer j.cancel()

	cancelled := j.seal()
	var ev notify.Event
	now := m.now()
	switch {
	case cancelled:
		m.transition(j, StatusCancelling)
		j.setStatus(StatusCancelled)
		ev = notify.Cancelled{ID: j.URL, At: now, Filename: j.filename(), Message: "Download cancelled by user."}
		m.logger.Info("Download cancelled", "url", j.URL)
	case err == nil:
		j.setStatus(StatusCompleted)
		j.setResult(res.name, res.size)
		ev = notify.Completed{
			ID:        j.URL,
			At:        now,
			Filename:  res.name,
			Path:      res.path,
			Size:      res.size,
			MediaType: string(j.MediaType),
			Playlist:  j.Playlist,
		}
		m.logger.Info("Download completed", "url", j.URL, "path", res.path, "size", formatSize(res.size))
	default:
		j.setStatus(StatusFailed)
		failed := notify.Failed{ID: j.URL, At: now, Filename: j.filename(), Message: err.Error()}
		var te *ToolError
		if errors.As(err, &te) {
			failed.Detail = te.Detail()
			failed.Suggestions = extractor.Suggestions(j.Analysis.Platform, te.Detail())
		}
		ev = failed
		m.logger.Error("Download failed", "url", j.URL, "error", err)
	}

	m.emit(ev)

	m.mu.Lock()
	delete(m.active, j.URL)
	m.mu.Unlock()
}

// transition moves j to next and publishes the change.
func (m *Manager) transition(j *Job, next Status) {
	if !j.setStatus(next) {
		return
	}
	m.emit(notify.StatusUpdate{ID: j.URL, At: m.now(), Status: string(next), Filename: j.filename()})
}

func (m *Manager) emit(ev notify.Event) {
	m.notifier.Publish(ev)
}
