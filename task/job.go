package task

import (
	"context"
	"sync"
	"time"

	"mediadl/extractor"
)

// Request is a download submission.
type Request struct {
	URL       string
	MediaType extractor.MediaType
	Format    string
	Cookies   []extractor.Cookie
}

// Job is one download. The URL is its identity among active jobs. Only the
// job's worker mutates Status and Progress; Cancel only sets the flag.
type Job struct {
	URL       string
	MediaType extractor.MediaType
	Format    string
	Playlist  bool
	Analysis  extractor.Analysis
	OutputDir string
	CreatedAt time.Time
	cookies   []extractor.Cookie

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	status          Status
	progress        float64
	predictedName   string
	finalName       string
	size            int64
	cancelRequested bool
	sealed          bool
	proc            Process
}

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	URL           string              `json:"url"`
	MediaType     extractor.MediaType `json:"media_type"`
	Format        string              `json:"format"`
	Playlist      bool                `json:"playlist"`
	Platform      extractor.Platform  `json:"platform"`
	OutputDir     string              `json:"output_dir"`
	PredictedName string              `json:"predicted_name,omitempty"`
	FinalName     string              `json:"final_name,omitempty"`
	Status        Status              `json:"status"`
	Progress      float64             `json:"progress"`
	Size          int64               `json:"size,omitempty"`
	PID           int                 `json:"pid,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Snapshot{
		URL:           j.URL,
		MediaType:     j.MediaType,
		Format:        j.Format,
		Playlist:      j.Playlist,
		Platform:      j.Analysis.Platform,
		OutputDir:     j.OutputDir,
		PredictedName: j.predictedName,
		FinalName:     j.finalName,
		Status:        j.status,
		Progress:      j.progress,
		Size:          j.size,
		CreatedAt:     j.CreatedAt,
	}
	if j.cancelRequested && !j.status.IsTerminal() {
		s.Status = StatusCancelling
	}
	if j.proc != nil {
		s.PID = j.proc.PID()
	}
	return s
}

// requestCancel sets the cancellation flag and stops the job's context.
// first is false when cancellation was already requested; ok is false when
// the job's outcome is already sealed.
func (j *Job) requestCancel() (first, ok bool) {
	j.mu.Lock()
	if j.sealed {
		j.mu.Unlock()
		return false, false
	}
	if j.cancelRequested {
		j.mu.Unlock()
		return false, true
	}
	j.cancelRequested = true
	j.mu.Unlock()
	j.cancel()
	return true, true
}

// seal fixes the job's outcome: no cancellation is accepted afterwards. It
// reports whether cancellation had been requested.
func (j *Job) seal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sealed = true
	return j.cancelRequested
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

func (j *Job) setProcess(p Process) {
	j.mu.Lock()
	j.proc = p
	j.mu.Unlock()
}

// setStatus moves the job to next, resetting progress. It reports false when
// the move is not allowed or next is the current status.
func (j *Job) setStatus(next Status) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == next || !j.status.CanTransition(next) {
		return false
	}
	j.status = next
	j.progress = 0
	return true
}

func (j *Job) currentStatus() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// updateProgress records pct and reports whether it should be published.
// Progress never goes backwards within a stream; a drop after a finished
// stream starts the next one.
func (j *Job) updateProgress(pct float64) (Status, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if pct <= j.progress && !(j.progress >= 100 && pct < 100) {
		return j.status, false
	}
	j.progress = pct
	return j.status, true
}

func (j *Job) resetProgress() {
	j.mu.Lock()
	j.progress = 0
	j.mu.Unlock()
}

func (j *Job) setNames(predicted, final string) {
	j.mu.Lock()
	j.predictedName = predicted
	j.finalName = final
	j.mu.Unlock()
}

func (j *Job) setResult(final string, size int64) {
	j.mu.Lock()
	j.finalName = final
	j.size = size
	j.mu.Unlock()
}

func (j *Job) filename() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finalName != "" {
		return j.finalName
	}
	return j.predictedName
}
