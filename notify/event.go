// Package notify carries typed job events from download workers to a single
// consumer.
package notify

import "time"

type Kind string

const (
	KindQueued    Kind = "queued"
	KindStatus    Kind = "status-update"
	KindProgress  Kind = "progress"
	KindPhase     Kind = "phase"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
	KindCancelled Kind = "cancelled"
)

// IsTerminal reports whether k ends a job's event stream.
func (k Kind) IsTerminal() bool {
	return k == KindCompleted || k == KindFailed || k == KindCancelled
}

// Event is implemented only by the event types in this package.
type Event interface {
	JobID() string
	Kind() Kind
	Time() time.Time
	event()
}

// Queued is emitted once when a job is accepted.
type Queued struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	Filename  string    `json:"filename"`
	MediaType string    `json:"media_type"`
	Format    string    `json:"format"`
	Playlist  bool      `json:"playlist"`
	Platform  string    `json:"platform"`
}

// StatusUpdate reports a state-machine transition.
type StatusUpdate struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Status   string    `json:"status"`
	Filename string    `json:"filename,omitempty"`
}

// Progress reports download progress within the current stage.
type Progress struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Status  string    `json:"status"`
	Percent float64   `json:"percent"`
}

// Phase reports a named sub-stage reported by the tool output.
type Phase struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Phase  string    `json:"phase"`
	Detail string    `json:"detail,omitempty"`
}

// Completed is the terminal event of a successful job.
type Completed struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	MediaType string    `json:"media_type"`
	Playlist  bool      `json:"playlist"`
}

// Failed is the terminal event of a job that could not finish.
type Failed struct {
	ID          string    `json:"id"`
	At          time.Time `json:"at"`
	Filename    string    `json:"filename,omitempty"`
	Message     string    `json:"message"`
	Detail      string    `json:"detail,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// Cancelled is the terminal event of a job stopped on request.
type Cancelled struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Filename string    `json:"filename,omitempty"`
	Message  string    `json:"message"`
}

func (e Queued) JobID() string       { return e.ID }
func (e StatusUpdate) JobID() string { return e.ID }
func (e Progress) JobID() string     { return e.ID }
func (e Phase) JobID() string        { return e.ID }
func (e Completed) JobID() string    { return e.ID }
func (e Failed) JobID() string       { return e.ID }
func (e Cancelled) JobID() string    { return e.ID }

func (Queued) Kind() Kind       { return KindQueued }
func (StatusUpdate) Kind() Kind { return KindStatus }
func (Progress) Kind() Kind     { return KindProgress }
func (Phase) Kind() Kind        { return KindPhase }
func (Completed) Kind() Kind    { return KindCompleted }
func (Failed) Kind() Kind       { return KindFailed }
func (Cancelled) Kind() Kind    { return KindCancelled }

func (e Queued) Time() time.Time       { return e.At }
func (e StatusUpdate) Time() time.Time { return e.At }
func (e Progress) Time() time.Time     { return e.At }
func (e Phase) Time() time.Time        { return e.At }
func (e Completed) Time() time.Time    { return e.At }
func (e Failed) Time() time.Time       { return e.At }
func (e Cancelled) Time() time.Time    { return e.At }

func (Queued) event()       {}
func (StatusUpdate) event() {}
func (Progress) event()     {}
func (Phase) event()        {}
func (Completed) event()    {}
func (Failed) event()       {}
func (Cancelled) event()    {}
