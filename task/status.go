package task

type Status string

const (
	StatusQueued           Status = "Queued"
	StatusInitializing     Status = "Initializing"
	StatusDownloading      Status = "Downloading"
	StatusDownloadingVideo Status = "DownloadingVideo"
	StatusDownloadingAudio Status = "DownloadingAudio"
	StatusMerging          Status = "Merging"
	StatusCancelling       Status = "Cancelling"
	StatusCompleted        Status = "Completed"
	StatusCancelled        Status = "Cancelled"
	StatusFailed           Status = "Failed"
)

// transitions lists the forward moves allowed from each non-terminal state.
// Cancelling and Failed are reachable from every non-terminal state and are
// added by CanTransition.
var transitions = map[Status][]Status{
	StatusQueued:           {StatusInitializing},
	StatusInitializing:     {StatusDownloading, StatusDownloadingVideo},
	StatusDownloading:      {StatusCompleted},
	StatusDownloadingVideo: {StatusDownloadingAudio},
	StatusDownloadingAudio: {StatusMerging},
	StatusMerging:          {StatusCompleted},
	StatusCancelling:       {StatusCancelled},
}

// IsTerminal reports whether s ends the job.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// IsActive reports whether a process may be running for a job in s.
func (s Status) IsActive() bool {
	switch s {
	case StatusDownloading, StatusDownloadingVideo, StatusDownloadingAudio, StatusMerging:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from s to next.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	if next == StatusCancelling {
		return s != StatusCancelling
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
