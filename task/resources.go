package task

import (
	"github.com/c2h5oh/datasize"
	"github.com/shirou/gopsutil/v3/disk"
)

// checkDiskSpace warns when the filesystem holding dir is low on space. It
// never rejects a job.
func (m *Manager) checkDiskSpace(dir string) {
	if m.cfg.MinFreeDisk <= 0 {
		return
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		m.logger.Warn("Could not read free disk space", "dir", dir, "error", err)
		return
	}
	if usage.Free < uint64(m.cfg.MinFreeDisk) {
		m.logger.Warn("Low disk space in download directory", "dir", dir,
			"free", formatSize(int64(usage.Free)), "minimum", formatSize(m.cfg.MinFreeDisk))
	}
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return datasize.ByteSize(n).HumanReadable()
}
