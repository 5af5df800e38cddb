package task

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// verify confirms the output named by p exists and is not empty.
func verify(p *plan) (*result, error) {
	info, err := os.Stat(p.path)
	if p.playlist {
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("downloaded playlist directory not found at expected location: %s", p.path)
		}
		size, err := dirSize(p.path)
		if err != nil {
			return nil, fmt.Errorf("read playlist directory: %w", err)
		}
		if size == 0 {
			return nil, fmt.Errorf("downloaded playlist directory is empty: %s", p.path)
		}
		return &result{name: p.name, path: p.path, size: size}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("downloaded file not found at expected location: %s", p.path)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return nil, fmt.Errorf("downloaded file is empty: %s", p.path)
	}
	return &result{name: p.name, path: p.path, size: info.Size()}, nil
}

// dirSize sums the complete files below dir.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isPartial(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// cleanup removes what an unsuccessful job for p wrote. Anything that was
// on disk before the job started is left alone.
func (m *Manager) cleanup(j *Job, p *plan) {
	since := j.CreatedAt
	if p.playlist {
		if !p.existed {
			if err := os.RemoveAll(p.path); err != nil {
				m.logger.Warn("Failed to remove playlist directory", "path", p.path, "error", err)
			}
			return
		}
		filepath.WalkDir(p.path, func(path string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() && isPartial(path) {
				removeIfNewer(path, since)
			}
			return nil
		})
		return
	}

	stem := strings.TrimSuffix(p.path, filepath.Ext(p.path))
	matches, _ := filepath.Glob(globEscape(stem+".") + "*")
	removed := 0
	for _, match := range matches {
		if match == p.path {
			if !p.existed && os.Remove(match) == nil {
				removed++
			}
			continue
		}
		if removeIfNewer(match, since) {
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("Removed partial output", "url", j.URL, "files", removed)
	}
}

// removeMatching deletes every file whose path starts with prefix.
func removeMatching(prefix string) {
	matches, err := filepath.Glob(globEscape(prefix) + "*")
	if err != nil {
		return
	}
	for _, match := range matches {
		os.Remove(match)
	}
}

func removeIfNewer(path string, since time.Time) bool {
	info, err := os.Lstat(path)
	if err != nil || info.IsDir() || info.ModTime().Before(since.Truncate(time.Second)) {
		return false
	}
	return os.Remove(path) == nil
}
