// Package naming builds safe local file names for downloads and resolves
// collisions with files already on disk.
package naming

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// DefaultName is used when nothing usable is left after sanitising.
const DefaultName = "download"

const maxNameLen = 200

var (
	invalidChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	reservedNames = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[1-9]|lpt[1-9])$`)
)

// Sanitize makes name safe to use as a file name on the current platform.
func Sanitize(name string) string {
	return sanitize(name, runtime.GOOS == "windows")
}

func sanitize(name string, windows bool) string {
	if name == "" {
		return DefaultName
	}
	name, _, _ = strings.Cut(name, "?")
	name, _, _ = strings.Cut(name, "#")

	name = invalidChars.ReplaceAllString(name, "_")
	if windows {
		if reservedNames.MatchString(strings.TrimSuffix(name, filepath.Ext(name))) {
			name = "_" + name
		}
		name = strings.TrimRight(name, ". ")
	}

	if runes := []rune(name); len(runes) > maxNameLen {
		ext := []rune(filepath.Ext(name))
		if len(ext) >= maxNameLen {
			ext = nil
		}
		name = string(runes[:maxNameLen-len(ext)]) + string(ext)
	}
	if name == "" {
		return DefaultName
	}
	return name
}

// Fallback derives a name when the extractor could not predict one: the last
// path segment of rawURL if it looks like a real file name, otherwise a
// timestamped generic name.
func Fallback(rawURL string, now time.Time) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && strings.Contains(base, ".") {
			return Sanitize(base)
		}
	}
	return fmt.Sprintf("media_download_%d", now.Unix())
}

// WithDefaultExt appends ext to name when name has no extension.
func WithDefaultExt(name, ext string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	return name + ext
}

// ReplaceExt swaps the extension of name for ext.
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// Resolve returns the name to write in dir. With overwrite set the name is
// returned unchanged; otherwise " (1)", " (2)", ... is inserted before the
// extension until no file of that name exists.
func Resolve(dir, name string, overwrite bool) string {
	if overwrite || !exists(filepath.Join(dir, name)) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !exists(filepath.Join(dir, candidate)) {
			return candidate
		}
	}
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
