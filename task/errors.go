package task

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mediadl/extractor"
)

// Submission errors. Callers match them with errors.Is.
var (
	ErrEmptyURL         = errors.New("url is required")
	ErrDuplicate        = errors.New("a download for this url is already active")
	ErrIntakeDisabled   = errors.New("download intake is disabled")
	ErrOutputDir        = errors.New("output directory cannot be created")
	ErrInvalidMediaType = errors.New("media type must be video or audio")
	ErrNotActive        = errors.New("no active download for this url")
)

// errCancelled marks a stage that stopped because its job was cancelled.
var errCancelled = errors.New("download cancelled")

// ToolError is a non-zero exit of an external tool.
type ToolError struct {
	Tool   string
	Code   int
	Stderr []string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed (exit code %d)", filepath.Base(e.Tool), e.Code)
	if len(e.Stderr) > 0 {
		msg += ": " + e.Detail()
	}
	return msg
}

// Detail is the captured tail of the tool's standard error.
func (e *ToolError) Detail() string {
	return strings.Join(e.Stderr, "\n")
}

// Transient reports whether the failure looks worth retrying.
func (e *ToolError) Transient() bool {
	return extractor.IsTransient(e.Detail())
}

// FormatsError is returned by ListFormats when no format could be read.
type FormatsError struct {
	Platform    extractor.Platform
	Message     string
	Detail      string
	Suggestions []string
}

func (e *FormatsError) Error() string {
	return e.Message
}
