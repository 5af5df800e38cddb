package task

import (
	"context"
	"errors"
	"slices"
	"strings"

	"mediadl/extractor"
)

// ListFormats returns the formats available for rawURL. The human-readable
// table is tried first, the metadata document second. When neither yields a
// format the error is a *FormatsError explaining the likely cause.
func (m *Manager) ListFormats(ctx context.Context, rawURL string, cookies []extractor.Cookie) ([]extractor.Format, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	a := extractor.Analyze(rawURL)

	var prepared []extractor.Cookie
	if m.settings.UseCookies() {
		prepared = extractor.PrepareCookies(a, cookies, m.now())
	}
	cookieFile, removeCookies, err := extractor.WriteCookieFile(m.cfg.TempDir, prepared)
	if err != nil {
		return nil, err
	}
	defer removeCookies()
	base := extractor.BaseArgs(a, cookieFile, m.extraArgs)

	ctx, cancel := context.WithTimeout(ctx, m.cfg.FormatsTimeout)
	defer cancel()

	var out []string
	listErr := m.retry(ctx, rawURL, func() error {
		var err error
		out, err = m.capture(ctx, m.cfg.ExtractorBin, slices.Concat(base, extractor.ListFormatsArgs(rawURL)))
		return err
	})
	if formats := extractor.ParseFormats(out); len(formats) > 0 {
		return formats, nil
	}

	if ctx.Err() == nil {
		doc, err := m.capture(ctx, m.cfg.ExtractorBin, slices.Concat(base, extractor.DumpJSONArgs(rawURL)))
		if err == nil {
			formats, err := extractor.FormatsFromJSON([]byte(strings.Join(doc, "\n")))
			if err == nil && len(formats) > 0 {
				return formats, nil
			}
			if listErr == nil {
				listErr = err
			}
		} else if listErr == nil {
			listErr = err
		}
	}

	var detail string
	var te *ToolError
	switch {
	case errors.As(listErr, &te):
		detail = te.Detail()
	case listErr != nil:
		detail = listErr.Error()
	default:
		detail = "no formats found"
	}
	m.logger.Warn("Format listing failed", "url", rawURL, "platform", a.Platform, "error", listErr)
	return nil, &FormatsError{
		Platform:    a.Platform,
		Message:     extractor.Explain(a.Platform, detail),
		Detail:      detail,
		Suggestions: extractor.Suggestions(a.Platform, detail),
	}
}
