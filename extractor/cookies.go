package extractor

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cookie is a browser cookie as exported by the companion extension.
type Cookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	Secure         bool     `json:"secure"`
	HTTPOnly       bool     `json:"httpOnly"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
}

// ValidateCookies drops expired cookies and cookies without a name or domain,
// and fills in a default path.
func ValidateCookies(cookies []Cookie, now time.Time) []Cookie {
	valid := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.ExpirationDate != nil && *c.ExpirationDate > 0 && *c.ExpirationDate < float64(now.Unix()) {
			continue
		}
		if c.Name == "" || c.Domain == "" {
			continue
		}
		if c.Path == "" {
			c.Path = "/"
		}
		valid = append(valid, c)
	}
	return valid
}

// FilterEssential keeps only the session cookies that platform needs. When
// none of them is present the input is returned unchanged.
func FilterEssential(cookies []Cookie, platform Platform) []Cookie {
	cfg, ok := platforms[platform]
	if !ok || len(cookies) == 0 {
		return cookies
	}
	var kept []Cookie
	for _, c := range cookies {
		name := strings.ToLower(c.Name)
		for _, pattern := range cfg.essential {
			if strings.Contains(name, pattern) {
				kept = append(kept, c)
				break
			}
		}
	}
	slog.Debug("Filtered cookies", "platform", platform, "total", len(cookies), "kept", len(kept))
	if len(kept) == 0 {
		return cookies
	}
	return kept
}

var cookieValueEscaper = strings.NewReplacer("\t", `\t`, "\n", `\n`, "\r", `\r`)

// Netscape serialises cookies in the Netscape cookie-jar format the
// extractor reads with --cookies.
func Netscape(cookies []Cookie) string {
	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n\n")
	for _, c := range cookies {
		domain := strings.TrimSpace(c.Domain)
		if domain == "" {
			continue
		}
		if !strings.HasPrefix(domain, ".") && !strings.HasPrefix(domain, "http") {
			domain = "." + domain
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}
		var expires int64
		if c.ExpirationDate != nil {
			expires = int64(*c.ExpirationDate)
		}
		fields := []string{
			domain, "TRUE", path, secure,
			strconv.FormatInt(expires, 10), c.Name, cookieValueEscaper.Replace(c.Value),
		}
		b.WriteString(strings.Join(fields, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

// PrepareCookies validates and filters raw cookies for the analysed URL. It returns
// nil when the URL does not need cookies or none survive.
func PrepareCookies(a Analysis, cookies []Cookie, now time.Time) []Cookie {
	if !a.NeedsCookies || len(cookies) == 0 {
		return nil
	}
	valid := ValidateCookies(cookies, now)
	if a.Platform != Generic {
		valid = FilterEssential(valid, a.Platform)
	}
	if len(valid) == 0 {
		return nil
	}
	return valid
}

// WriteCookieFile writes cookies to a private temporary file in dir and
// returns its path with a cleanup func. The cleanup is safe to call when
// there were no cookies.
func WriteCookieFile(dir string, cookies []Cookie) (string, func(), error) {
	if len(cookies) == 0 {
		return "", func() {}, nil
	}
	f, err := os.CreateTemp(dir, "cookies_*.txt")
	if err != nil {
		return "", func() {}, fmt.Errorf("create cookie file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			slog.Error("Failed to remove cookie file", "path", f.Name(), "error", err)
		}
	}
	if err := f.Chmod(0o600); err != nil {
		slog.Debug("Could not restrict cookie file mode", "error", err)
	}
	if _, err := f.WriteString(Netscape(cookies)); err != nil {
		f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write cookie file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close cookie file: %w", err)
	}
	return f.Name(), cleanup, nil
}
