package extractor

import (
	"regexp"
	"strings"
)

// Substrings of extractor diagnostics that indicate a failure worth retrying
// with a fresh invocation.
var transientMarkers = []string{
	"403", "forbidden", "unauthorized", "private", "requires login",
	"unable to download", "http error", "connection", "timeout", "timed out",
}

var errorLineRe = regexp.MustCompile(`ERROR: (.+)`)

// IsTransient reports whether stderr describes a failure that may succeed on
// retry.
func IsTransient(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Explain turns extractor diagnostics into a short user-facing message.
func Explain(platform Platform, stderr string) string {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		return "Access denied. This " + string(platform) + " content may be private or require different authentication."
	case strings.Contains(lower, "private") || strings.Contains(lower, "login"):
		return "This " + string(platform) + " content is private. Please ensure you're logged in to the correct account."
	case strings.Contains(lower, "not available"):
		return "This content is not available in your region or has been removed."
	case strings.Contains(lower, "unsupported"):
		return "This URL format is not supported."
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return "Request timed out. The server may be overloaded."
	}
	if m := errorLineRe.FindStringSubmatch(stderr); m != nil {
		return string(platform) + " error: " + strings.TrimSpace(m[1])
	}
	return "Unable to retrieve formats."
}

// Suggestions lists things the user can try after a failure on platform.
func Suggestions(platform Platform, stderr string) []string {
	out := []string{}
	if stderr == "" {
		return out
	}
	lower := strings.ToLower(stderr)
	has403 := strings.Contains(lower, "403")

	switch platform {
	case Facebook:
		if has403 || strings.Contains(lower, "forbidden") {
			out = append(out,
				"Try logging into Facebook in your browser first",
				"Make sure the video privacy settings allow viewing",
				"Check if the video is still available")
		}
	case Instagram:
		if has403 || strings.Contains(lower, "private") {
			out = append(out,
				"Ensure you're following this Instagram account",
				"Try logging into Instagram in your browser",
				"Check if the content is still available")
		}
	case YouTube:
		if strings.Contains(lower, "private") {
			out = append(out, "This YouTube video is private or unlisted")
		} else if strings.Contains(lower, "copyright") {
			out = append(out, "This video may be blocked due to copyright restrictions")
		}
	case TikTok:
		if has403 {
			out = append(out,
				"Try accessing TikTok in your browser first",
				"Some TikTok videos require account access")
		}
	}

	if strings.Contains(lower, "timeout") {
		out = append(out, "Try again - the server may be temporarily overloaded")
	} else if strings.Contains(lower, "network") || strings.Contains(lower, "connection") {
		out = append(out, "Check your internet connection")
	}
	return out
}
