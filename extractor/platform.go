// Package extractor holds everything the service knows about the external
// extraction tool: URL classification, per-site request tweaks, cookie files,
// command-line construction, format-table parsing and error interpretation.
package extractor

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

type Platform string

const (
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	YouTube   Platform = "youtube"
	Twitter   Platform = "twitter"
	TikTok    Platform = "tiktok"
	Generic   Platform = "generic"
)

type platformConfig struct {
	patterns        []*regexp.Regexp
	tempPatterns    []*regexp.Regexp
	needsCookies    bool
	requiredHeaders []string
	essential       []string
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Ordered: the first matching platform wins.
var platformOrder = []Platform{Facebook, Instagram, YouTube, Twitter, TikTok}

var platforms = map[Platform]platformConfig{
	Facebook: {
		patterns:        compile(`facebook\.com`, `fb\.watch`),
		tempPatterns:    compile(`fbcdn\.net`, `video.*\.xx\.fbcdn\.net`),
		needsCookies:    true,
		requiredHeaders: []string{"User-Agent", "Accept-Language"},
		essential:       []string{"c_user", "xs", "datr", "sb", "fr"},
	},
	Instagram: {
		patterns:        compile(`instagram\.com`),
		tempPatterns:    compile(`instagram.*\.fbcdn\.net`, `scontent.*\.cdninstagram\.com`),
		needsCookies:    true,
		requiredHeaders: []string{"User-Agent", "Accept-Language", "X-IG-App-ID"},
		essential:       []string{"sessionid", "csrftoken", "ds_user_id", "shbid", "rur"},
	},
	YouTube: {
		patterns:        compile(`youtube\.com`, `youtu\.be`, `googlevideo\.com`),
		tempPatterns:    compile(`googlevideo\.com/videoplayback`),
		requiredHeaders: []string{"User-Agent"},
		essential:       []string{"visitor_info1_live", "ysc", "pref"},
	},
	Twitter: {
		patterns:        compile(`twitter\.com`, `x\.com`),
		tempPatterns:    compile(`video\.twimg\.com`),
		needsCookies:    true,
		requiredHeaders: []string{"User-Agent", "Authorization"},
		essential:       []string{"auth_token", "ct0", "personalization_id"},
	},
	TikTok: {
		patterns:        compile(`tiktok\.com`),
		tempPatterns:    compile(`muscdn\.com`, `tiktokcdn\.com`),
		needsCookies:    true,
		requiredHeaders: []string{"User-Agent", "Referer"},
		essential:       []string{"sessionid", "tt_csrf_token", "tt_webid"},
	},
}

var genericTempPatterns = compile(
	`blob:`, `\.m3u8(\?|$)`, `\.mpd(\?|$)`, `manifest\.`,
	`videoplayback\?`, `/hls/`, `/dash/`,
)

var playlistMarkers = []string{
	"playlist?list=", "/playlist/", "/sets/", "/collection/",
	"album", "playlist", "list=",
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
}

// Analysis describes what the service needs to know about a URL before
// handing it to the extractor.
type Analysis struct {
	URL             string   `json:"url"`
	Platform        Platform `json:"platform"`
	IsTemporary     bool     `json:"is_temporary"`
	IsPlaylist      bool     `json:"is_playlist"`
	NeedsCookies    bool     `json:"needs_cookies"`
	RequiredHeaders []string `json:"required_headers"`
	Suggestions     []string `json:"suggestions"`
}

// IsPlaylist reports whether rawURL looks like a playlist, album or set.
func IsPlaylist(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, m := range playlistMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// DetectPlatform returns the known site rawURL belongs to, or Generic.
func DetectPlatform(rawURL string) Platform {
	lower := strings.ToLower(rawURL)
	for _, p := range platformOrder {
		if matchAny(platforms[p].patterns, lower) {
			return p
		}
	}
	return Generic
}

// IsTemporary reports whether rawURL points at a short-lived CDN or
// streaming-manifest location rather than a page.
func IsTemporary(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if matchAny(genericTempPatterns, lower) {
		return true
	}
	for _, cfg := range platforms {
		if matchAny(cfg.tempPatterns, lower) {
			return true
		}
	}
	return false
}

func Analyze(rawURL string) Analysis {
	a := Analysis{
		URL:         rawURL,
		Platform:    DetectPlatform(rawURL),
		IsTemporary: IsTemporary(rawURL),
		IsPlaylist:  IsPlaylist(rawURL),
	}
	if cfg, ok := platforms[a.Platform]; ok {
		a.NeedsCookies = cfg.needsCookies
		a.RequiredHeaders = cfg.requiredHeaders
	} else {
		a.NeedsCookies = a.IsTemporary
		a.RequiredHeaders = []string{"User-Agent"}
	}

	a.Suggestions = []string{}
	if a.IsTemporary {
		a.Suggestions = append(a.Suggestions, "This appears to be a temporary/CDN URL. Cookies and browser headers will be used.")
	}
	if a.NeedsCookies {
		a.Suggestions = append(a.Suggestions, "This "+string(a.Platform)+" content requires authentication. Platform cookies will be filtered and applied.")
	}
	if a.Platform != Generic {
		a.Suggestions = append(a.Suggestions, "Platform detected: "+string(a.Platform)+".")
	}
	return a
}

// UserAgent picks a desktop browser user agent.
func UserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
