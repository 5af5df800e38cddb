package extractor

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPlaylist(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/playlist?list=PL123", true},
		{"https://www.youtube.com/watch?v=abc&list=PL123", true},
		{"https://soundcloud.com/artist/sets/mix", true},
		{"https://example.com/album/42", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"https://cdn.example.com/video.mp4", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaylist(tt.url))
		})
	}
}

func TestAnalyze(t *testing.T) {
	t.Run("youtube", func(t *testing.T) {
		a := Analyze("https://youtu.be/abc")
		assert.Equal(t, YouTube, a.Platform)
		assert.False(t, a.NeedsCookies)
		assert.False(t, a.IsTemporary)
		assert.Equal(t, []string{"User-Agent"}, a.RequiredHeaders)
	})

	t.Run("instagram needs cookies and app id", func(t *testing.T) {
		a := Analyze("https://www.instagram.com/reel/xyz/")
		assert.Equal(t, Instagram, a.Platform)
		assert.True(t, a.NeedsCookies)
		assert.Contains(t, a.RequiredHeaders, "X-IG-App-ID")
	})

	t.Run("generic manifest is temporary", func(t *testing.T) {
		a := Analyze("https://media.example.com/stream/index.m3u8?token=1")
		assert.Equal(t, Generic, a.Platform)
		assert.True(t, a.IsTemporary)
		assert.True(t, a.NeedsCookies)
		assert.NotEmpty(t, a.Suggestions)
	})

	t.Run("generic page", func(t *testing.T) {
		a := Analyze("https://example.com/page")
		assert.Equal(t, Generic, a.Platform)
		assert.False(t, a.NeedsCookies)
		assert.Empty(t, a.Suggestions)
	})
}

func TestBaseArgs(t *testing.T) {
	t.Run("instagram headers and cookies", func(t *testing.T) {
		args := BaseArgs(Analyze("https://www.instagram.com/p/1"), "/tmp/c.txt", []string{"--limit-rate", "1M"})
		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "--add-header X-IG-App-ID:936619743392459")
		assert.Contains(t, joined, "--cookies /tmp/c.txt")
		assert.Contains(t, joined, "--no-check-certificate")
		assert.Equal(t, []string{"--limit-rate", "1M"}, args[len(args)-2:])
	})

	t.Run("tiktok referer", func(t *testing.T) {
		args := BaseArgs(Analyze("https://www.tiktok.com/@u/video/1"), "", nil)
		assert.Contains(t, args, "Referer:https://www.tiktok.com/")
		assert.NotContains(t, args, "--cookies")
	})
}

func TestDownloadArgs(t *testing.T) {
	t.Run("specific format on single item", func(t *testing.T) {
		args := DownloadArgs(DownloadOptions{URL: "u", Output: "/d/x.mp4", Selection: SelectFormat, FormatID: "137"})
		assert.Equal(t, []string{"-f", "137"}, args[:2])
		assert.Contains(t, args, "--no-playlist")
		assert.NotContains(t, args, "--yes-playlist")
		assert.Equal(t, []string{"-o", "/d/x.mp4", "--", "u"}, args[len(args)-4:])
	})

	t.Run("playlist flags are exclusive", func(t *testing.T) {
		args := DownloadArgs(DownloadOptions{URL: "u", Output: "o", Selection: SelectMerged, Playlist: true})
		assert.Contains(t, args, "--yes-playlist")
		assert.NotContains(t, args, "--no-playlist")
	})

	t.Run("audio conversion", func(t *testing.T) {
		args := DownloadArgs(DownloadOptions{URL: "u", Output: "o", Selection: SelectAudioMP3})
		assert.Contains(t, strings.Join(args, " "), "-x --audio-format mp3 --audio-quality 0 --embed-metadata")
	})

	t.Run("progress friendly output", func(t *testing.T) {
		args := DownloadArgs(DownloadOptions{URL: "u", Output: "o", Selection: SelectVideoOnly})
		assert.Contains(t, args, "--newline")
		assert.Contains(t, args, "--no-color")
	})
}

func TestPredictArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"--get-filename", "--no-warnings", "-o", "%(title)s.%(ext)s", "--no-playlist", "--", "u"},
		PredictArgs("u", false, ""))
	assert.Contains(t, PredictArgs("u", true, ""), "%(playlist_title)s")
	assert.Equal(t, []string{"-f", "137"}, PredictArgs("u", false, "137")[:2])
}

func TestEscapeTemplate(t *testing.T) {
	assert.Equal(t, "/d/100%% legit.mp4", EscapeTemplate("/d/100% legit.mp4"))
}

func TestIsHighest(t *testing.T) {
	assert.True(t, IsHighest(""))
	assert.True(t, IsHighest("highest"))
	assert.True(t, IsHighest("Highest"))
	assert.False(t, IsHighest("137"))
}

func TestExtraArgs(t *testing.T) {
	args, err := ParseExtraArgs(`--limit-rate 2M --add-header "X-Test:a b"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"--limit-rate", "2M", "--add-header", "X-Test:a b"}, args)

	args, err = ParseExtraArgs("  ")
	require.NoError(t, err)
	assert.Nil(t, args)

	_, err = ParseExtraArgs("--exec 'rm -rf /'")
	assert.ErrorContains(t, err, "argument not allowed")

	_, err = ParseExtraArgs("--output=/etc/passwd")
	assert.ErrorContains(t, err, "argument not allowed")

	_, err = ParseExtraArgs("--proxy $(whoami)")
	assert.ErrorContains(t, err, "disallowed character")

	_, err = ParseExtraArgs(`--proxy "unterminated`)
	assert.ErrorContains(t, err, "invalid argument syntax")
}

func TestCookies(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	past := float64(now.Add(-time.Hour).Unix())
	future := float64(now.Add(time.Hour).Unix())

	raw := []Cookie{
		{Name: "sessionid", Value: "abc", Domain: "instagram.com", Secure: true, ExpirationDate: &future},
		{Name: "csrftoken", Value: "t\tk", Domain: ".instagram.com"},
		{Name: "expired", Value: "x", Domain: "instagram.com", ExpirationDate: &past},
		{Name: "", Value: "x", Domain: "instagram.com"},
		{Name: "tracking", Value: "y", Domain: "instagram.com"},
	}

	t.Run("validate", func(t *testing.T) {
		valid := ValidateCookies(raw, now)
		require.Len(t, valid, 3)
		assert.Equal(t, "/", valid[0].Path)
	})

	t.Run("filter essential", func(t *testing.T) {
		kept := FilterEssential(ValidateCookies(raw, now), Instagram)
		require.Len(t, kept, 2)
		assert.Equal(t, "sessionid", kept[0].Name)
		assert.Equal(t, "csrftoken", kept[1].Name)
	})

	t.Run("filter falls back to all", func(t *testing.T) {
		in := []Cookie{{Name: "other", Domain: "tiktok.com"}}
		assert.Equal(t, in, FilterEssential(in, TikTok))
	})

	t.Run("netscape format", func(t *testing.T) {
		out := Netscape(FilterEssential(ValidateCookies(raw, now), Instagram))
		lines := strings.Split(strings.TrimSpace(out), "\n")
		assert.Equal(t, "# Netscape HTTP Cookie File", lines[0])
		assert.Equal(t, ".instagram.com\tTRUE\t/\tTRUE\t1700003600\tsessionid\tabc", lines[2])
		assert.Equal(t, ".instagram.com\tTRUE\t/\tFALSE\t0\tcsrftoken\tt\\tk", lines[3])
	})

	t.Run("prepare skips sites without cookie needs", func(t *testing.T) {
		assert.Nil(t, PrepareCookies(Analyze("https://example.com/page"), raw, now))
		assert.Len(t, PrepareCookies(Analyze("https://instagram.com/p/1"), raw, now), 2)
	})

	t.Run("cookie file is private and removable", func(t *testing.T) {
		path, cleanup, err := WriteCookieFile(t.TempDir(), raw[:1])
		require.NoError(t, err)
		info, err := os.Stat(path)
		require.NoError(t, err)
		if info.Mode().Perm()&0o077 != 0 {
			t.Skip("platform does not support private file modes")
		}
		cleanup()
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("no cookies no file", func(t *testing.T) {
		path, cleanup, err := WriteCookieFile(t.TempDir(), nil)
		require.NoError(t, err)
		assert.Empty(t, path)
		cleanup()
	})
}

func TestParseFormats(t *testing.T) {
	out := `[youtube] Extracting URL: https://www.youtube.com/watch?v=abc
[info] Available formats for abc:
ID  EXT   RESOLUTION FPS CH │   FILESIZE   TBR PROTO │ VCODEC          VBR ACODEC      ABR ASR MORE INFO
──────────────────────────────────────────────────────────────────────────────────────────────────────
140 m4a   audio only      2 │    3.27MiB  129k https │ audio only          mp4a.40.2  129k 44k medium, m4a_dash
18  mp4   640x360     30  2 │   10.12MiB  398k https │ avc1.42001E         mp4a.40.2       44k 360p
137 mp4   1920x1080   30    │  104.02MiB 4096k https │ avc1.640028    4096k video only          1080p, mp4_dash, best
`
	formats := ParseFormats(strings.Split(out, "\n"))
	require.Len(t, formats, 3)

	assert.Equal(t, "137", formats[0].ID)
	assert.Equal(t, "video", formats[0].Type)
	assert.Equal(t, "best", formats[0].Quality)

	assert.Equal(t, "18", formats[1].ID)
	assert.Equal(t, "video", formats[1].Type)

	assert.Equal(t, "140", formats[2].ID)
	assert.Equal(t, "audio", formats[2].Type)
	assert.Equal(t, "audio only", formats[2].Resolution)
	assert.Equal(t, "m4a", formats[2].Ext)

	assert.Empty(t, ParseFormats([]string{"ERROR: unsupported URL"}))
}

func TestFormatsFromJSON(t *testing.T) {
	formats, err := FormatsFromJSON([]byte(`{"formats":[{"format_id":"251","ext":"webm","vcodec":"none","format_note":"medium"},{"format_id":22,"ext":"mp4","resolution":"1280x720","vcodec":"avc1"}]}`))
	require.NoError(t, err)
	require.Len(t, formats, 2)
	assert.Equal(t, Format{ID: "251", Ext: "webm", Resolution: "unknown", Note: "medium", Type: "audio", Quality: "standard"}, formats[0])
	assert.Equal(t, "22", formats[1].ID)
	assert.Equal(t, "video", formats[1].Type)

	formats, err = FormatsFromJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "best", formats[0].ID)

	_, err = FormatsFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestErrorInterpretation(t *testing.T) {
	assert.True(t, IsTransient("ERROR: HTTP Error 403: Forbidden"))
	assert.True(t, IsTransient("Connection reset by peer"))
	assert.False(t, IsTransient("ERROR: Unsupported URL: https://example.com"))

	assert.Contains(t, Explain(Instagram, "HTTP Error 403"), "Access denied")
	assert.Equal(t, "This URL format is not supported.", Explain(Generic, "ERROR: Unsupported URL"))
	assert.Equal(t, "generic error: boom", Explain(Generic, "ERROR: boom"))

	assert.Len(t, Suggestions(Facebook, "HTTP Error 403"), 3)
	assert.Equal(t, []string{"Check your internet connection"}, Suggestions(Generic, "connection refused"))
	assert.Empty(t, Suggestions(YouTube, ""))
}
