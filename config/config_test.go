// mediadl/config/config_test.go
package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediadl/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		t.Setenv("MEDIADL_PORT", "")
		t.Setenv("MEDIADL_RETRY_ATTEMPTS", "")
		t.Setenv("MEDIADL_KILL_GRACE", "")
		t.Setenv("MEDIADL_MIN_FREE_DISK", "")
		t.Setenv("MEDIADL_AUTH_ENABLE", "")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "5000", cfg.Port)
		assert.Equal(t, "127.0.0.1", cfg.Bind)
		assert.Equal(t, "yt-dlp", cfg.ExtractorBin)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, 3, cfg.RetryAttempts)
		assert.Equal(t, 5*time.Second, cfg.KillGrace)
		assert.Equal(t, 30*time.Second, cfg.PredictTimeout)
		assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, 10, cfg.PollBatch)
		assert.Equal(t, int64(200*1024*1024), cfg.MinFreeDisk)
		assert.False(t, cfg.OverwriteExisting)
		assert.True(t, cfg.IntakeEnabled)
		assert.True(t, len(cfg.DownloadDir) > 0)
		assert.Equal(t, "127.0.0.1:5000", cfg.Addr())
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("MEDIADL_PORT", "9999")
		t.Setenv("MEDIADL_RETRY_ATTEMPTS", "5")
		t.Setenv("MEDIADL_KILL_GRACE", "250ms")
		t.Setenv("MEDIADL_MIN_FREE_DISK", "1GB")
		t.Setenv("MEDIADL_OVERWRITE_EXISTING", "true")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 5, cfg.RetryAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.KillGrace)
		assert.Equal(t, int64(1024*1024*1024), cfg.MinFreeDisk)
		assert.True(t, cfg.OverwriteExisting)
	})

	t.Run("rejects invalid log level", func(t *testing.T) {
		t.Setenv("MEDIADL_LOG_LEVEL", "verbose")
		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("auth requires a key", func(t *testing.T) {
		t.Setenv("MEDIADL_AUTH_ENABLE", "true")
		t.Setenv("MEDIADL_AUTH_KEY", "")
		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AUTH_KEY")
	})
}

func testConfig() *config.Config {
	return &config.Config{
		DownloadDir:       "/tmp/downloads",
		OverwriteExisting: false,
		RetryAttempts:     3,
		IntakeEnabled:     true,
	}
}

func TestSettings(t *testing.T) {
	t.Run("seeded from config", func(t *testing.T) {
		s := config.NewSettings(testConfig())
		assert.Equal(t, "/tmp/downloads", s.DownloadDir())
		assert.False(t, s.OverwriteExisting())
		assert.Equal(t, 3, s.RetryAttempts())
		assert.True(t, s.IntakeEnabled())
		assert.True(t, s.UseRetries())
	})

	t.Run("set validates types", func(t *testing.T) {
		s := config.NewSettings(testConfig())

		require.NoError(t, s.Set(config.KeyOverwriteExisting, true))
		assert.True(t, s.OverwriteExisting())

		require.NoError(t, s.Set(config.KeyRetryAttempts, float64(2)))
		assert.Equal(t, 2, s.RetryAttempts())

		assert.Error(t, s.Set(config.KeyRetryAttempts, 1.5))
		assert.Error(t, s.Set(config.KeyRetryAttempts, -1))
		assert.Error(t, s.Set(config.KeyIntakeEnabled, "yes"))
		assert.Error(t, s.Set(config.KeyDownloadDir, ""))
		assert.Error(t, s.Set("no_such_key", 1))
	})

	t.Run("download directory is made absolute", func(t *testing.T) {
		t.Chdir(t.TempDir())
		wd, err := os.Getwd()
		require.NoError(t, err)

		s := config.NewSettings(testConfig())
		require.NoError(t, s.Set(config.KeyDownloadDir, "media"))
		assert.Equal(t, filepath.Join(wd, "media"), s.DownloadDir())
		assert.True(t, filepath.IsAbs(s.DownloadDir()))
	})

	t.Run("concurrent access", func(t *testing.T) {
		s := config.NewSettings(testConfig())
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_ = s.Set(config.KeyOverwriteExisting, i%2 == 0)
			}(i)
			go func() {
				defer wg.Done()
				_ = s.OverwriteExisting()
				_ = s.All()
			}()
		}
		wg.Wait()
	})
}
