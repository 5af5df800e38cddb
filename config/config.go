// mediadl/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	ExtractorBin      string        `mapstructure:"EXTRACTOR_BIN"`
	ExtractorArgs     string        `mapstructure:"EXTRACTOR_ARGS"`
	FFBin             string        `mapstructure:"FF_BIN"`
	DownloadDir       string        `mapstructure:"DOWNLOAD_DIR"`
	OverwriteExisting bool          `mapstructure:"OVERWRITE_EXISTING"`
	RetryAttempts     int           `mapstructure:"RETRY_ATTEMPTS"`
	RetryBackoff      time.Duration `mapstructure:"RETRY_BACKOFF"`
	PredictTimeout    time.Duration `mapstructure:"PREDICT_TIMEOUT"`
	FormatsTimeout    time.Duration `mapstructure:"FORMATS_TIMEOUT"`
	KillGrace         time.Duration `mapstructure:"KILL_GRACE"`
	PollInterval      time.Duration `mapstructure:"POLL_INTERVAL"`
	PollBatch         int           `mapstructure:"POLL_BATCH"`
	MinFreeDisk       int64         `mapstructure:"MIN_FREE_DISK"`
	IntakeEnabled     bool          `mapstructure:"INTAKE_ENABLED"`
	AuthEnable        bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey           string        `mapstructure:"AUTH_KEY"`
	Bind              string        `mapstructure:"BIND"`
	Port              string        `mapstructure:"PORT"`
	AllowedOrigins    string        `mapstructure:"ALLOWED_ORIGINS"`
	HistoryDB         string        `mapstructure:"HISTORY_DB"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	TempDir           string        `mapstructure:"TEMP_DIR"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "Downloads")
	}
	return filepath.Join(home, "Downloads")
}

func Load() (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	vp := viper.New()

	vp.SetDefault("EXTRACTOR_BIN", "yt-dlp")
	vp.SetDefault("EXTRACTOR_ARGS", "")
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("DOWNLOAD_DIR", defaultDownloadDir())
	vp.SetDefault("OVERWRITE_EXISTING", false)
	vp.SetDefault("RETRY_ATTEMPTS", 3)
	vp.SetDefault("RETRY_BACKOFF", "1s")
	vp.SetDefault("PREDICT_TIMEOUT", "30s")
	vp.SetDefault("FORMATS_TIMEOUT", "60s")
	vp.SetDefault("KILL_GRACE", "5s")
	vp.SetDefault("POLL_INTERVAL", "50ms")
	vp.SetDefault("POLL_BATCH", 10)
	vp.SetDefault("MIN_FREE_DISK", "200MB")
	vp.SetDefault("INTAKE_ENABLED", true)
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("BIND", "127.0.0.1")
	vp.SetDefault("PORT", "5000")
	vp.SetDefault("ALLOWED_ORIGINS", "*")
	vp.SetDefault("HISTORY_DB", "mediadl.db")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("TEMP_DIR", "")

	vp.SetConfigName("mediadl_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/mediadl/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("MEDIADL")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges and normalises paths.
func (c *Config) Validate() error {
	if c.ExtractorBin == "" {
		return fmt.Errorf("EXTRACTOR_BIN cannot be empty")
	}
	if c.FFBin == "" {
		return fmt.Errorf("FF_BIN cannot be empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR cannot be empty")
	}
	abs, err := filepath.Abs(c.DownloadDir)
	if err != nil {
		return fmt.Errorf("DOWNLOAD_DIR: %w", err)
	}
	c.DownloadDir = abs
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("RETRY_ATTEMPTS must be >= 0, got %d", c.RetryAttempts)
	}
	if c.PollBatch < 1 {
		return fmt.Errorf("POLL_BATCH must be >= 1, got %d", c.PollBatch)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.KillGrace < 0 {
		return fmt.Errorf("KILL_GRACE must not be negative")
	}
	if c.AuthEnable && c.AuthKey == "" {
		return fmt.Errorf("AUTH_KEY is required when AUTH_ENABLE is set")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// Addr is the listen address of the control plane.
func (c *Config) Addr() string {
	return c.Bind + ":" + c.Port
}
