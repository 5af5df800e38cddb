package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
)

// Runtime setting keys.
const (
	KeyIntakeEnabled     = "browser_monitor_enabled"
	KeyDownloadDir       = "download_save_directory"
	KeyOverwriteExisting = "overwrite_existing_file"
	KeyRetryAttempts     = "retry_attempts"
	KeyUseRetries        = "use_fallback_methods"
	KeyUseCookies        = "use_cookies_smartly"
)

// Settings is the mutable runtime settings store shared by the HTTP layer and
// every job worker.
type Settings struct {
	mu     sync.RWMutex
	values map[string]any
	logger *slog.Logger
}

// NewSettings seeds the store from the static configuration.
func NewSettings(cfg *Config) *Settings {
	return &Settings{
		values: map[string]any{
			KeyIntakeEnabled:     cfg.IntakeEnabled,
			KeyDownloadDir:       cfg.DownloadDir,
			KeyOverwriteExisting: cfg.OverwriteExisting,
			KeyRetryAttempts:     cfg.RetryAttempts,
			KeyUseRetries:        true,
			KeyUseCookies:        true,
		},
		logger: slog.Default(),
	}
}

// Get returns the raw value for key.
func (s *Settings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key after checking it has the type the key expects.
func (s *Settings) Set(key string, value any) error {
	switch key {
	case KeyIntakeEnabled, KeyOverwriteExisting, KeyUseRetries, KeyUseCookies:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("setting %q expects a bool, got %T", key, value)
		}
	case KeyDownloadDir:
		dir, ok := value.(string)
		if !ok || dir == "" {
			return fmt.Errorf("setting %q expects a non-empty string", key)
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("setting %q: %w", key, err)
		}
		value = abs
	case KeyRetryAttempts:
		n, err := toInt(value)
		if err != nil || n < 0 {
			return fmt.Errorf("setting %q expects a non-negative integer", key)
		}
		value = n
	default:
		return fmt.Errorf("unknown setting %q", key)
	}

	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	s.logger.Info("Setting updated", "key", key, "value", value)
	return nil
}

// All returns a copy of every setting.
func (s *Settings) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Settings) DownloadDir() string { return s.str(KeyDownloadDir) }
func (s *Settings) OverwriteExisting() bool { return s.flag(KeyOverwriteExisting) }
func (s *Settings) IntakeEnabled() bool { return s.flag(KeyIntakeEnabled) }
func (s *Settings) UseRetries() bool { return s.flag(KeyUseRetries) }
func (s *Settings) UseCookies() bool { return s.flag(KeyUseCookies) }

func (s *Settings) RetryAttempts() int {
	v, _ := s.Get(KeyRetryAttempts)
	n, _ := v.(int)
	return n
}

func (s *Settings) str(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

func (s *Settings) flag(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// toInt accepts the numeric shapes a JSON decoder or caller may hand us.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
