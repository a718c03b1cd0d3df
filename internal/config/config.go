package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the subscription
// endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Server is the WebUntis API hostname.
	Server string `yaml:"server" json:"server"`

	// School is the school identifier, used only for the JSON-RPC logout.
	School string `yaml:"school,omitempty" json:"school,omitempty"`

	// Timezone is the IANA zone events are localized into (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeeksAhead is the look-ahead window for timetable fetches.
	WeeksAhead int `yaml:"weeks_ahead" json:"weeks_ahead"`

	// CalendarPath / ExamCalendarPath are the output artifact paths.
	CalendarPath     string `yaml:"calendar_path" json:"calendar_path"`
	ExamCalendarPath string `yaml:"exam_calendar_path" json:"exam_calendar_path"`

	// SessionPath is the session bundle JSON deposited by the external
	// SSO login flow.
	SessionPath string `yaml:"session_path" json:"session_path"`

	// WebhookURL, if set, receives change notifications.
	WebhookURL string `yaml:"webhook_url,omitempty" json:"webhook_url,omitempty"`

	// RefreshCron is a cron-style schedule string (e.g. "*/30 * * * *")
	// used for periodic syncs when not running with -once.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Listen, if set, enables the HTTP server that exposes the generated
	// calendars for subscription.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// LogLevel controls logger verbosity (DEBUG/INFO/WARN/ERROR).
	LogLevel string `yaml:"log_level,omitempty" json:"log_level,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:           "peleus.webuntis.com",
		Timezone:         "Europe/Berlin",
		WeeksAhead:       4,
		CalendarPath:     "webuntis_calendar.ics",
		ExamCalendarPath: "webuntis_exams.ics",
		SessionPath:      "webuntis_session.json",
		RefreshCron:      "*/30 * * * *",
		LogLevel:         "INFO",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Server == "" {
		c.Server = "peleus.webuntis.com"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.WeeksAhead <= 0 {
		c.WeeksAhead = 4
	}
	if c.CalendarPath == "" {
		c.CalendarPath = "webuntis_calendar.ics"
	}
	if c.ExamCalendarPath == "" {
		c.ExamCalendarPath = "webuntis_exams.ics"
	}
	if c.SessionPath == "" {
		c.SessionPath = "webuntis_session.json"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".untiscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
