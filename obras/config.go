package obras

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/obras/ingest"
	"github.com/hazyhaar/obras/internal/dropbox"
	"github.com/hazyhaar/obras/recstore"
	"github.com/hazyhaar/obras/roster"
)

// Config holds the full obras configuration.
type Config struct {
	DataDir       string `yaml:"data_dir"`
	CacheFile     string `yaml:"cache_file"`
	HistoryFile   string `yaml:"history_file"`
	CompletedFile string `yaml:"completed_file"`
	RunlogDB      string `yaml:"runlog_db"`

	HistoryDays int `yaml:"history_days"`
	MaxFileMB   int `yaml:"max_file_mb"`

	Teams []string      `yaml:"teams"`
	Bases []roster.Base `yaml:"bases"`

	RequiredColumns RequiredColumns `yaml:"required_columns"`

	Dropbox DropboxConfig `yaml:"dropbox"`
	Sync    SyncConfig    `yaml:"sync"`
	Watch   WatchConfig   `yaml:"watch"`

	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// RequiredColumns are the header labels that identify the header row of
// each sheet kind.
type RequiredColumns struct {
	Schedule  []string `yaml:"schedule"`
	Completed []string `yaml:"completed"`
}

// DropboxConfig holds remote workbook credentials. Secrets are normally
// supplied through the environment.
type DropboxConfig struct {
	Path         string `yaml:"path"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	AppKey       string `yaml:"app_key"`
	AppSecret    string `yaml:"app_secret"`
}

// SyncConfig drives the periodic remote sync.
type SyncConfig struct {
	// Schedule is a cron spec or descriptor ("@every 30m"). Empty disables it.
	Schedule string `yaml:"schedule"`
	// Force re-imports even when the remote workbook is unchanged.
	Force bool `yaml:"force"`
}

// WatchConfig drives the local file watcher.
type WatchConfig struct {
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns the defaults: the three Maranhão bases, the tracked
// teams and files under ./data.
func DefaultConfig() *Config {
	return &Config{
		DataDir:         "data",
		CacheFile:       "programacao_cache.json",
		HistoryFile:     "programacao_historico.json",
		CompletedFile:   "concluidas_cache.json",
		RunlogDB:        "obras.db",
		HistoryDays:     recstore.DefaultHorizonDays,
		MaxFileMB:       32,
		Teams:           append([]string(nil), roster.DefaultTeams...),
		Bases:           append([]roster.Base(nil), roster.DefaultBases...),
		RequiredColumns: defaultRequiredColumns(),
		Dropbox:         DropboxConfig{Path: dropbox.DefaultPath},
		Sync:            SyncConfig{Schedule: "@every 30m"},
		Watch:           WatchConfig{Interval: 2 * time.Second, Debounce: 5 * time.Second},
	}
}

func defaultRequiredColumns() RequiredColumns {
	return RequiredColumns{
		Schedule:  slices.Clone(ingest.ScheduleSchema.Required),
		Completed: slices.Clone(ingest.CompletedSchema.Required),
	}
}

// LoadConfig reads a YAML file over the defaults, then applies environment
// overrides. An empty path uses defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides secrets and locations from the environment.
func (c *Config) ApplyEnv() {
	c.DataDir = getEnv("OBRAS_DATA_DIR", c.DataDir)
	c.Dropbox.AccessToken = getEnv("DROPBOX_ACCESS_TOKEN", c.Dropbox.AccessToken)
	c.Dropbox.RefreshToken = getEnv("DROPBOX_REFRESH_TOKEN", c.Dropbox.RefreshToken)
	c.Dropbox.AppKey = getEnv("DROPBOX_APP_KEY", c.Dropbox.AppKey)
	c.Dropbox.AppSecret = getEnv("DROPBOX_APP_SECRET", c.Dropbox.AppSecret)
	c.Dropbox.Path = getEnv("DROPBOX_CONTROLE_PATH", c.Dropbox.Path)
	c.WebhookURL = getEnv("PENDENTES_WEBHOOK_URL", c.WebhookURL)
}

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	for name, v := range map[string]string{
		"cache_file":     c.CacheFile,
		"history_file":   c.HistoryFile,
		"completed_file": c.CompletedFile,
		"runlog_db":      c.RunlogDB,
	} {
		if v == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.CacheFile == c.HistoryFile {
		return fmt.Errorf("cache_file and history_file must differ")
	}
	if c.HistoryDays < 0 {
		return fmt.Errorf("history_days must be >= 0")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if len(c.Teams) == 0 {
		return fmt.Errorf("at least one team is required")
	}
	for i, b := range c.Bases {
		if b.Code == "" || b.Prefix == "" {
			return fmt.Errorf("bases[%d]: code and prefix are required", i)
		}
	}
	for kind, labels := range map[string][]string{
		"schedule":  c.RequiredColumns.Schedule,
		"completed": c.RequiredColumns.Completed,
	} {
		for _, l := range labels {
			if strings.TrimSpace(l) == "" {
				return fmt.Errorf("required_columns.%s: blank label", kind)
			}
		}
	}
	if c.Watch.Path != "" && c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be > 0")
	}
	return nil
}

// Path resolves a configured file name against DataDir.
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// MaxFileBytes returns the workbook size limit in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }

// Roster builds the team roster from the configuration.
func (c *Config) Roster() *roster.Roster {
	bases := make([]roster.Base, 0, len(c.Bases))
	for _, b := range c.Bases {
		b.Code, b.Prefix = strings.ToUpper(b.Code), strings.ToUpper(b.Prefix)
		bases = append(bases, b)
	}
	return roster.New(c.Teams, bases)
}

// DropboxClientConfig maps the remote settings onto the client config.
func (c *Config) DropboxClientConfig() dropbox.Config {
	return dropbox.Config{
		AccessToken:  c.Dropbox.AccessToken,
		RefreshToken: c.Dropbox.RefreshToken,
		AppKey:       c.Dropbox.AppKey,
		AppSecret:    c.Dropbox.AppSecret,
		MaxBytes:     c.MaxFileBytes(),
	}
}
