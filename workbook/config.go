package workbook

import "log/slog"

// Config configures a Reader.
type Config struct {
	// MaxFileSize is the largest accepted input (default: 32 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 32 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
