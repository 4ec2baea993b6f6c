// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"

	FieldComponent = "component"
	FieldSessionID = "session_id"
)

// Config contains logging configuration.
type Config struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Output  string `mapstructure:"output"`
	NoColor bool   `mapstructure:"no_color"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// New creates a logger writing to the configured output.
func New(cfg Config) zerolog.Logger {
	cfg.ApplyDefaults()
	return NewWithWriter(cfg, outputWriter(cfg.Output))
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	cfg.ApplyDefaults()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var zl zerolog.Logger
	if strings.ToLower(cfg.Format) == FormatConsole {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:         w,
			TimeFormat:  "15:04:05",
			NoColor:     cfg.NoColor,
			FormatLevel: formatLevel(cfg.NoColor),
		})
	} else {
		zl = zerolog.New(w)
	}
	return zl.Level(level).With().Timestamp().Logger()
}

// Component returns a logger tagged with a subsystem name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

func formatLevel(noColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		lvl := strings.ToUpper(fmt.Sprintf("%s", i))
		short, color := "", ""
		switch lvl {
		case "TRACE":
			short, color = "TRC", "\033[90m"
		case "DEBUG":
			short, color = "DBG", "\033[36m"
		case "INFO":
			short, color = "INF", "\033[32m"
		case "WARN":
			short, color = "WRN", "\033[33m"
		case "ERROR":
			short, color = "ERR", "\033[31m"
		case "FATAL":
			short, color = "FTL", "\033[35m"
		default:
			return fmt.Sprintf("[%s]", lvl)
		}
		if noColor {
			return "[" + short + "]"
		}
		return color + "[" + short + "]\033[0m"
	}
}

func outputWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout
	default:
		return os.Stderr
	}
}
