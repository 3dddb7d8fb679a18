package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhdewitt/reflect-server/internal/body"
	"github.com/nhdewitt/reflect-server/internal/routes"
)

const (
	DefaultPort          = 3000
	DefaultHeaderTimeout = 10 * time.Second
	DefaultBodyTimeout   = 30 * time.Second
)

type Config struct {
	Port          int
	Mode          routes.Mode
	HeaderTimeout time.Duration
	BodyTimeout   time.Duration
	MaxBodySize   int64
	LogLevel      string
	LogFormat     string
}

func Default() Config {
	return Config{
		Port:          DefaultPort,
		Mode:          routes.ModeRouted,
		HeaderTimeout: DefaultHeaderTimeout,
		BodyTimeout:   DefaultBodyTimeout,
		MaxBodySize:   body.DefaultMaxSize,
		LogLevel:      zerolog.LevelInfoValue,
		LogFormat:     "json",
	}
}

// Load parses command line args on top of the defaults. Usage and flag
// errors are printed to out, or stderr when out is nil; -help returns an
// error wrapping flag.ErrHelp.
func Load(name string, args []string, out io.Writer) (Config, error) {
	cfg := Default()
	mode := string(cfg.Mode)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	fs.StringVar(&mode, "mode", mode, "route table: reflect, echo, resources or routed")
	fs.DurationVar(&cfg.HeaderTimeout, "header-timeout", cfg.HeaderTimeout, "time allowed to receive the request head (0 disables)")
	fs.DurationVar(&cfg.BodyTimeout, "body-timeout", cfg.BodyTimeout, "idle time allowed between body reads (0 disables)")
	fs.Int64Var(&cfg.MaxBodySize, "max-body", cfg.MaxBodySize, "largest accepted request body in bytes")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	cfg.Mode = routes.Mode(mode)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !slices.Contains(routes.Modes(), c.Mode) {
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.HeaderTimeout < 0 {
		errs = append(errs, errors.New("header-timeout must not be negative"))
	}
	if c.BodyTimeout < 0 {
		errs = append(errs, errors.New("body-timeout must not be negative"))
	}
	if c.MaxBodySize <= 0 {
		errs = append(errs, errors.New("max-body must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log-level: %w", err))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("unknown log-format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Logger builds the root logger writing to w, or stderr when w is nil.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
