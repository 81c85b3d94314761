// Package logging configures zerolog for reqsync.
//
// Log lines follow the Cloud Logging structured log layout: the level is
// written as an upper-case "severity", the text as "message" and the time as
// an RFC 3339 "timestamp". On GCP the logging agent forwards stdout lines in
// this shape with the right severity. Every line passes through a
// security.LogSanitizer before it reaches any sink.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/andywolf/reqsync/internal/security"
)

// Output formats
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ComponentField is the field name used by Component.
const ComponentField = "component"

func init() {
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "severity"
	zerolog.MessageFieldName = "message"
	zerolog.ErrorFieldName = "error"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true
	zerolog.LevelFieldMarshalFunc = Severity
}

// Severity maps a zerolog level to a Cloud Logging severity name.
func Severity(l zerolog.Level) string {
	switch l {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return "DEBUG"
	case zerolog.InfoLevel:
		return "INFO"
	case zerolog.WarnLevel:
		return "WARNING"
	case zerolog.ErrorLevel:
		return "ERROR"
	case zerolog.FatalLevel:
		return "CRITICAL"
	case zerolog.PanicLevel:
		return "ALERT"
	default:
		return "DEFAULT"
	}
}

// FileOptions configures an optional rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options configures New.
type Options struct {
	Level  string
	Format string
	File   FileOptions
}

// ParseLevel parses a level name such as "debug" or "WARN". An empty name
// means info.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// SetLevel changes the process-wide log level. It is safe to call while
// loggers are in use, which lets a config reload adjust verbosity.
func SetLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// New builds the root logger writing to out, plus the rotating file when
// configured. The file always receives JSON. The returned closer releases
// the file and must be called on shutdown.
func New(opts Options, out io.Writer, sanitizer *security.LogSanitizer) (zerolog.Logger, io.Closer, error) {
	if err := SetLevel(opts.Level); err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var console io.Writer
	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
		console = out
	case FormatConsole:
		console = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			FormatLevel: func(i interface{}) string {
				s, _ := i.(string)
				return fmt.Sprintf("%-7s", s)
			},
		}
	default:
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log format %q (want %s or %s)", opts.Format, FormatJSON, FormatConsole)
	}

	var closer io.Closer = nopCloser{}
	writer := console
	if opts.File.Path != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
		}
		closer = file
		writer = zerolog.MultiLevelWriter(console, file)
	}

	if sanitizer == nil {
		sanitizer = security.NewLogSanitizer()
	}

	logger := zerolog.New(sanitizer.Writer(writer)).With().Timestamp().Logger()
	return logger, closer, nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str(ComponentField, name).Logger()
}

// StdLogger adapts logger for APIs that take a *log.Logger, such as
// http.Server.ErrorLog. Lines are written at error severity.
func StdLogger(logger zerolog.Logger) *log.Logger {
	return log.New(stdWriter{logger: logger}, "", 0)
}

type stdWriter struct {
	logger zerolog.Logger
}

func (w stdWriter) Write(p []byte) (int, error) {
	w.logger.Error().Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
