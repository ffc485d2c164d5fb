package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance. It discards everything until
	// Init is called.
	Logger = zerolog.Nop()
)

// Format selects how log lines are rendered
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Init initializes the global logger writing to stdout
func Init(level string, format Format) {
	InitWithWriter(os.Stdout, level, format)
}

// InitWithWriter initializes the global logger writing to out
func InitWithWriter(out io.Writer, level string, format Format) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Pretty console logging when asked for, or in development
	if format == FormatConsole || os.Getenv("ENV") == "development" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(out).
		With().
		Timestamp().
		Str("service", "vitalwatch").
		Logger()

	Logger.Info().
		Str("level", logLevel.String()).
		Str("format", string(format)).
		Msg("logger initialized")
}

// WithComponent returns a logger with a component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRequestID returns a logger with a request ID field
func WithRequestID(requestID string) zerolog.Logger {
	return Logger.With().Str("request_id", requestID).Logger()
}
