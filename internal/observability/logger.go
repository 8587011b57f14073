package observability

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	loggerOnce   sync.Once
	globalLogger zerolog.Logger
)

// parseLevel maps a level name to a zerolog level, falling back to info for
// empty or unknown names
func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// InitLogger configures the process-wide structured logger. The first call
// wins; later calls are no-ops, including the implicit default from
// GetLogger. Every line carries a service tag so this process can be told
// apart in shared log streams.
func InitLogger(level string, pretty bool) {
	loggerOnce.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(level))

		var out io.Writer = os.Stdout
		if pretty {
			// Human-readable console output instead of JSON
			out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		globalLogger = zerolog.New(out).With().
			Timestamp().
			Str("service", "speech-flow").
			Logger()
		log.Logger = globalLogger
	})
}

// GetLogger returns the process-wide logger, initializing it at info level
// with JSON output when InitLogger has not run
func GetLogger() zerolog.Logger {
	InitLogger("info", false)
	return globalLogger
}

// WithComponent creates a logger tagged with a component name
func WithComponent(component string) zerolog.Logger {
	return GetLogger().With().Str("component", component).Logger()
}

// WithSessionID creates a logger tagged with a session ID
func WithSessionID(sessionID string) zerolog.Logger {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	return GetLogger().With().Str("session_id", sessionID).Logger()
}

// NewSessionID generates a new session ID
func NewSessionID() string {
	return uuid.New().String()
}
