package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar names the environment variable that controls the log level.
const LevelEnvVar = "CREATE_LOG_LEVEL"

// Init initializes the global logger for interactive use.
// CREATE_LOG_LEVEL controls the log level: debug, info, warn, error (default: info)
func Init() {
	setLevel(os.Getenv(LevelEnvVar))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// InitJSON initializes the global logger with plain JSON output on stdout,
// which is what CloudWatch expects from a Lambda.
func InitJSON() {
	setLevel(os.Getenv(LevelEnvVar))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
