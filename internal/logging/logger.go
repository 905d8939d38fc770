package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the process-wide zerolog logger before the bot reads its
// config, so config and SSM errors are already structured. The level comes
// from APPROVAL_LOG_LEVEL (debug, warn, error; anything else means info).
// Output is timestamped JSON on stderr for log shippers unless
// APPROVAL_LOG_FORMAT=console asks for the colored developer format.
func Init() {
	switch os.Getenv("APPROVAL_LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if os.Getenv("APPROVAL_LOG_FORMAT") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
