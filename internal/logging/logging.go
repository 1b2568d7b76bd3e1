// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global logger at a human readable console writer in DEV and
// at JSON on stdout everywhere else.
func Setup(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if env == "DEV" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
