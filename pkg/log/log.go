package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger for dataflow binaries at the given
// level. Inside a Kubernetes pod it writes JSON to stderr for the log
// collector; anywhere else it pretty-prints to stdout.
func New(level zerolog.Level) *zerolog.Logger {
	var output io.Writer
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &logger
}
