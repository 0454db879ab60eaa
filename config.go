package bytewax

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vishalsingh17/bytewax/recovery"
)

// Option is a function that configures an App
type Option func(*App)

// WithWorkers sets the number of worker goroutines driving the dataflow
var WithWorkers = func(n int) Option {
	return func(s *App) {
		s.numWorkers = n
	}
}

// WithLog sets the logger for the application
var WithLog = func(log *slog.Logger) Option {
	return func(s *App) {
		s.log = log
	}
}

// WithRecoveryStore enables snapshot persistence and resume through store.
// The store is shared by all workers; closing it stays with the caller.
var WithRecoveryStore = func(store recovery.Store) Option {
	return func(s *App) {
		s.store = store
	}
}

// WithEpochConfig sets the epoch schedule shared by all inputs
var WithEpochConfig = func(cfg EpochConfig) Option {
	return func(s *App) {
		s.epochCfg = cfg
	}
}

// DefaultEpochLength is the epoch schedule used when no EpochConfig is
// supplied.
const DefaultEpochLength = 10 * time.Second

// EpochConfig decides how long inputs hold an epoch open.
type EpochConfig interface {
	epochLength() (time.Duration, error)
}

// PeriodicEpoch closes epochs on a fixed wall-clock period. A zero
// length is allowed and closes an epoch on every scheduler pass, which
// is mostly useful in tests; negative lengths are a configuration error.
func PeriodicEpoch(length time.Duration) EpochConfig {
	return periodicEpoch{length: length}
}

type periodicEpoch struct {
	length time.Duration
}

func (p periodicEpoch) epochLength() (time.Duration, error) {
	if p.length < 0 {
		return 0, fmt.Errorf("epoch length must not be negative, got %s", p.length)
	}
	return p.length, nil
}

// NullWriter is a writer that discards all data
type NullWriter struct{}

func (NullWriter) Write([]byte) (int, error) { return 0, nil }

// NullLogger creates a logger that discards all output
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(NullWriter{}, nil))
}
