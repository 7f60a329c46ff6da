// Package tracelog provides the optional debug sink used by the cache
// and bus while they service requests. It has no effect on simulation
// state or control flow; it only records what happened.
package tracelog

import (
	"fmt"
	"log"
	"os"
)

// Sink receives one line of debug text per notable event. Printf
// returns no error, so tracing can never fail a simulation.
type Sink interface {
	Printf(format string, args ...any)
}

// noop discards everything written to it. Used by default and by
// tests, so that enabling debug tracing during development never
// changes statistics or control flow.
type noop struct{}

// Noop returns a Sink that discards all output.
func Noop() Sink { return noop{} }

func (noop) Printf(string, ...any) {}

// fileSink writes timestamped lines to an underlying *log.Logger.
type fileSink struct {
	logger *log.Logger
	file   *os.File
}

// OpenTruncate creates (or truncates) path and returns a Sink that
// writes to it, prefixed with prefix. The cache layer opens its sink
// this way so each run starts from an empty file.
func OpenTruncate(path, prefix string) (Sink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tracelog: open %s: %w", path, err)
	}
	return newFileSink(f, prefix), nil
}

// OpenAppend opens (creating if needed) path in append mode. The bus
// opens its sink this way so it never clobbers lines the caches
// already wrote to the same file.
func OpenAppend(path, prefix string) (Sink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tracelog: open %s: %w", path, err)
	}
	return newFileSink(f, prefix), nil
}

func newFileSink(f *os.File, prefix string) *fileSink {
	return &fileSink{
		logger: log.New(f, prefix, log.Lmicroseconds),
		file:   f,
	}
}

func (s *fileSink) Printf(format string, args ...any) {
	s.logger.Printf(format, args...)
}

// Close releases the underlying file, if the Sink has one. Calling it
// on a no-op sink does nothing.
func Close(s Sink) error {
	if c, ok := s.(*fileSink); ok {
		return c.file.Close()
	}
	return nil
}
