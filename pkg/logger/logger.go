// Package logger builds the zerolog logger used across the server and
// the sync client.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const permission = 0664

// Build configures a logger sink before Make assembles it.
type Build struct {
	writer io.Writer
	path   string
	level  zerolog.Level
}

func New() *Build {
	return &Build{writer: os.Stdout, level: zerolog.InfoLevel}
}

// FromPath appends to a log file instead of stdout.
func (b *Build) FromPath(path string) *Build {
	b.path = path
	return b
}

// FromBuffer writes to an arbitrary writer, used by tests.
func (b *Build) FromBuffer(w io.Writer) *Build {
	b.writer = w
	return b
}

func (b *Build) Level(level zerolog.Level) *Build {
	b.level = level
	return b
}

// Make assembles the logger. File sinks are wrapped in a SyncWriter so
// concurrent connection goroutines can share it.
func (b *Build) Make() (zerolog.Logger, error) {
	w := b.writer
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return zerolog.Nop(), err
		}
		w = zerolog.SyncWriter(f)
	}
	return zerolog.New(w).Level(b.level).With().Timestamp().Logger(), nil
}
