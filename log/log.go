// Package log writes the application's diagnostics through logrus to a daily file in the logs
// directory. Nothing is written unless the logs.write setting is on.
package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/key"
	"github.com/anisan-cli/reelplay/where"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	logger  *logrus.Logger
	discard = newLogger(io.Discard)
	enabled atomic.Bool
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	return l
}

// Setup opens today's log file and applies the configured format and level.
func Setup() error {
	if !viper.GetBool(key.LogsWrite) {
		enabled.Store(false)
		return nil
	}

	dir := where.Logs()
	if dir == "" {
		return errors.New("log directory path is empty")
	}

	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	f, err := filesystem.API().OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	l := newLogger(f)
	if viper.GetBool(key.LogsJson) {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(viper.GetString(key.LogsLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	logger = l
	enabled.Store(true)
	return nil
}

// WithFields returns an entry carrying structured fields. While logging is disabled the entry
// writes nowhere.
func WithFields(fields map[string]any) *logrus.Entry {
	return current().WithFields(fields)
}

// Component returns an entry tagged with the name of the playback component emitting it.
func Component(name string) *logrus.Entry {
	return current().WithField("component", name)
}

func current() *logrus.Logger {
	if !enabled.Load() {
		return discard
	}
	return logger
}

func Error(args ...any) {
	current().Error(args...)
}

func Errorf(format string, args ...any) {
	current().Errorf(format, args...)
}

func Warnf(format string, args ...any) {
	current().Warnf(format, args...)
}

func Infof(format string, args ...any) {
	current().Infof(format, args...)
}

func Debugf(format string, args ...any) {
	current().Debugf(format, args...)
}

func Tracef(format string, args ...any) {
	current().Tracef(format, args...)
}
