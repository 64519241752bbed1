// Package wirelog reconstructs the small logging-backend shape used
// throughout the teacher corpus (e.g. server/cborplugin.Client,
// client/cborplugin.incomingConn), which take a *log.Backend and call
// GetLogger(name) to obtain a per-component *logging.Logger. The backend
// package itself (katzenpost/core/log) was not among the retrieved files,
// so this reconstructs its observed contract on top of go-logging.v1.
package wirelog

import (
	"fmt"
	"io"
	"os"

	logging "gopkg.in/op/go-logging.v1"
)

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module}: %{message}`,
)

// Backend owns the go-logging backend configuration for one endpoint and
// mints named sub-loggers for its internal components.
type Backend struct {
	writer io.Writer
	level  logging.Level
}

// NewBackend creates a logging Backend writing at the given level to w.
// A nil w defaults to os.Stderr.
func NewBackend(w io.Writer, level string) (*Backend, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("wirelog: invalid level %q: %w", level, err)
	}
	return &Backend{writer: w, level: lvl}, nil
}

// GetLogger returns a named logger backed by this Backend, mirroring
// core/log.Backend.GetLogger as used by the cborplugin client/server pair.
func (b *Backend) GetLogger(name string) *logging.Logger {
	backend := logging.NewLogBackend(b.writer, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(b.level, name)
	log := logging.MustGetLogger(name)
	log.SetBackend(leveled)
	return log
}

// GetLogWriter returns an io.Writer that logs each line it receives at the
// given level under name, mirroring core/log.Backend.GetLogWriter as used
// by server/cborplugin.Client to proxy a subprocess's stderr into the log.
func (b *Backend) GetLogWriter(name, level string) io.Writer {
	return &lineWriter{log: b.GetLogger(name), level: level}
}

type lineWriter struct {
	log   *logging.Logger
	level string
}

func (l *lineWriter) Write(p []byte) (int, error) {
	switch l.level {
	case "DEBUG":
		l.log.Debug(string(p))
	case "WARNING":
		l.log.Warning(string(p))
	case "ERROR":
		l.log.Error(string(p))
	default:
		l.log.Info(string(p))
	}
	return len(p), nil
}
