// Package notify delivers build outcomes to the user: desktop popups where
// the platform has a notifier, and the daemon log everywhere.
package notify

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

// Kind classifies a notification.
type Kind int

const (
	// Info is used for successful builds.
	Info Kind = iota
	// Error is used for failed builds.
	Error
)

func (k Kind) String() string {
	if k == Error {
		return "error"
	}
	return "info"
}

// Notifier is a best-effort sink. Notify never reports failure to the
// caller; implementations log their own errors.
type Notifier interface {
	Notify(title, body string, kind Kind)
	Close() error
}

// Nop discards notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(string, string, Kind) {}

// Close does nothing.
func (Nop) Close() error { return nil }

// Logger writes notifications to a charmbracelet logger.
type Logger struct {
	logger *log.Logger
	width  int
}

// NewLogger creates a log sink. Bodies are wrapped at width columns; zero
// disables wrapping.
func NewLogger(logger *log.Logger, width int) *Logger {
	if logger == nil {
		logger = log.Default().WithPrefix("notify")
	}
	return &Logger{logger: logger, width: width}
}

// Notify logs title at info or error level with the body attached.
func (l *Logger) Notify(title, body string, kind Kind) {
	if l.width > 0 {
		body = wordwrap.String(body, l.width)
	}
	if kind == Error {
		l.logger.Error(title, "output", body)
		return
	}
	l.logger.Info(title, "output", body)
}

// Close does nothing.
func (l *Logger) Close() error { return nil }

// Multi fans a notification out to several sinks.
type Multi []Notifier

// Notify forwards to every sink.
func (m Multi) Notify(title, body string, kind Kind) {
	for _, n := range m {
		n.Notify(title, body, kind)
	}
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New returns the sink the daemon uses: the log sink wrapping bodies at wrap
// columns, plus desktop popups when desktop is set and the platform
// supports them.
func New(desktop bool, logger *log.Logger, wrap int) Notifier {
	sinks := Multi{NewLogger(logger, wrap)}
	if desktop {
		if d, err := NewDesktop("Watson"); err == nil {
			sinks = append(sinks, d)
		} else if logger != nil {
			logger.Warn("desktop notifications disabled", "err", err)
		}
	}
	return sinks
}

// Summarize shortens build output for a popup: the last maxLines lines,
// each cut to maxWidth columns.
func Summarize(output string, maxLines int, maxWidth uint) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	for i, line := range lines {
		lines[i] = truncate.StringWithTail(line, maxWidth, "…")
	}
	return strings.Join(lines, "\n")
}
