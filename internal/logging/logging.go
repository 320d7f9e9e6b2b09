// Package logging provides the level-gated stderr logger used throughout
// the agent. Every line carries a wall-clock timestamp, a level tag, and the
// "init:" prefix, matching the original hyperfleet init's log_msg.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"
)

type Level int32

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var tags = map[Level]string{
	Debug: "[DEBUG]",
	Info:  "[INFO] ",
	Warn:  "[WARN] ",
	Error: "[ERROR]",
}

// Logger serializes writes to an underlying *log.Logger (log.Logger already
// holds its own mutex around each Output call, which is what keeps
// concurrent handler goroutines, the reaper, and the listener from
// interleaving partial lines on stderr).
type Logger struct {
	out       *log.Logger
	threshold atomic.Int32
}

// New returns a Logger writing to w at the given minimum level.
func New(w *os.File, threshold Level) *Logger {
	l := &Logger{out: log.New(w, "", 0)}
	l.threshold.Store(int32(threshold))
	return l
}

// SetThreshold changes the minimum level atomically; safe to call
// concurrently with Debug/Info/Warn/Error.
func (l *Logger) SetThreshold(level Level) {
	l.threshold.Store(int32(level))
}

func (l *Logger) log(level Level, format string, args ...any) {
	if int32(level) < l.threshold.Load() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("%s %s init: %s", time.Now().Format("15:04:05"), tags[level], msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, format, args...) }
