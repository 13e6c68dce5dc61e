package npil

import (
	"fmt"
	"time"
)

// ModeFlag is the minimum severity a message needs to be logged.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var mode = InfoMode

// Logger provides a way for the application to log messages at different severities.
// Implementations format their arguments analogous to fmt.Printf.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// SetLogMode sets the severity required for a log message to be printed.
// For example, SetLogMode(npil.WarningMode) will log any calls using
// Warningf, Errorf, or Criticalf.  To turn off all logging, use SilentMode.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// LogMode returns the current severity threshold.
func LogMode() ModeFlag {
	return mode
}

func (m ModeFlag) String() string {
	switch m {
	case DebugMode:
		return "debug"
	case InfoMode:
		return "info"
	case WarningMode:
		return "warning"
	case ErrorMode:
		return "error"
	case CriticalMode:
		return "critical"
	case SilentMode:
		return "silent"
	default:
		return fmt.Sprintf("mode %d", uint(m))
	}
}

// ParseLogMode returns the mode for a name like "warning".
func ParseLogMode(s string) (ModeFlag, error) {
	for m := DebugMode; m <= SilentMode; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return InfoMode, fmt.Errorf("unknown log level %q", s)
}

// emit sends a message to l if its severity passes the current mode.
func emit(l Logger, severity ModeFlag, format string, args []interface{}) {
	if mode > severity {
		return
	}
	switch severity {
	case DebugMode:
		l.Debugf(format, args...)
	case InfoMode:
		l.Infof(format, args...)
	case WarningMode:
		l.Warningf(format, args...)
	case ErrorMode:
		l.Errorf(format, args...)
	default:
		l.Criticalf(format, args...)
	}
}

func Debugf(format string, args ...interface{})    { emit(logger, DebugMode, format, args) }
func Infof(format string, args ...interface{})     { emit(logger, InfoMode, format, args) }
func Warningf(format string, args ...interface{})  { emit(logger, WarningMode, format, args) }
func Errorf(format string, args ...interface{})    { emit(logger, ErrorMode, format, args) }
func Criticalf(format string, args ...interface{}) { emit(logger, CriticalMode, format, args) }

// Shutdown closes any log file opened through LogConfig.SetLogger.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog adds elapsed time to logging.
// Example:
//
//	mylog := NewTimeLog()
//	...
//	mylog.Debugf("stuff happened")  // Appends elapsed time from NewTimeLog() to message.
type TimeLog struct {
	logger Logger
	start  time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{logger, time.Now()}
}

func (t TimeLog) emit(severity ModeFlag, format string, args []interface{}) {
	emit(t.logger, severity, format+": %s\n", append(args, time.Since(t.start)))
}

func (t TimeLog) Debugf(format string, args ...interface{})    { t.emit(DebugMode, format, args) }
func (t TimeLog) Infof(format string, args ...interface{})     { t.emit(InfoMode, format, args) }
func (t TimeLog) Warningf(format string, args ...interface{})  { t.emit(WarningMode, format, args) }
func (t TimeLog) Errorf(format string, args ...interface{})    { t.emit(ErrorMode, format, args) }
func (t TimeLog) Criticalf(format string, args ...interface{}) { t.emit(CriticalMode, format, args) }

func (t TimeLog) Shutdown() {
	t.logger.Shutdown()
}
