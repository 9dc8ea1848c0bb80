package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO ",
	WARN:  "WARN ",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

var journalPriorities = map[Level]journal.Priority{
	DEBUG: journal.PriDebug,
	INFO:  journal.PriInfo,
	WARN:  journal.PriWarning,
	ERROR: journal.PriErr,
	FATAL: journal.PriCrit,
}

type Logger struct {
	mu            sync.RWMutex
	level         Level
	packageLevels map[string]Level
	logger        *log.Logger
	journal       bool
}

// Global logger instance
var defaultLogger *Logger

func init() {
	defaultLogger = New(INFO)
}

// New creates a new logger with the specified level
func New(level Level) *Logger {
	return &Logger{
		level:         level,
		packageLevels: map[string]Level{},
		logger:        log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetLevel sets the global logger level
func SetLevel(level Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = level
}

// SetPackageLevels sets per-package level overrides.
// Keys match the [component] prefix used in log messages (e.g. "mpris", "poller", "api").
func SetPackageLevels(levels map[string]Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	if levels == nil {
		levels = map[string]Level{}
	}
	defaultLogger.packageLevels = levels
}

// UseJournal routes output to the systemd journal when it is reachable.
// It returns false, leaving output on stderr, when no journal socket exists.
func UseJournal(enabled bool) bool {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.journal = enabled && journal.Enabled()
	return defaultLogger.journal
}

// SetOutput redirects the stderr sink.
func SetOutput(w io.Writer) {
	defaultLogger.logger.SetOutput(w)
}

// extractComponent returns the component name from a "[component] ..." message, or "".
func extractComponent(msg string) string {
	if len(msg) < 3 || msg[0] != '[' {
		return ""
	}
	end := strings.IndexByte(msg[1:], ']')
	if end < 0 {
		return ""
	}
	return msg[1 : end+1]
}

// shouldLog checks if a message at this level should be logged,
// applying a package-specific override when the message carries a [component] prefix.
func (l *Logger) shouldLog(level Level, msg string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if pkg := extractComponent(msg); pkg != "" {
		if pkgLevel, ok := l.packageLevels[pkg]; ok {
			return level >= pkgLevel
		}
	}
	return level >= l.level
}

// format creates a formatted message with level prefix
func (l *Logger) format(level Level, msg string) string {
	return fmt.Sprintf("[%s] %s", levelNames[level], msg)
}

func (l *Logger) write(level Level, msg string, args ...interface{}) {
	if level != FATAL && !l.shouldLog(level, msg) {
		return
	}
	formatted := fmt.Sprintf(msg, args...)

	l.mu.RLock()
	toJournal := l.journal
	l.mu.RUnlock()

	if toJournal {
		vars := map[string]string{}
		if pkg := extractComponent(msg); pkg != "" {
			vars["COMPONENT"] = pkg
		}
		if err := journal.Send(formatted, journalPriorities[level], vars); err == nil {
			return
		}
		// fall through to stderr when the journal write fails
	}
	l.logger.Println(l.format(level, formatted))
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) {
	defaultLogger.write(DEBUG, msg, args...)
}

// Info logs an info message
func Info(msg string, args ...interface{}) {
	defaultLogger.write(INFO, msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...interface{}) {
	defaultLogger.write(WARN, msg, args...)
}

// Error logs an error message
func Error(msg string, args ...interface{}) {
	defaultLogger.write(ERROR, msg, args...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, args ...interface{}) {
	defaultLogger.write(FATAL, msg, args...)
	os.Exit(1)
}
