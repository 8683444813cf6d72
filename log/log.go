// Package waLog contains the simple logger interface used across wacore.
package waLog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const timeFormat = "15:04:05.000"

const (
	DebugLevel = "DEBUG"
	InfoLevel  = "INFO"
	WarnLevel  = "WARN"
	ErrorLevel = "ERROR"
)

// Logger is a simple logger interface that can have sub-loggers for specific modules.
type Logger interface {
	Errorf(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Debugf(msg string, args ...interface{})
	Sub(module string) Logger
}

type noopLogger struct{}

func (noopLogger) Errorf(string, ...interface{}) {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Debugf(string, ...interface{}) {}
func (n noopLogger) Sub(string) Logger           { return n }

// Noop silently drops everything logged to it.
var Noop Logger = noopLogger{}

var levelToInt = map[string]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
}

type stdoutLogger struct {
	mod string
	min int
	mu  *sync.Mutex
}

// Stdout returns a Logger that writes timestamped, module-tagged lines to stdout.
func Stdout(module, minLevel string) Logger {
	return &stdoutLogger{mod: module, min: levelToInt[strings.ToUpper(minLevel)], mu: &sync.Mutex{}}
}

func (s *stdoutLogger) outputf(level, msg string, args ...interface{}) {
	if levelToInt[level] < s.min {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(os.Stdout, "%s [%s %s] %s\n", time.Now().Format(timeFormat), s.mod, level, fmt.Sprintf(msg, args...))
}

func (s *stdoutLogger) Errorf(msg string, args ...interface{}) { s.outputf(ErrorLevel, msg, args...) }
func (s *stdoutLogger) Warnf(msg string, args ...interface{})  { s.outputf(WarnLevel, msg, args...) }
func (s *stdoutLogger) Infof(msg string, args ...interface{})  { s.outputf(InfoLevel, msg, args...) }
func (s *stdoutLogger) Debugf(msg string, args ...interface{}) { s.outputf(DebugLevel, msg, args...) }

func (s *stdoutLogger) Sub(module string) Logger {
	mod := s.mod
	if mod != "" && module != "" {
		mod += "/"
	}
	mod += module
	return &stdoutLogger{mod: mod, min: s.min, mu: s.mu}
}
