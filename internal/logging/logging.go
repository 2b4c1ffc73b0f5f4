// Package logging provides structured logging for HexDrop. Output is JSON
// in production and plain text in development, selected via environment.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Logger writes structured log entries to a single output.
type Logger struct {
	output     io.Writer
	minLevel   Level
	enableJSON bool
}

type entry struct {
	Level   Level          `json:"level"`
	Time    string         `json:"time"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Default is the process-wide logger, configured from the environment
// at startup.
var Default *Logger

func init() {
	enableJSON := os.Getenv("HEXDROP_LOG_FORMAT") == "json"
	if os.Getenv("HEXDROP_ENV") == "production" {
		enableJSON = true
	}

	Default = &Logger{
		output:     os.Stdout,
		minLevel:   levelFromEnv(),
		enableJSON: enableJSON,
	}
}

// New creates a logger writing to w. Used by tests to capture output.
func New(w io.Writer, minLevel Level, enableJSON bool) *Logger {
	return &Logger{output: w, minLevel: minLevel, enableJSON: enableJSON}
}

func levelFromEnv() Level {
	switch os.Getenv("HEXDROP_LOG_LEVEL") {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) shouldLog(level Level) bool {
	ranks := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	return ranks[level] >= ranks[l.minLevel]
}

func (l *Logger) log(level Level, msg string, fields map[string]any, err error) {
	if !l.shouldLog(level) {
		return
	}

	e := entry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
	}
	if err != nil {
		e.Error = err.Error()
	}

	if l.enableJSON {
		data, _ := json.Marshal(e)
		fmt.Fprintln(l.output, string(data))
		return
	}

	fmt.Fprintf(l.output, "[%s] %s %s", e.Level, e.Time, e.Message)
	for k, v := range e.Fields {
		fmt.Fprintf(l.output, " %s=%v", k, v)
	}
	if e.Error != "" {
		fmt.Fprintf(l.output, " error=%s", e.Error)
	}
	fmt.Fprintln(l.output)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields map[string]any) {
	l.log(LevelDebug, msg, fields, nil)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields map[string]any) {
	l.log(LevelInfo, msg, fields, nil)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields map[string]any) {
	l.log(LevelWarn, msg, fields, nil)
}

// Error logs an error message with its cause.
func (l *Logger) Error(msg string, fields map[string]any, err error) {
	l.log(LevelError, msg, fields, err)
}
