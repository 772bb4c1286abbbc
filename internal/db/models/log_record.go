// Package models - log_record.go defines the LogRecord model for ingested
// application log entries and the severity level enumeration.
package models

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel is the severity of a log record.
type LogLevel string

const (
	LevelDebug    LogLevel = "DEBUG"
	LevelInfo     LogLevel = "INFO"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
)

// ParseLogLevel normalizes a client-supplied level string.
func ParseLogLevel(s string) (LogLevel, error) {
	switch LogLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo:
		return LevelInfo, nil
	case LevelWarning:
		return LevelWarning, nil
	case LevelError:
		return LevelError, nil
	case LevelCritical:
		return LevelCritical, nil
	}
	return "", fmt.Errorf("invalid log level %q", s)
}

// LogRecord represents one immutable ingested log entry. Records are never
// updated or deleted after insertion. The db tags drive sqlx row scanning.
type LogRecord struct {
	ID          string    `db:"id" json:"id"`
	Level       LogLevel  `db:"level" json:"level"`
	Message     string    `db:"message" json:"message"`
	ProcessName string    `db:"process_name" json:"process_name"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
	Module      *string   `db:"module" json:"module,omitempty"`
	Function    *string   `db:"function" json:"function,omitempty"`
	LineNumber  *string   `db:"line_number" json:"line_number,omitempty"`
}
