package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends JSON-lines log entries to a timestamped run file under
// logDir, maintaining a latest.log symlink to the current run, following the
// teacher's per-run log file convention.
type FileLogger struct {
	level   Level
	file    *os.File
	runPath string
	mu      sync.Mutex
}

// NewFileLogger creates logDir if needed, opens a new run-<timestamp>.log
// file, and refreshes the latest.log symlink to point at it.
func NewFileLogger(logDir string, level Level) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	runPath := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(runPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		os.Remove(symlinkPath)
	}
	_ = os.Symlink(filepath.Base(runPath), symlinkPath)

	return &FileLogger{level: level, file: f, runPath: runPath}, nil
}

// Close flushes and closes the underlying run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.file.Close()
}

type fileLogLine struct {
	Time   time.Time      `json:"time"`
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (fl *FileLogger) log(lvl Level, msg string, fields []Field) {
	if lvl < fl.level {
		return
	}
	line := fileLogLine{Time: time.Now(), Level: lvl.String(), Msg: msg}
	if len(fields) > 0 {
		line.Fields = make(map[string]any, len(fields))
		for _, f := range fields {
			line.Fields[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(line)
	if err != nil {
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.file.Write(data)
	fl.file.Write([]byte("\n"))
}

func (fl *FileLogger) Trace(msg string, fields ...Field) { fl.log(LevelTrace, msg, fields) }
func (fl *FileLogger) Debug(msg string, fields ...Field) { fl.log(LevelDebug, msg, fields) }
func (fl *FileLogger) Info(msg string, fields ...Field)  { fl.log(LevelInfo, msg, fields) }
func (fl *FileLogger) Warn(msg string, fields ...Field)  { fl.log(LevelWarn, msg, fields) }
func (fl *FileLogger) Error(msg string, fields ...Field) { fl.log(LevelError, msg, fields) }
