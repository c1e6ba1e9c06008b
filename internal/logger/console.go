package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
)

// ConsoleLogger writes timestamped, level-filtered, optionally colorized
// lines to a writer. It is safe for concurrent use.
type ConsoleLogger struct {
	writer      io.Writer
	level       Level
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger builds a ConsoleLogger writing to w at the given level.
// Color is auto-enabled when w is a TTY (os.Stdout/os.Stderr) per go-isatty.
func NewConsoleLogger(w io.Writer, level Level) *ConsoleLogger {
	colorOutput := false
	if f, ok := w.(*os.File); ok {
		colorOutput = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ConsoleLogger{writer: w, level: level, colorOutput: colorOutput}
}

var levelColor = map[Level]*color.Color{
	LevelTrace: color.New(color.FgHiBlack),
	LevelDebug: color.New(color.FgCyan),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

func (c *ConsoleLogger) log(lvl Level, msg string, fields []Field) {
	if lvl < c.level {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ts := time.Now().Format("15:04:05")
	tag := runewidth.FillRight(lvl.String(), 5)
	var line string
	if c.colorOutput {
		if col, ok := levelColor[lvl]; ok {
			tag = col.Sprint(tag)
		}
		line = fmt.Sprintf("[%s] %s %s", ts, tag, msg)
	} else {
		line = fmt.Sprintf("[%s] %s %s", ts, runewidth.FillRight(lvl.String(), 5), msg)
	}
	if len(fields) > 0 {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = fmt.Sprintf("%s=%v", f.Key, f.Value)
		}
		line += " " + strings.Join(parts, " ")
	}
	fmt.Fprintln(c.writer, line)
}

func (c *ConsoleLogger) Trace(msg string, fields ...Field) { c.log(LevelTrace, msg, fields) }
func (c *ConsoleLogger) Debug(msg string, fields ...Field) { c.log(LevelDebug, msg, fields) }
func (c *ConsoleLogger) Info(msg string, fields ...Field)  { c.log(LevelInfo, msg, fields) }
func (c *ConsoleLogger) Warn(msg string, fields ...Field)  { c.log(LevelWarn, msg, fields) }
func (c *ConsoleLogger) Error(msg string, fields ...Field) { c.log(LevelError, msg, fields) }
