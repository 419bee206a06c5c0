// Package output provides the printf-style leveled logger and download
// progress rendering used by the leaf packages (downloader, patch, backup)
// whose output is operator-facing rather than structured.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Level controls which messages a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config/env string to a Level, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a small leveled, printf-style logger writing to an io.Writer.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	prefix string
}

// New creates a Logger writing to out at the given level.
func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level}
}

// DefaultLogger writes to stderr at LevelInfo and is used when callers
// omit a Logger.
var DefaultLogger = New(os.Stderr, LevelInfo)

// WithPrefix returns a copy of the logger that prefixes every message,
// useful for tagging output by phase (e.g. "[download]").
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{out: l.out, level: l.level, prefix: prefix}
}

func (l *Logger) log(level Level, tag string, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}
	fmt.Fprintf(l.out, "%s %s\n", tag, msg)
}

// Debug logs a debug-level message.
func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, "[debug]", format, args...) }

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...interface{}) { l.log(LevelInfo, "[info]", format, args...) }

// Warn logs a warn-level message.
func (l *Logger) Warn(format string, args ...interface{}) { l.log(LevelWarn, color.YellowString("[warn]"), format, args...) }

// Error logs an error-level message.
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, color.RedString("[error]"), format, args...) }

// Progress prints a single-line, carriage-return-overwritten download
// progress bar. downloaded and total are in bytes, speed is in bytes per
// second; total <= 0 renders a bare byte counter instead of a bar.
func (l *Logger) Progress(downloaded, total int64, speed float64) {
	if l.level > LevelInfo {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	downloadedMB := float64(downloaded) / (1024 * 1024)
	speedMB := speed / (1024 * 1024)
	cyan := color.New(color.FgCyan)

	if total <= 0 {
		cyan.Fprintf(l.out, "\r  downloaded %.1f MB | %.1f MB/s    ", downloadedMB, speedMB)
		return
	}

	totalMB := float64(total) / (1024 * 1024)
	percent := float64(downloaded) / float64(total) * 100

	const barWidth = 30
	filled := int(percent / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	eta := "?"
	if speed > 0 {
		etaSecs := float64(total-downloaded) / speed
		switch {
		case etaSecs < 60:
			eta = fmt.Sprintf("%.0fs", etaSecs)
		case etaSecs < 3600:
			eta = fmt.Sprintf("%.1fm", etaSecs/60)
		default:
			eta = fmt.Sprintf("%.1fh", etaSecs/3600)
		}
	}

	cyan.Fprintf(l.out, "\r  %s %5.1f%% | %.1f/%.1f MB | %.1f MB/s | eta %s    ",
		bar, percent, downloadedMB, totalMB, speedMB, eta)
}

// ProgressComplete terminates a run of Progress calls by clearing the line
// and moving to a fresh one, sized to the terminal width when out is a
// file descriptor.
func (l *Logger) ProgressComplete() {
	l.mu.Lock()
	defer l.mu.Unlock()

	width := 80
	if f, ok := l.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	fmt.Fprintf(l.out, "\r%s\r\n", strings.Repeat(" ", width))
}
