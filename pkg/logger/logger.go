// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	FormatSimple  = "simple"
	FormatVerbose = "verbose"
)

// modulePrefix identifies records logged by this module or the forge
// command. Records from other packages are dropped unless the level is debug.
const modulePrefix = "github.com/kadirpekel/forge"

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// ParseLevel converts debug, info, warn (or warning) and error to a
// slog.Level, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
	}
}

// Init installs a new default logger writing to output.
//
// format "simple" prints level and message, "verbose" adds a timestamp, any
// other value uses slog's key=value text format. Levels are colored when
// output is a terminal.
func Init(level slog.Level, output io.Writer, format string) *slog.Logger {
	if format == "" {
		format = FormatSimple
	}

	var handler slog.Handler
	switch format {
	case FormatSimple, FormatVerbose:
		handler = &lineHandler{
			out:      &lockedWriter{w: output},
			level:    level,
			color:    isTerminal(output),
			withTime: format == FormatVerbose,
		}
	default:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	}

	l := slog.New(&filteringHandler{handler: handler, minLevel: level})

	mu.Lock()
	defaultLogger = l
	mu.Unlock()

	slog.SetDefault(l)
	return l
}

// OpenLogFile opens path for appending, creating it if needed. The returned
// cleanup closes the file.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, func() { _ = file.Close() }, nil
}

// GetLogger returns the logger installed by Init, initializing an info-level
// stderr logger on first use.
func GetLogger() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l != nil {
		return l
	}
	return Init(slog.LevelInfo, os.Stderr, FormatSimple)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// filteringHandler hides third-party records unless running at debug level.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel > slog.LevelDebug && !fromModule(record.PC) {
		return nil
	}
	return h.handler.Handle(ctx, record)
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func fromModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	name := fn.Name()
	return strings.HasPrefix(name, modulePrefix) || strings.HasPrefix(name, "main.")
}

// lineHandler writes one line per record: [time] LEVEL message key=value...
type lineHandler struct {
	out      *lockedWriter
	level    slog.Level
	color    bool
	withTime bool
	attrs    []slog.Attr
	group    string
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder

	if h.withTime && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	lvl := levelName(record.Level)
	if h.color {
		buf.WriteString(levelColor(record.Level))
		buf.WriteString(lvl)
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(lvl)
	}
	buf.WriteByte(' ')
	buf.WriteString(record.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, h.group, a)
		return true
	})
	buf.WriteByte('\n')

	return h.out.write(buf.String())
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	clone.group = name
	return &clone
}

func writeAttr(buf *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(buf, key, ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteByte('=')
	buf.WriteString(a.Value.String())
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m"
	case l >= slog.LevelWarn:
		return "\033[33m"
	case l >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) write(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.w, s)
	return err
}
