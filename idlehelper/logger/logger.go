package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeCommand  LogType = "CMD"
	TypeDB       LogType = "DB"
	TypeSystem   LogType = "SYS"
	TypeReminder LogType = "RMD"
	TypeMessage  LogType = "MSG"
	TypeError    LogType = "ERR"
)

// CustomHandler renders records as single colored lines prefixed with the bot name.
type CustomHandler struct {
	opts   *slog.HandlerOptions
	out    io.Writer
	mu     *sync.Mutex
	color  bool
	attrs  []slog.Attr
	groups []string
}

func NewHandler(level slog.Leveler) *CustomHandler {
	return NewHandlerWithWriter(os.Stdout, level, true)
}

func NewHandlerWithWriter(out io.Writer, level slog.Leveler, color bool) *CustomHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &CustomHandler{
		opts:  &slog.HandlerOptions{Level: level},
		out:   out,
		mu:    &sync.Mutex{},
		color: color,
	}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &CustomHandler{opts: h.opts, out: h.out, mu: h.mu, color: h.color, attrs: merged, groups: h.groups}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &CustomHandler{opts: h.opts, out: h.out, mu: h.mu, color: h.color, attrs: h.attrs, groups: groups}
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkipLog(&r) {
		return nil
	}

	timestamp := r.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var levelColor, levelText string
	switch {
	case r.Level >= slog.LevelError:
		levelColor, levelText = colorRed, "ERROR"
	case r.Level >= slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	case r.Level >= slog.LevelInfo:
		levelColor, levelText = colorGreen, "INFO"
	default:
		levelColor, levelText = colorPurple, "DEBUG"
	}

	message := r.Message
	if r.Level >= slog.LevelError {
		if location := getErrorLocation(&r); location != "" {
			message = fmt.Sprintf("%s (%s)", message, location)
		}
	}

	var attrs strings.Builder
	prefix := strings.Join(h.groups, ".")
	writeAttr := func(a slog.Attr) {
		if isInternalAttr(a.Key) {
			return
		}
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		fmt.Fprintf(&attrs, " %s=%v", key, a.Value.Resolve())
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	line := fmt.Sprintf("[IDLE Helper] [%s] [%s] [%s] %s%s",
		timestamp.Format("15:04:05"), levelText, getLogType(h.attrs, &r), message, attrs.String())
	if h.color {
		line = fmt.Sprintf("%s[IDLE Helper] [%s] [%s%s%s] [%s%s%s] %s%s%s",
			colorWhite, timestamp.Format("15:04:05"),
			levelColor, levelText, colorWhite,
			colorCyan, getLogType(h.attrs, &r), colorWhite,
			message, attrs.String(), colorReset)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.out, line)
	return err
}

func shouldSkipLog(r *slog.Record) bool {
	// disgo is very chatty at debug level
	skippedMessages := []string{
		"locking buckets",
		"unlocking buckets",
		"gateway event",
		"cleaning up bucket",
		"binary message received",
		"received gateway message",
		"sending heartbeat",
		"new request",
		"new response",
		"rate limit response headers",
	}

	msg := strings.ToLower(r.Message)
	for _, skip := range skippedMessages {
		if strings.Contains(msg, skip) {
			return true
		}
	}
	return false
}

func getLogType(handlerAttrs []slog.Attr, r *slog.Record) LogType {
	value := ""
	for _, a := range handlerAttrs {
		if a.Key == "type" {
			value = a.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "type" {
			value = a.Value.String()
			return false
		}
		return true
	})

	switch value {
	case "cmd":
		return TypeCommand
	case "db":
		return TypeDB
	case "reminder":
		return TypeReminder
	case "message":
		return TypeMessage
	case "error":
		return TypeError
	default:
		return TypeSystem
	}
}

func isInternalAttr(key string) bool {
	return key == "type" || key == "error_location"
}

func getErrorLocation(r *slog.Record) string {
	var location string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "error_location" {
			location = a.Value.String()
			return false
		}
		return true
	})
	if location != "" {
		return location
	}
	if r.PC == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{r.PC})
	frame, _ := frames.Next()
	if frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
}
