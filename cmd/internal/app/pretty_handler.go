package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// prettyHandler renders slog records as single-line key=value text for
// local development. Production stays on the JSON handler.
type prettyHandler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	color  bool
	mu     *sync.Mutex
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, colorize bool) slog.Handler {
	h := &prettyHandler{
		w:     w,
		color: colorize,
		mu:    &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

var (
	prettyDim    = color.New(color.Faint).Sprint
	prettyBold   = color.New(color.Bold).Sprint
	prettyBlue   = color.New(color.FgBlue).Sprint
	prettyCyan   = color.New(color.FgCyan).Sprint
	prettyGreen  = color.New(color.FgGreen).Sprint
	prettyYellow = color.New(color.FgYellow).Sprint
	prettyRed    = color.New(color.FgRed).Sprint
	prettyPurple = color.New(color.FgMagenta).Sprint
)

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString("ts=")
	b.WriteString(h.dim(ts.Format("15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString("lvl=")
	b.WriteString(h.levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString("msg=")
	b.WriteString(h.bold(r.Message))

	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		if frame.File != "" {
			b.WriteByte(' ')
			b.WriteString("src=")
			b.WriteString(h.dim(fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)))
		}
	}

	for _, a := range h.attrs {
		h.appendAttr(&b, a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a, "")
		return true
	})

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *prettyHandler) appendAttr(b *strings.Builder, a slog.Attr, parent string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := strings.TrimSpace(a.Key)
	if key == "" {
		return
	}

	fullKey := key
	if parent != "" {
		fullKey = parent + "." + key
	}
	if len(h.groups) > 0 {
		fullKey = strings.Join(h.groups, ".") + "." + fullKey
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, ga, fullKey)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(fullKey)
	b.WriteByte('=')
	b.WriteString(h.prettyValue(fullKey, a.Value))
}

func (h *prettyHandler) prettyValue(key string, v slog.Value) string {
	switch strings.TrimSpace(key) {
	case "method":
		return h.methodTag(strings.ToUpper(strings.TrimSpace(v.String())))
	case "path", "route":
		if h.color {
			return prettyCyan(strings.TrimSpace(v.String()))
		}
	case "status":
		if n, ok := valueToInt64(v); ok {
			return h.statusTag(int(n))
		}
	case "err":
		if h.color {
			return prettyRed(quoteIfNeeded(valueToString(v)))
		}
	}

	return quoteIfNeeded(valueToString(v))
}

func (h *prettyHandler) levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		if h.color {
			return prettyRed("[ERROR]")
		}
		return "[ERROR]"
	case level >= slog.LevelWarn:
		if h.color {
			return prettyYellow("[WARN]")
		}
		return "[WARN]"
	case level < slog.LevelInfo:
		if h.color {
			return prettyPurple("[DEBUG]")
		}
		return "[DEBUG]"
	default:
		if h.color {
			return prettyBlue("[INFO]")
		}
		return "[INFO]"
	}
}

func (h *prettyHandler) methodTag(m string) string {
	if !h.color {
		return m
	}
	switch m {
	case "GET":
		return prettyGreen(m)
	case "POST", "PUT", "PATCH":
		return prettyYellow(m)
	case "DELETE":
		return prettyRed(m)
	default:
		return m
	}
}

func (h *prettyHandler) statusTag(code int) string {
	s := strconv.Itoa(code)
	if !h.color {
		return s
	}
	switch {
	case code >= 500:
		return prettyRed(s)
	case code >= 400:
		return prettyYellow(s)
	case code >= 300:
		return prettyCyan(s)
	default:
		return prettyGreen(s)
	}
}

func (h *prettyHandler) dim(s string) string {
	if !h.color {
		return s
	}
	return prettyDim(s)
}

func (h *prettyHandler) bold(s string) string {
	if !h.color {
		return s
	}
	return prettyBold(s)
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	default:
		return 0, false
	}
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return fmt.Sprint(v.Any())
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
