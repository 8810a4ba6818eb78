package logger

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Fields map[string]any

var sensitiveKeys = map[string]struct{}{
	"pin":            {},
	"transactionpin": {},
	"password":       {},
	"channelkey":     {},
	"channelkeyhash": {},
	"authorization":  {},
	"secret":         {},
}

var (
	mu   sync.RWMutex
	base = newLogger(os.Stdout, zerolog.InfoLevel)
)

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Configure replaces the process logger. Unknown levels fall back to info.
func Configure(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	mu.Lock()
	base = newLogger(w, lvl)
	mu.Unlock()
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

func Debug(message string, fields Fields) {
	emit(current().Debug(), message, fields)
}

func Info(message string, fields Fields) {
	emit(current().Info(), message, fields)
}

func Warn(message string, fields Fields) {
	emit(current().Warn(), message, fields)
}

func Error(message string, err error, fields Fields) {
	event := current().Error()
	if err != nil {
		event = event.Err(err)
	}
	emit(event, message, fields)
}

func emit(event *zerolog.Event, message string, fields Fields) {
	if event == nil {
		return
	}
	if len(fields) > 0 {
		if sanitized, ok := SanitizePayload(map[string]any(fields)).(map[string]any); ok {
			event = event.Fields(sanitized)
		}
	}
	event.Msg(message)
}

func SanitizePayload(payload any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "<unavailable>"
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "<unavailable>"
	}

	return sanitizeValue(data)
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			if isSensitiveKey(key) {
				out[key] = "******"
				continue
			}
			out[key] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)
	_, ok := sensitiveKeys[normalized]
	return ok
}
