package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// redacted replaces the value of any sensitive attribute.
const redacted = "[REDACTED]"

// sensitiveKeys are matched as case-insensitive substrings of attribute keys.
// SPNEGO tokens and server challenges can be replayed, so they are treated
// like passwords.
var sensitiveKeys = []string{
	"password",
	"pass",
	"secret",
	"token",
	"challenge",
	"spnego",
	"key",
	"hash",
	"auth",
	"ticket",
	"cred",
}

// RedactingHandler is a slog.Handler that strips secrets before they reach
// the wrapped handler. Values under a sensitive key become "[REDACTED]",
// and raw []byte values are reduced to their length whatever their key.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(clean)}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	// LogValuers such as auth.Credentials expand to groups here.
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		clean := make([]any, len(group))
		for i, attr := range group {
			clean[i] = redactAttr(attr)
		}
		return slog.Group(a.Key, clean...)
	}

	if isSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}

	if a.Value.Kind() == slog.KindAny {
		if b, ok := a.Value.Any().([]byte); ok {
			return slog.String(a.Key, fmt.Sprintf("[%d bytes]", len(b)))
		}
	}

	return a
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
