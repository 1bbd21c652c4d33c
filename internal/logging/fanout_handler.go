package logging

import (
	"context"
	"errors"
	"log/slog"
)

// fanoutHandler forwards each record to every child handler that accepts its level.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, child := range h {
		if child.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, child := range h {
		if !child.Enabled(ctx, record.Level) {
			continue
		}
		if err := child.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, child := range h {
		out[i] = child.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, child := range h {
		out[i] = child.WithGroup(name)
	}
	return out
}

// TeeLogger duplicates log output from base into the provided handlers, used to
// mirror console output into the JSON log file.
func TeeLogger(base *slog.Logger, handlers ...slog.Handler) *slog.Logger {
	var children fanoutHandler
	if base != nil {
		children = append(children, base.Handler())
	}
	for _, handler := range handlers {
		if handler != nil {
			children = append(children, handler)
		}
	}
	switch len(children) {
	case 0:
		return NewNop()
	case 1:
		return slog.New(children[0])
	default:
		return slog.New(children)
	}
}
