package logging

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapHandler is a slog.Handler backed by zap. Attributes bound outside any
// group go to the core; the rest stay with their group until Handle.
type zapHandler struct {
	core   zapcore.Core
	groups []zapGroup
}

type zapGroup struct {
	name   string
	fields []zap.Field
}

func newZapHandler(w io.Writer, level slog.Level) (*zapHandler, func() error) {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	ws := zapcore.AddSync(w)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, zapLevel(level))
	return &zapHandler{core: core}, ws.Sync
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

func (h *zapHandler) Enabled(_ context.Context, l slog.Level) bool {
	return h.core.Enabled(zapLevel(l))
}

func (h *zapHandler) Handle(_ context.Context, r slog.Record) error {
	ent := zapcore.Entry{
		Level:   zapLevel(r.Level),
		Time:    r.Time,
		Message: r.Message,
	}
	if ent.Time.IsZero() {
		ent.Time = time.Now()
	}
	ce := h.core.Check(ent, nil)
	if ce == nil {
		return nil
	}
	fields := make([]zap.Field, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, h.field(a))
		return true
	})
	ce.Write(h.wrap(fields)...)
	return nil
}

func (h *zapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	fields := make([]zap.Field, 0, len(attrs))
	for _, a := range attrs {
		fields = append(fields, h.field(a))
	}
	if len(h.groups) == 0 {
		return &zapHandler{core: h.core.With(fields)}
	}
	groups := append([]zapGroup(nil), h.groups...)
	last := &groups[len(groups)-1]
	last.fields = append(append([]zap.Field(nil), last.fields...), fields...)
	return &zapHandler{core: h.core, groups: groups}
}

func (h *zapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]zapGroup(nil), h.groups...), zapGroup{name: name})
	return &zapHandler{core: h.core, groups: groups}
}

// wrap nests fields under the open groups, innermost last, together with
// the attributes bound to each group. Empty groups are left out.
func (h *zapHandler) wrap(fields []zap.Field) []zap.Field {
	for i := len(h.groups) - 1; i >= 0; i-- {
		g := h.groups[i]
		all := append(append([]zap.Field(nil), g.fields...), fields...)
		if len(all) == 0 {
			fields = nil
			continue
		}
		fields = []zap.Field{zap.Dict(g.name, all...)}
	}
	return fields
}

func (h *zapHandler) field(a slog.Attr) zap.Field {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return zap.String(a.Key, v.String())
	case slog.KindInt64:
		return zap.Int64(a.Key, v.Int64())
	case slog.KindUint64:
		return zap.Uint64(a.Key, v.Uint64())
	case slog.KindFloat64:
		return zap.Float64(a.Key, v.Float64())
	case slog.KindBool:
		return zap.Bool(a.Key, v.Bool())
	case slog.KindDuration:
		return zap.Duration(a.Key, v.Duration())
	case slog.KindTime:
		return zap.Time(a.Key, v.Time())
	case slog.KindGroup:
		attrs := v.Group()
		fields := make([]zap.Field, 0, len(attrs))
		for _, ga := range attrs {
			fields = append(fields, h.field(ga))
		}
		return zap.Dict(a.Key, fields...)
	}
	if err, ok := v.Any().(error); ok {
		return zap.NamedError(a.Key, err)
	}
	return zap.Any(a.Key, v.Any())
}
