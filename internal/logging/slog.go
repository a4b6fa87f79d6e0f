package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/zeebo/errs"
)

// SlogLogger adapts *slog.Logger to Logger. An error passed under the "err"
// key is followed by an "err_class" attribute naming its taxonomy class.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// NewDefault returns the logger the SDK uses when the host application does
// not supply one: text output on stderr, warnings and above.
func NewDefault() *SlogLogger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	return NewSlogLogger(slog.New(h).With("sdk", "dashx"))
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelDebug, msg, args)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelInfo, msg, args)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelWarn, msg, args)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelError, msg, args)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}

func (s *SlogLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.Log(ctx, level, msg, withErrClass(args)...)
}

var classes = []*errs.Class{
	&common.TransportError,
	&common.ApplicationError,
	&common.ValidationError,
	&common.UploadFailure,
	&common.PollTimeout,
}

func withErrClass(args []any) []any {
	for i := 0; i+1 < len(args); i += 2 {
		if key, _ := args[i].(string); key != "err" {
			continue
		}
		err, ok := args[i+1].(error)
		if !ok {
			return args
		}
		for _, c := range classes {
			if c.Has(err) {
				out := make([]any, 0, len(args)+2)
				out = append(out, args[:i+2]...)
				out = append(out, "err_class", string(*c))
				return append(out, args[i+2:]...)
			}
		}
		return args
	}
	return args
}
