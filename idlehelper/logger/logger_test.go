package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCustomHandler_Handle(t *testing.T) {
	tests := []struct {
		name     string
		log      func(l *slog.Logger)
		want     []string
		wantNone bool
	}{
		{
			name: "db type tag",
			log: func(l *slog.Logger) {
				l.Info("Query executed", slog.String("type", "db"), slog.Int("rows", 3))
			},
			want: []string{"[IDLE Helper]", "[INFO]", "[DB]", "Query executed", "rows=3"},
		},
		{
			name: "reminder type from handler attrs",
			log: func(l *slog.Logger) {
				l.With(slog.String("type", "reminder")).Warn("Delivery late")
			},
			want: []string{"[WARN]", "[RMD]", "Delivery late"},
		},
		{
			name: "error attr rendered",
			log: func(l *slog.Logger) {
				l.Error("Send failed", slog.Any("error", errors.New("boom")))
			},
			want: []string{"[ERROR]", "[SYS]", "error=boom"},
		},
		{
			name: "gateway noise skipped",
			log: func(l *slog.Logger) {
				l.Info("sending heartbeat")
			},
			wantNone: true,
		},
		{
			name: "below level dropped",
			log: func(l *slog.Logger) {
				l.Debug("hidden")
			},
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := slog.New(NewHandlerWithWriter(&buf, slog.LevelInfo, false))
			tt.log(l)

			got := buf.String()
			if tt.wantNone {
				if got != "" {
					t.Errorf("expected no output, got %q", got)
				}
				return
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output %q does not contain %q", got, w)
				}
			}
		})
	}
}
