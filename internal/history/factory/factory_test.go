package factory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fuliji/spiderctl/internal/history"
	"github.com/fuliji/spiderctl/internal/history/sqlite"
)

func TestFactorySQLiteDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	for _, dsn := range []string{path, "sqlite://" + path} {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("dsn %q: %v", dsn, err)
		}
		if _, ok := sink.(*sqlite.Sink); !ok {
			t.Fatalf("dsn %q: got %T, want *sqlite.Sink", dsn, sink)
		}
		e := history.Event{Type: history.EventStart, OccurredAt: time.Now().UTC(), Worker: "w", PID: 1}
		if err := sink.Send(context.Background(), e); err != nil {
			t.Fatalf("dsn %q: send: %v", dsn, err)
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("dsn %q: close: %v", dsn, err)
		}
	}
}

func TestFactoryRejectsUnknownScheme(t *testing.T) {
	cases := []string{"", "   ", "mysql://root@localhost/db", "redis://localhost:6379"}
	for _, dsn := range cases {
		if _, err := NewSinkFromDSN(dsn); err == nil {
			t.Errorf("dsn %q: expected error, got nil", dsn)
		}
	}
}
