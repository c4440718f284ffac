package daemon

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hoot-im/hoot/internal/auth"
	"github.com/hoot-im/hoot/internal/bus"
	"github.com/hoot-im/hoot/internal/chat"
	"github.com/hoot-im/hoot/internal/contacts"
	"github.com/hoot-im/hoot/internal/docstore"
	"github.com/hoot-im/hoot/internal/gateway"
	"github.com/hoot-im/hoot/internal/lock"
	"github.com/hoot-im/hoot/internal/status"
	"github.com/hoot-im/hoot/internal/stream"
)

// Composes the daemon's components by hand, the same wiring the fx
// module performs, and exercises startup and shutdown.
func TestDaemonLifecycle(t *testing.T) {
	sessionDir := t.TempDir()

	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	b := bus.New()
	db, err := docstore.Open(filepath.Join(sessionDir, "store.db"), b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	logger := zap.NewNop()
	machine := status.NewMachine(b)
	authn := auth.NewMemory(b)
	sess := authn.SignIn("111", "Me")
	tokens := auth.NewTokens("test-secret", "hootd", time.Hour)
	dir := contacts.NewDirectory(nil)
	mutator := chat.NewMutator(db, sess, logger)
	streams := stream.NewAdapter(db, logger)

	srv, err := gateway.NewServer("127.0.0.1:0", logger, tokens, authn, machine, mutator, streams, db, dir)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()

	if err := machine.Transition(status.LoadingContacts); err != nil {
		t.Fatalf("transition to LoadingContacts: %v", err)
	}
	if err := machine.Transition(status.Ready); err != nil {
		t.Fatalf("transition to Ready: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv.Stop(ctx)

	if err := lk.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	relocked, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatalf("reacquire after shutdown: %v", err)
	}
	relocked.Release()
}

func TestSecondDaemonRejected(t *testing.T) {
	sessionDir := t.TempDir()

	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer lk.Release()

	if _, err := lock.Acquire(sessionDir); err == nil {
		t.Fatal("second daemon acquired the session lock")
	}
}
