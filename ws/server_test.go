package ws_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/arenanet/ws"
)

// TestNewStartStop exercises construction and lifecycle through the public
// facade only.
func TestNewStartStop(t *testing.T) {
	t.Parallel()

	cfg := ws.WithLogger(ws.NewConfig(18189, ws.NoRateLimit(), nil), zerolog.Nop())
	server := ws.New(cfg)

	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := server.ConnectedCount(); got != 0 {
		t.Errorf("ConnectedCount() = %d on a fresh server, want 0", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// Stopping an already stopped server is a no-op.
	if err := server.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v, want nil", err)
	}
}

// TestIndependentInstances runs two servers side by side — no hidden
// global state.
func TestIndependentInstances(t *testing.T) {
	t.Parallel()

	nop := zerolog.Nop()
	a := ws.New(ws.WithLogger(ws.NewConfig(18190, ws.NoRateLimit(), nil), nop))
	b := ws.New(ws.WithLogger(ws.NewConfig(18191, ws.NoRateLimit(), nil), nop))

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("a.Start() error = %v", err)
	}
	defer a.Stop(context.Background())

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("b.Start() error = %v", err)
	}
	defer b.Stop(context.Background())

	if a.ConnectedCount() != 0 || b.ConnectedCount() != 0 {
		t.Error("fresh servers report connections")
	}
}
