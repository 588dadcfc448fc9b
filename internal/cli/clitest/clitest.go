// Package clitest builds command contexts backed by a throwaway SQLite store.
package clitest

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/config"
	"github.com/julianstephens/podcheck/internal/notifier"
	"github.com/julianstephens/podcheck/internal/storage/sqlite"
)

// Now is the fixed clock of every test context: 2026-03-03 02:00 UTC, which is
// the evening of March 2 in Chicago.
var Now = time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)

type Notifier struct {
	mu   sync.Mutex
	Sent []notifier.Notification
}

func (n *Notifier) Notify(_ context.Context, msg notifier.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, msg)
	return nil
}

func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Sent)
}

type Env struct {
	Ctx      *cli.Context
	Out      *bytes.Buffer
	Notifier *Notifier
	DBPath   string
	clock    time.Time
	mu       sync.Mutex
}

func (e *Env) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *Env) SetNow(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = t
}

// New returns an initialized context. The store is closed on cleanup.
func New(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	env := &Env{
		Out:      &bytes.Buffer{},
		Notifier: &Notifier{},
		DBPath:   filepath.Join(dir, "podcheck.db"),
		clock:    Now,
	}

	cfg := config.Default()
	cfg.Database = env.DBPath
	store := sqlite.NewStore(env.DBPath)
	require.NoError(t, store.Init(context.Background()))

	ctx := cli.NewContext(cfg, store, filepath.Join(dir, "run"))
	ctx.Out = env.Out
	ctx.Now = env.now
	ctx.SetNotifier(env.Notifier)
	env.Ctx = ctx

	t.Cleanup(func() { _ = ctx.Close() })
	return env
}
