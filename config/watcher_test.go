package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, addr string) {
	t.Helper()
	content := "server:\n  addr: \"" + addr + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func waitForConfig(t *testing.T, ch <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
		return nil
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, ":8080")

	loaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { loaded <- cfg }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watch a moment to attach before writing.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, ":9090")

	cfg := waitForConfig(t, loaded)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestWatcher_KeepsPreviousOnInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, ":8080")

	loaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { loaded <- cfg }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	// An invalid config is skipped entirely.
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  max_attempts: 0\n"), 0o644))
	// A later valid write still lands.
	time.Sleep(700 * time.Millisecond)
	writeConfig(t, path, ":7070")

	cfg := waitForConfig(t, loaded)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, ":8080")

	loaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { loaded <- cfg }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))

	select {
	case <-loaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(800 * time.Millisecond):
	}
}
