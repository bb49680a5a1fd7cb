package registry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/crlotwhite/ucra-go/internal/config"
	"github.com/crlotwhite/ucra-go/manifest"
	"github.com/crlotwhite/ucra-go/render"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

const cliManifest = `{
  "name": "world",
  "version": "2.1",
  "entry": {"type": "cli", "path": "world-resampler"},
  "audio": {"rates": [44100], "channels": [1, 2], "streaming": true}
}`

func TestScanAndResolve(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "world.json"), []byte(cliManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	// Invalid manifests are skipped, not fatal.
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"name":"x"}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	r, err := New(context.Background(), config.EnginesConfig{Dir: dir, Default: "world", ExecTimeoutMS: 1000}, newLogger())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(func() { r.Close(context.Background()) })

	if r.Count() != 2 { // sine + world
		t.Fatalf("expected 2 engines, got %d", r.Count())
	}

	eng, err := r.Resolve("world")
	if err != nil {
		t.Fatalf("resolve world: %v", err)
	}
	if eng.Manifest.Version != "2.1" {
		t.Fatalf("unexpected manifest: %+v", eng.Manifest)
	}

	// Empty name falls back to the configured default.
	if eng, err = r.Resolve(""); err != nil || eng.Manifest.Name != "world" {
		t.Fatalf("default resolve: %v, %v", eng, err)
	}

	if _, err := r.Resolve("missing"); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestMissingDirFallsBackToBuiltin(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	r, err := New(context.Background(), config.EnginesConfig{Dir: dir, ExecTimeoutMS: 1000}, newLogger())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(func() { r.Close(context.Background()) })

	eng, err := r.Resolve("")
	if err != nil {
		t.Fatalf("resolve builtin: %v", err)
	}
	if eng.Manifest.Name != SineEngineName {
		t.Fatalf("expected sine fallback, got %q", eng.Manifest.Name)
	}

	infos := r.List()
	if len(infos) != 1 || infos[0].Name != SineEngineName {
		t.Fatalf("unexpected engine list: %v", infos)
	}
}

func TestRegisterOutsideScan(t *testing.T) {
	reg, err := New(context.Background(), config.EnginesConfig{Dir: t.TempDir()}, newLogger())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	defer reg.Close(context.Background())

	before := reg.Count()
	reg.Register(manifest.Manifest{
		Name:    "injected",
		Version: "0.1",
		Entry:   manifest.Entry{Type: "builtin"},
		Audio:   manifest.Audio{Rates: []int{44100}, Channels: []int{1}, Streaming: true},
	}, render.NewMock(0.5))

	if reg.Count() != before+1 {
		t.Fatalf("count = %d, want %d", reg.Count(), before+1)
	}
	eng, err := reg.Resolve("injected")
	if err != nil {
		t.Fatalf("resolve injected: %v", err)
	}
	if _, ok := eng.Renderer.(*render.Mock); !ok {
		t.Fatalf("resolved renderer %T, want *render.Mock", eng.Renderer)
	}
}
