// Package registry discovers synthesis engines from a directory of
// resampler.json manifests and constructs a renderer for each entry
// type. The bundled sine engine is always registered so a bare daemon
// can render without any external engine installed.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crlotwhite/ucra-go/internal/config"
	"github.com/crlotwhite/ucra-go/internal/protocol"
	"github.com/crlotwhite/ucra-go/manifest"
	"github.com/crlotwhite/ucra-go/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// SineEngineName is the registration name of the built-in fallback.
const SineEngineName = "sine"

// Engine pairs a validated manifest with its constructed renderer.
type Engine struct {
	Manifest manifest.Manifest
	Renderer render.Renderer
}

type Registry struct {
	cfg   config.EnginesConfig
	log   *slog.Logger
	meter metric.Meter

	mu      sync.RWMutex
	engines map[string]*Engine
}

// New scans cfg.Dir for *.json manifests and loads every valid engine.
// Manifests that fail validation or construction are logged and skipped;
// only an unreadable directory is fatal.
func New(ctx context.Context, cfg config.EnginesConfig, log *slog.Logger) (*Registry, error) {
	r := &Registry{
		cfg:     cfg,
		log:     log.With(slog.String("component", "engine-registry")),
		meter:   otel.Meter("github.com/crlotwhite/ucra-go/registry"),
		engines: make(map[string]*Engine),
	}

	r.engines[SineEngineName] = &Engine{
		Manifest: manifest.Manifest{
			Name:    SineEngineName,
			Version: "1.0",
			Entry:   manifest.Entry{Type: "builtin"},
			Audio:   manifest.Audio{Rates: []int{44100, 48000}, Channels: []int{1, 2}, Streaming: true},
		},
		Renderer: render.NewSine(),
	}

	if err := r.scan(ctx); err != nil {
		return nil, err
	}
	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return r, nil
}

func (r *Registry) scan(ctx context.Context) error {
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Info("engines directory absent, using built-in engines only",
				slog.String("dir", r.cfg.Dir))
			return nil
		}
		return fmt.Errorf("read engines dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.cfg.Dir, entry.Name())
		m, err := manifest.Load(path)
		if err == nil {
			err = manifest.Validate(m)
		}
		if err != nil {
			r.log.Warn("skipping engine manifest",
				slog.String("path", path), slog.String("error", err.Error()))
			continue
		}

		renderer, err := Build(ctx, m, r.cfg.Dir, r.execTimeout(), r.log)
		if err != nil {
			r.log.Warn("skipping engine",
				slog.String("name", m.Name), slog.String("error", err.Error()))
			continue
		}

		r.engines[m.Name] = &Engine{Manifest: m, Renderer: renderer}
		r.log.Info("engine loaded",
			slog.String("name", m.Name),
			slog.String("version", m.Version),
			slog.String("entry", m.Entry.Type))
	}
	return nil
}

func (r *Registry) execTimeout() time.Duration {
	if r.cfg.ExecTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.cfg.ExecTimeoutMS) * time.Millisecond
}

// Build constructs the renderer for a manifest entry. Relative cli and
// dll paths resolve against baseDir; ipc entries carry a URL.
func Build(ctx context.Context, m manifest.Manifest, baseDir string, execTimeout time.Duration, log *slog.Logger) (render.Renderer, error) {
	switch m.Entry.Type {
	case "cli":
		command := m.Entry.Path
		if !filepath.IsAbs(command) && !strings.ContainsAny(command, " \t") {
			command = filepath.Join(baseDir, command)
		}
		return render.NewExec(command, execTimeout)
	case "dll":
		path := m.Entry.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		return render.NewWASM(ctx, path, log)
	case "ipc":
		return render.NewHTTP(m.Entry.Path, http.DefaultClient), nil
	case "builtin":
		return render.NewSine(), nil
	default:
		return nil, fmt.Errorf("entry type %q not supported", m.Entry.Type)
	}
}

// Register adds or replaces an engine under its manifest name, for
// engines constructed outside the manifest directory scan.
func (r *Registry) Register(m manifest.Manifest, renderer render.Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[m.Name] = &Engine{Manifest: m, Renderer: renderer}
}

// Resolve returns the engine registered under name; an empty name means
// the configured default.
func (r *Registry) Resolve(name string) (*Engine, error) {
	if name == "" {
		name = r.cfg.Default
	}
	if name == "" {
		name = SineEngineName
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	eng, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("engine %q not found", name)
	}
	return eng, nil
}

// List describes every loaded engine.
func (r *Registry) List() []protocol.EngineInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]protocol.EngineInfo, 0, len(r.engines))
	for _, eng := range r.engines {
		infos = append(infos, protocol.EngineInfo{
			Name:      eng.Manifest.Name,
			Version:   eng.Manifest.Version,
			Entry:     eng.Manifest.Entry.Type,
			Streaming: eng.Manifest.Audio.Streaming,
		})
	}
	return infos
}

// Count reports the number of loaded engines.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// Close releases engines that hold resources, e.g. WASM runtimes.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, eng := range r.engines {
		if closer, ok := eng.Renderer.(interface{ Close(context.Context) error }); ok {
			if err := closer.Close(ctx); err != nil {
				r.log.Warn("engine close failed",
					slog.String("name", eng.Manifest.Name), slog.String("error", err.Error()))
			}
		}
	}
}

func (r *Registry) initMetrics() error {
	gauge, err := r.meter.Int64ObservableGauge("ucra.engines.loaded",
		metric.WithDescription("Number of loaded synthesis engines"))
	if err != nil {
		return err
	}
	_, err = r.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, int64(r.Count()))
		return nil
	}, gauge)
	return err
}
