package render

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WASM hosts a loadable engine module, the portable counterpart of the
// manifest's dll entry type. The module is compiled once at load; each
// Render instantiates it fresh, hands it the request JSON through the
// UCRA_RENDER_REQUEST environment variable and calls its exported
// render() function. The guest streams PCM back through the host's
// ucra_emit import as little-endian float32 bytes; a non-zero return
// status fails the render. Calls on one instance serialize.
type WASM struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	path     string
	log      *slog.Logger

	mu   sync.Mutex
	emit []byte
}

// NewWASM compiles the engine module at path.
func NewWASM(ctx context.Context, path string, logger *slog.Logger) (*WASM, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WASM{
		path: path,
		log:  logger.With(slog.String("component", "wasm-engine")),
	}

	w.rt = wazero.NewRuntime(ctx)
	if err := w.instantiateHostModule(ctx); err != nil {
		w.rt.Close(ctx)
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, w.rt); err != nil {
		w.rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		w.rt.Close(ctx)
		return nil, fmt.Errorf("read engine module: %w", err)
	}
	compiled, err := w.rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		w.rt.Close(ctx)
		return nil, fmt.Errorf("compile engine module: %w", err)
	}
	w.compiled = compiled
	return w, nil
}

func (w *WASM) Describe() string { return "wasm engine: " + w.path }

// Close releases the compiled module and runtime.
func (w *WASM) Close(ctx context.Context) error {
	if w == nil || w.rt == nil {
		return nil
	}
	return w.rt.Close(ctx)
}

func (w *WASM) Render(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit = w.emit[:0]

	moduleConfig := wazero.NewModuleConfig().
		WithName("").
		WithEnv("UCRA_RENDER_REQUEST", string(payload))
	module, err := w.rt.InstantiateModule(ctx, w.compiled, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiate engine module: %w", err)
	}
	defer module.Close(ctx)

	entry := module.ExportedFunction("render")
	if entry == nil {
		return nil, fmt.Errorf("engine module %s exports no render function", w.path)
	}
	results, err := entry.Call(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine render: %w", err)
	}
	if len(results) > 0 {
		if status := int32(results[0]); status != 0 {
			return nil, fmt.Errorf("engine render returned status %d", status)
		}
	}

	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	pcm := make([]float32, len(w.emit)/4)
	for i := range pcm {
		pcm[i] = math.Float32frombits(binary.LittleEndian.Uint32(w.emit[i*4:]))
	}
	return &Result{PCM: pcm, Channels: channels, SampleRate: cfg.SampleRate}, nil
}

// instantiateHostModule exports the guest-facing env imports: ucra_log
// for diagnostics and ucra_emit for streaming PCM bytes back.
func (w *WASM) instantiateHostModule(ctx context.Context) error {
	builder := w.rt.NewHostModuleBuilder("env")

	logFn := api.GoModuleFunc(func(_ context.Context, mod api.Module, stack []uint64) {
		if len(stack) < 2 {
			return
		}
		ptr := api.DecodeU32(stack[0])
		length := api.DecodeU32(stack[1])
		if length == 0 {
			return
		}
		if mem := mod.Memory(); mem != nil {
			if data, ok := mem.Read(ptr, length); ok {
				w.log.Info("engine log", slog.String("message", string(data)))
			}
		}
	})
	builder.NewFunctionBuilder().
		WithGoModuleFunction(logFn, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		WithName("ucra_log").
		Export("ucra_log")

	emitFn := api.GoModuleFunc(func(_ context.Context, mod api.Module, stack []uint64) {
		if len(stack) < 2 {
			return
		}
		ptr := api.DecodeU32(stack[0])
		length := api.DecodeU32(stack[1])
		if length == 0 {
			return
		}
		mem := mod.Memory()
		if mem == nil {
			return
		}
		if data, ok := mem.Read(ptr, length); ok {
			w.emit = append(w.emit, data...)
		}
	})
	builder.NewFunctionBuilder().
		WithGoModuleFunction(emitFn, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		WithName("ucra_emit").
		Export("ucra_emit")

	_, err := builder.Instantiate(ctx)
	return err
}
