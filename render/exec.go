package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

const defaultExecTimeout = 30 * time.Second

// Exec bridges a command-line resampler behind the Renderer interface.
// Each Render call spawns the command, writes the request as JSON to its
// stdin and reads one JSON response carrying base64 16-bit PCM from its
// stdout. Calls on one instance serialize.
type Exec struct {
	cmd     []string
	timeout time.Duration
	mu      sync.Mutex
}

type execRequest struct {
	SampleRate int               `json:"sample_rate"`
	Channels   int               `json:"channels"`
	Notes      []Note            `json:"notes,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

type execResponse struct {
	PCMBase64  string            `json:"pcm_b16"`
	SampleRate int               `json:"sample_rate"`
	Channels   int               `json:"channels"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewExec parses the command template shell-style. A zero timeout gets
// the 30 second default.
func NewExec(command string, timeout time.Duration) (*Exec, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: engine command empty", ErrInvalidConfig)
	}
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	return &Exec{cmd: args, timeout: timeout}, nil
}

func (e *Exec) Describe() string { return "exec engine: " + e.cmd[0] }

func (e *Exec) Render(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Notes:      cfg.Notes,
		Options:    cfg.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("engine command: %w", ctxErr)
		}
		return nil, fmt.Errorf("engine command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
	if err != nil {
		return nil, fmt.Errorf("decode engine pcm: %w", err)
	}

	rate := resp.SampleRate
	if rate <= 0 {
		rate = cfg.SampleRate
	}
	channels := resp.Channels
	if channels <= 0 {
		channels = cfg.Channels
	}
	return &Result{
		PCM:        DecodePCM16(raw),
		Channels:   channels,
		SampleRate: rate,
		Metadata:   resp.Metadata,
	}, nil
}
