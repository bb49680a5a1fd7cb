// ucra-render renders a note sequence to a WAV file, either through a
// one-shot engine call or by draining a streaming session, mirroring
// what an editor does over the SDK.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/crlotwhite/ucra-go/flagmap"
	"github.com/crlotwhite/ucra-go/internal/registry"
	"github.com/crlotwhite/ucra-go/manifest"
	"github.com/crlotwhite/ucra-go/render"
	"github.com/crlotwhite/ucra-go/stream"
	"github.com/crlotwhite/ucra-go/wavio"
)

type noteSpecs []string

func (n *noteSpecs) String() string { return strings.Join(*n, ", ") }

func (n *noteSpecs) Set(v string) error {
	*n = append(*n, v)
	return nil
}

func main() {
	var (
		notes      noteSpecs
		output     string
		duration   float64
		tempo      float64
		flagsStr   string
		rulesPath  string
		rate       int
		channels   int
		blockSize  int
		enginePath string
		streaming  bool
	)

	flag.Var(&notes, "n", `Note as "lyric [midi [velocity]]" (repeatable)`)
	flag.StringVar(&output, "o", "out.wav", "Output WAV path")
	flag.Float64Var(&duration, "d", 0, "Note duration in seconds (default: one beat)")
	flag.Float64Var(&tempo, "t", 120, "Tempo in BPM")
	flag.StringVar(&flagsStr, "f", "", `Legacy engine flags, e.g. "g=50;bre=20"`)
	flag.StringVar(&rulesPath, "map", "", "Flag mapping rules file")
	flag.IntVar(&rate, "r", 44100, "Sample rate")
	flag.IntVar(&channels, "c", 1, "Channel count")
	flag.IntVar(&blockSize, "b", 512, "Stream block size in frames")
	flag.StringVar(&enginePath, "e", "", "Engine manifest (resampler.json); default is the built-in sine engine")
	flag.BoolVar(&streaming, "stream", false, "Render through a streaming session instead of one shot")
	flag.Parse()

	if len(notes) == 0 {
		fmt.Fprintln(os.Stderr, "at least one -n note is required")
		flag.Usage()
		os.Exit(2)
	}
	if tempo <= 0 || rate <= 0 || channels <= 0 || blockSize <= 0 {
		fmt.Fprintln(os.Stderr, "tempo, rate, channels and block size must be positive")
		os.Exit(2)
	}
	if duration <= 0 {
		duration = 60 / tempo
	}

	sequence, err := parseNotes(notes, duration)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	options, err := engineOptions(flagsStr, rulesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	renderer, err := buildRenderer(ctx, enginePath, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var pcm []float32
	if streaming {
		pcm, err = renderStreaming(sequence, renderer, rate, channels, blockSize, options)
	} else {
		pcm, err = renderOneShot(ctx, sequence, renderer, rate, channels, options)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := wavio.WriteFile(output, pcm, rate, channels); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d frames to %s\n", len(pcm)/channels, output)
}

// parseNotes lays the -n notes out sequentially, each spanning duration
// seconds. Omitted fields default to middle C at velocity 100.
func parseNotes(specs noteSpecs, duration float64) ([]render.Note, error) {
	out := make([]render.Note, 0, len(specs))
	start := 0.0
	for _, spec := range specs {
		fields := strings.Fields(spec)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty note spec")
		}
		note := render.Note{
			StartSec:    start,
			DurationSec: duration,
			Lyric:       fields[0],
			MIDINote:    60,
			Velocity:    100,
		}
		if len(fields) > 1 {
			midi, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("note %q: bad midi number: %w", spec, err)
			}
			note.MIDINote = midi
		}
		if len(fields) > 2 {
			vel, err := strconv.Atoi(fields[2])
			if err != nil || vel < 0 || vel > 127 {
				return nil, fmt.Errorf("note %q: velocity must be 0..127", spec)
			}
			note.Velocity = uint8(vel)
		}
		out = append(out, note)
		start += duration
	}
	return out, nil
}

func engineOptions(flagsStr, rulesPath string) (map[string]string, error) {
	options := flagmap.ParseLegacy(flagsStr)
	if rulesPath == "" {
		return options, nil
	}
	rules, err := flagmap.LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	mapped, warnings := flagmap.Apply(rules, options)
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	return mapped, nil
}

func buildRenderer(ctx context.Context, enginePath string, logger *slog.Logger) (render.Renderer, error) {
	if enginePath == "" {
		return render.NewSine(), nil
	}
	m, err := manifest.Load(enginePath)
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(m); err != nil {
		return nil, err
	}
	return registry.Build(ctx, m, filepath.Dir(enginePath), 30*time.Second, logger)
}

func renderOneShot(ctx context.Context, notes []render.Note, renderer render.Renderer, rate, channels int, options map[string]string) ([]float32, error) {
	res, err := renderer.Render(ctx, &render.Config{
		SampleRate: rate,
		Channels:   channels,
		Notes:      notes,
		Options:    options,
	})
	if err != nil {
		return nil, err
	}
	return res.PCM, nil
}

func renderStreaming(notes []render.Note, renderer render.Renderer, rate, channels, blockSize int, options map[string]string) ([]float32, error) {
	var lastEnd float64
	for _, n := range notes {
		if end := n.End(); end > lastEnd {
			lastEnd = end
		}
	}
	totalFrames := int(math.Ceil(lastEnd * float64(rate)))

	sess, err := stream.Open(stream.Config{
		SampleRate: rate,
		Channels:   channels,
		BlockSize:  blockSize,
	}, func(stream.Window) ([]render.Note, error) {
		return notes, nil
	}, stream.WithRenderer(renderer), stream.WithOptions(options))
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	pcm := make([]float32, 0, totalFrames*channels)
	buf := make([]float32, blockSize*channels)
	for rendered := 0; rendered < totalFrames; {
		want := totalFrames - rendered
		if want > blockSize {
			want = blockSize
		}
		n, err := sess.Read(buf[:want*channels])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		pcm = append(pcm, buf[:n*channels]...)
		rendered += n
	}
	return pcm, nil
}
