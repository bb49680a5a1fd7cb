package ucra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/crlotwhite/ucra-go/flagmap"
	"github.com/crlotwhite/ucra-go/manifest"
	"github.com/crlotwhite/ucra-go/render"
	"github.com/crlotwhite/ucra-go/stream"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"invalid argument", stream.ErrInvalidArgument, StatusInvalidArgument},
		{"wrapped invalid argument", fmt.Errorf("open: %w", stream.ErrInvalidArgument), StatusInvalidArgument},
		{"invalid render config", render.ErrInvalidConfig, StatusInvalidArgument},
		{"closed stream", stream.ErrClosed, StatusInternal},
		{"manifest not found", manifest.ErrNotFound, StatusNotFound},
		{"manifest json", manifest.ErrInvalidJSON, StatusInvalidJSON},
		{"manifest schema", manifest.ErrInvalidManifest, StatusInvalidManifest},
		{"rules not found", flagmap.ErrNotFound, StatusNotFound},
		{"rules schema", flagmap.ErrInvalidRules, StatusInvalidManifest},
		{"collaborator error", errors.New("renderer exploded"), StatusInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusOf(tc.err); got != tc.want {
				t.Fatalf("StatusOf(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestStatusStrings(t *testing.T) {
	if StatusOK.String() != "ok" || StatusInternal.String() != "internal-error" {
		t.Fatalf("unexpected status names: %v, %v", StatusOK, StatusInternal)
	}
	if Status(99).String() != "unknown" {
		t.Fatalf("unexpected name for out-of-range status")
	}
}

func TestRootOpen(t *testing.T) {
	s, err := Open(Config{SampleRate: 44100, Channels: 1, BlockSize: 256}, func(Window) ([]Note, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	out := make([]float32, 512)
	n, err := s.Read(out)
	if err != nil || n != 512 {
		t.Fatalf("read: n=%d err=%v", n, err)
	}
}
