package stream

import (
	"math"

	"github.com/crlotwhite/ucra-go/render"
)

// renderBlock fills the scratch buffer with exactly BlockSize frames for
// the window. Notes overlapping the window are rebased onto it and handed
// to the renderer; any shortfall in the renderer's output stays silence.
// Zero active notes skip the renderer entirely and yield a silent block.
func (s *Stream) renderBlock(win Window, notes []render.Note) error {
	for i := range s.scratch {
		s.scratch[i] = 0
	}
	active := clipNotes(notes, win)
	if len(active) == 0 {
		return nil
	}

	cfg := &render.Config{
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Notes:      active,
		Options:    s.options,
	}
	res, err := s.renderer.Render(s.ctx, cfg)
	if err != nil {
		return err
	}
	copy(s.scratch, res.PCM)
	return nil
}

// clipNotes selects the notes overlapping the window and rebases them:
// start times become relative to the window start, floored at zero, and
// durations are clamped to the window end.
func clipNotes(notes []render.Note, win Window) []render.Note {
	var active []render.Note
	for _, n := range notes {
		if win.Start >= n.End() || win.End() <= n.StartSec {
			continue
		}
		c := n
		c.StartSec = math.Max(0, n.StartSec-win.Start)
		c.DurationSec = math.Min(n.End(), win.End()) - math.Max(n.StartSec, win.Start)
		active = append(active, c)
	}
	return active
}
