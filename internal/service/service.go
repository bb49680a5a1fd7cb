// Package service exposes the streaming synthesis core on the bus: it
// consumes render requests, drains a stream session block by block and
// publishes the audio as a chunk stream, journaling the session as it
// goes.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/crlotwhite/ucra-go/internal/bus"
	"github.com/crlotwhite/ucra-go/internal/config"
	"github.com/crlotwhite/ucra-go/internal/journal"
	"github.com/crlotwhite/ucra-go/internal/protocol"
	"github.com/crlotwhite/ucra-go/internal/registry"
	"github.com/crlotwhite/ucra-go/render"
	"github.com/crlotwhite/ucra-go/stream"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type Service struct {
	audio   config.AudioConfig
	bus     *bus.Client
	store   *journal.Store
	engines *registry.Registry
	metrics *Metrics
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	subs    []*nats.Subscription
}

func New(parent context.Context, audio config.AudioConfig, busClient *bus.Client, store *journal.Store, engines *registry.Registry, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		audio:   audio,
		bus:     busClient,
		store:   store,
		engines: engines,
		metrics: newMetrics(),
		logger:  log.With(slog.String("component", "render-service")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Start() error {
	conn := s.bus.Conn()
	renderSub, err := conn.Subscribe(protocol.SubjectRenderRequest, s.handleRender)
	if err != nil {
		return fmt.Errorf("subscribe render requests: %w", err)
	}
	s.subs = append(s.subs, renderSub)

	listSub, err := conn.Subscribe(protocol.SubjectEngineList, s.handleEngineList)
	if err != nil {
		renderSub.Drain()
		return fmt.Errorf("subscribe engine list: %w", err)
	}
	s.subs = append(s.subs, listSub)

	infoSub, err := conn.Subscribe(protocol.SubjectEngineInfoPrefix+".*", s.handleEngineInfo)
	if err != nil {
		renderSub.Drain()
		listSub.Drain()
		return fmt.Errorf("subscribe engine info: %w", err)
	}
	s.subs = append(s.subs, infoSub)
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return len(s.subs) > 0 }

func (s *Service) handleEngineList(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	list := protocol.EngineList{Engines: s.engines.List(), Timestamp: time.Now().UTC()}
	data, err := json.Marshal(list)
	if err != nil {
		s.logger.Warn("failed to marshal engine list", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to answer engine list", slogError(err))
	}
}

func (s *Service) handleEngineInfo(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	name := protocol.EngineNameFromSubject(msg.Subject)
	var resp protocol.EngineInfoResponse
	if eng, err := s.engines.Resolve(name); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Engine = &protocol.EngineInfo{
			Name:      eng.Manifest.Name,
			Version:   eng.Manifest.Version,
			Entry:     eng.Manifest.Entry.Type,
			Streaming: eng.Manifest.Audio.Streaming,
		}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to marshal engine info", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to answer engine info", slogError(err))
	}
}

func (s *Service) handleRender(msg *nats.Msg) {
	var req protocol.RenderRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode render request", slogError(err))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SampleRate <= 0 {
		req.SampleRate = s.audio.SampleRate
	}
	if req.Channels <= 0 {
		req.Channels = s.audio.Channels
	}
	if req.BlockSize <= 0 {
		req.BlockSize = s.audio.BlockSize
	}

	s.metrics.RequestsTotal.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.renderSession(req)
	}()
}

// renderSession drains one stream session and publishes its chunk
// stream. The session ends once every note has been rendered; an
// endless stream has no place on the bus, so the request's note list
// bounds the output.
func (s *Service) renderSession(req protocol.RenderRequest) {
	started := time.Now()
	logger := s.logger.With(slog.String("session", req.ID), slog.String("engine", req.Engine))
	s.metrics.ActiveSessions.Inc()
	defer s.metrics.ActiveSessions.Dec()

	if err := s.store.RecordSession(s.ctx, req.ID, req.Engine, req.SampleRate, req.Channels); err != nil {
		logger.Warn("failed to journal session", slogError(err))
	}
	s.journalEvent(req.ID, "started", "")

	eng, err := s.engines.Resolve(req.Engine)
	if err != nil {
		s.failSession(req, logger, started, 0, err)
		return
	}

	var lastEnd float64
	for _, n := range req.Notes {
		if end := n.End(); end > lastEnd {
			lastEnd = end
		}
	}
	totalFrames := int(math.Ceil(lastEnd * float64(req.SampleRate)))

	notes := req.Notes
	sess, err := stream.Open(stream.Config{
		SampleRate: req.SampleRate,
		Channels:   req.Channels,
		BlockSize:  req.BlockSize,
	}, func(stream.Window) ([]render.Note, error) {
		return notes, nil
	}, stream.WithRenderer(eng.Renderer), stream.WithOptions(req.Flags))
	if err != nil {
		s.failSession(req, logger, started, 0, err)
		return
	}
	defer sess.Close()

	buf := make([]float32, req.BlockSize*req.Channels)
	rendered := 0
	seq := 0
	for rendered < totalFrames {
		want := totalFrames - rendered
		if want > req.BlockSize {
			want = req.BlockSize
		}
		n, err := sess.Read(buf[:want*req.Channels])
		if err != nil {
			s.failSession(req, logger, started, rendered, err)
			return
		}
		if n == 0 {
			break
		}
		rendered += n
		chunk := protocol.RenderChunk{
			ID:         req.ID,
			Sequence:   seq,
			SampleRate: req.SampleRate,
			Channels:   req.Channels,
			Frames:     n,
			PCM:        render.EncodePCM16(buf[:n*req.Channels]),
			Final:      rendered >= totalFrames,
		}
		seq++
		if err := s.publishChunk(chunk); err != nil {
			s.failSession(req, logger, started, rendered, err)
			return
		}
	}
	if seq == 0 {
		// Nothing to render; close the stream with an empty final chunk.
		if err := s.publishChunk(protocol.RenderChunk{
			ID:         req.ID,
			SampleRate: req.SampleRate,
			Channels:   req.Channels,
			Final:      true,
		}); err != nil {
			s.failSession(req, logger, started, rendered, err)
			return
		}
	}

	s.journalEvent(req.ID, "completed", fmt.Sprintf("frames=%d", rendered))
	s.metrics.RecordSession(rendered, time.Since(started), false)
	logger.Info("render session completed",
		slog.Int("frames", rendered), slog.Int("chunks", seq))
}

func (s *Service) failSession(req protocol.RenderRequest, logger *slog.Logger, started time.Time, rendered int, cause error) {
	logger.Warn("render session failed", slogError(cause))
	s.journalEvent(req.ID, "error", cause.Error())
	s.metrics.RecordSession(rendered, time.Since(started), true)
	if err := s.publishChunk(protocol.RenderChunk{
		ID:         req.ID,
		SampleRate: req.SampleRate,
		Channels:   req.Channels,
		Error:      cause.Error(),
	}); err != nil {
		logger.Warn("failed to publish error chunk", slogError(err))
	}
}

func (s *Service) publishChunk(chunk protocol.RenderChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	return s.bus.Conn().Publish(protocol.ChunkSubject(chunk.ID), data)
}

func (s *Service) journalEvent(sessionID, kind, detail string) {
	if err := s.store.RecordEvent(s.ctx, sessionID, kind, detail); err != nil {
		s.logger.Warn("failed to journal event", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
