package protocol

import (
	"fmt"
	"strings"
	"time"

	"github.com/crlotwhite/ucra-go/render"
)

const (
	// SubjectRenderRequest receives RenderRequest messages.
	SubjectRenderRequest = "ucra.render.request"
	// SubjectRenderChunkPrefix is completed with the request id; the
	// service streams RenderChunk messages there.
	SubjectRenderChunkPrefix = "ucra.render.chunk"
	// SubjectEngineList answers request/reply with an EngineList.
	SubjectEngineList = "ucra.engine.list"
	// SubjectEngineInfoPrefix is completed with an engine name; the
	// service answers request/reply with an EngineInfoResponse.
	SubjectEngineInfoPrefix = "ucra.engine.info"
)

// ChunkSubject returns the per-request chunk stream subject.
func ChunkSubject(id string) string {
	return fmt.Sprintf("%s.%s", SubjectRenderChunkPrefix, id)
}

// EngineInfoSubject returns the query subject for one engine.
func EngineInfoSubject(name string) string {
	return fmt.Sprintf("%s.%s", SubjectEngineInfoPrefix, name)
}

// EngineNameFromSubject extracts the engine name from an engine info
// subject; it returns "" when the subject has a different shape.
func EngineNameFromSubject(subject string) string {
	prefix := SubjectEngineInfoPrefix + "."
	if !strings.HasPrefix(subject, prefix) {
		return ""
	}
	return strings.TrimPrefix(subject, prefix)
}

// RenderRequest asks the service to render a note sequence. Zero-valued
// audio fields fall back to the daemon's configured format. An empty ID
// gets one assigned; the chunk stream lands on ChunkSubject(ID).
type RenderRequest struct {
	ID         string            `json:"id,omitempty"`
	Engine     string            `json:"engine,omitempty"`
	SampleRate int               `json:"sample_rate,omitempty"`
	Channels   int               `json:"channels,omitempty"`
	BlockSize  int               `json:"block_size,omitempty"`
	Notes      []render.Note     `json:"notes"`
	Flags      map[string]string `json:"flags,omitempty"`
}

// RenderChunk is one block of rendered audio. PCM holds little-endian
// 16-bit samples (base64 on the wire). A chunk with Error set terminates
// the stream; the final successful chunk has Final true.
type RenderChunk struct {
	ID         string `json:"id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Frames     int    `json:"frames"`
	PCM        []byte `json:"pcm,omitempty"`
	Final      bool   `json:"final,omitempty"`
	Error      string `json:"error,omitempty"`
}

// EngineInfo describes one loaded engine.
type EngineInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Entry     string `json:"entry"`
	Streaming bool   `json:"streaming"`
}

// EngineList answers SubjectEngineList queries.
type EngineList struct {
	Engines   []EngineInfo `json:"engines"`
	Timestamp time.Time    `json:"timestamp"`
}

// EngineInfoResponse answers EngineInfoSubject queries. Error is set
// when no engine is registered under the requested name.
type EngineInfoResponse struct {
	Engine *EngineInfo `json:"engine,omitempty"`
	Error  string      `json:"error,omitempty"`
}
