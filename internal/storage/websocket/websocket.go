// Package websocket streams an import to a live scene server.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/OCAP2/trcimport/pkg/core"
	"github.com/OCAP2/trcimport/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams import data over WebSocket.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	stream *stream
	cfg    Config

	importID     string
	nextEntityID atomic.Uint64
	keyframes    atomic.Int64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		stream: newStream(logger),
		cfg:    cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	if b.cfg.URL == "" {
		return errors.New("websocket URL not configured")
	}
	return b.stream.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.stream.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and queues it.
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.stream.enqueue(data)
}

// StartImport opens the scene on the server and waits for its ack.
func (b *Backend) StartImport(info *core.ImportInfo) error {
	data, err := marshalEnvelope(streaming.TypeStartImport, streaming.StartImportPayload{Import: info})
	if err != nil {
		return err
	}

	b.importID = info.ID.String()
	b.nextEntityID.Store(0)
	b.keyframes.Store(0)

	return b.stream.beginImport(data)
}

// EndImport closes the scene and waits for the server ack. The stream is
// ordered, so the ack confirms every earlier message of the import.
func (b *Backend) EndImport() error {
	data, err := marshalEnvelope(streaming.TypeEndImport, streaming.EndImportPayload{
		ImportID:  b.importID,
		Entities:  int(b.nextEntityID.Load()),
		Keyframes: int(b.keyframes.Load()),
	})
	if err != nil {
		return err
	}
	return b.stream.finishImport(data)
}

// AddEntity assigns an auto-increment ID and sends the entity.
func (b *Backend) AddEntity(e *core.Entity) error {
	id := uint(b.nextEntityID.Add(1))
	e.ID = id
	return b.sendEnvelope(streaming.TypeAddEntity, e)
}

// RecordAnimation sends the curves of an entity.
func (b *Backend) RecordAnimation(a *core.Animation) error {
	if err := b.sendEnvelope(streaming.TypeAnimation, a); err != nil {
		return err
	}
	b.keyframes.Add(int64(a.KeyframeCount()))
	return nil
}
