// Package streaming defines the live scene protocol: JSON envelopes sent
// over a WebSocket, with acknowledgements for the import boundaries.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/trcimport/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartImport = "start_import"
	TypeEndImport   = "end_import"
	TypeAddEntity   = "add_entity"
	TypeAnimation   = "animation"
	TypeAck         = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartImportPayload opens a scene on the server.
type StartImportPayload struct {
	Import *core.ImportInfo `json:"import"`
}

// EndImportPayload closes the scene; counts let the server verify that
// nothing was lost in transit.
type EndImportPayload struct {
	ImportID  string `json:"importId"`
	Entities  int    `json:"entities"`
	Keyframes int    `json:"keyframes"`
}
