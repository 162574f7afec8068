package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// Supported subprotocols.
const (
	SubprotocolJSON     = "json.tgin.v1"
	SubprotocolProtobuf = "protobuf.tgin.v1"
)

const (
	protocolJSON     = "json"
	protocolProtobuf = "protobuf"
)

// negotiateProtocol picks the wire format from the client's requested
// subprotocols. JSON is the default.
func negotiateProtocol(r *http.Request) (string, http.Header) {
	for _, proto := range websocket.Subprotocols(r) {
		switch proto {
		case SubprotocolProtobuf:
			return protocolProtobuf, http.Header{"Sec-WebSocket-Protocol": {proto}}
		case SubprotocolJSON:
			return protocolJSON, http.Header{"Sec-WebSocket-Protocol": {proto}}
		}
	}
	return protocolJSON, nil
}

// buildConnectedMessageJSON creates the JSON greeting sent on connect.
func buildConnectedMessageJSON(connectionID, path, protocol string) []byte {
	msg := map[string]interface{}{
		"type":         "system",
		"event":        "connected",
		"connectionId": connectionID,
		"path":         path,
		"protocol":     protocol,
	}
	data, _ := json.Marshal(msg)
	return data
}

// frame is one outbound update rendered in both wire formats. The binary
// form is nil when no protobuf client is connected.
type frame struct {
	text   []byte
	binary []byte
}

func (f frame) forProtocol(protocol string) ([]byte, int) {
	if protocol == protocolProtobuf {
		return f.binary, websocket.BinaryMessage
	}
	return f.text, websocket.TextMessage
}
