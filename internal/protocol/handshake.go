package protocol

import "encoding/json"

// Protocol name and version accepted in the opening handshake
const (
	HandshakeProtocol = "json"
	HandshakeVersion  = 1
)

// HandshakeRequest is the optional first record a client sends
type HandshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// HandshakeResponse answers a handshake; Error is empty on success
type HandshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// ParseHandshake reports whether record is a handshake request rather than
// an envelope. Envelopes always carry a "type" field; handshakes never do.
func ParseHandshake(record []byte) (*HandshakeRequest, bool) {
	var probe struct {
		Type     *int   `json:"type"`
		Protocol string `json:"protocol"`
	}
	if err := json.Unmarshal(record, &probe); err != nil {
		return nil, false
	}
	if probe.Type != nil || probe.Protocol == "" {
		return nil, false
	}
	var req HandshakeRequest
	if err := json.Unmarshal(record, &req); err != nil {
		return nil, false
	}
	return &req, true
}

// EncodeHandshakeRequest returns the framed handshake a client opens with
func EncodeHandshakeRequest() []byte {
	data, _ := json.Marshal(HandshakeRequest{Protocol: HandshakeProtocol, Version: HandshakeVersion})
	return append(data, RecordSeparator)
}

// EncodeHandshakeResponse returns a framed handshake response
func EncodeHandshakeResponse(errMsg string) []byte {
	data, _ := json.Marshal(HandshakeResponse{Error: errMsg})
	return append(data, RecordSeparator)
}

// Accept validates a handshake request and returns the error message to
// send back, or "" when accepted
func (r *HandshakeRequest) Accept() string {
	if r.Protocol != HandshakeProtocol {
		return "unsupported protocol: " + r.Protocol
	}
	if r.Version != HandshakeVersion {
		return "unsupported protocol version"
	}
	return ""
}
