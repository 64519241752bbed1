package main

import "github.com/fxamacker/cbor/v2"

// Request and Response are the demo application-level payloads carried
// inside the endpoint's opaque MESSAGE/RESPONSE bytes. Their shape and
// Marshal/Unmarshal pair are modeled on
// server/cborplugin.Request/Response.
type Request struct {
	// Op names the operation: "echo" or "reverse".
	Op      string
	Payload []byte
}

// Marshal serializes Request.
func (r *Request) Marshal() ([]byte, error) {
	return cbor.Marshal(r)
}

// Unmarshal deserializes Request.
func (r *Request) Unmarshal(b []byte) error {
	return cbor.Unmarshal(b, r)
}

type Response struct {
	Payload []byte
	Err     string
}

// Marshal serializes Response.
func (r *Response) Marshal() ([]byte, error) {
	return cbor.Marshal(r)
}

// Unmarshal deserializes Response.
func (r *Response) Unmarshal(b []byte) error {
	return cbor.Unmarshal(b, r)
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// handleRequest implements the demo's only two operations. It is the
// opaque endpoint.Handler the core RPC endpoint never inspects.
func handleRequest(payload []byte) ([]byte, error) {
	req := &Request{}
	if err := req.Unmarshal(payload); err != nil {
		resp := &Response{Err: err.Error()}
		return resp.Marshal()
	}

	resp := &Response{}
	switch req.Op {
	case "reverse":
		resp.Payload = reverseBytes(req.Payload)
	default:
		resp.Payload = req.Payload
	}
	return resp.Marshal()
}
