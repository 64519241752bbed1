// Package wire implements the framing codec for the RPC endpoint's wire
// protocol: a length-prefixed JSON handshake followed by a stream of
// tagged, big-endian-integer packets. It is the leaf dependency of
// package endpoint and has no knowledge of in-flight messages, queues, or
// activities — only of how bytes on the stream are shaped, in the spirit
// of core/wire/commands as used by client2/connection.go.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// PacketType tags every packet after the initial handshake.
type PacketType uint8

const (
	// Handshake never appears as a tag byte in the ongoing stream; it is
	// reserved to detect the protocol violation of a second handshake.
	Handshake PacketType = 0
	Keepalive PacketType = 1
	Message   PacketType = 2
	Response  PacketType = 3
)

func (t PacketType) String() string {
	switch t {
	case Handshake:
		return "HANDSHAKE"
	case Keepalive:
		return "KEEPALIVE"
	case Message:
		return "MESSAGE"
	case Response:
		return "RESPONSE"
	default:
		return fmt.Sprintf("PacketType(%d)", uint8(t))
	}
}

// MaxPayloadLen is the largest message or response payload the wire
// protocol can carry; payload_len is a u16.
const MaxPayloadLen = 65535

// OurProtocol is the protocol field this implementation advertises in its
// handshake. Peers do not currently branch on it, but a future version
// should reject unknown values on either side (spec.md §9).
const OurProtocol = 1

// PeerInfo is exchanged verbatim, once, as the first bytes in each
// direction. Field names are deliberately short for forward compatibility.
type PeerInfo struct {
	Protocol          int     `json:"p"`
	KeepaliveInterval float64 `json:"k"`
}

// WriteHandshake writes the u32-length-prefixed JSON handshake blob.
func WriteHandshake(w io.Writer, info PeerInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("wire: encode handshake: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadHandshake reads the u32-length-prefixed JSON handshake blob. r must
// support ReadFull semantics (use io.ReadFull internally).
func ReadHandshake(r io.Reader) (PeerInfo, error) {
	var info PeerInfo
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return info, err
	}
	mlen := binary.BigEndian.Uint32(lenBuf[:])
	blob := make([]byte, mlen)
	if _, err := io.ReadFull(r, blob); err != nil {
		return info, err
	}
	if err := json.Unmarshal(blob, &info); err != nil {
		return info, fmt.Errorf("wire: decode handshake: %w", err)
	}
	return info, nil
}

// EncodeKeepalive returns the single tag byte that makes up a KEEPALIVE
// packet.
func EncodeKeepalive() []byte {
	return []byte{byte(Keepalive)}
}

// EncodeMessage frames a MESSAGE packet: tag, u16 id, u16 len, payload.
func EncodeMessage(id uint16, payload []byte) ([]byte, error) {
	return encodeFramed(Message, id, payload)
}

// EncodeResponse frames a RESPONSE packet: tag, u16 id, u16 len, payload.
func EncodeResponse(id uint16, payload []byte) ([]byte, error) {
	return encodeFramed(Response, id, payload)
}

func encodeFramed(tag PacketType, id uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("wire: payload of %d bytes exceeds %d byte limit", len(payload), MaxPayloadLen)
	}
	buf := make([]byte, 0, 5+len(payload))
	buf = append(buf, byte(tag))
	var idBuf, lenBuf [2]byte
	binary.BigEndian.PutUint16(idBuf[:], id)
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	buf = append(buf, idBuf[:]...)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)
	return buf, nil
}

// ReadTag reads the single tag byte that begins every packet after the
// handshake.
func ReadTag(r io.Reader) (PacketType, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return 0, err
	}
	return PacketType(tagBuf[0]), nil
}

// ReadIDAndPayload reads the u16 id, u16 len, and len bytes that follow the
// tag of a MESSAGE or RESPONSE packet.
func ReadIDAndPayload(r io.Reader) (id uint16, payload []byte, err error) {
	var idBuf, lenBuf [2]byte
	if _, err = io.ReadFull(r, idBuf[:]); err != nil {
		return 0, nil, err
	}
	id = binary.BigEndian.Uint16(idBuf[:])
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	plen := binary.BigEndian.Uint16(lenBuf[:])
	payload = make([]byte, plen)
	if _, err = io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return id, payload, nil
}
