package wire_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietmesh/wirerpc/wire"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	info := wire.PeerInfo{Protocol: wire.OurProtocol, KeepaliveInterval: 10.73}

	require.NoError(t, wire.WriteHandshake(&buf, info))

	// First bytes must be exactly u32-len || JSON, nothing else.
	got, err := wire.ReadHandshake(&buf)
	require.NoError(t, err)
	require.Equal(t, info, got)
	require.Equal(t, 0, buf.Len())
}

func TestHandshakeUsesShortFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteHandshake(&buf, wire.PeerInfo{Protocol: 1, KeepaliveInterval: 10.73}))
	// Skip the 4 byte length prefix and check the JSON body verbatim.
	body := buf.Bytes()[4:]
	require.Contains(t, string(body), `"p":1`)
	require.Contains(t, string(body), `"k":10.73`)
}

func TestEncodeMessageFraming(t *testing.T) {
	packet, err := wire.EncodeMessage(65530, []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, []byte{byte(wire.Message), 0xFF, 0xFA, 0x00, 0x03, 'a', 'b', 'c'}, packet)

	r := bytes.NewReader(packet)
	tag, err := wire.ReadTag(r)
	require.NoError(t, err)
	require.Equal(t, wire.Message, tag)

	id, payload, err := wire.ReadIDAndPayload(r)
	require.NoError(t, err)
	require.Equal(t, uint16(65530), id)
	require.Equal(t, []byte("abc"), payload)
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	_, err := wire.EncodeMessage(0, make([]byte, wire.MaxPayloadLen+1))
	require.Error(t, err)
}

func TestKeepaliveIsTagOnly(t *testing.T) {
	require.Equal(t, []byte{byte(wire.Keepalive)}, wire.EncodeKeepalive())
}

func TestReadHandshakeTruncatedStreamErrors(t *testing.T) {
	// Claims 10 bytes of JSON but supplies none; io.ReadFull reports io.EOF
	// when it reads no bytes at all.
	buf := bytes.NewBuffer([]byte{0, 0, 0, 10})
	_, err := wire.ReadHandshake(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadIDAndPayloadTruncatedErrors(t *testing.T) {
	// Claims a 5 byte payload but supplies 2.
	buf := bytes.NewBuffer([]byte{0x00, 0x01, 0x00, 0x05, 'h', 'i'})
	_, _, err := wire.ReadIDAndPayload(buf)
	require.Error(t, err)
}
