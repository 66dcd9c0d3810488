package rtph264

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func uint16Ptr(v uint16) *uint16 {
	return &v
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}

func newTestEncoder(t *testing.T) *Encoder {
	e := &Encoder{
		PayloadType:           96,
		SSRC:                  uint32Ptr(0x9dbb7812),
		InitialSequenceNumber: uint16Ptr(0x44ed),
	}
	require.NoError(t, e.Init())
	return e
}

func TestEncodeSingle(t *testing.T) {
	e := newTestEncoder(t)

	sps := []byte{0x67, 0x42, 0x00, 0x1f}
	pps := []byte{0x68, 0xce, 0x38, 0x80}
	idr := append([]byte{0x65}, bytes.Repeat([]byte{0x02}, 200)...)

	pkts, err := e.Encode([][]byte{sps, pps, idr}, 0x12345678)
	require.NoError(t, err)
	require.Len(t, pkts, 3)

	for i, pkt := range pkts {
		require.Equal(t, uint8(2), pkt.Version)
		require.Equal(t, uint8(96), pkt.PayloadType)
		require.Equal(t, uint16(0x44ed+i), pkt.SequenceNumber)
		require.Equal(t, uint32(0x12345678), pkt.Timestamp)
		require.Equal(t, uint32(0x9dbb7812), pkt.SSRC)
	}

	require.Equal(t, sps, pkts[0].Payload)
	require.Equal(t, pps, pkts[1].Payload)
	require.Equal(t, idr, pkts[2].Payload)

	// exactly one marker, on the last packet
	require.False(t, pkts[0].Marker)
	require.False(t, pkts[1].Marker)
	require.True(t, pkts[2].Marker)
}

func TestEncodeFragmented(t *testing.T) {
	e := newTestEncoder(t)

	// 5000-byte IDR NALU with MTU payload 1400:
	// ceil((5000-1)/(1400-2)) = 4 FU-A packets
	nalu := append([]byte{0x65}, bytes.Repeat([]byte{0x0a}, 4999)...)

	pkts, err := e.Encode([][]byte{nalu}, 2090771520)
	require.NoError(t, err)
	require.Len(t, pkts, 4)

	require.Equal(t, byte(0x7c), pkts[0].Payload[0])
	require.Equal(t, byte(0x85), pkts[0].Payload[1])
	require.Equal(t, byte(0x7c), pkts[1].Payload[0])
	require.Equal(t, byte(0x05), pkts[1].Payload[1])
	require.Equal(t, byte(0x7c), pkts[2].Payload[0])
	require.Equal(t, byte(0x05), pkts[2].Payload[1])
	require.Equal(t, byte(0x7c), pkts[3].Payload[0])
	require.Equal(t, byte(0x45), pkts[3].Payload[1])

	// only the last packet carries the marker
	for _, pkt := range pkts[:3] {
		require.False(t, pkt.Marker)
		require.Len(t, pkt.Payload, 1400)
	}
	require.True(t, pkts[3].Marker)

	// reassembling the fragments yields the original NALU
	reassembled := []byte{(pkts[0].Payload[0] & 0xE0) | (pkts[0].Payload[1] & 0x1F)}
	for _, pkt := range pkts {
		reassembled = append(reassembled, pkt.Payload[2:]...)
	}
	require.Equal(t, nalu, reassembled)

	// all packets share the timestamp, sequence numbers are consecutive
	for i, pkt := range pkts {
		require.Equal(t, uint32(2090771520), pkt.Timestamp)
		require.Equal(t, uint16(0x44ed+i), pkt.SequenceNumber)
	}
}

func TestEncodeBoundaryNotFragmented(t *testing.T) {
	e := newTestEncoder(t)

	// a NALU of exactly the payload budget is not fragmented
	nalu := append([]byte{0x41}, bytes.Repeat([]byte{0x0b}, 1399)...)

	pkts, err := e.Encode([][]byte{nalu}, 0)
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	require.Equal(t, nalu, pkts[0].Payload)
}

func TestEncodeSequenceNumberWraps(t *testing.T) {
	e := &Encoder{
		PayloadType:           96,
		SSRC:                  uint32Ptr(1),
		InitialSequenceNumber: uint16Ptr(0xffff),
	}
	require.NoError(t, e.Init())

	pkts, err := e.Encode([][]byte{{0x41, 0x01}, {0x41, 0x02}}, 0)
	require.NoError(t, err)
	require.Equal(t, uint16(0xffff), pkts[0].SequenceNumber)
	require.Equal(t, uint16(0x0000), pkts[1].SequenceNumber)
}

func TestEncodeErrors(t *testing.T) {
	e := newTestEncoder(t)

	_, err := e.Encode([][]byte{{}}, 0)
	require.Error(t, err)
}
