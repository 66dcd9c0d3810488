// Package rtpsimpleaudio contains a RTP packetizer for audio codecs that
// fit entire samples into single packets (G.711 µ-law and A-law).
package rtpsimpleaudio

import (
	"crypto/rand"

	"github.com/pion/rtp"
)

const rtpVersion = 2

// samplesPerPacket is the amount of 8-bit samples per packet,
// 20ms at 8kHz.
const samplesPerPacket = 160

func randUint32() (uint32, error) {
	var b [4]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Encoder is a RTP packetizer for simple audio codecs.
type Encoder struct {
	// payload type of packets.
	PayloadType uint8

	// SSRC of packets (optional).
	// It defaults to a random value.
	SSRC *uint32

	// initial sequence number of packets (optional).
	// It defaults to a random value.
	InitialSequenceNumber *uint16

	sequenceNumber uint16
}

// Init initializes the encoder.
func (e *Encoder) Init() error {
	if e.SSRC == nil {
		v, err := randUint32()
		if err != nil {
			return err
		}
		e.SSRC = &v
	}
	if e.InitialSequenceNumber == nil {
		v, err := randUint32()
		if err != nil {
			return err
		}
		v2 := uint16(v)
		e.InitialSequenceNumber = &v2
	}

	e.sequenceNumber = *e.InitialSequenceNumber
	return nil
}

// NextSequenceNumber returns the sequence number of the next packet.
func (e *Encoder) NextSequenceNumber() uint16 {
	return e.sequenceNumber
}

// Encode encodes samples into RTP packets. One byte is one sample;
// the timestamp of each packet advances by the sample count.
func (e *Encoder) Encode(samples []byte, timestamp uint32) ([]*rtp.Packet, error) {
	var rets []*rtp.Packet

	for len(samples) > 0 {
		n := len(samples)
		if n > samplesPerPacket {
			n = samplesPerPacket
		}

		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        rtpVersion,
				PayloadType:    e.PayloadType,
				SequenceNumber: e.sequenceNumber,
				Timestamp:      timestamp,
				SSRC:           *e.SSRC,
			},
			Payload: samples[:n],
		}

		e.sequenceNumber++
		timestamp += uint32(n)
		samples = samples[n:]

		rets = append(rets, pkt)
	}

	return rets, nil
}
