package session

import (
	"crypto/rand"
	"fmt"
	"net"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
	"github.com/sn8k/motioneye-rtsp/pkg/rtph264"
	"github.com/sn8k/motioneye-rtsp/pkg/rtpsender"
	"github.com/sn8k/motioneye-rtsp/pkg/rtpsimpleaudio"
	"github.com/sn8k/motioneye-rtsp/pkg/rtptime"
)

// track ids.
const (
	TrackVideo = 0
	TrackAudio = 1
)

// payload types.
const (
	PayloadTypeH264 = 96
	PayloadTypePCMU = 0
	PayloadTypePCMA = 8
)

// TCPWriter writes interleaved frames on a RTSP connection.
// Implementations serialize writes with the RTSP responses.
type TCPWriter interface {
	WriteInterleaved(channel int, payload []byte) error
}

// ChannelParams are the transport parameters of a SETUP request.
type ChannelParams struct {
	TrackID  int
	Protocol base.StreamProtocol

	// UDP transport
	ClientIP       net.IP
	ClientRTPPort  int
	ClientRTCPPort int

	// TCP transport
	InterleavedIDs [2]int
	TCPWriter      TCPWriter
}

// Channel is the RTP channel of a single track of a session.
type Channel struct {
	params    ChannelParams
	ssrc      uint32
	initialTS uint32
	clockRate int

	// UDP transport
	rtpConn       *net.UDPConn
	rtcpConn      *net.UDPConn
	serverPorts   [2]int
	clientRTPAddr *net.UDPAddr
	rtcpAddr      *net.UDPAddr

	videoEnc *rtph264.Encoder
	audioEnc *rtpsimpleaudio.Encoder
	tsEnc    *rtptime.Encoder
	audioTS  uint32

	sender *rtpsender.Sender

	sentTS  uint32
	sentAny bool
}

func randUint32() (uint32, error) {
	var b [4]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// allocateUDPPair binds two consecutive UDP ports, RTP on the even one.
func allocateUDPPair() (*net.UDPConn, *net.UDPConn, error) {
	for i := 0; i < 64; i++ {
		rtpConn, err := net.ListenUDP("udp", &net.UDPAddr{})
		if err != nil {
			return nil, nil, err
		}

		port := rtpConn.LocalAddr().(*net.UDPAddr).Port
		if port%2 != 0 {
			rtpConn.Close()
			continue
		}

		rtcpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port + 1})
		if err != nil {
			rtpConn.Close()
			continue
		}

		return rtpConn, rtcpConn, nil
	}

	return nil, nil, fmt.Errorf("unable to allocate a UDP port pair")
}

func newChannel(params ChannelParams, audioPayloadType uint8) (*Channel, error) {
	ssrc, err := randUint32()
	if err != nil {
		return nil, err
	}

	initialTS, err := randUint32()
	if err != nil {
		return nil, err
	}

	seq32, err := randUint32()
	if err != nil {
		return nil, err
	}
	initialSeq := uint16(seq32)

	c := &Channel{
		params:    params,
		ssrc:      ssrc,
		initialTS: initialTS,
	}

	if params.TrackID == TrackVideo {
		c.clockRate = 90000
		c.videoEnc = &rtph264.Encoder{
			PayloadType:           PayloadTypeH264,
			SSRC:                  &ssrc,
			InitialSequenceNumber: &initialSeq,
		}
		err = c.videoEnc.Init()
		if err != nil {
			return nil, err
		}
		c.tsEnc = rtptime.NewEncoder(90000, 90000, initialTS)
	} else {
		c.clockRate = 8000
		c.audioEnc = &rtpsimpleaudio.Encoder{
			PayloadType:           audioPayloadType,
			SSRC:                  &ssrc,
			InitialSequenceNumber: &initialSeq,
		}
		err = c.audioEnc.Init()
		if err != nil {
			return nil, err
		}
		c.audioTS = initialTS
	}

	if params.Protocol == base.StreamProtocolUDP {
		c.rtpConn, c.rtcpConn, err = allocateUDPPair()
		if err != nil {
			return nil, err
		}

		c.serverPorts = [2]int{
			c.rtpConn.LocalAddr().(*net.UDPAddr).Port,
			c.rtcpConn.LocalAddr().(*net.UDPAddr).Port,
		}
		c.clientRTPAddr = &net.UDPAddr{IP: params.ClientIP, Port: params.ClientRTPPort}
		c.rtcpAddr = &net.UDPAddr{IP: params.ClientIP, Port: params.ClientRTCPPort}
	}

	c.sender = &rtpsender.Sender{
		ClockRate:       c.clockRate,
		WritePacketRTCP: c.writeRTCP,
	}
	c.sender.Initialize()

	return c, nil
}

func (c *Channel) close() {
	c.sender.Close()

	if c.rtpConn != nil {
		c.rtpConn.Close()
	}
	if c.rtcpConn != nil {
		c.rtcpConn.Close()
	}
}

// SSRC returns the synchronization source of the channel.
func (c *Channel) SSRC() uint32 {
	return c.ssrc
}

// ServerPorts returns the UDP server ports of the channel.
func (c *Channel) ServerPorts() [2]int {
	return c.serverPorts
}

// InterleavedIDs returns the interleaved ids of the channel.
func (c *Channel) InterleavedIDs() [2]int {
	return c.params.InterleavedIDs
}

// Protocol returns the transport protocol of the channel.
func (c *Channel) Protocol() base.StreamProtocol {
	return c.params.Protocol
}

// NextSequenceNumber returns the sequence number of the next packet.
func (c *Channel) NextSequenceNumber() uint16 {
	if c.videoEnc != nil {
		return c.videoEnc.NextSequenceNumber()
	}
	return c.audioEnc.NextSequenceNumber()
}

// StartTimestamp returns the RTP timestamp of the first access unit.
func (c *Channel) StartTimestamp() uint32 {
	return c.initialTS
}

// lastOrInitialTS returns the timestamp to attach to parameter sets:
// the timestamp of the last unit sent, or a timestamp right before the
// first one when nothing was sent yet.
func (c *Channel) lastOrInitialTS() uint32 {
	if c.sentAny {
		return c.sentTS
	}
	return c.initialTS - 1
}

// writeRTP sends a RTP packet through the channel transport.
// A UDP failure only drops the packet; a TCP failure is returned to the
// caller, which terminates the session.
func (c *Channel) writeRTP(pkt *rtp.Packet) error {
	byts, err := pkt.Marshal()
	if err != nil {
		return nil
	}

	if c.params.Protocol == base.StreamProtocolUDP {
		_, err = c.rtpConn.WriteToUDP(byts, c.clientRTPAddr)
		if err != nil {
			logrus.Debugf("[session] UDP RTP write failed: %v", err)
			return nil
		}
	} else {
		err = c.params.TCPWriter.WriteInterleaved(c.params.InterleavedIDs[0], byts)
		if err != nil {
			return err
		}
	}

	c.sender.ProcessPacket(pkt)
	c.sentTS = pkt.Timestamp
	c.sentAny = true

	return nil
}

// writeRTCP sends a RTCP packet through the channel transport.
func (c *Channel) writeRTCP(pkt rtcp.Packet) {
	byts, err := pkt.Marshal()
	if err != nil {
		return
	}

	if c.params.Protocol == base.StreamProtocolUDP {
		if c.rtcpConn != nil {
			_, err = c.rtcpConn.WriteToUDP(byts, c.rtcpAddr)
			if err != nil {
				logrus.Debugf("[session] UDP RTCP write failed: %v", err)
			}
		}
	} else {
		err = c.params.TCPWriter.WriteInterleaved(c.params.InterleavedIDs[1], byts)
		if err != nil {
			logrus.Debugf("[session] TCP RTCP write failed: %v", err)
		}
	}
}
