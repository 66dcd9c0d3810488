// Package rtpsender contains a utility to generate RTCP sender reports
// for an outgoing RTP track.
package rtpsender

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/sn8k/motioneye-rtsp/pkg/ntp"
)

// Sender keeps track of the packets sent on a RTP track and
// periodically emits RTCP sender reports through WritePacketRTCP.
type Sender struct {
	// clock rate of the track.
	ClockRate int

	// period between sender reports.
	Period time.Duration

	// called with every report; must not block.
	WritePacketRTCP func(rtcp.Packet)

	// test hook.
	TimeNow func() time.Time

	mutex sync.RWMutex

	firstPacketSent bool
	lastTimeRTP     uint32
	lastTimeSystem  time.Time
	localSSRC       uint32
	packetCount     uint32
	octetCount      uint32

	terminate chan struct{}
	done      chan struct{}
}

// Initialize initializes a Sender and starts the report loop.
func (rs *Sender) Initialize() {
	if rs.TimeNow == nil {
		rs.TimeNow = time.Now
	}
	if rs.Period == 0 {
		rs.Period = 5 * time.Second
	}

	rs.terminate = make(chan struct{})
	rs.done = make(chan struct{})

	go rs.run()
}

// Close closes the Sender.
func (rs *Sender) Close() {
	close(rs.terminate)
	<-rs.done
}

func (rs *Sender) run() {
	defer close(rs.done)

	t := time.NewTicker(rs.Period)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			report := rs.Report()
			if report != nil {
				rs.WritePacketRTCP(report)
			}

		case <-rs.terminate:
			return
		}
	}
}

// Report returns the current sender report, or nil when no packet has
// been sent yet.
func (rs *Sender) Report() rtcp.Packet {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	if !rs.firstPacketSent || rs.ClockRate == 0 {
		return nil
	}

	now := rs.TimeNow()
	systemTimeDiff := now.Sub(rs.lastTimeSystem)
	rtpTime := rs.lastTimeRTP + uint32(systemTimeDiff.Seconds()*float64(rs.ClockRate))

	return &rtcp.SenderReport{
		SSRC:        rs.localSSRC,
		NTPTime:     ntp.Encode(now),
		RTPTime:     rtpTime,
		PacketCount: rs.packetCount,
		OctetCount:  rs.octetCount,
	}
}

// ProcessPacket extracts data from an outgoing RTP packet.
func (rs *Sender) ProcessPacket(pkt *rtp.Packet) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	rs.firstPacketSent = true
	rs.lastTimeRTP = pkt.Timestamp
	rs.lastTimeSystem = rs.TimeNow()
	rs.localSSRC = pkt.SSRC

	rs.packetCount++
	rs.octetCount += uint32(len(pkt.Payload))
}
