package rtpsender

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func TestSenderReport(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	rs := &Sender{
		ClockRate: 90000,
		Period:    100 * time.Hour, // reports are requested manually
		TimeNow: func() time.Time {
			return now
		},
		WritePacketRTCP: func(rtcp.Packet) {},
	}
	rs.Initialize()
	defer rs.Close()

	// no packets sent yet
	require.Nil(t, rs.Report())

	rs.ProcessPacket(&rtp.Packet{
		Header: rtp.Header{
			SSRC:      0xaabbccdd,
			Timestamp: 90000,
		},
		Payload: make([]byte, 100),
	})
	rs.ProcessPacket(&rtp.Packet{
		Header: rtp.Header{
			SSRC:      0xaabbccdd,
			Timestamp: 93000,
		},
		Payload: make([]byte, 200),
	})

	// one second later, the RTP time advances by one clock rate unit
	now = now.Add(1 * time.Second)

	report := rs.Report()
	require.NotNil(t, report)

	sr, ok := report.(*rtcp.SenderReport)
	require.True(t, ok)
	require.Equal(t, uint32(0xaabbccdd), sr.SSRC)
	require.Equal(t, uint32(93000+90000), sr.RTPTime)
	require.Equal(t, uint32(2), sr.PacketCount)
	require.Equal(t, uint32(300), sr.OctetCount)

	// NTP timestamp carries the 1900 epoch offset
	require.Equal(t, uint64(now.Unix())+2208988800, sr.NTPTime>>32)
}

func TestSenderPeriodicReports(t *testing.T) {
	reports := make(chan rtcp.Packet, 1)

	rs := &Sender{
		ClockRate: 90000,
		Period:    10 * time.Millisecond,
		WritePacketRTCP: func(p rtcp.Packet) {
			select {
			case reports <- p:
			default:
			}
		},
	}
	rs.Initialize()
	defer rs.Close()

	rs.ProcessPacket(&rtp.Packet{
		Header:  rtp.Header{SSRC: 1, Timestamp: 0},
		Payload: []byte{0x01},
	})

	select {
	case <-reports:
	case <-time.After(time.Second):
		t.Fatal("no report received")
	}
}
