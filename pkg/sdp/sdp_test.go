package sdp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testSPS = []byte{
	0x67, 0x42, 0x00, 0x1f, 0x96, 0x54, 0x05, 0x01,
	0xed, 0x80, 0xa8, 0x40, 0x00, 0x00, 0x03, 0x00,
	0x40, 0x00, 0x00, 0x0c, 0x83, 0xc6, 0x0c, 0xa8,
}

var testPPS = []byte{0x68, 0xce, 0x38, 0x80}

func TestMarshalVideoOnly(t *testing.T) {
	d := &Description{
		StreamID:  "cam2",
		ServerIP:  "192.168.1.10",
		SessionID: 1234,
		SPS:       testSPS,
		PPS:       testPPS,
		Framerate: 25,
	}

	byts, err := d.Marshal()
	require.NoError(t, err)
	sdp := string(byts)

	require.True(t, strings.HasPrefix(sdp, "v=0\r\n"))
	require.Contains(t, sdp, "o=- 1234 1234 IN IP4 192.168.1.10\r\n")
	require.Contains(t, sdp, "s=cam2\r\n")
	require.Contains(t, sdp, "c=IN IP4 0.0.0.0\r\n")
	require.Contains(t, sdp, "t=0 0\r\n")
	require.Contains(t, sdp, "a=control:*\r\n")
	require.Contains(t, sdp, "m=video 0 RTP/AVP 96\r\n")
	require.Contains(t, sdp, "a=rtpmap:96 H264/90000\r\n")
	require.Contains(t, sdp, "packetization-mode=1")
	require.Contains(t, sdp, "profile-level-id=42001f")
	require.Contains(t, sdp, "sprop-parameter-sets=Z0IAH5ZUBQHtgKhAAAADAEAAAAyDxgyo,aM44gA==")
	require.Contains(t, sdp, "a=control:trackID=0\r\n")
	require.Contains(t, sdp, "a=framerate:25\r\n")
	require.NotContains(t, sdp, "m=audio")
}

func TestMarshalWithAudio(t *testing.T) {
	d := &Description{
		StreamID:       "cam2",
		ServerIP:       "192.168.1.10",
		SessionID:      1234,
		SPS:            testSPS,
		PPS:            testPPS,
		AudioCodec:     "PCMU",
		AudioClockRate: 8000,
	}

	byts, err := d.Marshal()
	require.NoError(t, err)
	sdp := string(byts)

	require.Contains(t, sdp, "m=audio 0 RTP/AVP 0\r\n")
	require.Contains(t, sdp, "a=rtpmap:0 PCMU/8000/1\r\n")
	require.Contains(t, sdp, "a=control:trackID=1\r\n")
}

func TestMarshalWithoutParameterSets(t *testing.T) {
	d := &Description{
		StreamID:  "cam2",
		ServerIP:  "192.168.1.10",
		SessionID: 1234,
	}

	byts, err := d.Marshal()
	require.NoError(t, err)
	sdp := string(byts)

	require.Contains(t, sdp, "a=fmtp:96 packetization-mode=1\r\n")
	require.NotContains(t, sdp, "sprop-parameter-sets")
}

func TestMarshalInvalidAudioCodec(t *testing.T) {
	d := &Description{
		StreamID:   "cam2",
		ServerIP:   "192.168.1.10",
		AudioCodec: "AAC",
	}

	_, err := d.Marshal()
	require.Error(t, err)
}
