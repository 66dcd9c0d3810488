package headers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
)

var casesRTPInfo = []struct {
	name string
	v    base.HeaderValue
	h    RTPInfo
}{
	{
		"single track",
		base.HeaderValue{"url=rtsp://127.0.0.1:8554/cam2/trackID=0;seq=35243;rtptime=717574246"},
		RTPInfo{
			{
				URL:            "rtsp://127.0.0.1:8554/cam2/trackID=0",
				SequenceNumber: 35243,
				RTPTime:        717574246,
			},
		},
	},
	{
		"video and audio",
		base.HeaderValue{"url=rtsp://127.0.0.1:8554/cam2/trackID=0;seq=35243;rtptime=717574246," +
			"url=rtsp://127.0.0.1:8554/cam2/trackID=1;seq=13320;rtptime=872642"},
		RTPInfo{
			{
				URL:            "rtsp://127.0.0.1:8554/cam2/trackID=0",
				SequenceNumber: 35243,
				RTPTime:        717574246,
			},
			{
				URL:            "rtsp://127.0.0.1:8554/cam2/trackID=1",
				SequenceNumber: 13320,
				RTPTime:        872642,
			},
		},
	},
}

func TestRTPInfoUnmarshal(t *testing.T) {
	for _, ca := range casesRTPInfo {
		t.Run(ca.name, func(t *testing.T) {
			var h RTPInfo
			err := h.Unmarshal(ca.v)
			require.NoError(t, err)
			require.Equal(t, ca.h, h)
		})
	}
}

func TestRTPInfoMarshal(t *testing.T) {
	for _, ca := range casesRTPInfo {
		t.Run(ca.name, func(t *testing.T) {
			require.Equal(t, ca.v, ca.h.Marshal())
		})
	}
}
