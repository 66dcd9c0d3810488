package base

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var casesInterleavedFrame = []struct {
	name string
	byts []byte
	f    InterleavedFrame
}{
	{
		"rtp",
		[]byte{0x24, 0x00, 0x00, 0x04, 0x01, 0x02, 0x03, 0x04},
		InterleavedFrame{
			Channel: 0,
			Payload: []byte{0x01, 0x02, 0x03, 0x04},
		},
	},
	{
		"rtcp",
		[]byte{0x24, 0x01, 0x00, 0x02, 0xaa, 0xbb},
		InterleavedFrame{
			Channel: 1,
			Payload: []byte{0xaa, 0xbb},
		},
	},
}

func TestInterleavedFrameRead(t *testing.T) {
	for _, ca := range casesInterleavedFrame {
		t.Run(ca.name, func(t *testing.T) {
			var f InterleavedFrame
			err := f.Read(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.NoError(t, err)
			require.Equal(t, ca.f, f)
		})
	}
}

func TestInterleavedFrameMarshal(t *testing.T) {
	for _, ca := range casesInterleavedFrame {
		t.Run(ca.name, func(t *testing.T) {
			byts, err := ca.f.Marshal()
			require.NoError(t, err)
			require.Equal(t, ca.byts, byts)
		})
	}
}

func TestInterleavedFrameReadInvalidMagic(t *testing.T) {
	var f InterleavedFrame
	err := f.Read(bufio.NewReader(bytes.NewBuffer([]byte{0x55, 0x00, 0x00, 0x00})))
	require.Error(t, err)
}
