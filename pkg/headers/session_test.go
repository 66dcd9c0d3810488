package headers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
)

func uintPtr(v uint) *uint {
	return &v
}

var casesSession = []struct {
	name string
	vin  base.HeaderValue
	vout base.HeaderValue
	h    Session
}{
	{
		"id only",
		base.HeaderValue{"90e24f6bffa8c486"},
		base.HeaderValue{"90e24f6bffa8c486"},
		Session{
			Session: "90e24f6bffa8c486",
		},
	},
	{
		"id and timeout",
		base.HeaderValue{"90e24f6bffa8c486;timeout=60"},
		base.HeaderValue{"90e24f6bffa8c486;timeout=60"},
		Session{
			Session: "90e24f6bffa8c486",
			Timeout: uintPtr(60),
		},
	},
}

func TestSessionUnmarshal(t *testing.T) {
	for _, ca := range casesSession {
		t.Run(ca.name, func(t *testing.T) {
			var h Session
			err := h.Unmarshal(ca.vin)
			require.NoError(t, err)
			require.Equal(t, ca.h, h)
		})
	}
}

func TestSessionMarshal(t *testing.T) {
	for _, ca := range casesSession {
		t.Run(ca.name, func(t *testing.T) {
			require.Equal(t, ca.vout, ca.h.Marshal())
		})
	}
}

func TestSessionUnmarshalErrors(t *testing.T) {
	var h Session
	require.Error(t, h.Unmarshal(base.HeaderValue{}))
	require.Error(t, h.Unmarshal(base.HeaderValue{"x;keepalive"}))
	require.Error(t, h.Unmarshal(base.HeaderValue{"x;other=1"}))
}
