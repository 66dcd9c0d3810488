package headers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
)

func TestAuthorizationBasic(t *testing.T) {
	h := Authorization{
		Method:    AuthBasic,
		BasicUser: "admin",
		BasicPass: "secret",
	}

	v := h.Marshal()
	require.Equal(t, base.HeaderValue{"Basic YWRtaW46c2VjcmV0"}, v)

	var h2 Authorization
	err := h2.Unmarshal(v)
	require.NoError(t, err)
	require.Equal(t, h, h2)
}

func TestAuthorizationDigest(t *testing.T) {
	v := base.HeaderValue{"Digest username=\"admin\", realm=\"motioneye\", " +
		"nonce=\"abcdef\", uri=\"rtsp://localhost:8554/cam2\", response=\"00112233\""}

	var h Authorization
	err := h.Unmarshal(v)
	require.NoError(t, err)
	require.Equal(t, Authorization{
		Method:   AuthDigest,
		Username: "admin",
		Realm:    "motioneye",
		Nonce:    "abcdef",
		URI:      "rtsp://localhost:8554/cam2",
		Response: "00112233",
	}, h)

	require.Equal(t, v, h.Marshal())
}

func TestAuthorizationUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		v    base.HeaderValue
	}{
		{
			"empty",
			base.HeaderValue{},
		},
		{
			"no space",
			base.HeaderValue{"Basic"},
		},
		{
			"invalid method",
			base.HeaderValue{"Bearer abc"},
		},
		{
			"invalid base64",
			base.HeaderValue{"Basic ***"},
		},
		{
			"digest missing fields",
			base.HeaderValue{"Digest username=\"admin\""},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var h Authorization
			require.Error(t, h.Unmarshal(ca.v))
		})
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	for _, ca := range []struct {
		name string
		h    Authenticate
	}{
		{
			"basic",
			Authenticate{
				Method: AuthBasic,
				Realm:  "motioneye",
			},
		},
		{
			"digest",
			Authenticate{
				Method: AuthDigest,
				Realm:  "motioneye",
				Nonce:  "0a1b2c3d",
			},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var h2 Authenticate
			err := h2.Unmarshal(ca.h.Marshal())
			require.NoError(t, err)
			require.Equal(t, ca.h, h2)
		})
	}
}
