package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
	"github.com/sn8k/motioneye-rtsp/pkg/headers"
)

func TestGenerateNonce(t *testing.T) {
	nonce, err := GenerateNonce()
	require.NoError(t, err)
	require.Len(t, nonce, 32)
}

func TestGenerateWWWAuthenticate(t *testing.T) {
	v := GenerateWWWAuthenticate("motioneye", "abcdef")
	require.Len(t, v, 2)
	require.Equal(t, "Basic realm=\"motioneye\"", v[0])
	require.Equal(t, "Digest realm=\"motioneye\", nonce=\"abcdef\"", v[1])
}

func TestValidateBasic(t *testing.T) {
	req := &base.Request{
		Method: base.Describe,
		URL:    base.MustParseURL("rtsp://localhost:8554/cam2"),
		Header: base.Header{
			"Authorization": headers.Authorization{
				Method:    headers.AuthBasic,
				BasicUser: "admin",
				BasicPass: "secret",
			}.Marshal(),
		},
	}

	require.NoError(t, Validate(req, "admin", "secret", "motioneye", "abc"))
	require.Error(t, Validate(req, "admin", "other", "motioneye", "abc"))
	require.Error(t, Validate(req, "other", "secret", "motioneye", "abc"))
}

func TestValidateDigest(t *testing.T) {
	nonce, err := GenerateNonce()
	require.NoError(t, err)

	uri := "rtsp://localhost:8554/cam2"
	response := md5Hex(md5Hex("admin:motioneye:secret") + ":" + nonce + ":" +
		md5Hex("SETUP:"+uri))

	req := &base.Request{
		Method: base.Setup,
		URL:    base.MustParseURL(uri + "/trackID=0"),
		Header: base.Header{
			"Authorization": headers.Authorization{
				Method:   headers.AuthDigest,
				Username: "admin",
				Realm:    "motioneye",
				Nonce:    nonce,
				URI:      uri,
				Response: response,
			}.Marshal(),
		},
	}

	// URI without control attribute must be accepted
	require.NoError(t, Validate(req, "admin", "secret", "motioneye", nonce))

	// wrong password produces a different response hash
	require.Error(t, Validate(req, "admin", "other", "motioneye", nonce))

	// stale nonce
	require.Error(t, Validate(req, "admin", "secret", "motioneye", "othernonce"))
}

func TestValidateMissingHeader(t *testing.T) {
	req := &base.Request{
		Method: base.Describe,
		URL:    base.MustParseURL("rtsp://localhost:8554/cam2"),
		Header: base.Header{},
	}
	require.Error(t, Validate(req, "admin", "secret", "motioneye", "abc"))
}
