package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURLRTSPPath(t *testing.T) {
	for _, ca := range []struct {
		name string
		u    string
		path string
	}{
		{
			"mount",
			"rtsp://localhost:8554/cam2",
			"cam2",
		},
		{
			"mount with track",
			"rtsp://localhost:8554/cam2/trackID=0",
			"cam2/trackID=0",
		},
		{
			"mount with query",
			"rtsp://localhost:8554/cam2?user=x",
			"cam2",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			u := MustParseURL(ca.u)
			path, ok := u.RTSPPath()
			require.True(t, ok)
			require.Equal(t, ca.path, path)
		})
	}
}

func TestPathSplitControlAttribute(t *testing.T) {
	for _, ca := range []struct {
		name    string
		path    string
		trackID int
		base    string
	}{
		{
			"no track",
			"cam2",
			0,
			"cam2",
		},
		{
			"video track",
			"cam2/trackID=0",
			0,
			"cam2",
		},
		{
			"audio track",
			"cam2/trackID=1",
			1,
			"cam2",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			trackID, base, ok := PathSplitControlAttribute(ca.path)
			require.True(t, ok)
			require.Equal(t, ca.trackID, trackID)
			require.Equal(t, ca.base, base)
		})
	}

	_, _, ok := PathSplitControlAttribute("cam2/trackID=x")
	require.False(t, ok)
}

func TestParseURLErrors(t *testing.T) {
	_, err := ParseURL("http://localhost/stream")
	require.Error(t, err)
}
