package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Equal(t, 8554, cfg.Port)
	require.Equal(t, "0.0.0.0", cfg.Listen)
	require.False(t, cfg.AuthEnabled())
	require.Equal(t, "", cfg.AudioDevice)
	require.Equal(t, 2000000, cfg.VideoBitrate)
	require.Equal(t, "ultrafast", cfg.VideoPreset)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("RTSP_PORT", "9554")
	t.Setenv("RTSP_USERNAME", "admin")
	t.Setenv("RTSP_PASSWORD", "secret")
	t.Setenv("RTSP_AUDIO_ENABLED", "true")
	t.Setenv("RTSP_CAMERAS", `[{"id": 2, "name": "Door", "stream_url": "http://127.0.0.1:8081", "aliases": ["stream"], "framerate": 25}]`)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9554, cfg.Port)
	require.True(t, cfg.AuthEnabled())
	require.True(t, cfg.AudioEnabled)
	require.Len(t, cfg.Cameras, 1)
	require.Equal(t, 2, cfg.Cameras[0].ID)
	require.Equal(t, []string{"stream"}, cfg.Cameras[0].Aliases)
}

func TestLoadCamerasFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.json")
	err := os.WriteFile(path, []byte(`[{"id": 1, "stream_url": "http://127.0.0.1:8081"}]`), 0o644)
	require.NoError(t, err)

	t.Setenv("RTSP_CAMERAS", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Cameras, 1)
}

func TestValidateErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		cfg  Config
	}{
		{
			"invalid port",
			Config{Port: -1},
		},
		{
			"username without password",
			Config{Port: 8554, Username: "admin"},
		},
		{
			"camera without url",
			Config{Port: 8554, Cameras: []Camera{{ID: 1}}},
		},
		{
			"duplicate camera id",
			Config{Port: 8554, Cameras: []Camera{
				{ID: 1, StreamURL: "http://a"},
				{ID: 1, StreamURL: "http://b"},
			}},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			require.Error(t, ca.cfg.Validate())
		})
	}
}
