// Package config holds the configuration of the RTSP streaming server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Camera describes one camera exposed through the server.
type Camera struct {
	// numeric camera id; the main mount path is "cam<ID>"
	ID int `json:"id"`

	// display name
	Name string `json:"name"`

	// source of the camera. A MJPEG snapshot endpoint
	// (http://...) or a passthrough RTSP source (rtsp://...).
	StreamURL string `json:"stream_url"`

	// additional mount paths resolving to this camera
	Aliases []string `json:"aliases"`

	// capture framerate; output is clamped to a minimum of 10
	Framerate int `json:"framerate"`

	// whether to capture and stream audio for this camera
	Audio bool `json:"audio"`
}

// Config holds the server configuration.
type Config struct {
	Enabled bool
	Port    int
	Listen  string

	Username string
	Password string

	AudioEnabled bool

	// ALSA device; empty means auto-detect. An empty value must never
	// be persisted, the auto-detect marker is the absence of the key.
	AudioDevice string

	VideoBitrate int
	VideoPreset  string

	LogLevel string

	Cameras []Camera
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Enabled:      getBool("RTSP_ENABLED", true),
		Port:         getInt("RTSP_PORT", 8554),
		Listen:       getString("RTSP_LISTEN", "0.0.0.0"),
		Username:     getString("RTSP_USERNAME", ""),
		Password:     getString("RTSP_PASSWORD", ""),
		AudioEnabled: getBool("RTSP_AUDIO_ENABLED", false),
		AudioDevice:  getString("RTSP_AUDIO_DEVICE", ""),
		VideoBitrate: getInt("RTSP_VIDEO_BITRATE", 2000000),
		VideoPreset:  getString("RTSP_VIDEO_PRESET", "ultrafast"),
		LogLevel:     getString("RTSP_LOG_LEVEL", "info"),
	}

	if v := os.Getenv("RTSP_CAMERAS"); v != "" {
		cameras, err := loadCameras(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RTSP_CAMERAS: %w", err)
		}
		cfg.Cameras = cameras
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (cfg *Config) Validate() error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}

	if (cfg.Username == "") != (cfg.Password == "") {
		return fmt.Errorf("username and password must be set together")
	}

	seen := make(map[int]struct{})
	for _, cam := range cfg.Cameras {
		if cam.StreamURL == "" {
			return fmt.Errorf("camera %d has no stream_url", cam.ID)
		}
		if _, ok := seen[cam.ID]; ok {
			return fmt.Errorf("duplicate camera id %d", cam.ID)
		}
		seen[cam.ID] = struct{}{}
	}

	return nil
}

// AuthEnabled reports whether client authentication is required.
func (cfg *Config) AuthEnabled() bool {
	return cfg.Username != "" && cfg.Password != ""
}

// loadCameras decodes the camera list from a JSON file path or from an
// inline JSON array.
func loadCameras(v string) ([]Camera, error) {
	byts := []byte(v)

	if !strings.HasPrefix(strings.TrimSpace(v), "[") {
		var err error
		byts, err = os.ReadFile(v)
		if err != nil {
			return nil, err
		}
	}

	var cameras []Camera
	err := json.Unmarshal(byts, &cameras)
	if err != nil {
		return nil, err
	}

	return cameras, nil
}

func getString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
