// Package integration wires the configured cameras into the stream
// registry, spawns their sources and runs the RTSP server.
package integration

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/config"
	"github.com/sn8k/motioneye-rtsp/internal/server"
	"github.com/sn8k/motioneye-rtsp/internal/session"
	"github.com/sn8k/motioneye-rtsp/internal/source"
	"github.com/sn8k/motioneye-rtsp/internal/stream"
)

// Integration owns the process-wide components for a server lifetime.
type Integration struct {
	cfg *config.Config

	registry *stream.Registry
	manager  *session.Manager
	server   *server.Server

	transcoders []*source.Transcoder
	audio       []*source.AudioCapture
}

// New allocates an Integration.
func New(cfg *config.Config) *Integration {
	return &Integration{cfg: cfg}
}

// Server returns the RTSP server, available after Start.
func (i *Integration) Server() *server.Server {
	return i.server
}

// Registry returns the stream registry, available after Start.
func (i *Integration) Registry() *stream.Registry {
	return i.registry
}

// Start creates the streams, spawns the sources and starts the server.
// A listener bind failure is returned and nothing is left running.
func (i *Integration) Start() error {
	if !i.cfg.Enabled {
		return fmt.Errorf("server is disabled")
	}

	i.registry = stream.NewRegistry()

	i.manager = &session.Manager{}
	i.manager.Initialize()

	for _, cam := range i.cfg.Cameras {
		i.addCamera(cam)
	}

	i.server = &server.Server{
		Listen:         i.cfg.Listen,
		Port:           i.cfg.Port,
		Username:       i.cfg.Username,
		Password:       i.cfg.Password,
		Registry:       i.registry,
		SessionManager: i.manager,
	}

	err := i.server.Start()
	if err != nil {
		i.stopDataPlane()
		return err
	}

	for _, cam := range i.cfg.Cameras {
		logrus.Infof("[integration] camera %d (%s) available at rtsp://%s:%d/cam%d",
			cam.ID, cam.Name, i.cfg.Listen, i.cfg.Port, cam.ID)
	}

	return nil
}

func (i *Integration) addCamera(cam config.Camera) {
	streamID := "cam" + strconv.Itoa(cam.ID)

	st := &stream.Stream{
		ID:        streamID,
		Name:      cam.Name,
		Aliases:   cam.Aliases,
		Framerate: cam.Framerate,
	}

	audioEnabled := i.cfg.AudioEnabled && cam.Audio
	if audioEnabled {
		st.AudioCodec = "PCMU"
		st.AudioClockRate = 8000
	}

	st.Initialize()
	i.registry.Add(st)

	tr := &source.Transcoder{
		CameraID:  cam.ID,
		SourceURL: cam.StreamURL,
		Framerate: cam.Framerate,
		Bitrate:   i.cfg.VideoBitrate,
		Preset:    i.cfg.VideoPreset,
		OnNALU:    st.WriteNALU,
	}
	tr.Start()
	i.transcoders = append(i.transcoders, tr)

	if audioEnabled {
		ac := &source.AudioCapture{
			Device:    source.DetectAudioDevice(i.cfg.AudioDevice),
			OnSamples: st.WriteAudioSamples,
		}
		ac.Start()
		i.audio = append(i.audio, ac)
	}
}

func (i *Integration) stopDataPlane() {
	for _, tr := range i.transcoders {
		tr.Close()
	}
	i.transcoders = nil

	for _, ac := range i.audio {
		ac.Close()
	}
	i.audio = nil

	if i.manager != nil {
		i.manager.Close()
	}
}

// Stop tears everything down: the listener and its connections first
// (each connection removes its sessions), then the sources, then any
// remaining session. Errors are collected rather than aborting the
// shutdown.
func (i *Integration) Stop() error {
	var errs *multierror.Error

	if i.server != nil {
		errs = multierror.Append(errs, i.server.Close())
	}

	i.stopDataPlane()

	if i.registry != nil {
		for _, st := range i.registry.Streams() {
			i.registry.Remove(st.ID)
		}
	}

	logrus.Info("[integration] stopped")

	return errs.ErrorOrNil()
}
