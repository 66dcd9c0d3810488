package source

import (
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// audioChunkSize is 20ms of µ-law at 8kHz, one RTP packet.
const audioChunkSize = 160

var alsaCardsPath = "/proc/asound/cards"

// DetectAudioDevice resolves the ALSA capture device to use:
// the configured name when present, the first sound card otherwise,
// plughw:0,0 as a last resort. Empty configured values mean
// auto-detect and must never be written back to the configuration.
func DetectAudioDevice(configured string) string {
	if configured != "" {
		return configured
	}

	data, err := os.ReadFile(alsaCardsPath)
	if err == nil {
		if idx, ok := parseFirstALSACard(string(data)); ok {
			return "plughw:" + strconv.Itoa(idx) + ",0"
		}
	}

	return "plughw:0,0"
}

// parseFirstALSACard extracts the index of the first card from the
// /proc/asound/cards listing.
func parseFirstALSACard(data string) (int, bool) {
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		return idx, true
	}

	return 0, false
}

// AudioCapture captures µ-law audio from an ALSA device through a
// ffmpeg child process.
type AudioCapture struct {
	// resolved ALSA device
	Device string

	// receives chunks of 160 samples (20ms at 8kHz)
	OnSamples func(samples []byte)

	terminate chan struct{}
	done      chan struct{}
}

// Start starts the capture.
func (a *AudioCapture) Start() {
	a.terminate = make(chan struct{})
	a.done = make(chan struct{})

	go a.run()
}

// Close stops the capture.
func (a *AudioCapture) Close() {
	close(a.terminate)
	<-a.done
}

func (a *AudioCapture) run() {
	defer close(a.done)

	backoff := restartBackoffMin

	for {
		err := a.runProcess()

		select {
		case <-a.terminate:
			return
		default:
		}

		if err != nil {
			logrus.Warnf("[audio %s] capture failed: %v", a.Device, err)
		}

		select {
		case <-time.After(backoff):
		case <-a.terminate:
			return
		}

		backoff *= 2
		if backoff > restartBackoffMax {
			backoff = restartBackoffMax
		}
	}
}

func (a *AudioCapture) runProcess() error {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "alsa",
		"-i", a.Device,
		"-ac", "1",
		"-ar", "8000",
		"-acodec", "pcm_mulaw",
		"-f", "mulaw",
		"pipe:1",
	}

	logrus.Infof("[audio %s] starting capture", a.Device)

	cmd := exec.Command("ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	err = cmd.Start()
	if err != nil {
		return err
	}

	readerDone := make(chan struct{})

	go func() {
		select {
		case <-a.terminate:
			cmd.Process.Signal(syscall.SIGTERM) //nolint:errcheck
			select {
			case <-readerDone:
			case <-time.After(shutdownGrace):
				cmd.Process.Kill() //nolint:errcheck
			}

		case <-readerDone:
		}
	}()

	buf := make([]byte, audioChunkSize)
	for {
		_, err = io.ReadFull(stdout, buf)
		if err != nil {
			break
		}

		samples := make([]byte, audioChunkSize)
		copy(samples, buf)
		a.OnSamples(samples)
	}

	close(readerDone)

	return cmd.Wait()
}
