// Package source spawns and supervises the per-camera transcoder
// processes and feeds their output into the stream registry.
package source

import (
	"bufio"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/pkg/h264"
)

const (
	readChunkSize = 8192

	// the process is restarted when stdout yields no bytes for this long
	stallTimeout = 10 * time.Second

	// restart backoff, doubling up to the ceiling
	restartBackoffMin = 1 * time.Second
	restartBackoffMax = 30 * time.Second

	// SIGTERM grace before SIGKILL
	shutdownGrace = 3 * time.Second

	// output framerate is clamped to avoid starving clients at very
	// low capture rates
	minFramerate = 10
)

// hardware encoders, probed in order of preference.
var hwEncoders = []string{"h264_v4l2m2m", "h264_nvenc", "h264_qsv", "h264_nvmpi"}

var (
	encoderOnce sync.Once
	encoderName string
)

// selectEncoder picks the first available hardware H264 encoder,
// falling back to libx264. The choice is probed once per process.
func selectEncoder() string {
	encoderOnce.Do(func() {
		encoderName = "libx264"

		out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
		if err != nil {
			logrus.Warnf("[source] unable to probe encoders: %v", err)
		} else {
			for _, cand := range hwEncoders {
				if strings.Contains(string(out), " "+cand+" ") {
					encoderName = cand
					break
				}
			}
		}

		logrus.Infof("[source] using H264 encoder %s", encoderName)
	})
	return encoderName
}

// Transcoder converts the feed of one camera into Annex-B H264 on the
// stdout of a ffmpeg child process, and keeps that process alive.
type Transcoder struct {
	// camera id, used in logs
	CameraID int

	// camera source. MJPEG snapshot endpoints (http) are read with an
	// explicit mjpeg demuxer; other sources (e.g. passthrough RTSP)
	// are handed to ffmpeg untouched.
	SourceURL string

	// capture framerate
	Framerate int

	// encoder target bitrate, bits/s
	Bitrate int

	// encoder preset
	Preset string

	// receives every NALU with its timestamp in the 90kHz clock
	OnNALU func(nalu []byte, pts int64)

	terminate chan struct{}
	done      chan struct{}

	mutex sync.Mutex
	cmd   *exec.Cmd
}

// Start starts the transcoder.
func (t *Transcoder) Start() {
	t.terminate = make(chan struct{})
	t.done = make(chan struct{})

	go t.run()
}

// Close stops the transcoder and waits for the child to exit.
func (t *Transcoder) Close() {
	close(t.terminate)
	<-t.done
}

func (t *Transcoder) outputFramerate() int {
	if t.Framerate > minFramerate {
		return t.Framerate
	}
	return minFramerate
}

func (t *Transcoder) buildArgs(encoder string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "info",
		"-fflags", "+genpts+nobuffer",
		"-flags", "low_delay",
		"-probesize", "32768",
		"-analyzeduration", "500000",
	}

	if strings.HasPrefix(t.SourceURL, "http://") || strings.HasPrefix(t.SourceURL, "https://") {
		args = append(args, "-f", "mjpeg")
	}

	args = append(args, "-i", t.SourceURL, "-an")

	fps := t.outputFramerate()
	bitrate := strconv.Itoa(t.Bitrate)

	args = append(args,
		"-c:v", encoder,
		"-preset", t.Preset,
		"-tune", "zerolatency",
		"-b:v", bitrate,
		"-maxrate", bitrate,
		"-bufsize", strconv.Itoa(t.Bitrate*2),
		"-g", strconv.Itoa(fps*2),
		"-keyint_min", strconv.Itoa(fps),
		"-sc_threshold", "0",
		"-flags", "+cgop",
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
	)

	if encoder == "libx264" {
		// emit delimiters and repeat SPS/PPS with every keyframe
		args = append(args, "-x264-params", "aud=1:repeat-headers=1")
	}

	args = append(args,
		"-f", "h264",
		"-bsf:v", "h264_mp4toannexb",
		"pipe:1",
	)

	return args
}

func (t *Transcoder) run() {
	defer close(t.done)

	backoff := restartBackoffMin

	for {
		produced, err := t.runProcess()

		select {
		case <-t.terminate:
			return
		default:
		}

		if err != nil {
			logrus.Errorf("[camera %d] transcoder failed: %v", t.CameraID, err)
		} else {
			logrus.Warnf("[camera %d] transcoder exited", t.CameraID)
		}

		if produced {
			backoff = restartBackoffMin
		}

		logrus.Infof("[camera %d] restarting transcoder in %v", t.CameraID, backoff)

		select {
		case <-time.After(backoff):
		case <-t.terminate:
			return
		}

		backoff *= 2
		if backoff > restartBackoffMax {
			backoff = restartBackoffMax
		}
	}
}

// runProcess runs one instance of the child process until it exits or
// is killed by the watchdog. It reports whether any NALU was produced.
func (t *Transcoder) runProcess() (bool, error) {
	encoder := selectEncoder()
	args := t.buildArgs(encoder)

	logrus.Infof("[camera %d] starting ffmpeg %s", t.CameraID, strings.Join(args, " "))

	cmd := exec.Command("ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return false, err
	}

	err = cmd.Start()
	if err != nil {
		return false, err
	}

	t.mutex.Lock()
	t.cmd = cmd
	t.mutex.Unlock()

	var lastRead atomic.Int64
	lastRead.Store(time.Now().UnixNano())

	readerDone := make(chan struct{})

	// watchdog: restarts on stdout stall, terminates on Close()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if time.Since(time.Unix(0, lastRead.Load())) > stallTimeout {
					logrus.Warnf("[camera %d] no data for %v, killing ffmpeg",
						t.CameraID, stallTimeout)
					cmd.Process.Kill() //nolint:errcheck
					return
				}

			case <-t.terminate:
				cmd.Process.Signal(syscall.SIGTERM) //nolint:errcheck
				select {
				case <-readerDone:
				case <-time.After(shutdownGrace):
					cmd.Process.Kill() //nolint:errcheck
				}
				return

			case <-readerDone:
				return
			}
		}
	}()

	// ffmpeg reports through stderr; forward it to the log
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			lower := strings.ToLower(line)
			if strings.Contains(lower, "error") || strings.Contains(lower, "warning") ||
				strings.Contains(lower, "failed") || strings.Contains(lower, "invalid") {
				logrus.Warnf("[camera %d] ffmpeg: %s", t.CameraID, line)
			} else {
				logrus.Infof("[camera %d] ffmpeg: %s", t.CameraID, line)
			}
		}
	}()

	splitter := &h264.StreamSplitter{}
	start := time.Now()
	produced := false
	buf := make([]byte, readChunkSize)

	for {
		n, err2 := stdout.Read(buf)
		if n > 0 {
			lastRead.Store(time.Now().UnixNano())

			// raw Annex-B carries no timestamps: stamp with the wall
			// clock in the 90kHz RTP scale
			pts := int64(time.Since(start)) * 90000 / int64(time.Second)

			for _, nalu := range splitter.Write(buf[:n]) {
				produced = true
				t.OnNALU(nalu, pts)
			}
		}
		if err2 != nil {
			break
		}
	}

	close(readerDone)

	err = cmd.Wait()

	t.mutex.Lock()
	t.cmd = nil
	t.mutex.Unlock()

	return produced, err
}
