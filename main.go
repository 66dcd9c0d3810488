// motioneye-rtsp is the native RTSP streaming server of a
// video-surveillance front-end: it transcodes camera feeds into H264
// and serves them over RTP/RTCP to standard RTSP clients.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/config"
	"github.com/sn8k/motioneye-rtsp/internal/integration"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if !cfg.Enabled {
		logrus.Info("RTSP server disabled, exiting")
		return
	}

	if len(cfg.Cameras) == 0 {
		logrus.Warn("no cameras configured")
	}

	i := integration.New(cfg)

	err = i.Start()
	if err != nil {
		logrus.Fatalf("unable to start: %v", err)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	logrus.Info("shutting down")

	err = i.Stop()
	if err != nil {
		logrus.Errorf("shutdown: %v", err)
	}
}
