// Package session contains the per-client RTSP session state machine
// and the process-wide session manager.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/internal/stream"
	"github.com/sn8k/motioneye-rtsp/pkg/h264"
	"github.com/sn8k/motioneye-rtsp/pkg/ringbuffer"
)

// State is the state of a session.
type State int

// states.
const (
	StateInit State = iota
	StateReady
	StatePlaying
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	}
	return "closed"
}

// sendQueueSize bounds the per-session mailbox; whole access units are
// dropped when a slow reader falls this far behind.
const sendQueueSize = 128

// mailbox items.
type itemAccessUnit struct {
	au *h264.AccessUnit
}

type itemAudioSamples struct {
	samples []byte
}

type itemParameterSets struct {
	sps []byte
	pps []byte
}

// Session is a RTSP session, created by a SETUP request.
type Session struct {
	// opaque session identifier, 16 hex digits
	ID string

	// resolved stream identifier. Always the id of the stream config,
	// never the path the client sent; fanout matches on this.
	StreamID string

	stream  *stream.Stream
	timeout time.Duration

	mutex        sync.RWMutex
	state        State
	channels     map[int]*Channel
	lastActivity time.Time

	ring      *ringbuffer.RingBuffer
	writerWG  sync.WaitGroup
	closeOnce sync.Once

	// called when the session terminates itself (data plane failure);
	// set by the manager.
	onTerminate func()

	droppedAUs atomic.Uint64
}

func newSession(id string, st *stream.Stream, timeout time.Duration) *Session {
	ring, _ := ringbuffer.New(sendQueueSize)

	s := &Session{
		ID:           id,
		StreamID:     st.ID,
		stream:       st,
		timeout:      timeout,
		state:        StateInit,
		channels:     make(map[int]*Channel),
		lastActivity: time.Now(),
		ring:         ring,
	}

	s.writerWG.Add(1)
	go s.runWriter()

	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

// Stream returns the stream the session is attached to.
func (s *Session) Stream() *stream.Stream {
	return s.stream
}

// Timeout returns the idle timeout of the session.
func (s *Session) Timeout() time.Duration {
	return s.timeout
}

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActivity = time.Now()
}

// IsExpired reports whether the session exceeded its idle timeout.
func (s *Session) IsExpired(now time.Time) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return now.Sub(s.lastActivity) > s.timeout
}

// Channel returns the channel of a track, or nil.
func (s *Session) Channel(trackID int) *Channel {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.channels[trackID]
}

// Channels returns the channels of the session, keyed by track id.
func (s *Session) Channels() map[int]*Channel {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ret := make(map[int]*Channel, len(s.channels))
	for k, v := range s.channels {
		ret[k] = v
	}
	return ret
}

// Setup allocates the channel of a track. The first SETUP promotes the
// session to READY; further SETUPs add tracks.
func (s *Session) Setup(params ChannelParams) (*Channel, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StateInit && s.state != StateReady {
		return nil, fmt.Errorf("cannot SETUP in state %v", s.state)
	}

	if _, ok := s.channels[params.TrackID]; ok {
		return nil, fmt.Errorf("track %d has already been setup", params.TrackID)
	}

	audioPayloadType := uint8(PayloadTypePCMU)
	if s.stream.AudioCodec == "PCMA" {
		audioPayloadType = PayloadTypePCMA
	}

	c, err := newChannel(params, audioPayloadType)
	if err != nil {
		return nil, err
	}

	s.channels[params.TrackID] = c
	s.state = StateReady
	s.lastActivity = time.Now()

	return c, nil
}

// Play transitions READY -> PLAYING, queues the parameter-set preamble
// and subscribes the session to its stream.
func (s *Session) Play() error {
	s.mutex.Lock()

	if s.state != StateReady {
		state := s.state
		s.mutex.Unlock()
		return fmt.Errorf("cannot PLAY in state %v", state)
	}

	s.state = StatePlaying
	s.lastActivity = time.Now()
	s.mutex.Unlock()

	// late-join preamble: parameter sets reach the client before any
	// slice, at a timestamp preceding the first access unit
	sps, pps := s.stream.ParameterSets()
	if sps != nil && pps != nil {
		s.ring.Push(itemParameterSets{sps: sps, pps: pps})
	}

	s.stream.AddReader(s.ID, s)

	return nil
}

// Pause transitions PLAYING -> READY, preserving counters.
func (s *Session) Pause() error {
	s.mutex.Lock()

	if s.state != StatePlaying && s.state != StateReady {
		state := s.state
		s.mutex.Unlock()
		return fmt.Errorf("cannot PAUSE in state %v", state)
	}

	s.state = StateReady
	s.lastActivity = time.Now()
	s.mutex.Unlock()

	s.stream.RemoveReader(s.ID)

	return nil
}

// Close terminates the session and releases its resources.
// It can be called from any goroutine and is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.stream.RemoveReader(s.ID)

		s.mutex.Lock()
		s.state = StateClosed
		channels := make([]*Channel, 0, len(s.channels))
		for _, c := range s.channels {
			channels = append(channels, c)
		}
		s.mutex.Unlock()

		s.ring.Close()

		for _, c := range channels {
			c.close()
		}

		logrus.Debugf("[session %s] closed (dropped %d access units)", s.ID, s.droppedAUs.Load())
	})
}

// WriteAccessUnit implements stream.Reader.
// It never blocks; when the mailbox is full, the oldest access unit is
// dropped as a whole.
func (s *Session) WriteAccessUnit(au *h264.AccessUnit) {
	if !s.ring.Push(itemAccessUnit{au: au}) {
		dropped := s.droppedAUs.Add(1)
		logrus.Debugf("[session %s] send queue full, access unit dropped (total %d)",
			s.ID, dropped)
	}
}

// WriteParameterSets implements stream.Reader.
func (s *Session) WriteParameterSets(sps []byte, pps []byte) {
	s.ring.Push(itemParameterSets{sps: sps, pps: pps})
}

// WriteAudioSamples implements stream.Reader.
func (s *Session) WriteAudioSamples(samples []byte) {
	if s.Channel(TrackAudio) == nil {
		return
	}
	s.ring.Push(itemAudioSamples{samples: samples})
}

// runWriter is the data plane of the session: it drains the mailbox
// and packetizes into the track channels.
func (s *Session) runWriter() {
	defer s.writerWG.Done()

	for {
		data, ok := s.ring.Pull()
		if !ok {
			return
		}

		var err error
		switch item := data.(type) {
		case itemAccessUnit:
			err = s.writeAccessUnit(item.au)

		case itemParameterSets:
			err = s.writeParameterSets(item.sps, item.pps)

		case itemAudioSamples:
			err = s.writeAudioSamples(item.samples)
		}

		if err != nil {
			// TCP write failure: the connection is gone
			logrus.Debugf("[session %s] write failed: %v", s.ID, err)
			s.terminate()
			return
		}
	}
}

func (s *Session) writeAccessUnit(au *h264.AccessUnit) error {
	c := s.Channel(TrackVideo)
	if c == nil {
		return nil
	}

	ts := c.tsEnc.Encode(au.PTS)

	pkts, err := c.videoEnc.Encode(au.NALUs, ts)
	if err != nil {
		return nil
	}

	for _, pkt := range pkts {
		err = c.writeRTP(pkt)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) writeParameterSets(sps []byte, pps []byte) error {
	c := s.Channel(TrackVideo)
	if c == nil {
		return nil
	}

	// no marker: the parameter sets do not terminate an access unit
	pkts, err := c.videoEnc.EncodeNonFinal([][]byte{sps, pps}, c.lastOrInitialTS())
	if err != nil {
		return nil
	}

	for _, pkt := range pkts {
		err = c.writeRTP(pkt)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) writeAudioSamples(samples []byte) error {
	c := s.Channel(TrackAudio)
	if c == nil {
		return nil
	}

	pkts, err := c.audioEnc.Encode(samples, c.audioTS)
	if err != nil {
		return nil
	}

	for _, pkt := range pkts {
		err = c.writeRTP(pkt)
		if err != nil {
			return err
		}
	}

	c.audioTS += uint32(len(samples))

	return nil
}

func (s *Session) terminate() {
	if s.onTerminate != nil {
		s.onTerminate()
	} else {
		s.Close()
	}
}
