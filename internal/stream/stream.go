// Package stream contains the stream registry: it maps mount paths to
// camera streams and fans out media to the sessions reading them.
package stream

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/pkg/h264"
)

// Reader receives the media of a stream. It must not block: delivery
// happens on the data plane of the source.
type Reader interface {
	// WriteAccessUnit delivers a video access unit.
	WriteAccessUnit(au *h264.AccessUnit)

	// WriteParameterSets delivers SPS/PPS that became known while the
	// reader was already playing.
	WriteParameterSets(sps []byte, pps []byte)

	// WriteAudioSamples delivers raw audio samples.
	WriteAudioSamples(samples []byte)
}

// Stream is a single camera stream, fed by one source and read by any
// number of sessions.
type Stream struct {
	// stable stream identifier, also the main mount path
	ID string

	// display name of the camera
	Name string

	// additional mount paths resolving to this stream
	Aliases []string

	// audio codec ("PCMU", "PCMA" or empty)
	AudioCodec string

	// audio clock rate
	AudioClockRate int

	// video framerate hint for the SDP
	Framerate int

	mutex       sync.RWMutex
	sps         []byte
	pps         []byte
	sdpVersion  uint64
	readers     map[string]Reader
	assembler   *h264.Assembler
	assemblerMu sync.Mutex
}

// Initialize initializes the stream.
func (s *Stream) Initialize() {
	s.readers = make(map[string]Reader)
	s.assembler = &h264.Assembler{
		OnAccessUnit: s.writeAccessUnit,
	}
}

// MountPaths returns every mount path resolving to this stream.
func (s *Stream) MountPaths() []string {
	return append([]string{s.ID}, s.Aliases...)
}

// WriteNALU feeds a video NALU coming from the source.
// pts is in the 90kHz clock.
func (s *Stream) WriteNALU(nalu []byte, pts int64) {
	s.assemblerMu.Lock()
	defer s.assemblerMu.Unlock()
	s.assembler.WriteNALU(nalu, pts)
}

// WriteAudioSamples feeds audio samples coming from the source.
func (s *Stream) WriteAudioSamples(samples []byte) {
	s.mutex.RLock()
	readers := make([]Reader, 0, len(s.readers))
	for _, r := range s.readers {
		readers = append(readers, r)
	}
	s.mutex.RUnlock()

	for _, r := range readers {
		r.WriteAudioSamples(samples)
	}
}

// ParameterSets returns the cached SPS and PPS, which may be nil.
func (s *Stream) ParameterSets() ([]byte, []byte) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sps, s.pps
}

// SDPVersion is incremented whenever the parameter sets change, so
// that cached session descriptions can be invalidated.
func (s *Stream) SDPVersion() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sdpVersion
}

// AddReader subscribes a reader to the stream.
func (s *Stream) AddReader(id string, r Reader) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.readers[id] = r
}

// RemoveReader unsubscribes a reader from the stream.
func (s *Stream) RemoveReader(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.readers, id)
}

// ReaderCount returns the number of subscribed readers.
func (s *Stream) ReaderCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.readers)
}

func (s *Stream) cacheParameterSets(au *h264.AccessUnit) {
	var newSPS, newPPS []byte

	for _, nalu := range au.NALUs {
		switch nalu[0] & 0x1F {
		case 7: // SPS
			newSPS = nalu
		case 8: // PPS
			newPPS = nalu
		}
	}

	if newSPS == nil && newPPS == nil {
		return
	}

	s.mutex.Lock()

	changed := false
	firstSeen := s.sps == nil || s.pps == nil

	if newSPS != nil && !bytes.Equal(s.sps, newSPS) {
		s.sps = append([]byte(nil), newSPS...)
		changed = true
	}
	if newPPS != nil && !bytes.Equal(s.pps, newPPS) {
		s.pps = append([]byte(nil), newPPS...)
		changed = true
	}

	if !changed {
		s.mutex.Unlock()
		return
	}

	s.sdpVersion++
	sps, pps := s.sps, s.pps
	complete := sps != nil && pps != nil

	var readers []Reader
	if complete && firstSeen {
		readers = make([]Reader, 0, len(s.readers))
		for _, r := range s.readers {
			readers = append(readers, r)
		}
	}

	s.mutex.Unlock()

	logrus.Debugf("[stream %s] parameter sets updated (sps=%d bytes, pps=%d bytes)",
		s.ID, len(sps), len(pps))

	// readers that joined before the source produced its parameter
	// sets receive them as soon as they are known
	for _, r := range readers {
		r.WriteParameterSets(sps, pps)
	}
}

func (s *Stream) writeAccessUnit(au *h264.AccessUnit) {
	s.cacheParameterSets(au)

	if au.IsIDR {
		s.injectParameterSets(au)
	}

	s.mutex.RLock()
	readers := make([]Reader, 0, len(s.readers))
	for _, r := range s.readers {
		readers = append(readers, r)
	}
	s.mutex.RUnlock()

	for _, r := range readers {
		r.WriteAccessUnit(au)
	}
}

// injectParameterSets prepends the cached SPS and PPS to an IDR access
// unit when they are not already present, so that decoders can resync
// at every keyframe regardless of when they joined.
func (s *Stream) injectParameterSets(au *h264.AccessUnit) {
	s.mutex.RLock()
	sps, pps := s.sps, s.pps
	s.mutex.RUnlock()

	if sps == nil || pps == nil {
		return
	}

	for _, nalu := range au.NALUs {
		if nalu[0]&0x1F == 7 {
			// the unit already carries its own parameter sets
			return
		}
	}

	// keep an access unit delimiter in front, when present
	pos := 0
	if au.NALUs[0][0]&0x1F == 9 {
		pos = 1
	}

	nalus := make([][]byte, 0, len(au.NALUs)+2)
	nalus = append(nalus, au.NALUs[:pos]...)
	nalus = append(nalus, append([]byte(nil), sps...))
	nalus = append(nalus, append([]byte(nil), pps...))
	nalus = append(nalus, au.NALUs[pos:]...)
	au.NALUs = nalus
}
