// Package rtptime contains a RTP timestamp encoder.
package rtptime

// Encoder maps source presentation timestamps into the RTP clock of a
// track. The mapping is anchored on the first timestamp and computed
// with integer arithmetic, so it cannot drift.
type Encoder struct {
	clockRate        int64
	ptsRate          int64
	initialTimestamp uint32

	started  bool
	firstPTS int64
}

// NewEncoder allocates an Encoder. clockRate is the RTP clock rate of
// the track, ptsRate the rate of the timestamps fed into Encode.
func NewEncoder(clockRate int, ptsRate int, initialTimestamp uint32) *Encoder {
	return &Encoder{
		clockRate:        int64(clockRate),
		ptsRate:          int64(ptsRate),
		initialTimestamp: initialTimestamp,
	}
}

// Encode encodes a timestamp.
func (e *Encoder) Encode(pts int64) uint32 {
	if !e.started {
		e.started = true
		e.firstPTS = pts
	}

	diff := pts - e.firstPTS

	// wrap-around at 2^32 follows from the uint32 conversion
	return e.initialTimestamp + uint32(diff*e.clockRate/e.ptsRate)
}
