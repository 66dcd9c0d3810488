package h264

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// AccessUnit is a group of NALUs that share a presentation timestamp.
type AccessUnit struct {
	// NALUs in decoding order, without start codes.
	NALUs [][]byte

	// whether the unit contains an IDR slice.
	IsIDR bool

	// presentation timestamp in the 90kHz RTP clock.
	PTS int64
}

// IsVCL reports whether a NALU type carries coded slice data.
func IsVCL(typ h264.NALUType) bool {
	return typ >= h264.NALUTypeNonIDR && typ <= h264.NALUTypeIDR
}

// Assembler groups NALUs into access units.
//
// A unit that already contains a slice is closed when it receives
// another slice, an access unit delimiter or a non-VCL NALU with
// start-of-unit semantics (SPS, PPS, SEI). NALUs received before the
// first slice of a unit, delimiters included, stay in that unit.
type Assembler struct {
	// OnAccessUnit is called with every completed access unit.
	OnAccessUnit func(*AccessUnit)

	pending *AccessUnit
	hasVCL  bool
}

// WriteNALU feeds a NALU into the assembler. pts is the presentation
// timestamp, in the 90kHz clock, of the data the NALU was read from.
func (a *Assembler) WriteNALU(nalu []byte, pts int64) {
	if len(nalu) == 0 {
		return
	}

	typ := h264.NALUType(nalu[0] & 0x1F)

	// a slice closes the current unit when followed by another slice or
	// by a non-VCL NALU that can only appear at the start of a unit
	boundary := a.hasVCL && (IsVCL(typ) ||
		typ == h264.NALUTypeAccessUnitDelimiter ||
		typ == h264.NALUTypeSPS ||
		typ == h264.NALUTypePPS ||
		typ == h264.NALUTypeSEI)

	if boundary && a.pending != nil {
		a.flush()
	}

	if a.pending == nil {
		a.pending = &AccessUnit{PTS: pts}
	}

	a.pending.NALUs = append(a.pending.NALUs, nalu)

	if IsVCL(typ) {
		if !a.hasVCL {
			// the unit timestamp follows the first slice
			a.pending.PTS = pts
		}
		a.hasVCL = true

		if typ == h264.NALUTypeIDR {
			a.pending.IsIDR = true
		}
	}
}

// Flush emits any buffered access unit.
// It is meant to be called when the stream ends.
func (a *Assembler) Flush() {
	if a.pending != nil && a.hasVCL {
		a.flush()
	}
	a.pending = nil
	a.hasVCL = false
}

func (a *Assembler) flush() {
	au := a.pending
	a.pending = nil
	a.hasVCL = false

	if a.OnAccessUnit != nil {
		a.OnAccessUnit(au)
	}
}
