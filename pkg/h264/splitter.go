// Package h264 contains utilities to split an Annex-B H264 stream into
// NAL units and group them into access units.
package h264

// maxBufferSize bounds the amount of data kept while waiting for the
// next start code; a partial NALU larger than this forces a resync.
const maxBufferSize = 8 * 1024 * 1024

func findStartCode(byts []byte, from int) (int, int) {
	for i := from; i <= len(byts)-3; i++ {
		if byts[i] == 0 && byts[i+1] == 0 {
			if byts[i+2] == 1 {
				return i, 3
			}
			if i <= len(byts)-4 && byts[i+2] == 0 && byts[i+3] == 1 {
				return i, 4
			}
		}
	}
	return -1, 0
}

// StreamSplitter extracts NAL units from an incremental Annex-B stream,
// such as the stdout of a transcoder. Data can be fed in arbitrary chunks;
// complete NALUs are returned without their start codes.
type StreamSplitter struct {
	buf    []byte
	synced bool
}

// Write feeds data into the splitter and returns the NALUs completed by it.
func (s *StreamSplitter) Write(p []byte) [][]byte {
	s.buf = append(s.buf, p...)

	if !s.synced {
		pos, n := findStartCode(s.buf, 0)
		if pos < 0 {
			// keep only the bytes that could belong to a partial start code
			if len(s.buf) > 3 {
				s.buf = append(s.buf[:0:0], s.buf[len(s.buf)-3:]...)
			}
			return nil
		}

		s.buf = s.buf[pos+n:]
		s.synced = true
	}

	var nalus [][]byte

	for {
		pos, n := findStartCode(s.buf, 0)
		if pos < 0 {
			break
		}

		if pos > 0 {
			nalu := make([]byte, pos)
			copy(nalu, s.buf[:pos])
			nalus = append(nalus, nalu)
		}

		s.buf = s.buf[pos+n:]
	}

	if len(s.buf) > maxBufferSize {
		s.buf = nil
		s.synced = false
	}

	return nalus
}
