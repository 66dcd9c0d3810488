package headers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
)

// RTPInfoEntry is an entry of a RTP-Info header.
type RTPInfoEntry struct {
	URL            string
	SequenceNumber uint16
	RTPTime        uint32
}

// RTPInfo is a RTP-Info header.
type RTPInfo []*RTPInfoEntry

// Unmarshal decodes a RTP-Info header.
func (h *RTPInfo) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	for _, tmp := range strings.Split(v[0], ",") {
		e := &RTPInfoEntry{}

		for _, kv := range strings.Split(tmp, ";") {
			tmp2 := strings.SplitN(kv, "=", 2)
			if len(tmp2) != 2 {
				return fmt.Errorf("unable to parse key-value (%v)", kv)
			}

			k, sv := tmp2[0], tmp2[1]
			switch k {
			case "url":
				e.URL = sv

			case "seq":
				vi, err := strconv.ParseUint(sv, 10, 16)
				if err != nil {
					return err
				}
				e.SequenceNumber = uint16(vi)

			case "rtptime":
				vi, err := strconv.ParseUint(sv, 10, 32)
				if err != nil {
					return err
				}
				e.RTPTime = uint32(vi)

			default:
				return fmt.Errorf("invalid key: %v", k)
			}
		}

		*h = append(*h, e)
	}

	return nil
}

// Marshal encodes a RTP-Info header.
func (h RTPInfo) Marshal() base.HeaderValue {
	rets := make([]string, len(h))

	for i, e := range h {
		rets[i] = "url=" + e.URL +
			";seq=" + strconv.FormatUint(uint64(e.SequenceNumber), 10) +
			";rtptime=" + strconv.FormatUint(uint64(e.RTPTime), 10)
	}

	return base.HeaderValue{strings.Join(rets, ",")}
}
