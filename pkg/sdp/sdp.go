// Package sdp generates SDP session descriptions for the streams served
// by the RTSP server.
package sdp

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	psdp "github.com/pion/sdp/v3"
)

// audio payload types, RFC 3551.
const (
	payloadTypePCMU = 0
	payloadTypePCMA = 8
)

// payloadTypeH264 is the dynamic payload type used for H264 video.
const payloadTypeH264 = 96

// Description describes a single stream to be encoded into SDP.
type Description struct {
	// stream identifier, used as session name
	StreamID string

	// server IP, used in the origin field
	ServerIP string

	// SDP session id and version
	SessionID uint64

	// H264 parameter sets, without start codes. When both are present,
	// sprop-parameter-sets and profile-level-id are derived from them.
	SPS []byte
	PPS []byte

	// video framerate hint
	Framerate int

	// audio codec ("PCMU", "PCMA" or empty for video-only)
	AudioCodec string

	// audio clock rate, when audio is present
	AudioClockRate int
}

func (d *Description) videoMedia() *psdp.MediaDescription {
	ptStr := strconv.FormatInt(payloadTypeH264, 10)

	fmtp := "packetization-mode=1"
	if len(d.SPS) >= 4 && len(d.PPS) > 0 {
		fmtp += ";profile-level-id=" + hex.EncodeToString(d.SPS[1:4])
		fmtp += ";sprop-parameter-sets=" +
			base64.StdEncoding.EncodeToString(d.SPS) + "," +
			base64.StdEncoding.EncodeToString(d.PPS)
	}

	framerate := d.Framerate
	if framerate == 0 {
		framerate = 10
	}

	return &psdp.MediaDescription{
		MediaName: psdp.MediaName{
			Media:   "video",
			Port:    psdp.RangedPort{Value: 0},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{ptStr},
		},
		Bandwidth: []psdp.Bandwidth{{
			Type:      "AS",
			Bandwidth: 2000,
		}},
		Attributes: []psdp.Attribute{
			{Key: "rtpmap", Value: ptStr + " H264/90000"},
			{Key: "fmtp", Value: ptStr + " " + fmtp},
			{Key: "control", Value: "trackID=0"},
			{Key: "framerate", Value: strconv.Itoa(framerate)},
		},
	}
}

func (d *Description) audioMedia() (*psdp.MediaDescription, error) {
	var pt int
	switch d.AudioCodec {
	case "PCMU":
		pt = payloadTypePCMU

	case "PCMA":
		pt = payloadTypePCMA

	default:
		return nil, fmt.Errorf("unsupported audio codec '%s'", d.AudioCodec)
	}

	clockRate := d.AudioClockRate
	if clockRate == 0 {
		clockRate = 8000
	}

	ptStr := strconv.Itoa(pt)

	return &psdp.MediaDescription{
		MediaName: psdp.MediaName{
			Media:   "audio",
			Port:    psdp.RangedPort{Value: 0},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{ptStr},
		},
		Bandwidth: []psdp.Bandwidth{{
			Type:      "AS",
			Bandwidth: 128,
		}},
		Attributes: []psdp.Attribute{
			{Key: "rtpmap", Value: ptStr + " " + d.AudioCodec + "/" + strconv.Itoa(clockRate) + "/1"},
			{Key: "control", Value: "trackID=1"},
		},
	}, nil
}

// Marshal encodes the description in SDP format.
func (d *Description) Marshal() ([]byte, error) {
	desc := &psdp.SessionDescription{
		Origin: psdp.Origin{
			Username:       "-",
			SessionID:      d.SessionID,
			SessionVersion: d.SessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: d.ServerIP,
		},
		SessionName: psdp.SessionName(d.StreamID),
		ConnectionInformation: &psdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &psdp.Address{Address: "0.0.0.0"},
		},
		TimeDescriptions: []psdp.TimeDescription{
			{Timing: psdp.Timing{StartTime: 0, StopTime: 0}},
		},
		Attributes: []psdp.Attribute{
			{Key: "tool", Value: "motioneye-rtsp"},
			{Key: "type", Value: "broadcast"},
			{Key: "control", Value: "*"},
			{Key: "range", Value: "npt=0-"},
		},
	}

	desc.MediaDescriptions = append(desc.MediaDescriptions, d.videoMedia())

	if d.AudioCodec != "" {
		audio, err := d.audioMedia()
		if err != nil {
			return nil, err
		}
		desc.MediaDescriptions = append(desc.MediaDescriptions, audio)
	}

	return desc.Marshal()
}
