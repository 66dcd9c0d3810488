// Package headers contains the RTSP headers used by the server.
package headers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
)

// Transport is a Transport header.
type Transport struct {
	// protocol of the stream
	Protocol base.StreamProtocol

	// (optional) delivery method of the stream
	Delivery *base.StreamDelivery

	// (optional) client ports
	ClientPorts *[2]int

	// (optional) server ports
	ServerPorts *[2]int

	// (optional) interleaved frame ids
	InterleavedIDs *[2]int

	// (optional) SSRC of the packets of the stream
	SSRC *uint32
}

func parsePorts(val string) (*[2]int, error) {
	ports := strings.Split(val, "-")
	if len(ports) == 2 {
		port1, err := strconv.ParseInt(ports[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ports (%v)", val)
		}

		port2, err := strconv.ParseInt(ports[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ports (%v)", val)
		}

		return &[2]int{int(port1), int(port2)}, nil
	}

	if len(ports) == 1 {
		port1, err := strconv.ParseInt(ports[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ports (%v)", val)
		}

		return &[2]int{int(port1), int(port1 + 1)}, nil
	}

	return nil, fmt.Errorf("invalid ports (%v)", val)
}

// Unmarshal decodes a Transport header.
func (h *Transport) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	parts := strings.Split(v[0], ";")

	switch parts[0] {
	case "RTP/AVP", "RTP/AVP/UDP":
		h.Protocol = base.StreamProtocolUDP

	case "RTP/AVP/TCP":
		h.Protocol = base.StreamProtocolTCP

	default:
		return fmt.Errorf("invalid protocol (%v)", v)
	}
	parts = parts[1:]

	if len(parts) > 0 {
		switch parts[0] {
		case "unicast":
			d := base.StreamDeliveryUnicast
			h.Delivery = &d
			parts = parts[1:]

		case "multicast":
			d := base.StreamDeliveryMulticast
			h.Delivery = &d
			parts = parts[1:]

			// delivery is optional, do not return any error
		}
	}

	for _, t := range parts {
		switch {
		case strings.HasPrefix(t, "client_port="):
			ports, err := parsePorts(t[len("client_port="):])
			if err != nil {
				return err
			}
			h.ClientPorts = ports

		case strings.HasPrefix(t, "server_port="):
			ports, err := parsePorts(t[len("server_port="):])
			if err != nil {
				return err
			}
			h.ServerPorts = ports

		case strings.HasPrefix(t, "interleaved="):
			ids, err := parsePorts(t[len("interleaved="):])
			if err != nil {
				return err
			}
			h.InterleavedIDs = ids

		case strings.HasPrefix(t, "ssrc="):
			tmp, err := strconv.ParseUint(strings.TrimLeft(t[len("ssrc="):], " "), 16, 32)
			if err != nil {
				return err
			}
			v32 := uint32(tmp)
			h.SSRC = &v32
		}

		// ignore non-standard keys
	}

	return nil
}

// Marshal encodes a Transport header.
func (h Transport) Marshal() base.HeaderValue {
	var rets []string

	if h.Protocol == base.StreamProtocolUDP {
		rets = append(rets, "RTP/AVP")
	} else {
		rets = append(rets, "RTP/AVP/TCP")
	}

	if h.Delivery != nil {
		if *h.Delivery == base.StreamDeliveryUnicast {
			rets = append(rets, "unicast")
		} else {
			rets = append(rets, "multicast")
		}
	}

	if h.ClientPorts != nil {
		ports := *h.ClientPorts
		rets = append(rets, "client_port="+strconv.FormatInt(int64(ports[0]), 10)+
			"-"+strconv.FormatInt(int64(ports[1]), 10))
	}

	if h.ServerPorts != nil {
		ports := *h.ServerPorts
		rets = append(rets, "server_port="+strconv.FormatInt(int64(ports[0]), 10)+
			"-"+strconv.FormatInt(int64(ports[1]), 10))
	}

	if h.InterleavedIDs != nil {
		ids := *h.InterleavedIDs
		rets = append(rets, "interleaved="+strconv.FormatInt(int64(ids[0]), 10)+
			"-"+strconv.FormatInt(int64(ids[1]), 10))
	}

	if h.SSRC != nil {
		rets = append(rets, "ssrc="+strings.ToUpper(strconv.FormatUint(uint64(*h.SSRC), 16)))
	}

	return base.HeaderValue{strings.Join(rets, ";")}
}
