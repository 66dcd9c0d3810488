package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/internal/session"
	"github.com/sn8k/motioneye-rtsp/internal/stream"
	"github.com/sn8k/motioneye-rtsp/pkg/auth"
	"github.com/sn8k/motioneye-rtsp/pkg/base"
	"github.com/sn8k/motioneye-rtsp/pkg/headers"
	"github.com/sn8k/motioneye-rtsp/pkg/sdp"
)

const (
	readBufferSize  = 4096
	writeBufferSize = 4096
	writeTimeout    = 10 * time.Second
)

// conn handles a single RTSP connection.
type conn struct {
	s     *Server
	nconn net.Conn
	br    *bufio.Reader
	id    uuid.UUID
	nonce string

	// writes (responses, interleaved frames) are serialized
	writeMutex sync.Mutex

	// sessions created on this connection, torn down with it
	sessionsMutex sync.Mutex
	sessions      map[string]*session.Session

	// deferred action running after the response reaches the client;
	// used by PLAY so that no interleaved frame precedes its response
	postResponse func()
}

func newConn(s *Server, nconn net.Conn) *conn {
	nonce, _ := auth.GenerateNonce()

	return &conn{
		s:        s,
		nconn:    nconn,
		br:       bufio.NewReaderSize(nconn, readBufferSize),
		id:       uuid.New(),
		nonce:    nonce,
		sessions: make(map[string]*session.Session),
	}
}

func (c *conn) run() {
	logrus.Infof("[conn %s] opened from %s", c.id, c.nconn.RemoteAddr())

	err := c.runInner()

	// hard client closes are expected
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		logrus.Debugf("[conn %s] closed: %v", c.id, err)
	}

	c.nconn.Close()

	// tear down every session bound to this connection
	c.sessionsMutex.Lock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.sessions = make(map[string]*session.Session)
	c.sessionsMutex.Unlock()

	for _, id := range ids {
		c.s.SessionManager.Remove(id)
	}

	logrus.Infof("[conn %s] closed", c.id)
}

func (c *conn) runInner() error {
	for {
		byts, err := c.br.Peek(1)
		if err != nil {
			return err
		}

		// interleaved frames sent by the client (RTCP receiver
		// reports) are read and discarded
		if byts[0] == base.InterleavedFrameMagicByte {
			var frame base.InterleavedFrame
			err = frame.Read(c.br)
			if err != nil {
				return err
			}
			continue
		}

		var req base.Request
		err = req.Read(c.br)
		if err != nil {
			if errors.Is(err, base.ErrVersionNotSupported) {
				c.writeResponse(&base.Response{ //nolint:errcheck
					StatusCode: base.StatusRTSPVersionNotSupported,
					Header:     base.Header{},
				})
			}
			return err
		}

		res := c.handleRequest(&req)

		err = c.writeResponse(res)
		if err != nil {
			return err
		}

		if c.postResponse != nil {
			c.postResponse()
			c.postResponse = nil
		}
	}
}

// WriteInterleaved writes an interleaved frame on the connection.
// It is called by the data plane of TCP sessions.
func (c *conn) WriteInterleaved(channel int, payload []byte) error {
	frame := base.InterleavedFrame{
		Channel: channel,
		Payload: payload,
	}

	buf, err := frame.Marshal()
	if err != nil {
		return err
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	c.nconn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	_, err = c.nconn.Write(buf)
	return err
}

func (c *conn) writeResponse(res *base.Response) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	c.nconn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	bw := bufio.NewWriterSize(c.nconn, writeBufferSize)
	return res.Write(bw)
}

func (c *conn) handleRequest(req *base.Request) *base.Response {
	logrus.Debugf("[conn %s] %s %v", c.id, req.Method, req.URL)

	res, err := c.dispatch(req)
	if err != nil {
		res = c.errorResponse(err)
	}

	if res.Header == nil {
		res.Header = base.Header{}
	}
	res.Header["Server"] = base.HeaderValue{serverHeader}

	// the CSeq of the request is echoed in the response
	if cseq, ok := req.Header["CSeq"]; ok {
		res.Header["CSeq"] = cseq
	}

	return res
}

func (c *conn) dispatch(req *base.Request) (*base.Response, error) {
	if _, ok := req.Header["CSeq"]; !ok {
		return nil, errCSeqMissing{}
	}

	// all methods except OPTIONS require valid credentials
	if c.s.authEnabled() && req.Method != base.Options {
		err := auth.Validate(req, c.s.Username, c.s.Password, authRealm, c.nonce)
		if err != nil {
			return nil, errAuth{Err: err}
		}
	}

	switch req.Method {
	case base.Options:
		return c.doOptions(req)

	case base.Describe:
		return c.doDescribe(req)

	case base.Setup:
		return c.doSetup(req)

	case base.Play:
		return c.doPlay(req)

	case base.Pause:
		return c.doPause(req)

	case base.Teardown:
		return c.doTeardown(req)

	case base.GetParameter:
		return c.doGetParameter(req)

	case base.SetParameter:
		return c.doSetParameter(req)
	}

	return nil, errMethodNotImplemented{Method: req.Method}
}

func (c *conn) errorResponse(err error) *base.Response {
	res := &base.Response{
		Header: base.Header{},
	}

	switch err.(type) {
	case errCSeqMissing:
		res.StatusCode = base.StatusBadRequest

	case errMethodNotImplemented:
		res.StatusCode = base.StatusNotImplemented

	case errStreamNotFound:
		res.StatusCode = base.StatusNotFound

	case errSessionNotFound:
		res.StatusCode = base.StatusSessionNotFound

	case errInvalidState:
		res.StatusCode = base.StatusMethodNotValidInThisState

	case errUnsupportedTransport:
		res.StatusCode = base.StatusUnsupportedTransport

	case errSDPNotReady:
		res.StatusCode = base.StatusServiceUnavailable
		res.Header["Retry-After"] = base.HeaderValue{"2"}

	case errAuth:
		res.StatusCode = base.StatusUnauthorized
		res.Header["WWW-Authenticate"] = auth.GenerateWWWAuthenticate(authRealm, c.nonce)

	default:
		res.StatusCode = base.StatusBadRequest
	}

	logrus.Debugf("[conn %s] request failed (%d): %v", c.id, res.StatusCode, err)

	return res
}

func (c *conn) resolveStream(req *base.Request) (*stream.Stream, string, error) {
	if req.URL == nil {
		return nil, "", errStreamNotFound{}
	}

	path, ok := req.URL.RTSPPath()
	if !ok {
		return nil, "", errStreamNotFound{Path: req.URL.Path}
	}

	st := c.s.Registry.Resolve(path)
	if st == nil {
		return nil, path, errStreamNotFound{Path: path}
	}

	return st, path, nil
}

func (c *conn) sessionFromHeader(req *base.Request) (*session.Session, error) {
	var h headers.Session
	err := h.Unmarshal(req.Header["Session"])
	if err != nil {
		return nil, errSessionNotFound{}
	}

	sess := c.s.SessionManager.Get(h.Session)
	if sess == nil {
		return nil, errSessionNotFound{}
	}

	return sess, nil
}

func sessionHeader(sess *session.Session) base.HeaderValue {
	timeout := uint(sess.Timeout() / time.Second)
	return headers.Session{
		Session: sess.ID,
		Timeout: &timeout,
	}.Marshal()
}

func (c *conn) doOptions(_ *base.Request) (*base.Response, error) {
	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Public": base.HeaderValue{strings.Join([]string{
				string(base.Options),
				string(base.Describe),
				string(base.Setup),
				string(base.Play),
				string(base.Pause),
				string(base.Teardown),
				string(base.GetParameter),
			}, ", ")},
		},
	}, nil
}

func (c *conn) doDescribe(req *base.Request) (*base.Response, error) {
	st, _, err := c.resolveStream(req)
	if err != nil {
		return nil, err
	}

	sps, pps := st.ParameterSets()
	if sps == nil || pps == nil {
		// a client caching a SDP without sprop-parameter-sets would
		// never refetch it; make it retry instead
		return nil, errSDPNotReady{}
	}

	serverIP := "127.0.0.1"
	if ta, ok := c.nconn.LocalAddr().(*net.TCPAddr); ok {
		serverIP = ta.IP.String()
	}

	desc := &sdp.Description{
		StreamID:       st.ID,
		ServerIP:       serverIP,
		SessionID:      uint64(time.Now().Unix()),
		SPS:            sps,
		PPS:            pps,
		Framerate:      st.Framerate,
		AudioCodec:     st.AudioCodec,
		AudioClockRate: st.AudioClockRate,
	}

	body, err := desc.Marshal()
	if err != nil {
		return nil, err
	}

	contentBase := req.URL.CloneWithoutCredentials().String()
	if !strings.HasSuffix(contentBase, "/") {
		contentBase += "/"
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Content-Type": base.HeaderValue{"application/sdp"},
			"Content-Base": base.HeaderValue{contentBase},
		},
		Body: body,
	}, nil
}

func (c *conn) doSetup(req *base.Request) (*base.Response, error) {
	var th headers.Transport
	err := th.Unmarshal(req.Header["Transport"])
	if err != nil {
		return nil, errUnsupportedTransport{}
	}

	if th.Delivery != nil && *th.Delivery == base.StreamDeliveryMulticast {
		return nil, errUnsupportedTransport{}
	}

	st, _, err := c.resolveStream(req)
	if err != nil {
		return nil, err
	}

	path, _ := req.URL.RTSPPath()
	trackID, _, ok := base.PathSplitControlAttribute(path)
	if !ok || trackID > session.TrackAudio {
		return nil, errStreamNotFound{Path: path}
	}

	if trackID == session.TrackAudio && st.AudioCodec == "" {
		return nil, errStreamNotFound{Path: path}
	}

	// reuse the session of the Session header, or create one.
	// the session stores the resolved stream id, never the path the
	// client sent: the fanout matches sessions by stream id.
	var sess *session.Session
	if _, ok2 := req.Header["Session"]; ok2 {
		sess, err = c.sessionFromHeader(req)
		if err != nil {
			return nil, err
		}
	} else {
		sess, err = c.s.SessionManager.Create(st)
		if err != nil {
			return nil, err
		}

		c.sessionsMutex.Lock()
		c.sessions[sess.ID] = sess
		c.sessionsMutex.Unlock()
	}

	params := session.ChannelParams{
		TrackID:  trackID,
		Protocol: th.Protocol,
	}

	if th.Protocol == base.StreamProtocolUDP {
		if th.ClientPorts == nil {
			return nil, errUnsupportedTransport{}
		}

		clientIP := net.IPv4(127, 0, 0, 1)
		if ta, ok2 := c.nconn.RemoteAddr().(*net.TCPAddr); ok2 {
			clientIP = ta.IP
		}

		params.ClientIP = clientIP
		params.ClientRTPPort = th.ClientPorts[0]
		params.ClientRTCPPort = th.ClientPorts[1]
	} else {
		ids := [2]int{trackID * 2, trackID*2 + 1}
		if th.InterleavedIDs != nil {
			ids = *th.InterleavedIDs
		}
		params.InterleavedIDs = ids
		params.TCPWriter = c
	}

	ch, err := sess.Setup(params)
	if err != nil {
		return nil, errInvalidState{Err: err}
	}

	delivery := base.StreamDeliveryUnicast
	ssrc := ch.SSRC()

	resTH := headers.Transport{
		Protocol: th.Protocol,
		Delivery: &delivery,
		SSRC:     &ssrc,
	}

	if th.Protocol == base.StreamProtocolUDP {
		resTH.ClientPorts = th.ClientPorts
		ports := ch.ServerPorts()
		resTH.ServerPorts = &ports
	} else {
		ids := ch.InterleavedIDs()
		resTH.InterleavedIDs = &ids
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Transport": resTH.Marshal(),
			"Session":   sessionHeader(sess),
		},
	}, nil
}

func (c *conn) doPlay(req *base.Request) (*base.Response, error) {
	sess, err := c.sessionFromHeader(req)
	if err != nil {
		return nil, err
	}

	if sess.State() != session.StateReady {
		return nil, errInvalidState{Err: errors.New("session is not ready")}
	}

	// RTP-Info is computed before starting the data plane, so that it
	// reflects the first packets the client will receive
	rtpInfo := c.buildRTPInfo(req, sess)

	// the data plane starts only after the response has been written
	c.postResponse = func() {
		err2 := sess.Play()
		if err2 != nil {
			logrus.Debugf("[conn %s] PLAY aborted: %v", c.id, err2)
		}
	}

	rangeHeader := base.HeaderValue{"npt=0.000-"}
	if v, ok := req.Header["Range"]; ok {
		rangeHeader = v
	}

	res := &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Range":   rangeHeader,
			"Session": sessionHeader(sess),
		},
	}

	if len(rtpInfo) > 0 {
		res.Header["RTP-Info"] = rtpInfo.Marshal()
	}

	return res, nil
}

func (c *conn) buildRTPInfo(req *base.Request, sess *session.Session) headers.RTPInfo {
	baseURL := ""
	if req.URL != nil {
		u := req.URL.CloneWithoutCredentials().String()
		if i := strings.Index(u, "/trackID="); i >= 0 {
			u = u[:i]
		}
		baseURL = strings.TrimSuffix(u, "/")
	}

	channels := sess.Channels()

	trackIDs := make([]int, 0, len(channels))
	for trackID := range channels {
		trackIDs = append(trackIDs, trackID)
	}
	sort.Ints(trackIDs)

	var rtpInfo headers.RTPInfo
	for _, trackID := range trackIDs {
		ch := channels[trackID]
		rtpInfo = append(rtpInfo, &headers.RTPInfoEntry{
			URL:            baseURL + "/trackID=" + strconv.Itoa(trackID),
			SequenceNumber: ch.NextSequenceNumber(),
			RTPTime:        ch.StartTimestamp(),
		})
	}

	return rtpInfo
}

func (c *conn) doPause(req *base.Request) (*base.Response, error) {
	sess, err := c.sessionFromHeader(req)
	if err != nil {
		return nil, err
	}

	err = sess.Pause()
	if err != nil {
		return nil, errInvalidState{Err: err}
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Session": sessionHeader(sess),
		},
	}, nil
}

func (c *conn) doTeardown(req *base.Request) (*base.Response, error) {
	sess, err := c.sessionFromHeader(req)
	if err != nil {
		return nil, err
	}

	c.sessionsMutex.Lock()
	delete(c.sessions, sess.ID)
	c.sessionsMutex.Unlock()

	c.s.SessionManager.Remove(sess.ID)

	return &base.Response{
		StatusCode: base.StatusOK,
	}, nil
}

func (c *conn) doGetParameter(req *base.Request) (*base.Response, error) {
	res := &base.Response{
		StatusCode: base.StatusOK,
	}

	// used as keep-alive: the session lookup refreshes last activity
	if _, ok := req.Header["Session"]; ok {
		sess, err := c.sessionFromHeader(req)
		if err != nil {
			return nil, err
		}
		res.Header = base.Header{
			"Session": sessionHeader(sess),
		}
	}

	return res, nil
}

func (c *conn) doSetParameter(_ *base.Request) (*base.Response, error) {
	return &base.Response{
		StatusCode: base.StatusOK,
	}, nil
}
