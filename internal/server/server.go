// Package server contains the RTSP server: a TCP listener with a
// per-connection request loop dispatching to method handlers.
package server

import (
	"net"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sn8k/motioneye-rtsp/internal/session"
	"github.com/sn8k/motioneye-rtsp/internal/stream"
)

const serverHeader = "motioneye-rtsp"

const authRealm = "motioneye"

// Server is the RTSP server.
type Server struct {
	// bind address.
	Listen string

	// listen port.
	Port int

	// credentials; authentication is enforced when both are set.
	Username string
	Password string

	// stream registry.
	Registry *stream.Registry

	// session manager.
	SessionManager *session.Manager

	ln    net.Listener
	wg    sync.WaitGroup
	mutex sync.Mutex
	conns map[*conn]struct{}
}

// Start binds the listener and starts accepting connections.
// A bind failure is fatal and returned to the caller.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.Listen, strconv.Itoa(s.Port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.conns = make(map[*conn]struct{})

	logrus.Infof("[rtsp] listening on %s", addr)

	s.wg.Add(1)
	go s.runAccept()

	return nil
}

// Close stops the listener and every open connection.
func (s *Server) Close() error {
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}

	s.mutex.Lock()
	for c := range s.conns {
		c.nconn.Close()
	}
	s.mutex.Unlock()

	s.wg.Wait()

	return err
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) authEnabled() bool {
	return s.Username != "" && s.Password != ""
}

func (s *Server) runAccept() {
	defer s.wg.Done()

	for {
		nconn, err := s.ln.Accept()
		if err != nil {
			return
		}

		c := newConn(s, nconn)

		s.mutex.Lock()
		s.conns[c] = struct{}{}
		s.mutex.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.run()

			s.mutex.Lock()
			delete(s.conns, c)
			s.mutex.Unlock()
		}()
	}
}
