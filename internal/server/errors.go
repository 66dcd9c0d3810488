package server

import (
	"fmt"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
)

// errCSeqMissing is returned when a request has no CSeq header.
type errCSeqMissing struct{}

func (errCSeqMissing) Error() string {
	return "CSeq is missing"
}

// errMethodNotImplemented is returned on unsupported methods.
type errMethodNotImplemented struct {
	Method base.Method
}

func (e errMethodNotImplemented) Error() string {
	return fmt.Sprintf("unhandled method %s", e.Method)
}

// errStreamNotFound is returned when a URL resolves to no stream.
type errStreamNotFound struct {
	Path string
}

func (e errStreamNotFound) Error() string {
	return fmt.Sprintf("no stream at path '%s'", e.Path)
}

// errSessionNotFound is returned on missing or unknown Session headers.
type errSessionNotFound struct{}

func (errSessionNotFound) Error() string {
	return "session not found"
}

// errInvalidState is returned when a method is not valid in the
// current session state.
type errInvalidState struct {
	Err error
}

func (e errInvalidState) Error() string {
	return e.Err.Error()
}

// errUnsupportedTransport is returned when no supported transport
// configuration can be derived from the Transport header.
type errUnsupportedTransport struct{}

func (errUnsupportedTransport) Error() string {
	return "unsupported transport"
}

// errSDPNotReady is returned by DESCRIBE while the source has not yet
// produced its parameter sets.
type errSDPNotReady struct{}

func (errSDPNotReady) Error() string {
	return "stream parameters not available yet"
}

// errAuth is returned on missing or wrong credentials.
type errAuth struct {
	Err error
}

func (e errAuth) Error() string {
	return e.Err.Error()
}
