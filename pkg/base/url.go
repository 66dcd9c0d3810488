package base

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// URL is a RTSP URL.
// This is basically an HTTP URL with some additional functions to handle
// control attributes.
type URL url.URL

// ParseURL parses a RTSP URL.
func ParseURL(s string) (*URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}

	if u.Scheme != "rtsp" && u.Scheme != "rtsps" {
		return nil, fmt.Errorf("unsupported scheme '%s'", u.Scheme)
	}

	return (*URL)(u), nil
}

// MustParseURL is like ParseURL but panics in case of errors.
func MustParseURL(s string) *URL {
	u, err := ParseURL(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String implements fmt.Stringer.
func (u *URL) String() string {
	return (*url.URL)(u).String()
}

// Clone clones a URL.
func (u *URL) Clone() *URL {
	return (*URL)(&url.URL{
		Scheme:   u.Scheme,
		Opaque:   u.Opaque,
		User:     u.User,
		Host:     u.Host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
	})
}

// CloneWithoutCredentials clones a URL without its credentials.
func (u *URL) CloneWithoutCredentials() *URL {
	return (*URL)(&url.URL{
		Scheme:   u.Scheme,
		Opaque:   u.Opaque,
		Host:     u.Host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
	})
}

// RTSPPath returns the path of a RTSP URL, without the leading slash
// and without any query.
func (u *URL) RTSPPath() (string, bool) {
	var pathAndQuery string
	if u.RawPath != "" {
		pathAndQuery = u.RawPath
	} else {
		pathAndQuery = u.Path
	}

	if len(pathAndQuery) == 0 || pathAndQuery[0] != '/' {
		return "", false
	}
	pathAndQuery = pathAndQuery[1:]

	if i := strings.LastIndexByte(pathAndQuery, '?'); i >= 0 {
		pathAndQuery = pathAndQuery[:i]
	}

	return pathAndQuery, true
}

// AddControlAttribute adds a control attribute to a RTSP url.
func (u *URL) AddControlAttribute(controlPath string) {
	if controlPath[0] != '?' {
		controlPath = "/" + controlPath
	}

	nu, _ := ParseURL(u.String() + controlPath)
	*u = *nu
}

// PathSplitControlAttribute splits a track ID control attribute from a path.
// A path without a control attribute refers to track 0.
func PathSplitControlAttribute(path string) (int, string, bool) {
	i := strings.LastIndex(path, "/trackID=")
	if i < 0 {
		return 0, path, true
	}

	tmp, err := strconv.ParseInt(path[i+len("/trackID="):], 10, 64)
	if err != nil || tmp < 0 {
		return 0, "", false
	}

	return int(tmp), path[:i], true
}
