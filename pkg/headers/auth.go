package headers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
)

// AuthMethod is an authentication method.
type AuthMethod int

const (
	// AuthBasic is the Basic authentication method.
	AuthBasic AuthMethod = iota

	// AuthDigest is the Digest authentication method with the MD5 hash.
	AuthDigest
)

// Authenticate is a WWW-Authenticate header.
type Authenticate struct {
	// authentication method
	Method AuthMethod

	// realm
	Realm string

	// nonce (Digest only)
	Nonce string
}

// Unmarshal decodes a WWW-Authenticate header.
func (h *Authenticate) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	v0 := v[0]

	i := strings.IndexByte(v0, ' ')
	if i < 0 {
		return fmt.Errorf("unable to split between method and keys (%v)", v0)
	}
	method, v0 := v0[:i], v0[i+1:]

	switch method {
	case "Basic":
		h.Method = AuthBasic

	case "Digest":
		h.Method = AuthDigest

	default:
		return fmt.Errorf("invalid method (%s)", method)
	}

	kvs, err := keyValParse(v0, ',')
	if err != nil {
		return err
	}

	realmReceived := false

	for k, kv := range kvs {
		switch k {
		case "realm":
			h.Realm = kv
			realmReceived = true

		case "nonce":
			h.Nonce = kv
		}
	}

	if !realmReceived {
		return fmt.Errorf("realm is missing")
	}

	if h.Method == AuthDigest && h.Nonce == "" {
		return fmt.Errorf("nonce is missing")
	}

	return nil
}

// Marshal encodes a WWW-Authenticate header.
func (h Authenticate) Marshal() base.HeaderValue {
	if h.Method == AuthBasic {
		return base.HeaderValue{"Basic realm=\"" + h.Realm + "\""}
	}

	return base.HeaderValue{"Digest realm=\"" + h.Realm + "\", nonce=\"" + h.Nonce + "\""}
}

// Authorization is an Authorization header.
type Authorization struct {
	// authentication method
	Method AuthMethod

	// user (Basic only)
	BasicUser string

	// password (Basic only)
	BasicPass string

	// Digest fields
	Username string
	Realm    string
	Nonce    string
	URI      string
	Response string
}

// Unmarshal decodes an Authorization header.
func (h *Authorization) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	v0 := v[0]

	i := strings.IndexByte(v0, ' ')
	if i < 0 {
		return fmt.Errorf("unable to split between method and keys (%v)", v0)
	}
	method, v0 := v0[:i], v0[i+1:]

	switch method {
	case "Basic":
		h.Method = AuthBasic

		tmp, err := base64.StdEncoding.DecodeString(v0)
		if err != nil {
			return fmt.Errorf("invalid value")
		}

		tmp2 := strings.SplitN(string(tmp), ":", 2)
		if len(tmp2) != 2 {
			return fmt.Errorf("invalid value")
		}

		h.BasicUser, h.BasicPass = tmp2[0], tmp2[1]

	case "Digest":
		h.Method = AuthDigest

		kvs, err := keyValParse(v0, ',')
		if err != nil {
			return err
		}

		realmReceived := false
		usernameReceived := false
		nonceReceived := false
		uriReceived := false
		responseReceived := false

		for k, kv := range kvs {
			switch k {
			case "realm":
				h.Realm = kv
				realmReceived = true

			case "username":
				h.Username = kv
				usernameReceived = true

			case "nonce":
				h.Nonce = kv
				nonceReceived = true

			case "uri":
				h.URI = kv
				uriReceived = true

			case "response":
				h.Response = kv
				responseReceived = true
			}
		}

		if !realmReceived || !usernameReceived || !nonceReceived || !uriReceived || !responseReceived {
			return fmt.Errorf("one or more digest fields are missing")
		}

	default:
		return fmt.Errorf("invalid method (%s)", method)
	}

	return nil
}

// Marshal encodes an Authorization header.
func (h Authorization) Marshal() base.HeaderValue {
	if h.Method == AuthBasic {
		return base.HeaderValue{"Basic " +
			base64.StdEncoding.EncodeToString([]byte(h.BasicUser+":"+h.BasicPass))}
	}

	return base.HeaderValue{"Digest " +
		"username=\"" + h.Username + "\", realm=\"" + h.Realm + "\", " +
		"nonce=\"" + h.Nonce + "\", uri=\"" + h.URI + "\", response=\"" + h.Response + "\""}
}
