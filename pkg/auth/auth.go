// Package auth contains utilities to perform RTSP authentication.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/sn8k/motioneye-rtsp/pkg/base"
	"github.com/sn8k/motioneye-rtsp/pkg/headers"
)

func md5Hex(in string) string {
	h := md5.New()
	h.Write([]byte(in))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateNonce generates a nonce that can be used in Validate().
func GenerateNonce() (string, error) {
	byts := make([]byte, 16)
	_, err := rand.Read(byts)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(byts), nil
}

// GenerateWWWAuthenticate generates a WWW-Authenticate header
// offering both Basic and Digest authentication.
func GenerateWWWAuthenticate(realm string, nonce string) base.HeaderValue {
	var ret base.HeaderValue

	ret = append(ret, headers.Authenticate{
		Method: headers.AuthBasic,
		Realm:  realm,
	}.Marshal()...)

	ret = append(ret, headers.Authenticate{
		Method: headers.AuthDigest,
		Realm:  realm,
		Nonce:  nonce,
	}.Marshal()...)

	return ret
}

// Validate validates a request sent by a client.
func Validate(
	req *base.Request,
	user string,
	pass string,
	realm string,
	nonce string,
) error {
	var auth headers.Authorization
	err := auth.Unmarshal(req.Header["Authorization"])
	if err != nil {
		return err
	}

	switch auth.Method {
	case headers.AuthBasic:
		if auth.BasicUser != user || auth.BasicPass != pass {
			return fmt.Errorf("authentication failed")
		}

	case headers.AuthDigest:
		if req.URL == nil {
			return fmt.Errorf("URL is missing")
		}

		if auth.Nonce != nonce {
			return fmt.Errorf("wrong nonce")
		}

		if auth.Realm != realm {
			return fmt.Errorf("wrong realm")
		}

		if auth.Username != user {
			return fmt.Errorf("authentication failed")
		}

		ur := req.URL.CloneWithoutCredentials().String()

		if auth.URI != ur {
			// in SETUP requests, VLC strips the control attribute.
			// accept the base URL too.
			_, baseURL, ok := base.PathSplitControlAttribute(ur)
			if !ok || auth.URI != baseURL {
				return fmt.Errorf("wrong URL")
			}
		}

		response := md5Hex(md5Hex(user+":"+realm+":"+pass) + ":" +
			nonce + ":" + md5Hex(string(req.Method)+":"+auth.URI))

		if auth.Response != response {
			return fmt.Errorf("authentication failed")
		}

	default:
		return fmt.Errorf("unsupported authentication method")
	}

	return nil
}
