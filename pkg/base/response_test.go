package base

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var casesResponse = []struct {
	name string
	byts []byte
	res  Response
}{
	{
		"ok",
		[]byte("RTSP/1.0 200 OK\r\n" +
			"CSeq: 1\r\n" +
			"Public: OPTIONS, DESCRIBE, SETUP, PLAY, PAUSE, TEARDOWN, GET_PARAMETER\r\n" +
			"\r\n"),
		Response{
			StatusCode:    StatusOK,
			StatusMessage: "OK",
			Header: Header{
				"CSeq":   HeaderValue{"1"},
				"Public": HeaderValue{"OPTIONS, DESCRIBE, SETUP, PLAY, PAUSE, TEARDOWN, GET_PARAMETER"},
			},
		},
	},
	{
		"not found",
		[]byte("RTSP/1.0 404 Not Found\r\n" +
			"CSeq: 2\r\n" +
			"\r\n"),
		Response{
			StatusCode:    StatusNotFound,
			StatusMessage: "Not Found",
			Header: Header{
				"CSeq": HeaderValue{"2"},
			},
		},
	},
	{
		"describe with sdp body",
		[]byte("RTSP/1.0 200 OK\r\n" +
			"CSeq: 3\r\n" +
			"Content-Length: 7\r\n" +
			"Content-Type: application/sdp\r\n" +
			"\r\n" +
			"v=0\r\n" +
			"o="),
		Response{
			StatusCode:    StatusOK,
			StatusMessage: "OK",
			Header: Header{
				"CSeq":           HeaderValue{"3"},
				"Content-Length": HeaderValue{"7"},
				"Content-Type":   HeaderValue{"application/sdp"},
			},
			Body: []byte("v=0\r\no="),
		},
	},
}

func TestResponseRead(t *testing.T) {
	for _, ca := range casesResponse {
		t.Run(ca.name, func(t *testing.T) {
			var res Response
			err := res.Read(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.NoError(t, err)
			require.Equal(t, ca.res, res)
		})
	}
}

func TestResponseWrite(t *testing.T) {
	for _, ca := range casesResponse {
		t.Run(ca.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := ca.res.Write(bufio.NewWriter(&buf))
			require.NoError(t, err)
			require.Equal(t, ca.byts, buf.Bytes())
		})
	}
}

func TestResponseWriteAutoStatusMessage(t *testing.T) {
	res := Response{
		StatusCode: StatusMethodNotValidInThisState,
		Header: Header{
			"CSeq": HeaderValue{"4"},
		},
	}

	var buf bytes.Buffer
	err := res.Write(bufio.NewWriter(&buf))
	require.NoError(t, err)
	require.Equal(t,
		"RTSP/1.0 455 Method Not Valid In This State\r\nCSeq: 4\r\n\r\n",
		buf.String())
}
