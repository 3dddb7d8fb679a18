package main

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdewitt/reflect-server/internal/response"
)

type brokenConn struct{}

func (brokenConn) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestReplyLogsWriteErrors(t *testing.T) {
	var logBuf bytes.Buffer
	log := zerolog.New(&logBuf)

	w := response.NewWriter(brokenConn{})
	reply(log, w, response.StatusBadRequest)
	assert.Contains(t, logBuf.String(), "error writing response")
	assert.Contains(t, logBuf.String(), "broken pipe")

	logBuf.Reset()
	reply(log, w, response.StatusOK)
	assert.Contains(t, logBuf.String(), "error setting status")
	assert.Contains(t, logBuf.String(), "error writing response")
}

func TestDump(t *testing.T) {
	cases := map[string]struct {
		raw    string
		status string
		logged string
	}{
		"valid request": {
			raw:    "POST /coffee HTTP/1.1\r\nHost: localhost:42069\r\nContent-Length: 5\r\n\r\nhello",
			status: "HTTP/1.1 200 OK",
			logged: `"body":"hello"`,
		},
		"malformed head": {
			raw:    "get / HTTP/1.1\r\n\r\n",
			status: "HTTP/1.1 400 Bad Request",
			logged: "error parsing request",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var logBuf bytes.Buffer
			server, client := net.Pipe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				dump(zerolog.New(&logBuf), server)
			}()

			require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))
			// The head may be rejected before all of raw is read.
			go client.Write([]byte(tc.raw))
			resp, err := io.ReadAll(client)
			require.NoError(t, err)
			<-done

			status, _, _ := strings.Cut(string(resp), "\r\n")
			assert.Equal(t, tc.status, status)
			assert.Contains(t, logBuf.String(), tc.logged)
			assert.NotContains(t, logBuf.String(), "error writing response")
		})
	}
}
