package routes

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdewitt/reflect-server/internal/headers"
	"github.com/nhdewitt/reflect-server/internal/request"
	"github.com/nhdewitt/reflect-server/internal/response"
)

type result struct {
	status  string
	headers []string
	body    string
}

func run(t *testing.T, mode Mode, method, url string, h *headers.Headers, body string) result {
	t.Helper()
	rt, err := Table(mode)
	require.NoError(t, err)

	req := request.New(method, url, h, nil)
	req.Body = []byte(body)

	var buf bytes.Buffer
	w := response.NewWriter(&buf)
	require.NoError(t, rt.Handle(w, req))
	require.True(t, w.Finalized())

	head, respBody, ok := strings.Cut(buf.String(), "\r\n\r\n")
	require.True(t, ok)
	lines := strings.Split(head, "\r\n")
	return result{status: lines[0], headers: lines[1:], body: respBody}
}

func jsonHeaders() *headers.Headers {
	h := headers.NewHeaders()
	h.Set("Host", "localhost:3000")
	h.Set("Content-Type", "application/json")
	return h
}

func TestEcho(t *testing.T) {
	for _, body := range []string{"hello", "", "\x00\xff binary \r\n", `{"id":17}`} {
		res := run(t, ModeEcho, "POST", "/echo", nil, body)
		assert.Equal(t, "HTTP/1.1 200 OK", res.status)
		assert.Equal(t, body, res.body)
	}

	res := run(t, ModeEcho, "GET", "/echo", nil, "")
	assert.Equal(t, "HTTP/1.1 404 Not Found", res.status)
}

func TestCapture(t *testing.T) {
	for _, body := range []string{`{"id":17,"username":"jd-user"}`, "", "not json at all", `<b>"quoted"</b>`} {
		res := run(t, ModeResources, "POST", "/resources", jsonHeaders(), body)
		assert.Equal(t, "HTTP/1.1 201 Created", res.status)
		assert.Contains(t, res.headers, "Content-Type: application/json")

		var got struct {
			Headers map[string]string `json:"headers"`
			Method  string            `json:"method"`
			URL     string            `json:"url"`
			Body    string            `json:"body"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.body), &got))
		assert.Equal(t, body, got.Body)
		assert.Equal(t, "POST", got.Method)
		assert.Equal(t, "/resources", got.URL)
		assert.Equal(t, "application/json", got.Headers["content-type"])
	}
}

func TestCaptureExactBody(t *testing.T) {
	res := run(t, ModeRouted, "POST", "/resources", jsonHeaders(), `{"id":17,"username":"jd-user"}`)
	assert.Equal(t, `{"headers":{"host":"localhost:3000","content-type":"application/json"},"method":"POST","url":"/resources","body":"{\"id\":17,\"username\":\"jd-user\"}"}`, res.body)
}

func TestCaptureRequiresJSON(t *testing.T) {
	for _, ct := range []string{"", "text/plain", "application/json; charset=utf-8"} {
		h := headers.NewHeaders()
		if ct != "" {
			h.Set("Content-Type", ct)
		}
		res := run(t, ModeRouted, "POST", "/resources", h, `{"id":17}`)
		assert.Equal(t, "HTTP/1.1 400 Bad Request", res.status, ct)
		assert.Empty(t, res.body)
	}
}

func TestReflect(t *testing.T) {
	h := headers.NewHeaders()
	h.Set("User-Agent", "curl/8.5.0")
	h.Set("Host", "localhost:3000")
	h.Set("Accept", "*/*")

	res := run(t, ModeReflect, "GET", "/", h, "")
	assert.Equal(t, "HTTP/1.1 200 OK", res.status)
	assert.Contains(t, res.headers, "Content-Type: application/json")
	assert.Equal(t, `{"headers":{"user-agent":"curl/8.5.0","host":"localhost:3000","accept":"*/*"},"method":"GET","url":"/","body":""}`, res.body)

	for _, method := range []string{"POST", "DELETE", "PATCH"} {
		res := run(t, ModeReflect, method, "/anything?q=1", nil, "payload")
		assert.Equal(t, "HTTP/1.1 200 OK", res.status)
		assert.Contains(t, res.body, `"method":"`+method+`"`)
		assert.Contains(t, res.body, `"url":"/anything?q=1"`)
		assert.Contains(t, res.body, `"body":"payload"`)
	}
}

func TestReflectEscaping(t *testing.T) {
	res := run(t, ModeReflect, "POST", "/", nil, "line1\nline2\t\"q\"\x01")
	assert.Contains(t, res.body, `"body":"line1\nline2\t\"q\"\u0001"`)

	res = run(t, ModeReflect, "POST", "/", nil, "bad \xff byte")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.body), &decoded))
	assert.Equal(t, "bad \ufffd byte", decoded["body"])
}

func TestRoutedNotFound(t *testing.T) {
	for _, c := range []struct{ method, url string }{
		{"DELETE", "/unknown"},
		{"GET", "/"},
		{"PUT", "/echo"},
		{"GET", "/resources"},
	} {
		res := run(t, ModeRouted, c.method, c.url, nil, "")
		assert.Equal(t, "HTTP/1.1 404 Not Found", res.status)
		assert.Empty(t, res.body)
	}
}

func TestTableUnknownMode(t *testing.T) {
	_, err := Table("bogus")
	require.Error(t, err)

	for _, m := range Modes() {
		rt, err := Table(m)
		require.NoError(t, err)
		assert.Positive(t, rt.Len())
	}
}
