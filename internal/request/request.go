package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nhdewitt/reflect-server/internal/body"
	"github.com/nhdewitt/reflect-server/internal/headers"
)

type requestState int

const (
	bufferSize  = 8
	maxHeadSize = 64 << 10
	crlf        = "\r\n"
)

const (
	stateInitialized requestState = iota
	stateParsingHeaders
	stateDone
)

var (
	ErrHeadTooLarge      = errors.New("request head too large")
	ErrBadContentLength  = errors.New("invalid content-length")
	ErrBadTransferCoding = errors.New("unsupported transfer-encoding")
)

type Request struct {
	RequestLine RequestLine
	Headers     *headers.Headers

	// Body is empty until the body stream has been aggregated.
	Body []byte

	stream body.Stream
	state  requestState
}

type RequestLine struct {
	HttpVersion   string
	RequestTarget string
	Method        string
}

// New builds a request whose head is already known. A nil stream means an
// empty body.
func New(method, target string, h *headers.Headers, stream body.Stream) *Request {
	if h == nil {
		h = headers.NewHeaders()
	}
	if stream == nil {
		stream = body.Events(body.End())
	}
	return &Request{
		RequestLine: RequestLine{
			HttpVersion:   "1.1",
			RequestTarget: target,
			Method:        method,
		},
		Headers: h,
		stream:  stream,
		state:   stateDone,
	}
}

func (r *Request) Method() string { return r.RequestLine.Method }
func (r *Request) URL() string    { return r.RequestLine.RequestTarget }

// BodyStream returns the not yet consumed body stream.
func (r *Request) BodyStream() body.Stream { return r.stream }

// RequestFromReader parses a request head from reader and attaches a body
// stream framed by Transfer-Encoding or Content-Length. opts apply to that
// stream.
func RequestFromReader(reader io.Reader, opts ...body.Option) (*Request, error) {
	buf := make([]byte, bufferSize)
	readToIndex := 0
	// headBytes counts head bytes already parsed and dropped from buf.
	headBytes := 0

	r := Request{
		Headers: headers.NewHeaders(),
		state:   stateInitialized,
	}

	for r.state != stateDone {
		if readToIndex == len(buf) {
			if headBytes+len(buf) >= maxHeadSize {
				return nil, ErrHeadTooLarge
			}
			tmpBuf := make([]byte, len(buf)*2)
			copy(tmpBuf, buf[:readToIndex])
			buf = tmpBuf
		}

		n, err := reader.Read(buf[readToIndex:])
		if n > 0 {
			readToIndex += n

			for r.state != stateDone {
				bytesParsed, perr := r.parse(buf[:readToIndex])
				if perr != nil {
					return nil, perr
				}
				if bytesParsed == 0 {
					break
				}
				headBytes += bytesParsed
				if headBytes > maxHeadSize {
					return nil, ErrHeadTooLarge
				}
				copy(buf, buf[bytesParsed:readToIndex])
				readToIndex -= bytesParsed
			}
		}

		if r.state == stateDone {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("error parsing data: early EOF")
			}
			return nil, err
		}
	}

	// Whatever was read past the head belongs to the body.
	rest := io.MultiReader(bytes.NewReader(buf[:readToIndex:readToIndex]), reader)
	stream, err := r.framing(rest, opts)
	if err != nil {
		return nil, err
	}
	r.stream = stream

	return &r, nil
}

func (r *Request) parse(data []byte) (int, error) {
	switch r.state {
	case stateInitialized:
		parsed, parsedRequest, err := parseRequestLine(data)
		if parsed == 0 && err == nil {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("error parsing data: %v", err)
		}

		r.RequestLine = parsedRequest
		r.state = stateParsingHeaders

		return parsed, nil
	case stateParsingHeaders:
		n, done, err := r.Headers.Parse(data)
		if err != nil {
			return 0, fmt.Errorf("error parsing headers: %v", err)
		}
		if done {
			r.state = stateDone
		}
		return n, nil
	case stateDone:
		return 0, fmt.Errorf("error: trying to read data in a done state")
	default:
		return 0, fmt.Errorf("error: unknown state")
	}
}

func (r *Request) framing(rest io.Reader, opts []body.Option) (body.Stream, error) {
	if te := r.Headers.Get("Transfer-Encoding"); te != "" {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return nil, fmt.Errorf("%w: %s", ErrBadTransferCoding, te)
		}
		return body.NewChunkedStream(rest, opts...), nil
	}

	if !r.Headers.Has("Content-Length") {
		return body.NewLengthStream(rest, 0, opts...), nil
	}
	cl := strings.TrimSpace(r.Headers.Get("Content-Length"))
	length, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadContentLength, cl)
	}
	return body.NewLengthStream(rest, length, opts...), nil
}

func parseRequestLine(req []byte) (int, RequestLine, error) {
	idx := bytes.Index(req, []byte(crlf))
	if idx == -1 {
		return 0, RequestLine{}, nil
	}
	line := string(req[:idx])
	consumed := idx + len(crlf)

	rl, err := requestLineFromString(line)
	if err != nil {
		return 0, RequestLine{}, err
	}

	return consumed, *rl, nil
}

func requestLineFromString(s string) (*RequestLine, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid request line: %s", s)
	}

	method := parts[0]
	for _, c := range method {
		if c < 'A' || c > 'Z' {
			return nil, fmt.Errorf("invalid method: %s", method)
		}
	}

	target := parts[1]

	protocol, version, ok := strings.Cut(parts[2], "/")
	if !ok || protocol != "HTTP" {
		return nil, fmt.Errorf("invalid HTTP version: %s", parts[2])
	}
	if version != "1.1" && version != "1.0" {
		return nil, fmt.Errorf("invalid HTTP version: %s", parts[2])
	}

	return &RequestLine{
		Method:        method,
		RequestTarget: target,
		HttpVersion:   version,
	}, nil
}
