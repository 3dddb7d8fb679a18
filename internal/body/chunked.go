package body

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// maxChunkLineLen bounds chunk-size and trailer lines.
const maxChunkLineLen = 4096

var ErrMalformedChunk = errors.New("malformed chunked encoding")

type chunkedStream struct {
	source
	r        *bufio.Reader
	chunkLen int64 // -1 means the next read starts a new chunk
	buf      []byte
}

// NewChunkedStream decodes a Transfer-Encoding: chunked body from r.
// Chunk extensions and trailer fields are read and discarded.
func NewChunkedStream(r io.Reader, opts ...Option) Stream {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &chunkedStream{
		source:   newSource(opts),
		r:        br,
		chunkLen: -1,
		buf:      make([]byte, chunkSize),
	}
}

func (s *chunkedStream) Next(ctx context.Context) Event {
	if s.done {
		return s.last
	}
	if err := ctx.Err(); err != nil {
		return s.finish(Fail(err))
	}
	if err := s.armDeadline(); err != nil {
		return s.fail(err)
	}

	if s.chunkLen < 0 {
		n, err := s.readChunkLength()
		if err != nil {
			return s.fail(err)
		}
		if n == 0 {
			if err := s.skipTrailers(); err != nil {
				return s.fail(err)
			}
			return s.finish(End())
		}
		s.chunkLen = n
	}

	want := int64(len(s.buf))
	if s.chunkLen < want {
		want = s.chunkLen
	}
	n, err := s.r.Read(s.buf[:want])
	if n == 0 && err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return s.fail(err)
	}
	s.chunkLen -= int64(n)
	chunk := make([]byte, n)
	copy(chunk, s.buf[:n])

	if s.chunkLen == 0 {
		s.chunkLen = -1
		if err := s.readCRLF(); err != nil {
			return s.fail(err)
		}
	}
	return Data(chunk)
}

func (s *chunkedStream) readLine() ([]byte, error) {
	line, err := s.r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%w: line too long", ErrMalformedChunk)
		}
		return nil, err
	}
	if len(line) > maxChunkLineLen {
		return nil, fmt.Errorf("%w: line too long", ErrMalformedChunk)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("%w: missing CRLF", ErrMalformedChunk)
	}
	return line[:len(line)-2], nil
}

func (s *chunkedStream) readChunkLength() (int64, error) {
	line, err := s.readLine()
	if err != nil {
		return 0, err
	}
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 || len(line) > 15 {
		return 0, fmt.Errorf("%w: invalid chunk length %q", ErrMalformedChunk, line)
	}

	var length int64
	for _, v := range line {
		switch {
		case v >= '0' && v <= '9':
			length = length<<4 | int64(v-'0')
		case v >= 'a' && v <= 'f':
			length = length<<4 | int64(v-'a'+10)
		case v >= 'A' && v <= 'F':
			length = length<<4 | int64(v-'A'+10)
		default:
			return 0, fmt.Errorf("%w: invalid chunk length %q", ErrMalformedChunk, line)
		}
	}
	return length, nil
}

func (s *chunkedStream) readCRLF() error {
	line, err := s.readLine()
	if err != nil {
		return err
	}
	if len(line) != 0 {
		return fmt.Errorf("%w: missing CRLF after chunk data", ErrMalformedChunk)
	}
	return nil
}

func (s *chunkedStream) skipTrailers() error {
	for {
		line, err := s.readLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}
