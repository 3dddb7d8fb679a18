package body

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const chunkSize = 4096

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

type Option func(*source)

// WithIdleTimeout pushes the read deadline of d forward by timeout before
// every read. A read that hits the deadline fails with ErrIdleTimeout.
func WithIdleTimeout(d deadliner, timeout time.Duration) Option {
	return func(s *source) {
		s.deadline = d
		s.idle = timeout
	}
}

// source holds what the reader-backed streams share: the terminal latch
// and the idle deadline.
type source struct {
	deadline deadliner
	idle     time.Duration
	last     Event
	done     bool
}

func newSource(opts []Option) source {
	var s source
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s *source) armDeadline() error {
	if s.deadline == nil || s.idle <= 0 {
		return nil
	}
	return s.deadline.SetReadDeadline(time.Now().Add(s.idle))
}

func (s *source) finish(ev Event) Event {
	s.done = true
	s.last = ev
	return ev
}

func (s *source) fail(err error) Event {
	if isTimeout(err) {
		err = fmt.Errorf("%w: %v", ErrIdleTimeout, err)
	}
	return s.finish(Fail(err))
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type lengthStream struct {
	source
	r         io.Reader
	remaining int64
	buf       []byte
}

// NewLengthStream streams exactly n bytes from r in chunks of up to 4096
// bytes. EOF before n bytes is an io.ErrUnexpectedEOF error event.
func NewLengthStream(r io.Reader, n int64, opts ...Option) Stream {
	return &lengthStream{
		source:    newSource(opts),
		r:         r,
		remaining: n,
		buf:       make([]byte, chunkSize),
	}
}

func (s *lengthStream) Next(ctx context.Context) Event {
	if s.done {
		return s.last
	}
	if err := ctx.Err(); err != nil {
		return s.finish(Fail(err))
	}
	if s.remaining <= 0 {
		return s.finish(End())
	}
	if err := s.armDeadline(); err != nil {
		return s.fail(err)
	}

	want := int64(len(s.buf))
	if s.remaining < want {
		want = s.remaining
	}
	for {
		n, err := s.r.Read(s.buf[:want])
		if n > 0 {
			s.remaining -= int64(n)
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return Data(chunk)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.fail(io.ErrUnexpectedEOF)
			}
			return s.fail(err)
		}
	}
}
