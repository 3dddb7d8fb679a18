package response

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/nhdewitt/reflect-server/internal/headers"
)

type writerState int

const (
	StateOpen writerState = iota
	StateWritingBody
	StateFinalized
)

var (
	ErrFinalized   = errors.New("response already finalized")
	ErrHeadersSent = errors.New("status and headers can no longer change")
)

// Writer is the response sink for one request. Status and headers may
// change until the first body write; Finalize sends everything and seals
// the writer.
type Writer struct {
	writer io.Writer
	state  writerState
	status StatusCode
	header *headers.Headers
	body   []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		writer: w,
		state:  StateOpen,
		status: StatusOK,
		header: headers.NewHeaders(),
	}
}

func (w *Writer) WriteHeader(statusCode StatusCode) error {
	if w.state != StateOpen {
		return fmt.Errorf("set status %d: %w", statusCode, w.lockedErr())
	}
	w.status = statusCode
	return nil
}

// SetHeader replaces the value of key.
func (w *Writer) SetHeader(key, value string) error {
	if w.state != StateOpen {
		return fmt.Errorf("set header %q: %w", key, w.lockedErr())
	}
	w.header.Replace(key, value)
	return nil
}

func (w *Writer) Status() StatusCode {
	return w.status
}

func (w *Writer) Finalized() bool {
	return w.state == StateFinalized
}

// Write appends p to the pending body.
func (w *Writer) Write(p []byte) (int, error) {
	if w.state == StateFinalized {
		return 0, ErrFinalized
	}
	w.state = StateWritingBody
	w.body = append(w.body, p...)
	return len(p), nil
}

// Finalize appends p to the body, then writes status line, headers and
// body to the connection. Only the first call sends anything.
func (w *Writer) Finalize(p []byte) error {
	if w.state == StateFinalized {
		return ErrFinalized
	}
	w.state = StateFinalized
	w.body = append(w.body, p...)

	h := headers.NewHeaders()
	for k, v := range w.header.All() {
		h.Replace(k, v)
	}
	for k, v := range GetDefaultHeaders(len(w.body)).All() {
		h.Replace(k, v)
	}

	bw := bufio.NewWriter(w.writer)
	if err := WriteStatusLine(bw, w.status); err != nil {
		return err
	}
	if err := WriteHeaders(bw, h); err != nil {
		return err
	}
	if _, err := bw.Write(w.body); err != nil {
		return err
	}
	return bw.Flush()
}

// Reset drops pending headers and body and sets a new status. It fails
// once the response has been finalized.
func (w *Writer) Reset(statusCode StatusCode) error {
	if w.state == StateFinalized {
		return ErrFinalized
	}
	w.state = StateOpen
	w.status = statusCode
	w.header = headers.NewHeaders()
	w.body = nil
	return nil
}

// BodyLen reports how many body bytes are pending or were sent.
func (w *Writer) BodyLen() int {
	return len(w.body)
}

func (w *Writer) lockedErr() error {
	if w.state == StateFinalized {
		return ErrFinalized
	}
	return ErrHeadersSent
}
