// Package body turns a request body into an ordered stream of chunk events
// and aggregates that stream into a single buffer.
package body

import (
	"context"
	"errors"
)

type Kind int

const (
	KindData Kind = iota
	KindEnd
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindEnd:
		return "end"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one notification from a body stream. Chunk is set for data
// events and Err for error events.
type Event struct {
	Kind  Kind
	Chunk []byte
	Err   error
}

func Data(chunk []byte) Event { return Event{Kind: KindData, Chunk: chunk} }
func End() Event             { return Event{Kind: KindEnd} }
func Fail(err error) Event   { return Event{Kind: KindError, Err: err} }

// Stream delivers zero or more data events followed by exactly one end or
// error event. Once terminal, Next keeps returning that same event.
type Stream interface {
	Next(ctx context.Context) Event
}

var (
	ErrIdleTimeout = errors.New("body read idle timeout")
	ErrTooLarge    = errors.New("body exceeds max allowed size")
	ErrNoTerminal  = errors.New("stream ended without end or error event")
)

type eventStream struct {
	events []Event
	pos    int
	last   Event
	done   bool
}

// Events returns a Stream replaying evs in order. A list that runs out
// before a terminal event reports ErrNoTerminal.
func Events(evs ...Event) Stream {
	return &eventStream{events: evs}
}

func (s *eventStream) Next(ctx context.Context) Event {
	if s.done {
		return s.last
	}
	if err := ctx.Err(); err != nil {
		return s.finish(Fail(err))
	}
	if s.pos >= len(s.events) {
		return s.finish(Fail(ErrNoTerminal))
	}
	ev := s.events[s.pos]
	s.pos++
	if ev.Kind != KindData {
		return s.finish(ev)
	}
	return ev
}

func (s *eventStream) finish(ev Event) Event {
	s.done = true
	s.last = ev
	return ev
}
