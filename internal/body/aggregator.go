package body

import (
	"bytes"
	"context"
	"fmt"
)

// DefaultMaxSize is the body cap used when Aggregator.MaxSize is zero.
const DefaultMaxSize = 10 << 20

// Aggregator collects a body stream into one contiguous buffer.
type Aggregator struct {
	// MaxSize caps the aggregated body. Zero means DefaultMaxSize and a
	// negative value disables the cap.
	MaxSize int64
}

// Aggregate consumes s until its terminal event. It never asks s for
// another event after end or error has been seen.
func (a Aggregator) Aggregate(ctx context.Context, s Stream) ([]byte, error) {
	limit := a.MaxSize
	if limit == 0 {
		limit = DefaultMaxSize
	}

	var buf bytes.Buffer
	for {
		ev := s.Next(ctx)
		switch ev.Kind {
		case KindData:
			if limit > 0 && int64(buf.Len()+len(ev.Chunk)) > limit {
				return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
			}
			buf.Write(ev.Chunk)
		case KindEnd:
			if buf.Len() == 0 {
				return []byte{}, nil
			}
			return buf.Bytes(), nil
		case KindError:
			if ev.Err == nil {
				return nil, fmt.Errorf("body stream: unspecified error")
			}
			return nil, fmt.Errorf("body stream: %w", ev.Err)
		default:
			return nil, fmt.Errorf("body stream: unknown event %v", ev.Kind)
		}
	}
}
