package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhdewitt/reflect-server/internal/body"
	"github.com/nhdewitt/reflect-server/internal/request"
	"github.com/nhdewitt/reflect-server/internal/response"
)

type Server struct {
	listener    net.Listener
	isListening atomic.Bool
	handler     Handler
	nextConn    atomic.Uint64

	logger        zerolog.Logger
	headerTimeout time.Duration
	bodyTimeout   time.Duration
	aggregator    body.Aggregator
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHeaderTimeout bounds the time to receive the request head.
func WithHeaderTimeout(d time.Duration) Option {
	return func(s *Server) { s.headerTimeout = d }
}

// WithBodyTimeout bounds the idle time between two body reads.
func WithBodyTimeout(d time.Duration) Option {
	return func(s *Server) { s.bodyTimeout = d }
}

func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.aggregator.MaxSize = n }
}

func New(handler Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve listens on port and handles connections in the background until
// Close is called.
func Serve(port int, handler Handler, opts ...Option) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	s := New(handler, opts...)
	s.start(listener)

	return s, nil
}

func (s *Server) start(listener net.Listener) {
	s.listener = listener
	s.isListening.Store(true)
	go s.listen()
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Close() error {
	if !s.isListening.CompareAndSwap(true, false) {
		return nil
	}

	if s.listener != nil {
		return s.listener.Close()
	}

	return nil
}

func (s *Server) listen() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isListening.Load() {
				return
			}
			s.logger.Error().Err(err).Msg("error accepting connection")
			continue
		}

		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	log := s.logger.With().
		Uint64("conn", s.nextConn.Add(1)).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	if s.headerTimeout > 0 {
		setReadDeadline(log, conn, time.Now().Add(s.headerTimeout))
	}

	w := response.NewWriter(conn)
	req, err := request.RequestFromReader(conn, body.WithIdleTimeout(conn, s.bodyTimeout))
	if err != nil {
		log.Debug().Err(err).Msg("malformed request head")
		code := response.StatusBadRequest
		if errors.Is(err, os.ErrDeadlineExceeded) {
			code = response.StatusRequestTimeout
		}
		s.finalize(log, w, code)
		return
	}

	if s.bodyTimeout <= 0 {
		setReadDeadline(log, conn, time.Time{})
	}

	s.serveRequest(context.Background(), log, w, req)
}

// serveRequest runs one request flow: aggregate the body, route, respond.
// w is finalized exactly once whatever happens on the way.
func (s *Server) serveRequest(ctx context.Context, log zerolog.Logger, w *response.Writer, req *request.Request) {
	log = log.With().Str("method", req.Method()).Str("url", req.URL()).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("request flow panicked")
			if !w.Finalized() {
				s.forceStatus(log, w, response.StatusInternalServerError)
			}
		}
	}()

	data, err := s.aggregator.Aggregate(ctx, req.BodyStream())
	if err != nil {
		log.Warn().Err(err).Msg("request body stream failed")
		s.finalize(log, w, aggregateStatus(err))
		return
	}
	req.Body = data

	if err := s.handler(w, req); err != nil {
		log.Error().Err(err).Msg("handler failed")
		if !w.Finalized() {
			s.forceStatus(log, w, response.StatusInternalServerError)
		}
		return
	}

	if !w.Finalized() {
		log.Warn().Msg("handler returned without finalizing the response")
		if err := w.Finalize(nil); err != nil {
			log.Debug().Err(err).Msg("error writing response")
		}
		return
	}
	log.Debug().Int("status", int(w.Status())).Int("bytes", w.BodyLen()).Msg("request served")
}

// setReadDeadline logs a failure; the flow goes on without the deadline.
func setReadDeadline(log zerolog.Logger, conn net.Conn, t time.Time) {
	if err := conn.SetReadDeadline(t); err != nil {
		log.Debug().Err(err).Msg("error setting read deadline")
	}
}

func (s *Server) finalize(log zerolog.Logger, w *response.Writer, code response.StatusCode) {
	if err := w.WriteHeader(code); err != nil {
		log.Debug().Err(err).Msg("error setting status")
	}
	if err := w.Finalize(nil); err != nil {
		log.Debug().Err(err).Msg("error writing response")
	}
}

// forceStatus replaces whatever a failed handler left behind with an empty
// response carrying code.
func (s *Server) forceStatus(log zerolog.Logger, w *response.Writer, code response.StatusCode) {
	if err := w.Reset(code); err != nil {
		log.Debug().Err(err).Msg("error resetting response")
	}
	if err := w.Finalize(nil); err != nil {
		log.Debug().Err(err).Msg("error writing response")
	}
}

func aggregateStatus(err error) response.StatusCode {
	switch {
	case errors.Is(err, body.ErrIdleTimeout):
		return response.StatusRequestTimeout
	case errors.Is(err, body.ErrTooLarge):
		return response.StatusPayloadTooLarge
	default:
		return response.StatusBadRequest
	}
}
