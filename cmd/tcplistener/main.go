// Command tcplistener prints every request it receives and answers with an
// empty 200. Useful for checking what a client actually sends.
package main

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhdewitt/reflect-server/internal/body"
	"github.com/nhdewitt/reflect-server/internal/request"
	"github.com/nhdewitt/reflect-server/internal/response"
)

const (
	port        = ":42069"
	idleTimeout = 10 * time.Second
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	listener, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatal().Err(err).Msg("error listening")
	}
	defer listener.Close()

	log.Info().Str("addr", port).Msg("listening for TCP traffic")
	for {
		c, err := listener.Accept()
		if err != nil {
			log.Fatal().Err(err).Msg("error accepting connection")
		}
		dump(log.With().Str("remote", c.RemoteAddr().String()).Logger(), c)
	}
}

func dump(log zerolog.Logger, c net.Conn) {
	defer c.Close()
	log.Info().Msg("connection accepted")

	w := response.NewWriter(c)
	req, err := request.RequestFromReader(c, body.WithIdleTimeout(c, idleTimeout))
	if err != nil {
		log.Error().Err(err).Msg("error parsing request")
		reply(log, w, response.StatusBadRequest)
		return
	}

	data, err := body.Aggregator{}.Aggregate(context.Background(), req.BodyStream())
	if err != nil {
		log.Error().Err(err).Msg("error reading body")
		reply(log, w, response.StatusBadRequest)
		return
	}

	ev := log.Info().
		Str("method", req.RequestLine.Method).
		Str("target", req.RequestLine.RequestTarget).
		Str("version", req.RequestLine.HttpVersion)
	for k, v := range req.Headers.All() {
		ev = ev.Str("header."+k, v)
	}
	ev.Str("body", string(data)).Msg("request")

	reply(log, w, response.StatusOK)
	log.Info().Msg("connection closed")
}

// reply sends an empty response with code.
func reply(log zerolog.Logger, w *response.Writer, code response.StatusCode) {
	if err := w.WriteHeader(code); err != nil {
		log.Error().Err(err).Msg("error setting status")
	}
	if err := w.Finalize(nil); err != nil {
		log.Error().Err(err).Msg("error writing response")
	}
}
