package server

import (
	"github.com/nhdewitt/reflect-server/internal/request"
	"github.com/nhdewitt/reflect-server/internal/response"
)

// Handler runs once per request, after the body has been read into
// req.Body. It must finalize w; an error or a panic turns into a 500 if it
// has not.
type Handler func(w *response.Writer, req *request.Request) error
