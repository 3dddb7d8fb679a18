// Package routes holds the response builders and the route tables the
// server can run with.
package routes

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/nhdewitt/reflect-server/internal/headers"
	"github.com/nhdewitt/reflect-server/internal/request"
	"github.com/nhdewitt/reflect-server/internal/response"
	"github.com/nhdewitt/reflect-server/internal/router"
)

const jsonContentType = "application/json"

type Mode string

const (
	ModeReflect   Mode = "reflect"
	ModeEcho      Mode = "echo"
	ModeResources Mode = "resources"
	ModeRouted    Mode = "routed"
)

func Modes() []Mode {
	return []Mode{ModeReflect, ModeEcho, ModeResources, ModeRouted}
}

// Reflection is the JSON document describing a received request.
type Reflection struct {
	Headers *headers.Headers `json:"headers"`
	Method  string           `json:"method"`
	URL     string           `json:"url"`
	Body    string           `json:"body"`
}

// NewReflection decodes the request body as UTF-8 and captures it with
// the request head.
func NewReflection(req *request.Request) (Reflection, error) {
	text, err := unicode.UTF8.NewDecoder().Bytes(req.Body)
	if err != nil {
		return Reflection{}, fmt.Errorf("decode body: %w", err)
	}
	h := req.Headers
	if h == nil {
		h = headers.NewHeaders()
	}
	return Reflection{
		Headers: h,
		Method:  req.Method(),
		URL:     req.URL(),
		Body:    string(text),
	}, nil
}

func (r Reflection) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode reflection: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Echo answers 200 with the request body unchanged.
func Echo(w *response.Writer, req *request.Request) error {
	if err := w.WriteHeader(response.StatusOK); err != nil {
		return err
	}
	return w.Finalize(req.Body)
}

// Capture answers 201 with the JSON reflection of the request.
func Capture(w *response.Writer, req *request.Request) error {
	return writeReflection(w, req, response.StatusCreated)
}

// Reflect answers 200 with the JSON reflection of the request.
func Reflect(w *response.Writer, req *request.Request) error {
	return writeReflection(w, req, response.StatusOK)
}

func writeReflection(w *response.Writer, req *request.Request, code response.StatusCode) error {
	ref, err := NewReflection(req)
	if err != nil {
		return err
	}
	payload, err := ref.Encode()
	if err != nil {
		return err
	}

	if err := w.WriteHeader(code); err != nil {
		return err
	}
	if err := w.SetHeader("Content-Type", jsonContentType); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Finalize(nil)
}

var (
	echoRoute = router.Route{
		Method:  "POST",
		Path:    router.Exact("/echo"),
		Handler: Echo,
	}
	resourcesRoute = router.Route{
		Method:  "POST",
		Path:    router.Exact("/resources"),
		Require: []router.Precondition{router.HeaderEquals("content-type", jsonContentType)},
		Handler: Capture,
	}
	reflectRoute = router.Route{
		Path:    router.Any(),
		Handler: Reflect,
	}
)

// Table returns the router for mode.
func Table(mode Mode) (*router.Router, error) {
	switch mode {
	case ModeReflect:
		return router.New(reflectRoute), nil
	case ModeEcho:
		return router.New(echoRoute), nil
	case ModeResources:
		return router.New(resourcesRoute), nil
	case ModeRouted:
		return router.New(echoRoute, resourcesRoute), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}
