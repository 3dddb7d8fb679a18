// Package router dispatches a fully read request to the first matching
// route of a fixed table.
package router

import (
	"strings"

	"github.com/nhdewitt/reflect-server/internal/request"
	"github.com/nhdewitt/reflect-server/internal/response"
)

// Handler builds and finalizes the response for a matched request.
type Handler func(w *response.Writer, req *request.Request) error

// PathMatcher reports whether a request target belongs to a route.
type PathMatcher func(path string) bool

// Precondition is checked after a route matched and before its handler runs.
type Precondition func(req *request.Request) bool

type Route struct {
	// Method is matched exactly. Empty matches every method.
	Method  string
	Path    PathMatcher
	Require []Precondition
	Handler Handler
}

// Router is built once and never modified afterwards, so concurrent
// request flows can share it.
type Router struct {
	routes   []Route
	notFound Handler
}

func New(routes ...Route) *Router {
	table := make([]Route, len(routes))
	copy(table, routes)
	return &Router{
		routes:   table,
		notFound: Status(response.StatusNotFound),
	}
}

func (rt *Router) Len() int {
	return len(rt.routes)
}

// Match returns the first route matching method and path.
func (rt *Router) Match(method, path string) (Route, bool) {
	for _, r := range rt.routes {
		if r.Method != "" && r.Method != method {
			continue
		}
		if r.Path != nil && !r.Path(path) {
			continue
		}
		return r, true
	}
	return Route{}, false
}

// Handle selects one action for req: the not-found default, a 400 for a
// failed precondition, or the matched route's handler.
func (rt *Router) Handle(w *response.Writer, req *request.Request) error {
	route, ok := rt.Match(req.Method(), req.URL())
	if !ok {
		return rt.notFound(w, req)
	}
	for _, pre := range route.Require {
		if !pre(req) {
			return Status(response.StatusBadRequest)(w, req)
		}
	}
	return route.Handler(w, req)
}

// Status finalizes an empty response with code.
func Status(code response.StatusCode) Handler {
	return func(w *response.Writer, _ *request.Request) error {
		if err := w.WriteHeader(code); err != nil {
			return err
		}
		return w.Finalize(nil)
	}
}

func Exact(path string) PathMatcher {
	return func(p string) bool { return p == path }
}

func Prefix(prefix string) PathMatcher {
	return func(p string) bool { return strings.HasPrefix(p, prefix) }
}

func Any() PathMatcher {
	return func(string) bool { return true }
}

// HeaderEquals requires header name to be present with exactly value.
func HeaderEquals(name, value string) Precondition {
	return func(req *request.Request) bool {
		return req.Headers.Has(name) && req.Headers.Get(name) == value
	}
}
