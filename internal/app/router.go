package app

import (
	"context"

	"github.com/neoteroi/httpcore/pkg/httpcore"
)

// RouteHandler processes a matched request. Unlike server.Handler it may
// return an error instead of reifying it into a Response itself, letting
// Application centralise exception-to-response translation.
type RouteHandler func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error)

// RouteMatch is what a Router resolves a request to.
type RouteMatch struct {
	Handler     RouteHandler
	RouteValues map[string]string
}

// Router is the external routing collaborator: matching requests to
// handlers, URL templating, and controller discovery live outside this
// core and are represented here only by this narrow interface.
type Router interface {
	Match(req *httpcore.Request) (*RouteMatch, bool)
}

// RouterFunc adapts a plain function to Router.
type RouterFunc func(req *httpcore.Request) (*RouteMatch, bool)

func (f RouterFunc) Match(req *httpcore.Request) (*RouteMatch, bool) { return f(req) }
