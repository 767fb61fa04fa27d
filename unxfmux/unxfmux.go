// Package unxfmux installs an unxf.Filter on a gorilla/mux router.
//
// mux runs middleware only for requests that matched a route, so requests
// answered by the router's NotFound or MethodNotAllowed handlers are not
// filtered.
package unxfmux

import (
	"github.com/gorilla/mux"

	"github.com/abczzz13/unxf"
)

// Register adds f as middleware to r. Middleware registered afterwards sees
// the resolved client address.
func Register(r *mux.Router, f *unxf.Filter) {
	r.Use(f.Middleware)
}

// Middleware returns f as a mux.MiddlewareFunc, for use with subrouters or
// explicit ordering.
func Middleware(f *unxf.Filter) mux.MiddlewareFunc {
	return f.Middleware
}
