// Package router puts named routes and prefix groups on top of chi. Names
// feed route:list and URL building.
//
//	r := router.New()
//	api := r.Group("/api")
//	api.Get("/products/{identifier}", "products.show", ctx.Wrap(h.Show))
//	url, _ := r.URL("products.show", map[string]string{"identifier": "yoga-mat-pro"})
package router

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

type Middleware func(http.Handler) http.Handler

// RouteInfo is one row of the route table. Method is "*" for Handle.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Router is the root group plus the route table.
type Router struct {
	root *Group
	mux  chi.Router

	mu    sync.RWMutex
	names map[string]string
	table []RouteInfo
}

// Group registers routes under a prefix with a shared middleware chain.
// Middleware added with Use applies only to routes registered afterwards.
type Group struct {
	r      *Router
	prefix string
	mws    []Middleware
}

func New() *Router {
	r := &Router{mux: chi.NewRouter(), names: map[string]string{}}
	r.root = &Group{r: r, prefix: "/"}
	return r
}

func (r *Router) Group(prefix string, mws ...Middleware) *Group { return r.root.Group(prefix, mws...) }

func (r *Router) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.root.Get(path, name, h, mws...)
}

func (r *Router) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.root.Post(path, name, h, mws...)
}

func (r *Router) Handle(path, name string, h http.Handler, mws ...Middleware) {
	r.root.Handle(path, name, h, mws...)
}

func (r *Router) Handler() http.Handler { return r.mux }

// Use adds global middleware. Call it before registering any route.
func (r *Router) Use(mws ...Middleware) {
	for _, mw := range mws {
		r.mux.Use(mw)
	}
}

func (r *Router) NotFound(h http.HandlerFunc)         { r.mux.NotFound(h) }
func (r *Router) MethodNotAllowed(h http.HandlerFunc) { r.mux.MethodNotAllowed(h) }

// Path returns the pattern registered under name.
func (r *Router) Path(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.names[name]
	return p, ok
}

// URL fills the {params} of the named route. Every placeholder must be given.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	p, ok := r.Path(name)
	if !ok {
		return "", fmt.Errorf("router: no route named %q", name)
	}
	for k, v := range params {
		p = strings.ReplaceAll(p, "{"+k+"}", v)
	}
	if strings.Contains(p, "{") {
		return "", fmt.Errorf("router: missing parameters for %q: %s", name, p)
	}
	return p, nil
}

// Routes returns the table sorted by path, then method.
func (r *Router) Routes() []RouteInfo {
	r.mu.RLock()
	out := slices.Clone(r.table)
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b RouteInfo) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return out
}

// record panics on a reused name; that is a wiring bug, not a runtime state.
func (r *Router) record(method, path, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name != "" {
		if prev, dup := r.names[name]; dup {
			panic(fmt.Sprintf("router: route name %q already used by %s", name, prev))
		}
		r.names[name] = path
	}
	r.table = append(r.table, RouteInfo{Method: method, Path: path, Name: name})
}

func (g *Group) Group(prefix string, mws ...Middleware) *Group {
	return &Group{r: g.r, prefix: join(g.prefix, prefix), mws: append(slices.Clone(g.mws), mws...)}
}

func (g *Group) Use(mws ...Middleware) { g.mws = append(g.mws, mws...) }

func (g *Group) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.method(http.MethodGet, path, name, h, mws)
}

func (g *Group) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.method(http.MethodPost, path, name, h, mws)
}

func (g *Group) Put(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.method(http.MethodPut, path, name, h, mws)
}

func (g *Group) Patch(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.method(http.MethodPatch, path, name, h, mws)
}

func (g *Group) Delete(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.method(http.MethodDelete, path, name, h, mws)
}

// Handle mounts h for every method, for handlers that dispatch on their own
// such as the GraphQL endpoint.
func (g *Group) Handle(path, name string, h http.Handler, mws ...Middleware) {
	full := join(g.prefix, path)
	g.r.mux.Handle(full, g.wrap(h, mws))
	g.r.record("*", full, name)
}

func (g *Group) method(method, path, name string, h http.Handler, mws []Middleware) {
	full := join(g.prefix, path)
	g.r.mux.Method(method, full, g.wrap(h, mws))
	g.r.record(method, full, name)
}

// wrap applies group then route middleware, first listed outermost.
func (g *Group) wrap(h http.Handler, route []Middleware) http.Handler {
	chain := append(slices.Clone(g.mws), route...)
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// join builds "/a/b" from any mix of slashes; empty input is "/".
func join(parts ...string) string {
	var segs []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			segs = append(segs, p)
		}
	}
	return "/" + strings.Join(segs, "/")
}
