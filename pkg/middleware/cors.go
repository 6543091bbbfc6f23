package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSOptions configures CORS. An origin of "*" matches any caller; with
// credentials on, the caller's own origin is echoed back instead.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// DefaultCORSOptions allows the storefront client. origins is CLIENT_URL,
// which may list several comma-separated origins (shop and admin builds).
func DefaultCORSOptions(origins string) CORSOptions {
	var list []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			list = append(list, o)
		}
	}
	return CORSOptions{
		AllowedOrigins:   list,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

type corsPolicy struct {
	any     bool
	origins map[string]struct{}
	opts    CORSOptions
	methods string
	headers string
	exposed string
}

func (p *corsPolicy) allow(origin string) string {
	if origin == "" {
		return ""
	}
	if _, ok := p.origins[origin]; ok {
		return origin
	}
	if p.any {
		if p.opts.AllowCredentials {
			return origin
		}
		return "*"
	}
	return ""
}

// CORS answers preflight requests itself and decorates every other
// response for allowed origins. Disallowed origins get no CORS headers,
// which the browser reports as a CORS failure.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	p := &corsPolicy{
		origins: make(map[string]struct{}, len(opts.AllowedOrigins)),
		opts:    opts,
		methods: strings.Join(opts.AllowedMethods, ", "),
		headers: strings.Join(opts.AllowedHeaders, ", "),
		exposed: strings.Join(opts.ExposedHeaders, ", "),
	}
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			allowed := p.allow(r.Header.Get("Origin"))
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if opts.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if preflight {
					h.Set("Access-Control-Allow-Methods", p.methods)
					h.Set("Access-Control-Allow-Headers", p.headers)
					if opts.MaxAge > 0 {
						h.Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
					}
				} else if p.exposed != "" {
					h.Set("Access-Control-Expose-Headers", p.exposed)
				}
			}

			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
