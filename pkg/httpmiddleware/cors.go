package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to make cross-origin requests.
	// Empty, or a single "*", allows every origin.
	AllowOrigins []string

	// AllowMethods lists methods permitted in actual requests. Empty uses
	// "GET, POST, PUT, PATCH, DELETE, OPTIONS".
	AllowMethods []string

	// AllowHeaders lists request headers permitted in actual requests. When
	// empty, preflights echo back whatever headers the client asked for.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and Authorization headers on
	// cross-origin requests. Credentialed responses may not use the wildcard
	// origin, so enabling this always echoes the matched origin instead.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header, negative sends "0" to disable caching.
	MaxAge int
}

type corsPolicy struct {
	allowAll    bool
	origins     map[string]string
	methods     string
	headers     string
	expose      string
	maxAge      string
	credentials bool
}

// CORS returns a middleware answering preflights and decorating actual
// cross-origin responses. Origins match case-insensitively but the
// configured spelling is echoed back. Vary headers are set so shared caches
// never serve one origin's response to another.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin traffic. Still vary on Origin when responses
				// differ per origin.
				if !p.allowAll {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				p.preflight(w, r, origin)
				return
			}

			p.decorate(w, origin)
			next.ServeHTTP(w, r)
		})
	}
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		allowAll:    len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.allowAll = true
			continue
		}
		p.origins[strings.ToLower(o)] = o
	}
	if p.credentials {
		p.allowAll = false
	}
	if p.methods == "" {
		p.methods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		p.maxAge = "0"
	}
	return p
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin, or
// an empty string when the origin is not permitted.
func (p *corsPolicy) allowedOrigin(origin string) string {
	if p.allowAll {
		return "*"
	}
	return p.origins[strings.ToLower(origin)]
}

func (p *corsPolicy) preflight(w http.ResponseWriter, r *http.Request, origin string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	allowed := p.allowedOrigin(origin)
	if allowed == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Set("Access-Control-Allow-Origin", allowed)
	h.Set("Access-Control-Allow-Methods", p.methods)

	if p.headers != "" {
		h.Set("Access-Control-Allow-Headers", p.headers)
	} else if asked := r.Header.Get("Access-Control-Request-Headers"); asked != "" {
		h.Set("Access-Control-Allow-Headers", asked)
	}
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if p.maxAge != "" {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (p *corsPolicy) decorate(w http.ResponseWriter, origin string) {
	h := w.Header()
	if !p.allowAll {
		h.Add("Vary", "Origin")
	}

	allowed := p.allowedOrigin(origin)
	if allowed == "" {
		return
	}

	h.Set("Access-Control-Allow-Origin", allowed)
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if p.expose != "" {
		h.Set("Access-Control-Expose-Headers", p.expose)
	}
}
