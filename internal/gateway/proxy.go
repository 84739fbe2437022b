package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/sage-x-project/agent-gateway/internal/logger"
)

// newReverseProxy builds a httputil.ReverseProxy targeting target. Requests
// are forwarded with their original method, path, query, headers (the two
// signature headers included, unchanged) and body.
func newReverseProxy(target *url.URL, log logger.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	originalDirector := proxy.Director
	proxy.Director = func(r *http.Request) {
		originalDirector(r)
		r.Host = target.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error("upstream proxy error",
			logger.String("request_id", requestIDFrom(r.Context())),
			logger.String("target", target.String()),
			logger.Error(err),
		)
		renderError(w, &GatewayError{Kind: KindRegistryUnavailable, Detail: "upstream unavailable"})
	}

	return proxy
}

// upstreams holds the two configured reverse proxy targets:
// API_UPSTREAM_URL for /api-prefixed paths, APP_UPSTREAM_URL for
// everything else.
type upstreams struct {
	api *httputil.ReverseProxy
	app *httputil.ReverseProxy
}

func newUpstreams(apiURL, appURL string, log logger.Logger) (*upstreams, error) {
	apiTarget, err := url.Parse(apiURL)
	if err != nil {
		return nil, err
	}
	appTarget, err := url.Parse(appURL)
	if err != nil {
		return nil, err
	}

	return &upstreams{
		api: newReverseProxy(apiTarget, log),
		app: newReverseProxy(appTarget, log),
	}, nil
}

// forward proxies r unchanged to the upstream selected by its path.
func (u *upstreams) forward(w http.ResponseWriter, r *http.Request) {
	if isAPIPath(r.URL.Path) {
		u.api.ServeHTTP(w, r)
		return
	}
	u.app.ServeHTTP(w, r)
}
