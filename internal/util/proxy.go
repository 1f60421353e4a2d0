package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc returns the proxy selector for outbound HTTP clients.
// Explicit settings override HTTP_PROXY, HTTPS_PROXY and NO_PROXY one by
// one; anything left blank is taken from the environment.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	if httpProxy != "" {
		cfg.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTPSProxy = httpsProxy
	}
	if noProxy != "" {
		cfg.NoProxy = noProxy
	}

	selectProxy := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return selectProxy(req.URL)
	}
}
