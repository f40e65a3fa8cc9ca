package poster

import (
	"net"
	"net/http"
	"time"

	"github.com/hyperjump/reelmatch/internal/config"
)

// NewHTTPClient builds the pooled client shared by every resolver call.
// Per-request deadlines come from contexts, so the client itself has no Timeout.
func NewHTTPClient(cfg config.PosterConfig) *http.Client {
	idle := cfg.MaxIdleConns
	if idle <= 0 {
		idle = 20
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          idle,
		MaxIdleConnsPerHost:   idle,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport}
}
