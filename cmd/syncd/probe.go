package main

import (
	"context"
	"net/http"
	"time"

	"github.com/erauner12/syncengine/internal/engine"
)

// httpReachabilityProbe builds a network.Prober that treats "the transport
// endpoint answers a HEAD request" as online. Production deployments with a
// platform-specific reachability API (e.g. a mobile OS's connectivity
// service) would substitute their own Prober here.
func httpReachabilityProbe(baseURL string) func(ctx context.Context) engine.NetworkStatus {
	client := &http.Client{Timeout: 5 * time.Second}

	return func(ctx context.Context) engine.NetworkStatus {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return engine.NetworkStatus{IsConnected: false, IsInternetReachable: engine.Unknown}
		}

		resp, err := client.Do(req)
		if err != nil {
			return engine.NetworkStatus{IsConnected: false, IsInternetReachable: engine.No}
		}
		defer resp.Body.Close()

		return engine.NetworkStatus{IsConnected: true, IsInternetReachable: engine.Yes}
	}
}
