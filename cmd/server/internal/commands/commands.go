package commands

import (
	"context"
	"net"
	"net/http"
	"time"
)

type Globals struct {
	Debug   bool
	Version string
}

// configureHTTPServer builds the server. Request contexts derive from base, which is
// cancelled when Shutdown starts so open event streams end instead of holding it up.
// WriteTimeout stays zero for the same streams.
func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
		BaseContext: func(net.Listener) context.Context {
			return base
		},
	}
	srv.RegisterOnShutdown(cancel)

	return srv
}
