package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type HTTPConfig struct {
	Addr        string
	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

type HTTPServer struct {
	handler http.Handler
	cfg     HTTPConfig

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(handler http.Handler, cfg HTTPConfig) *HTTPServer {
	return &HTTPServer{
		handler: handler,
		cfg:     cfg,
	}
}

// Start listens and serves until Stop. WriteTimeout stays zero: a write
// deadline on the connection would cut every event stream after it elapses.
// Slow stream peers are bounded per write by the hub instead.
func (h *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:     h.handler,
		ReadTimeout: h.cfg.ReadTimeout,
		IdleTimeout: h.cfg.IdleTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	h.mu.Lock()
	h.srv = srv
	h.listener = ln
	h.mu.Unlock()

	var eg errgroup.Group
	eg.Go(func() error {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	return eg.Wait()
}

// Addr returns the bound address once Start has begun listening
func (h *HTTPServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	srv := h.srv
	h.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
