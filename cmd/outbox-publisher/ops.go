package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waterfire-source/cardpos-backend/pkg/logger"
)

const (
	opsReadTimeout     = 5 * time.Second
	opsShutdownTimeout = 5 * time.Second
	healthzTimeout     = 3 * time.Second
)

// opsServer exposes liveness and metrics for the publisher worker. It is
// not part of the service API surface.
type opsServer struct {
	srv  *http.Server
	logg *logger.Logger
}

func newOpsServer(addr string, logg *logger.Logger, reg *prometheus.Registry, db dbClient, ps pubSubClient) *opsServer {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthzTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := ps.Ping(ctx); err != nil {
			http.Error(w, "pubsub unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &opsServer{
		srv: &http.Server{
			Addr:        addr,
			Handler:     r,
			ReadTimeout: opsReadTimeout,
		},
		logg: logg,
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (o *opsServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := o.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opsShutdownTimeout)
	defer cancel()
	if err := o.srv.Shutdown(shutdownCtx); err != nil {
		o.logg.Error(shutdownCtx, "ops server shutdown error", err)
		return err
	}
	return <-errCh
}
