package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/gokernel"
	httpadapter "github.com/aretw0/gokernel/pkg/adapters/http"
	"github.com/aretw0/gokernel/pkg/adapters/mcp"
	"github.com/aretw0/gokernel/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// catalog is a throwaway kernel whose registry lists the directives of language.
func catalog(env *Env, language string) (*gokernel.Kernel, error) {
	return gokernel.New(language, gokernel.WithLogger(env.Logger))
}

// NewHTTPServer wires the HTTP adapter for language on addr.
func NewHTTPServer(env *Env, language, addr string) (*http.Server, func() error, error) {
	probe, err := catalog(env, language)
	if err != nil {
		return nil, nil, err
	}
	pool := env.Pool(language)
	srv, err := httpadapter.NewServer(pool,
		httpadapter.WithLogger(env.Logger),
		httpadapter.WithMetrics(env.Metrics),
		httpadapter.WithDirectives(probe.Directives()),
		httpadapter.WithSessions(env.Sessions),
	)
	if err != nil {
		_ = pool.Close()
		_ = probe.Close()
		return nil, nil, err
	}
	cleanup := func() error {
		return errors.Join(pool.Close(), probe.Close())
	}
	return &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}, cleanup, nil
}

// ServeHTTP serves the HTTP API on port until ctx is done, then shuts down gracefully.
func ServeHTTP(ctx context.Context, env *Env, language string, port int) error {
	srv, cleanup, err := NewHTTPServer(env, language, fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	defer cleanup()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env.Logger.Info("HTTP server listening", "address", srv.Addr, "language", language)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		env.Logger.Info("HTTP server stopped gracefully")
		return nil
	})
	return g.Wait()
}

// ServeMCP runs the MCP server over transport.
func ServeMCP(ctx context.Context, env *Env, language, transport string, port int) error {
	probe, err := catalog(env, language)
	if err != nil {
		return err
	}
	defer probe.Close()
	pool := env.Pool(language)
	defer pool.Close()

	srv := mcp.NewServer(pool,
		mcp.WithLogger(env.Logger),
		mcp.WithDirectives(probe.Directives()),
		mcp.WithSessions(env.Sessions),
	)

	switch transport {
	case TransportStdio:
		env.Logger.Info("Starting MCP server (stdio)")
		return srv.ServeStdio()
	case TransportSSE:
		return srv.ServeSSE(ctx, port)
	default:
		return &domain.ConfigurationError{
			Reason: fmt.Sprintf("unknown transport %q (supported: %s, %s)", transport, TransportStdio, TransportSSE),
			Input:  transport,
		}
	}
}
