// Package server runs the HTTP server with graceful shutdown and optional
// TLS (manual certificates or autocert).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

const (
	DefaultPort    = "8080"
	DefaultTLSMode = "auto"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type Server struct {
	Port string
	Host string
	TLS  ServerTLS
}

type ServerTLS struct {
	Enabled  bool
	Mode     string
	AutoCert *ServerTLSAutoCert
	CertFile string
	KeyFile  string
}

type ServerTLSAutoCert struct {
	CacheDir string
	Domains  []string
	Email    string
}

// Run serves handler until ctx is cancelled, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context, handler http.Handler) error {
	addr := net.JoinHostPort(srv.Host, srv.Port)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		var err error

		switch {
		case srv.TLS.Enabled && srv.TLS.Mode == "auto":
			err = srv.runAutoCert(httpServer)
		case srv.TLS.Enabled:
			slog.InfoContext(ctx, "listening with tls", "address", "https://"+addr)
			err = httpServer.ListenAndServeTLS(srv.TLS.CertFile, srv.TLS.KeyFile)
		default:
			slog.InfoContext(ctx, "listening", "address", "http://"+addr)
			err = httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

func (srv *Server) runAutoCert(httpServer *http.Server) error {
	if srv.TLS.AutoCert == nil || len(srv.TLS.AutoCert.Domains) == 0 {
		return fmt.Errorf("autocert requires at least one domain")
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(srv.TLS.AutoCert.CacheDir),
		HostPolicy: autocert.HostWhitelist(srv.TLS.AutoCert.Domains...),
		Email:      srv.TLS.AutoCert.Email,
	}

	httpServer.TLSConfig = manager.TLSConfig()

	slog.Info("listening with autocert", "address", domainsToHTTPSAddress(srv.TLS.AutoCert.Domains))

	return httpServer.ListenAndServeTLS("", "")
}

func domainsToHTTPSAddress(domains []string) string {
	addresses := make([]string, 0, len(domains))
	for _, domain := range domains {
		addresses = append(addresses, "https://"+domain)
	}

	return strings.Join(addresses, ", ")
}
