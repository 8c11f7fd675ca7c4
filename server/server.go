// server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dalemusser/contactrelay/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/acme/autocert"
)

// acmePrewarmTimeout bounds the wait for the first Let's Encrypt certificate.
const acmePrewarmTimeout = 60 * time.Second

// WithShutdownSignals returns a context canceled on SIGINT or SIGTERM.
// The returned cancel function also stops signal delivery.
func WithShutdownSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			if logger != nil {
				logger.Info("shutdown signal received", zap.Any("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
		// sigCh is left open; nothing reads it after Stop.
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// ListenAndServeWithContext serves handler over plain HTTP, manual TLS, or
// Let's Encrypt (http-01) depending on cfg, and blocks until ctx is canceled
// or a server fails. HTTPS modes also run a :80 server that answers ACME
// challenges (Let's Encrypt only) and redirects everything else to HTTPS.
func ListenAndServeWithContext(
	ctx context.Context,
	cfg *config.CoreConfig,
	handler http.Handler,
	logger *zap.Logger,
) error {
	if cfg == nil {
		return errors.New("server: cfg is nil")
	}
	if handler == nil {
		return errors.New("server: handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := newHTTPServer(cfg, handler, logger)

	var (
		auxSrv   *http.Server // :80 ACME or redirect server (HTTPS modes)
		baseLn   net.Listener // TCP listener, closed on every exit path
		serveErr = make(chan error, 1)
		auxErr   chan error // nil in HTTP mode; a nil channel never fires in select
	)

	startAux := func(h http.Handler, what string) {
		auxSrv = newHTTPServer(cfg, h, logger)
		auxSrv.Addr = ":80"
		auxErr = make(chan error, 1)
		go serveAuxiliary(auxSrv, auxErr)
		logger.Info(what+" server listening", zap.String("addr", auxSrv.Addr))
	}
	closeListener := func() {
		if baseLn != nil {
			_ = baseLn.Close()
		}
	}

	switch {
	case !cfg.HTTP.UseHTTPS:
		addr := ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("server: listen http %s: %w", addr, err)
		}
		baseLn = ln
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		go servePrimary(srv, ln, serveErr)

	default:
		var tlsCfg *tls.Config
		mode := "manual TLS"

		if cfg.TLS.UseLetsEncrypt {
			mode = "Let's Encrypt"
			m := &autocert.Manager{
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(cfg.TLS.Domain),
				Cache:      autocert.DirCache(cfg.TLS.LetsEncryptCacheDir),
				Email:      cfg.TLS.LetsEncryptEmail,
			}
			startAux(m.HTTPHandler(httpRedirectHandler()), "ACME + redirect")

			if err := waitForCert(ctx, m, cfg.TLS.Domain, acmePrewarmTimeout); err != nil {
				logger.Warn("autocert pre-warm failed; first HTTPS hits may see TLS errors", zap.Error(err))
			}
			tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: m.GetCertificate}
		} else {
			if err := checkTLSFiles(cfg, logger); err != nil {
				return err
			}
			cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			if err != nil {
				return fmt.Errorf("server: load TLS cert/key: %w", err)
			}
			tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{cert}}
			startAux(httpRedirectHandler(), "HTTP → HTTPS redirect")
		}

		srv.TLSConfig = tlsCfg
		addr := ":" + strconv.Itoa(cfg.HTTP.HTTPSPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			_ = shutdownAux(context.Background(), auxSrv)
			return fmt.Errorf("server: listen https %s: %w", addr, err)
		}
		baseLn = ln
		logger.Info("HTTPS server ("+mode+") listening",
			zap.String("addr", addr),
			zap.String("domain", cfg.TLS.Domain))
		go servePrimary(srv, tls.NewListener(ln, tlsCfg), serveErr)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down server…")
			// ctx is already done; the drain window is shutdown_timeout.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			_ = shutdownAux(shutdownCtx, auxSrv)
			err := srv.Shutdown(shutdownCtx)
			closeListener()
			if err != nil {
				return fmt.Errorf("server: shutdown: %w", err)
			}
			logger.Info("server stopped gracefully")
			return nil

		case err := <-serveErr:
			_ = shutdownAux(context.Background(), auxSrv)
			closeListener()
			if err != nil {
				return fmt.Errorf("server: primary: %w", err)
			}
			return nil

		case err := <-auxErr:
			if err != nil {
				if closeErr := srv.Close(); closeErr != nil {
					logger.Error("failed to close primary server after auxiliary crash", zap.Error(closeErr))
				}
				closeListener()
				return fmt.Errorf("server: auxiliary: %w", err)
			}
			// Aux closed cleanly; keep serving the primary.
			auxSrv = nil
			auxErr = nil
		}
	}
}

func newHTTPServer(cfg *config.CoreConfig, h http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Handler:           h,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	if stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel); err == nil {
		srv.ErrorLog = stdlog
	} else {
		logger.Warn("failed to attach stdlib error logger", zap.Error(err))
	}
	return srv
}

func checkTLSFiles(cfg *config.CoreConfig, logger *zap.Logger) error {
	err := validateTLSFiles(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	var permErr *keyPermissionError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &permErr) && cfg.Env != "prod":
		logger.Warn("TLS key file security warning (would block in prod)", zap.Error(err))
		return nil
	default:
		return fmt.Errorf("server: %w", err)
	}
}

func servePrimary(srv *http.Server, ln net.Listener, ch chan<- error) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		ch <- err
		return
	}
	ch <- nil
}

func serveAuxiliary(auxSrv *http.Server, ch chan<- error) {
	if err := auxSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		ch <- err
		return
	}
	ch <- nil
}

func shutdownAux(ctx context.Context, auxSrv *http.Server) error {
	if auxSrv == nil {
		return nil
	}
	return auxSrv.Shutdown(ctx)
}

// waitForCert blocks until autocert has a certificate for host, the timeout
// passes, or ctx ends.
func waitForCert(ctx context.Context, m *autocert.Manager, host string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		_, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: host})
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for cert for %q: %w (last error: %v)", host, ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
