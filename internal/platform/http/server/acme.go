package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tlspkg "github.com/MahdiBaghbani/podinbox-go/internal/platform/http/tls"
)

// startACME serves the application on tls.https_port with an ACME
// certificate for the public_origin host. tls.http_port answers HTTP-01
// challenges and redirects everything else to HTTPS.
func (s *Server) startACME() error {
	host, _, err := net.SplitHostPort(s.cfg.ListenAddr)
	if err != nil {
		host = s.cfg.ListenAddr
	}
	if s.cfg.TLS.HTTPPort <= 0 || s.cfg.TLS.HTTPSPort <= 0 {
		return errors.New("tls.http_port and tls.https_port must be set for acme mode")
	}

	domain, err := originHostname(s.cfg.PublicOrigin)
	if err != nil {
		return fmt.Errorf("failed to derive ACME domain: %w", err)
	}
	if originPort := originPort(s.cfg.PublicOrigin); originPort != 0 && originPort != s.cfg.TLS.HTTPSPort {
		return fmt.Errorf("public_origin port %d does not match tls.https_port %d", originPort, s.cfg.TLS.HTTPSPort)
	}

	// The directory may sit behind the same private CA as test pods.
	rootCAs, err := tlspkg.BuildRootCAPool(s.cfg.OutboundHTTP.CAFile, s.cfg.OutboundHTTP.CADir)
	if err != nil {
		return fmt.Errorf("failed to build CA pool for ACME: %w", err)
	}
	acme := tlspkg.NewACMEManager(&s.cfg.TLS.ACME, domain, s.logger, rootCAs)

	mux := http.NewServeMux()
	mux.Handle(tlspkg.ChallengePath, acme.ChallengeHandler())
	mux.Handle("/", newHTTPSRedirectHandler(s.cfg.TLS.HTTPSPort))

	httpAddr := net.JoinHostPort(host, strconv.Itoa(s.cfg.TLS.HTTPPort))
	s.challengeServer = &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	challengeListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("challenge listener bind failed on %s: %w", httpAddr, err)
	}

	closeChallengeServer := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.challengeServer.Shutdown(ctx); err != nil {
			_ = s.challengeServer.Close()
		}
	}

	challengeErrCh := make(chan error, 1)
	go func() {
		challengeErrCh <- s.challengeServer.Serve(challengeListener)
	}()

	if err := acme.Init(context.Background()); err != nil {
		closeChallengeServer()
		return fmt.Errorf("ACME initialization failed: %w", err)
	}

	s.httpServer.Addr = net.JoinHostPort(host, strconv.Itoa(s.cfg.TLS.HTTPSPort))
	s.httpServer.TLSConfig = acme.GetTLSConfig()

	httpsListener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		closeChallengeServer()
		return fmt.Errorf("https listener bind failed on %s: %w", s.httpServer.Addr, err)
	}

	httpsErrCh := make(chan error, 1)
	go func() {
		httpsErrCh <- s.httpServer.ServeTLS(httpsListener, "", "")
	}()

	s.logger.Info("serving with ACME certificate",
		"http_addr", httpAddr,
		"https_addr", s.httpServer.Addr,
		"domain", acme.Domain(),
	)

	select {
	case err := <-httpsErrCh:
		closeChallengeServer()
		return err
	case err := <-challengeErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return <-httpsErrCh
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(ctx)
		return fmt.Errorf("challenge server exited unexpectedly: %w", err)
	}
}

// originPort returns the explicit port of public_origin, or 0.
func originPort(origin string) int {
	u, err := url.Parse(origin)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0
	}
	return port
}

// newHTTPSRedirectHandler answers 308 with the HTTPS form of the request URL.
func newHTTPSRedirectHandler(httpsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
		if httpsPort != 443 {
			host = net.JoinHostPort(host, strconv.Itoa(httpsPort))
		} else if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusPermanentRedirect)
	})
}
