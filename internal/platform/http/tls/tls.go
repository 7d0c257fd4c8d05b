// Package tls provides TLS configuration for the HTTP server and CA pools for outbound requests.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
)

var (
	ErrInvalidTLSMode = errors.New("invalid TLS mode")
	ErrMissingCert    = errors.New("missing certificate or key file")
)

// selfSignedValidity is short so a stale dev cert is replaced without manual cleanup.
const (
	selfSignedValidity = 90 * 24 * time.Hour
	renewBefore        = 7 * 24 * time.Hour
)

// TLSManager builds server TLS configs for the configured mode.
type TLSManager struct {
	cfg    *config.TLSConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewTLSManager creates a new TLS manager.
func NewTLSManager(cfg *config.TLSConfig, logger *slog.Logger) *TLSManager {
	return &TLSManager{cfg: cfg, logger: logutil.NoopIfNil(logger), now: time.Now}
}

// GetTLSConfig returns a tls.Config based on the configured mode.
// Returns nil for "off" mode.
func (m *TLSManager) GetTLSConfig(hostname string) (*cryptotls.Config, error) {
	switch m.cfg.Mode {
	case "off":
		return nil, nil
	case "static":
		return m.loadStaticCert()
	case "selfsigned":
		return m.getOrCreateSelfSigned(hostname)
	case "acme":
		return nil, ErrACMEManaged
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTLSMode, m.cfg.Mode)
	}
}

func serverConfig(cert cryptotls.Certificate) *cryptotls.Config {
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS12,
	}
}

func (m *TLSManager) loadStaticCert() (*cryptotls.Config, error) {
	if m.cfg.CertFile == "" || m.cfg.KeyFile == "" {
		return nil, ErrMissingCert
	}

	cert, err := cryptotls.LoadX509KeyPair(m.cfg.CertFile, m.cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	m.logger.Info("loaded static TLS certificate",
		"cert_file", m.cfg.CertFile,
		"key_file", m.cfg.KeyFile)

	return serverConfig(cert), nil
}

// getOrCreateSelfSigned reuses the stored certificate until it nears expiry.
func (m *TLSManager) getOrCreateSelfSigned(hostname string) (*cryptotls.Config, error) {
	dir := m.cfg.SelfSignedDir
	if dir == "" {
		dir = ".podinbox/certs"
	}

	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")

	if cert, err := cryptotls.LoadX509KeyPair(certFile, keyFile); err == nil {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil && m.now().Add(renewBefore).Before(leaf.NotAfter) {
			m.logger.Info("loaded existing self-signed certificate", "cert_file", certFile, "expires", leaf.NotAfter)
			return serverConfig(cert), nil
		}
		m.logger.Info("self-signed certificate expiring, regenerating", "cert_file", certFile)
	}

	m.logger.Info("generating self-signed certificate", "hostname", hostname)

	cert, err := m.generateSelfSigned(hostname, certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return serverConfig(cert), nil
}

func (m *TLSManager) generateSelfSigned(hostname, certFile, keyFile string) (cryptotls.Certificate, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("failed to generate key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("failed to generate serial: %w", err)
	}

	now := m.now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"podinbox-go development"},
			CommonName:   hostname,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	if ip := net.ParseIP(hostname); ip != nil {
		template.IPAddresses = append(template.IPAddresses, ip)
	} else if hostname != "" {
		template.DNSNames = append(template.DNSNames, hostname)
	}

	// Always valid for local development
	template.DNSNames = append(template.DNSNames, "localhost")
	template.IPAddresses = append(template.IPAddresses, net.ParseIP("127.0.0.1"), net.ParseIP("::1"))

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(certFile), 0700); err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("failed to create cert directory: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("failed to write certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("failed to marshal key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("failed to write key: %w", err)
	}

	m.logger.Info("generated self-signed certificate",
		"cert_file", certFile,
		"key_file", keyFile,
		"expires", template.NotAfter)

	return cryptotls.X509KeyPair(certPEM, keyPEM)
}
