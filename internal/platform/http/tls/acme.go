package tls

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
)

const (
	letsEncryptStaging    = "https://acme-staging-v02.api.letsencrypt.org/directory"
	letsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"

	// challengeTTL bounds how long a presented token is served if lego never cleans it up.
	challengeTTL = 10 * time.Minute

	// ChallengePath is where HTTP-01 challenge tokens are served.
	ChallengePath = "/.well-known/acme-challenge/"
)

var (
	ErrACMEManaged       = errors.New("tls.mode=acme is served by ACMEManager, not TLSManager")
	ErrMissingACMEEmail  = errors.New("ACME email is required")
	ErrMissingACMEDomain = errors.New("ACME domain is required")
	ErrNoCertificate     = errors.New("no ACME certificate available")
)

// acmeAccount is the registered ACME account. It implements lego's registration.User.
type acmeAccount struct {
	Email        string                 `json:"email"`
	Registration *registration.Resource `json:"registration"`
	key          crypto.PrivateKey
}

func (a *acmeAccount) GetEmail() string                        { return a.Email }
func (a *acmeAccount) GetRegistration() *registration.Resource { return a.Registration }
func (a *acmeAccount) GetPrivateKey() crypto.PrivateKey        { return a.key }

type challengeToken struct {
	keyAuth   string
	expiresAt time.Time
}

// HTTP01Provider keeps presented challenge tokens in memory so the server's
// own HTTP listener can answer them. It implements lego's challenge.Provider.
type HTTP01Provider struct {
	tokens sync.Map // token -> challengeToken
	now    func() time.Time
}

func (p *HTTP01Provider) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// Present stores the key authorization for token.
func (p *HTTP01Provider) Present(domain, token, keyAuth string) error {
	p.tokens.Store(token, challengeToken{keyAuth: keyAuth, expiresAt: p.clock().Add(challengeTTL)})
	return nil
}

// CleanUp forgets token.
func (p *HTTP01Provider) CleanUp(domain, token, keyAuth string) error {
	p.tokens.Delete(token)
	return nil
}

func (p *HTTP01Provider) lookup(token string) (string, bool) {
	v, ok := p.tokens.Load(token)
	if !ok {
		return "", false
	}
	entry := v.(challengeToken)
	if !p.clock().Before(entry.expiresAt) {
		p.tokens.Delete(token)
		return "", false
	}
	return entry.keyAuth, true
}

// ACMEManager obtains and serves a certificate for the public origin's host.
type ACMEManager struct {
	cfg      *config.ACMEConfig
	domain   string
	logger   *slog.Logger
	rootCAs  *x509.CertPool
	provider *HTTP01Provider

	mu   sync.RWMutex
	cert *cryptotls.Certificate
}

// NewACMEManager creates an ACME manager for domain. cfg.Domain, when set,
// takes precedence. rootCAs is used to reach the ACME directory; nil means
// system roots.
func NewACMEManager(cfg *config.ACMEConfig, domain string, logger *slog.Logger, rootCAs *x509.CertPool) *ACMEManager {
	if cfg.Domain != "" {
		domain = cfg.Domain
	}
	return &ACMEManager{
		cfg:      cfg,
		domain:   domain,
		logger:   logutil.NoopIfNil(logger),
		rootCAs:  rootCAs,
		provider: &HTTP01Provider{},
	}
}

// Domain returns the name the certificate is issued for.
func (m *ACMEManager) Domain() string {
	return m.domain
}

// Init loads a stored certificate when one is still valid, otherwise it
// registers (once) and obtains a new one. The challenge handler must already
// be reachable on port 80 before Init contacts the directory.
func (m *ACMEManager) Init(ctx context.Context) error {
	if m.domain == "" {
		return ErrMissingACMEDomain
	}
	if m.cfg.Email == "" {
		return ErrMissingACMEEmail
	}
	if err := os.MkdirAll(m.cfg.StorageDir, 0700); err != nil {
		return fmt.Errorf("failed to create ACME storage dir: %w", err)
	}

	if cert, err := m.loadCertificate(); err == nil {
		m.setCertificate(cert)
		m.logger.Info("loaded stored ACME certificate", "domain", m.domain)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	account, err := m.loadOrCreateAccount()
	if err != nil {
		return fmt.Errorf("failed to load ACME account: %w", err)
	}

	legoCfg := lego.NewConfig(account)
	legoCfg.CADirURL = m.directoryURL()
	legoCfg.Certificate.KeyType = certcrypto.EC256
	if m.rootCAs != nil {
		legoCfg.HTTPClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &cryptotls.Config{RootCAs: m.rootCAs, MinVersion: cryptotls.VersionTLS12},
			},
		}
	}

	client, err := lego.NewClient(legoCfg)
	if err != nil {
		return fmt.Errorf("failed to create ACME client: %w", err)
	}
	if err := client.Challenge.SetHTTP01Provider(m.provider); err != nil {
		return fmt.Errorf("failed to set HTTP-01 provider: %w", err)
	}

	if account.Registration == nil {
		reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
		if err != nil {
			return fmt.Errorf("failed to register ACME account: %w", err)
		}
		account.Registration = reg
		if err := m.saveAccount(account); err != nil {
			m.logger.Warn("failed to save ACME account", "error", err)
		}
	}

	m.logger.Info("requesting ACME certificate", "domain", m.domain, "directory", legoCfg.CADirURL)
	res, err := client.Certificate.Obtain(certificate.ObtainRequest{Domains: []string{m.domain}, Bundle: true})
	if err != nil {
		return fmt.Errorf("failed to obtain certificate: %w", err)
	}
	return m.storeCertificate(res.Certificate, res.PrivateKey)
}

func (m *ACMEManager) directoryURL() string {
	switch {
	case m.cfg.Directory != "":
		return m.cfg.Directory
	case m.cfg.UseStaging:
		return letsEncryptStaging
	default:
		return letsEncryptProduction
	}
}

// GetCertificate serves the current certificate for tls.Config.GetCertificate.
func (m *ACMEManager) GetCertificate(*cryptotls.ClientHelloInfo) (*cryptotls.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cert == nil {
		return nil, ErrNoCertificate
	}
	return m.cert, nil
}

// GetTLSConfig returns a server config backed by GetCertificate.
func (m *ACMEManager) GetTLSConfig() *cryptotls.Config {
	return &cryptotls.Config{
		GetCertificate: m.GetCertificate,
		MinVersion:     cryptotls.VersionTLS12,
	}
}

// ChallengeHandler answers HTTP-01 challenges under ChallengePath.
func (m *ACMEManager) ChallengeHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.URL.Path, ChallengePath)
		if !ok || token == "" || strings.Contains(token, "/") {
			http.NotFound(w, r)
			return
		}
		keyAuth, ok := m.provider.lookup(token)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, keyAuth)
	})
}

func (m *ACMEManager) setCertificate(cert *cryptotls.Certificate) {
	m.mu.Lock()
	m.cert = cert
	m.mu.Unlock()
}

func (m *ACMEManager) certPaths() (string, string) {
	return filepath.Join(m.cfg.StorageDir, m.domain+".crt"), filepath.Join(m.cfg.StorageDir, m.domain+".key")
}

// loadCertificate returns the stored certificate unless it expires within renewBefore.
func (m *ACMEManager) loadCertificate() (*cryptotls.Certificate, error) {
	certFile, keyFile := m.certPaths()
	cert, err := cryptotls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, err
	}
	if !time.Now().Add(renewBefore).Before(leaf.NotAfter) {
		return nil, fmt.Errorf("stored certificate expires %s", leaf.NotAfter)
	}
	return &cert, nil
}

func (m *ACMEManager) storeCertificate(certPEM, keyPEM []byte) error {
	cert, err := cryptotls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	certFile, keyFile := m.certPaths()
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}

	m.setCertificate(&cert)
	m.logger.Info("stored ACME certificate", "domain", m.domain, "cert_file", certFile)
	return nil
}

func (m *ACMEManager) accountPaths() (string, string) {
	return filepath.Join(m.cfg.StorageDir, "account.json"), filepath.Join(m.cfg.StorageDir, "account.key")
}

// loadOrCreateAccount reuses the stored account when its email still matches.
func (m *ACMEManager) loadOrCreateAccount() (*acmeAccount, error) {
	accountFile, keyFile := m.accountPaths()

	if data, err := os.ReadFile(accountFile); err == nil {
		var account acmeAccount
		keyPEM, keyErr := os.ReadFile(keyFile)
		if keyErr == nil && json.Unmarshal(data, &account) == nil && account.Email == m.cfg.Email {
			if key, err := certcrypto.ParsePEMPrivateKey(keyPEM); err == nil {
				account.key = key
				return &account, nil
			}
		}
		m.logger.Warn("ignoring unusable stored ACME account", "account_file", accountFile)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account key: %w", err)
	}
	return &acmeAccount{Email: m.cfg.Email, key: key}, nil
}

func (m *ACMEManager) saveAccount(account *acmeAccount) error {
	accountFile, keyFile := m.accountPaths()

	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(accountFile, data, 0600); err != nil {
		return err
	}
	return os.WriteFile(keyFile, certcrypto.PEMEncode(account.key), 0600)
}
