package credential

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"go.uber.org/zap"
	"software.sslmate.com/src/go-pkcs12"
)

// CertificateError is fatal for the run: the PKCS#12 bundle could not be
// decoded, usually a wrong password or a malformed file. There is no point
// retrying.
type CertificateError struct {
	Err error
}

func (e *CertificateError) Error() string {
	return fmt.Sprintf("credential bundle: %v", e.Err)
}

func (e *CertificateError) Unwrap() error {
	return e.Err
}

type Option func(*Bundle)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bundle) {
		b.logger = logger
	}
}

// Bundle is the TLS client identity extracted from a PKCS#12 file: the leaf
// certificate, its intermediate chain and the private key, PEM-encoded. The
// chain and key are also written to owner-only temp files for tooling that
// wants paths instead of bytes; Close removes them on every exit path so key
// material never outlives the run.
type Bundle struct {
	certPEM []byte
	keyPEM  []byte

	certFile string
	keyFile  string

	cert   tls.Certificate
	logger *zap.Logger
}

// Load decodes raw PKCS#12 bytes into a Bundle. The leaf certificate is
// PEM-encoded first, followed by the intermediates in the order the bundle
// supplies them. The private key is re-encoded unencrypted.
func Load(data []byte, password string, opts ...Option) (*Bundle, error) {
	b := &Bundle{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, &CertificateError{Err: err}
	}

	var certPEM []byte
	certPEM = append(certPEM, pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: leaf.Raw,
	})...)
	for _, c := range chain {
		certPEM = append(certPEM, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: c.Raw,
		})...)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, &CertificateError{Err: err}
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: keyDER,
	})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &CertificateError{Err: err}
	}

	b.certPEM = certPEM
	b.keyPEM = keyPEM
	b.cert = cert

	if err := b.writeFiles(); err != nil {
		b.Close()
		return nil, err
	}

	b.logger.Info("credential bundle loaded",
		zap.String("subject", leaf.Subject.CommonName),
		zap.Int("chain_certs", len(chain)),
		zap.Time("not_after", leaf.NotAfter),
	)

	return b, nil
}

// LoadFile reads a PKCS#12 file from disk and decodes it.
func LoadFile(fpath, password string, opts ...Option) (*Bundle, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, &CertificateError{Err: err}
	}
	return Load(data, password, opts...)
}

// createTemp is os.CreateTemp, swappable in tests to exercise write failures.
var createTemp = os.CreateTemp

// writeFiles spills the chain and key documents to temp files. os.CreateTemp
// creates them 0600, owner-only. The paths are recorded before the writes so
// Close removes a partially-written file too.
func (b *Bundle) writeFiles() error {
	certFile, err := createTemp("", "sirsync-cert-*.pem")
	if err != nil {
		return fmt.Errorf("writing certificate chain: %w", err)
	}
	b.certFile = certFile.Name()
	if _, err := certFile.Write(b.certPEM); err != nil {
		certFile.Close()
		return fmt.Errorf("writing certificate chain: %w", err)
	}
	if err := certFile.Close(); err != nil {
		return fmt.Errorf("writing certificate chain: %w", err)
	}

	keyFile, err := createTemp("", "sirsync-key-*.pem")
	if err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	b.keyFile = keyFile.Name()
	if _, err := keyFile.Write(b.keyPEM); err != nil {
		keyFile.Close()
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := keyFile.Close(); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	return nil
}

// Certificate returns the client certificate for a tls.Config.
func (b *Bundle) Certificate() tls.Certificate {
	return b.cert
}

// CertFile is the path of the PEM chain document, leaf first.
func (b *Bundle) CertFile() string {
	return b.certFile
}

// KeyFile is the path of the unencrypted PEM private key document.
func (b *Bundle) KeyFile() string {
	return b.keyFile
}

func (b *Bundle) CertPEM() []byte {
	return b.certPEM
}

func (b *Bundle) KeyPEM() []byte {
	return b.keyPEM
}

// Close deletes the temp key and certificate material. Safe to call more
// than once and on a nil bundle.
func (b *Bundle) Close() error {
	if b == nil {
		return nil
	}

	var firstErr error
	for _, fpath := range []string{b.certFile, b.keyFile} {
		if fpath == "" {
			continue
		}
		if err := os.Remove(fpath); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	b.certFile = ""
	b.keyFile = ""

	return firstErr
}
