package httpx

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"

	"github.com/pkg/errors"
)

// TLSConfig builds the trust configuration for a session. When verify is
// false certificates are accepted unchecked and caBundle is ignored. When
// caBundle names a PEM file its certificates are trusted in addition to the
// system roots.
func TLSConfig(verify bool, caBundle string) (*tls.Config, error) {
	if !verify {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	cfg := &tls.Config{}
	if caBundle == "" {
		return cfg, nil
	}

	pem, err := ioutil.ReadFile(caBundle)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read CA bundle")
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Errorf("no certificates found in %s", caBundle)
	}
	cfg.RootCAs = pool
	return cfg, nil
}
