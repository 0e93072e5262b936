// Package afsenv bootstraps an AFS session: it resolves the endpoint,
// identity and credentials, negotiates the API version with the server, and
// resolves the blob store credentials used by artifact transfers.
package afsenv

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/afs"
	"github.com/serverlessresearch/afs/pkg/httpx"
	"github.com/sirupsen/logrus"
)

// Config carries the explicit arguments of a session. Anything left empty is
// looked up through Lookup.
type Config struct {
	Endpoint   string
	InstanceID string
	AuthCode   string
	// Token, when set, is sent as the Authorization header on every request.
	Token string

	// Lookup defaults to DefaultLookup().
	Lookup Lookup
	// Logger defaults to a new logrus logger.
	Logger afs.Logger
	// HTTPClient is the base of the session client. The session works on a
	// copy with a cloned transport and never modifies it.
	HTTPClient *http.Client

	// VerifyTLS turns certificate verification on. It is off unless set here
	// or through AFS_VERIFY_TLS.
	VerifyTLS bool
	// CABundle names a PEM file of extra trusted roots (AFS_CA_BUNDLE).
	CABundle string
}

// Env is a bootstrapped session. It is immutable once New returns; build a
// new one to re-bootstrap.
type Env struct {
	cfg     afs.SessionConfig
	blob    afs.BlobCredential
	blobErr error

	id     string
	client *httpx.Client
	lookup Lookup
	logger afs.Logger
}

// New resolves the session parameters, negotiates the API version and
// resolves blob credentials. It performs at most two requests. Configuration
// and discovery failures are returned; blob failures only leave the blob
// credential empty.
func New(ctx context.Context, userCfg Config) (*Env, error) {
	lookup := userCfg.Lookup
	if lookup == nil {
		lookup = DefaultLookup()
	}
	id := uuid.New().String()
	var logger afs.Logger = logrus.New()
	if userCfg.Logger != nil {
		logger = userCfg.Logger
	}
	logger = logger.WithFields(logrus.Fields{"module": "afsenv", "session": id})

	params, err := resolveParams(userCfg, lookup)
	if err != nil {
		return nil, err
	}

	client, err := newClient(userCfg, lookup, params, logger)
	if err != nil {
		return nil, err
	}

	env := &Env{
		cfg:    params,
		id:     id,
		client: client,
		lookup: lookup,
		logger: logger,
	}

	info, err := negotiate(ctx, client, params.BaseEndpoint)
	if err != nil {
		return nil, err
	}
	env.cfg = info.apply(env.cfg)

	env.blob, env.blobErr = env.resolveBlobCredential(ctx)

	logger.Infof("Using AFS version %s", env.cfg.PlatformVersion)
	return env, nil
}

// resolveParams merges explicit arguments with the environment.
func resolveParams(userCfg Config, lookup Lookup) (afs.SessionConfig, error) {
	cfg := afs.SessionConfig{
		AFSURL:     userCfg.Endpoint,
		InstanceID: userCfg.InstanceID,
		Token:      userCfg.Token,
		AuthCode:   userCfg.AuthCode,
	}

	cfg.Version = lookupString(lookup, afs.EnvAPIVersion)
	if cfg.Version == "" {
		cfg.Version = lookupString(lookup, afs.EnvVersion)
	}

	// The endpoint and instance travel together: one missing argument means
	// both come from the environment.
	if cfg.AFSURL == "" || cfg.InstanceID == "" {
		cfg.AFSURL = lookupString(lookup, afs.EnvURL)
		cfg.InstanceID = lookupString(lookup, afs.EnvInstanceID)
		if cfg.AFSURL == "" || cfg.InstanceID == "" {
			return afs.SessionConfig{}, errors.Wrapf(ErrConfiguration,
				"environment needs %s=%q, %s=%q", afs.EnvURL, cfg.AFSURL, afs.EnvInstanceID, cfg.InstanceID)
		}
	}

	if cfg.Token == "" && cfg.AuthCode == "" {
		cfg.AuthCode = lookupString(lookup, afs.EnvAuthCode)
	}
	if cfg.Token == "" && cfg.AuthCode == "" {
		return afs.SessionConfig{}, errors.Wrap(ErrAuthenticationConfig, "there is no auth_code or token to verify")
	}

	cfg.BaseEndpoint = httpx.EnsureTrailingSlash(cfg.AFSURL)
	return cfg, nil
}

func newClient(userCfg Config, lookup Lookup, params afs.SessionConfig, logger afs.Logger) (*httpx.Client, error) {
	verify := userCfg.VerifyTLS
	if !verify {
		if raw := lookupString(lookup, afs.EnvVerifyTLS); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid %s", afs.EnvVerifyTLS)
			}
			verify = v
		}
	}
	caBundle := userCfg.CABundle
	if caBundle == "" {
		caBundle = lookupString(lookup, afs.EnvCABundle)
	}

	tlsCfg, err := httpx.TLSConfig(verify, caBundle)
	if err != nil {
		return nil, err
	}
	if !verify {
		logger.Debug("TLS certificate verification is disabled")
	}

	opts := []httpx.Option{
		httpx.WithTLSConfig(tlsCfg),
		httpx.WithLogger(logger),
		httpx.WithHTTPClient(userCfg.HTTPClient),
	}
	if params.Token != "" {
		opts = append(opts, httpx.WithHeader("Authorization", params.Token))
	}
	return httpx.NewClient(opts...), nil
}

// Config returns a copy of the resolved session configuration.
func (e *Env) Config() afs.SessionConfig {
	return e.cfg
}

// Endpoint is the versioned endpoint all calls are made against.
func (e *Env) Endpoint() string {
	return e.cfg.Endpoint
}

// BlobCredential returns the resolved blob credential, possibly empty.
func (e *Env) BlobCredential() afs.BlobCredential {
	return e.blob
}

// BlobResolutionErr reports why the blob credential is empty, if resolution
// was attempted and failed. It is nil when blobstore was not set.
func (e *Env) BlobResolutionErr() error {
	return e.blobErr
}

// CheckBlobConnection fails with a *BlobConfigurationError naming every
// missing field unless the blob credential is complete. Call it before any
// blob store operation.
func (e *Env) CheckBlobConnection() error {
	return e.blob.Check()
}

// Client returns the HTTP client owned by this session.
func (e *Env) Client() *httpx.Client {
	return e.client
}

// SessionID identifies this session in log output.
func (e *Env) SessionID() string {
	return e.id
}

// Logger returns the session logger.
func (e *Env) Logger() afs.Logger {
	return e.logger
}

// Lookup returns the environment capability the session was built from.
func (e *Env) Lookup() Lookup {
	return e.lookup
}
