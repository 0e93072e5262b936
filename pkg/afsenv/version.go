package afsenv

import (
	"context"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/afs"
	"github.com/serverlessresearch/afs/pkg/httpx"
)

// rootInfo is the body served at the server root.
type rootInfo struct {
	APIVersion string `json:"API_version"`
	AFSVersion string `json:"AFS_version"`
}

func (i rootInfo) apply(cfg afs.SessionConfig) afs.SessionConfig {
	cfg.APIVersion = i.APIVersion
	cfg.PlatformVersion = i.AFSVersion
	cfg.Endpoint = cfg.BaseEndpoint + i.APIVersion + "/"
	return cfg
}

// negotiate reads the API and platform versions from the server root.
func negotiate(ctx context.Context, client *httpx.Client, base string) (rootInfo, error) {
	url := httpx.JoinURL(base)
	resp, err := client.Get(ctx, url, nil)
	if err != nil {
		return rootInfo{}, errors.Wrapf(ErrServerDiscovery, "%v", err)
	}
	if err := resp.Err(); err != nil {
		return rootInfo{}, errors.Wrapf(ErrServerDiscovery, "GET %s: %v", url, err)
	}

	var info rootInfo
	if err := resp.DecodeJSON(&info); err != nil {
		return rootInfo{}, errors.Wrapf(ErrServerDiscovery, "GET %s: %v", url, err)
	}
	if info.APIVersion == "" {
		return rootInfo{}, errors.Wrapf(ErrServerDiscovery, "no API_version from %s", url)
	}
	// The platform version is what shows the server itself answered.
	if info.AFSVersion == "" {
		return rootInfo{}, errors.Wrapf(ErrConnectivity, "no AFS_version from %s", url)
	}
	return info, nil
}

// NegotiateVersion asks the server for its versions again and returns the
// configuration those versions produce. The session itself is not changed,
// so repeated calls against the same server answer identically.
func (e *Env) NegotiateVersion(ctx context.Context) (afs.SessionConfig, error) {
	info, err := negotiate(ctx, e.client, e.cfg.BaseEndpoint)
	if err != nil {
		return afs.SessionConfig{}, err
	}
	return info.apply(e.cfg), nil
}
