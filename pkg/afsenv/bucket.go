package afsenv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/httpx"
)

// BlobBucket lists the blob bucket registered for the AFS deployment. It
// calls the unversioned info endpoint with the session auth code and returns
// the "bucket" value as raw JSON.
func (e *Env) BlobBucket(ctx context.Context) (json.RawMessage, error) {
	target := httpx.JoinURL(e.cfg.AFSURL, "info", "bucket")
	params := url.Values{}
	if e.cfg.AuthCode != "" {
		params.Set("auth_code", e.cfg.AuthCode)
	}

	resp, err := e.client.Get(ctx, target, params)
	if err != nil {
		return nil, errors.Wrapf(ErrBucketNotFound, "%v", err)
	}
	if resp.StatusCode != http.StatusOK {
		e.logger.Infof("Not found %s, %s", target, string(resp.Body))
		return nil, errors.Wrapf(ErrBucketNotFound, "GET %s: status %d", target, resp.StatusCode)
	}

	var body struct {
		Bucket json.RawMessage `json:"bucket"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, errors.Wrapf(ErrBucketNotFound, "GET %s: %v", target, err)
	}
	if len(body.Bucket) == 0 {
		return nil, errors.Wrapf(ErrBucketNotFound, "GET %s: response has no bucket", target)
	}
	return body.Bucket, nil
}
