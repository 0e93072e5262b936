package afsenv

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/afs"
	"github.com/serverlessresearch/afs/pkg/httpx"
	"github.com/sirupsen/logrus"
)

// BlobSource is what the blobstore variable describes: either complete
// credentials (DirectSource) or a blob to look up (ReferenceSource).
type BlobSource interface {
	blobSource()
}

// DirectSource embeds the storage credentials.
type DirectSource struct {
	RecordID   string
	Credential afs.BlobCredential
}

// ReferenceSource names a blob whose credentials are served by AFS.
type ReferenceSource struct {
	BlobID   string
	RecordID string
}

func (DirectSource) blobSource()    {}
func (ReferenceSource) blobSource() {}

type blobstoreDoc struct {
	BlobID       string          `json:"blob_id"`
	BlobRecordID string          `json:"blob_record_id"`
	Credentials  json.RawMessage `json:"credentials"`
}

type directCredentials struct {
	Endpoint   string `json:"endpoint"`
	AccessKey  string `json:"accessKey"`
	SecretKey  string `json:"secretKey"`
	BucketName string `json:"bucket_name"`
}

// blobInfo is the body of the blob info endpoint.
type blobInfo struct {
	BlobRecordID string `json:"blob_record_id"`
	BucketName   string `json:"bucket_name"`
	Endpoint     string `json:"endpoint"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
}

// ParseBlobSource decodes the blobstore JSON document. A non-empty object
// under "credentials" makes it a DirectSource; a missing or empty value
// (null, false, 0, "", [] or {}) makes it a ReferenceSource, which then
// needs a blob_id. Failures are *BlobResolutionError.
func ParseBlobSource(raw string) (BlobSource, error) {
	var doc blobstoreDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &BlobResolutionError{Stage: StageParse, Err: err}
	}

	if hasCredentials(doc.Credentials) {
		var creds directCredentials
		if err := json.Unmarshal(doc.Credentials, &creds); err != nil {
			return nil, &BlobResolutionError{Stage: StageParse, Err: errors.Wrap(err, "credentials")}
		}
		return DirectSource{
			RecordID: doc.BlobRecordID,
			Credential: afs.BlobCredential{
				BlobRecordID: doc.BlobRecordID,
				Endpoint:     creds.Endpoint,
				AccessKey:    creds.AccessKey,
				SecretKey:    creds.SecretKey,
				BucketName:   creds.BucketName,
			},
		}, nil
	}

	if doc.BlobID == "" {
		return nil, &BlobResolutionError{Stage: StageFields, Err: errors.New("blob_id is required without credentials")}
	}
	return ReferenceSource{BlobID: doc.BlobID, RecordID: doc.BlobRecordID}, nil
}

// hasCredentials reports whether credentials holds a non-empty value. Null,
// false, 0, "" and empty arrays or objects all select the reference branch;
// any other value that is not an object fails to decode later.
func hasCredentials(raw json.RawMessage) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch c := v.(type) {
	case nil:
		return false
	case bool:
		return c
	case float64:
		return c != 0
	case string:
		return c != ""
	case []interface{}:
		return len(c) > 0
	case map[string]interface{}:
		return len(c) > 0
	}
	return true
}

// resolveBlobCredential turns the blobstore variable into credentials. The
// returned credential is empty whenever the error is non-nil.
func (e *Env) resolveBlobCredential(ctx context.Context) (afs.BlobCredential, error) {
	raw, ok := e.lookup.LookupEnv(afs.EnvBlobstore)
	if !ok {
		e.logger.Info("blobstore is not set, please set blob credentials manually")
		return afs.BlobCredential{}, nil
	}

	src, err := ParseBlobSource(raw)
	if err != nil {
		e.logger.WithError(err).Info("The env blobstore format is invalid, please set blob credentials manually")
		return afs.BlobCredential{}, err
	}

	switch s := src.(type) {
	case DirectSource:
		return s.Credential, nil
	case ReferenceSource:
		cred, err := e.lookupBlob(ctx, s)
		if err != nil {
			return afs.BlobCredential{}, err
		}
		return cred, nil
	default:
		return afs.BlobCredential{}, &BlobResolutionError{Stage: StageParse, Err: errors.Errorf("unknown blob source %T", src)}
	}
}

// lookupBlob fetches the credentials of a referenced blob.
func (e *Env) lookupBlob(ctx context.Context, ref ReferenceSource) (afs.BlobCredential, error) {
	target := httpx.JoinURL(e.cfg.Endpoint, "instances", e.cfg.InstanceID, "blobs", ref.BlobID, "info")

	params := url.Values{}
	if v := lookupString(e.lookup, afs.EnvOpenPAIID); v != "" {
		params.Set("openpai_id", v)
	}
	if v := lookupString(e.lookup, afs.EnvPAIJobName); v != "" {
		params.Set("pai_job_name", v)
	}
	// Token sessions authenticate through the header.
	if e.cfg.Token == "" {
		params.Set("auth_code", e.cfg.AuthCode)
	}

	resp, err := e.client.Get(ctx, target, params)
	if err != nil {
		e.logger.WithError(err).Info("blob info request failed")
		return afs.BlobCredential{}, &BlobResolutionError{Stage: StageLookup, Err: err}
	}
	if err := resp.Err(); err != nil {
		e.logger.WithFields(logrus.Fields{"url": target, "status": resp.StatusCode}).
			Infof("Not found %s, %s", target, string(resp.Body))
		return afs.BlobCredential{}, &BlobResolutionError{Stage: StageLookup, Err: err}
	}

	var info blobInfo
	if err := resp.DecodeJSON(&info); err != nil {
		e.logger.WithError(err).Info("blob info response is not valid")
		return afs.BlobCredential{}, &BlobResolutionError{Stage: StageLookup, Err: err}
	}

	recordID := info.BlobRecordID
	if recordID == "" {
		recordID = ref.RecordID
	}
	return afs.BlobCredential{
		BlobID:       ref.BlobID,
		BlobRecordID: recordID,
		Endpoint:     info.Endpoint,
		AccessKey:    info.AccessKey,
		SecretKey:    info.SecretKey,
		BucketName:   info.BucketName,
	}, nil
}
