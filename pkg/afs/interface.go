// Standard interfaces and datatypes for the AFS client.
// Terms:
//   "session" : A bootstrapped connection to one AFS instance (endpoint, identity, versions)
//   "blob store" : The S3-compatible object storage holding model and artifact payloads
package afs

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface used throughout the client. Any logrus logger
// or entry satisfies it.
type Logger interface {
	logrus.FieldLogger
}

// Environment variables consulted while bootstrapping a session.
const (
	EnvURL        = "afs_url"
	EnvInstanceID = "instance_id"
	EnvAuthCode   = "auth_code"
	EnvAPIVersion = "AFS_API_VERSION"
	EnvVersion    = "version"
	EnvBlobstore  = "blobstore"
	EnvOpenPAIID  = "openpai_id"
	EnvPAIJobName = "PAI_JOB_NAME"
	EnvCABundle   = "AFS_CA_BUNDLE"
	EnvVerifyTLS  = "AFS_VERIFY_TLS"
)

// EnvNames lists every variable above, in a stable order.
var EnvNames = []string{
	EnvURL, EnvInstanceID, EnvAuthCode, EnvAPIVersion, EnvVersion,
	EnvBlobstore, EnvOpenPAIID, EnvPAIJobName, EnvCABundle, EnvVerifyTLS,
}

// SessionConfig is the resolved, immutable view of a bootstrapped session.
type SessionConfig struct {
	// Endpoint is BaseEndpoint extended with the negotiated API version,
	// e.g. "https://afs.example.com/v2/". All further calls use it.
	Endpoint string
	// BaseEndpoint is the supplied endpoint normalized to one trailing slash.
	BaseEndpoint string
	// AFSURL is the endpoint exactly as supplied.
	AFSURL     string
	InstanceID string

	AuthCode string
	Token    string

	// Version is the client-requested API version hint; empty means no preference.
	Version         string
	APIVersion      string
	PlatformVersion string
}

// BlobCredential holds what is needed to reach the blob store. The four
// storage fields are either all set or all empty after resolution.
type BlobCredential struct {
	BlobID       string
	BlobRecordID string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	BucketName   string
}

// Field names reported by Check, in reporting order.
const (
	FieldEndpoint     = "endpoint"
	FieldAccessKey    = "accessKey"
	FieldSecretKey    = "secretKey"
	FieldBlobRecordID = "blobRecordId"
	FieldBucketName   = "bucketName"
)

// Missing returns the names of the required fields that are empty.
func (c BlobCredential) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{FieldEndpoint, c.Endpoint},
		{FieldAccessKey, c.AccessKey},
		{FieldSecretKey, c.SecretKey},
		{FieldBlobRecordID, c.BlobRecordID},
		{FieldBucketName, c.BucketName},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Check fails with a *BlobConfigurationError when any required field is empty.
func (c BlobCredential) Check() error {
	if missing := c.Missing(); len(missing) > 0 {
		return &BlobConfigurationError{Missing: missing}
	}
	return nil
}

// IsZero reports whether nothing was resolved.
func (c BlobCredential) IsZero() bool {
	return c == BlobCredential{}
}

// BlobConfigurationError is returned by the connectivity check when the blob
// credential set is incomplete.
type BlobConfigurationError struct {
	Missing []string
}

func (e *BlobConfigurationError) Error() string {
	return "incomplete blob credential, missing: " + strings.Join(e.Missing, ", ")
}
