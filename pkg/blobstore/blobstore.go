// Blob store access for a resolved AFS blob credential. Only reachability is
// covered here; transfers belong to the model and artifact APIs.

package blobstore

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/afs"
)

// DefaultRegion is used for signing when none is configured. S3-compatible
// stores generally ignore it.
const DefaultRegion = "us-east-1"

// Options tune the S3 client.
type Options struct {
	Region string
	// InsecureSkipVerify follows the session trust setting.
	InsecureSkipVerify bool
	// HTTPClient replaces the client built from InsecureSkipVerify.
	HTTPClient *http.Client
}

// Client talks to the bucket named in a blob credential.
type Client struct {
	bucket string
	svc    *s3.S3
}

// New builds a Client. The credential must pass afs.BlobCredential.Check.
func New(cred afs.BlobCredential, opts Options) (*Client, error) {
	if err := cred.Check(); err != nil {
		return nil, err
	}

	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}
		httpClient = &http.Client{Transport: tr}
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(cred.AccessKey, cred.SecretKey, ""),
		Endpoint:         aws.String(cred.Endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(true),
		HTTPClient:       httpClient,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create blob store session")
	}

	return &Client{
		bucket: cred.BucketName,
		svc:    s3.New(sess),
	}, nil
}

// Bucket is the bucket this client addresses.
func (c *Client) Bucket() string {
	return c.bucket
}

// Probe checks that the bucket exists and the credentials may access it.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}
	if aerr, ok := err.(awserr.Error); ok {
		return errors.Wrapf(aerr, "bucket %q unreachable (%s)", c.bucket, aerr.Code())
	}
	return errors.Wrapf(err, "bucket %q unreachable", c.bucket)
}
