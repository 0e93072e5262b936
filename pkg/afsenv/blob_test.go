package afsenv_test

import (
	"net/http"
	"testing"

	"github.com/serverlessresearch/afs/pkg/afs"
	"github.com/serverlessresearch/afs/pkg/afsenv"
	"github.com/serverlessresearch/afs/pkg/afstest"
	"github.com/serverlessresearch/afs/pkg/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blobInfoPath = "/v2/instances/" + instanceID + "/blobs/x/info"

var fullInfo = afstest.BlobInfo{
	BlobRecordID: "rec-1",
	BucketName:   "models",
	Endpoint:     "blob.example.com:9000",
	AccessKey:    "ak",
	SecretKey:    "sk",
}

func resolutionStage(t *testing.T, err error) afsenv.Stage {
	t.Helper()
	resErr, ok := err.(*afsenv.BlobResolutionError)
	require.True(t, ok, "expected *BlobResolutionError, got %T", err)
	return resErr.Stage
}

func TestDirectBlobstore(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()

	lookup := v2Env(srv)
	lookup["blobstore"] = `{"credentials":{"endpoint":"e","accessKey":"a","secretKey":"s","bucket_name":"b"},"blob_record_id":"r"}`
	env, _, err := newEnv(t, afsenv.Config{Lookup: lookup})
	require.NoError(t, err)

	assert.Equal(t, afs.BlobCredential{
		BlobRecordID: "r",
		Endpoint:     "e",
		AccessKey:    "a",
		SecretKey:    "s",
		BucketName:   "b",
	}, env.BlobCredential())
	assert.NoError(t, env.BlobResolutionErr())
	assert.NoError(t, env.CheckBlobConnection())

	// Only the version negotiation reaches the server.
	assert.Len(t, srv.Requests(), 1)
}

func TestReferenceBlobstore(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	srv.AddBlob("x", fullInfo)

	lookup := v2Env(srv)
	lookup["blobstore"] = `{"blob_id":"x","blob_record_id":"r"}`
	lookup["openpai_id"] = "pai-7"
	lookup["PAI_JOB_NAME"] = "train-3"
	env, _, err := newEnv(t, afsenv.Config{Lookup: lookup})
	require.NoError(t, err)

	reqs := srv.RequestsTo(blobInfoPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "1234", reqs[0].Query.Get("auth_code"))
	assert.Equal(t, "pai-7", reqs[0].Query.Get("openpai_id"))
	assert.Equal(t, "train-3", reqs[0].Query.Get("pai_job_name"))

	assert.Equal(t, afs.BlobCredential{
		BlobID:       "x",
		BlobRecordID: "rec-1",
		Endpoint:     "blob.example.com:9000",
		AccessKey:    "ak",
		SecretKey:    "sk",
		BucketName:   "models",
	}, env.BlobCredential())
	assert.NoError(t, env.CheckBlobConnection())
}

func TestReferenceBlobstoreWithToken(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	srv.AddBlob("x", fullInfo)

	lookup := v2Env(srv)
	lookup["blobstore"] = `{"blob_id":"x","blob_record_id":"r"}`
	env, _, err := newEnv(t, afsenv.Config{Token: "Bearer t0k", Lookup: lookup})
	require.NoError(t, err)

	reqs := srv.RequestsTo(blobInfoPath)
	require.Len(t, reqs, 1)
	_, hasAuthCode := reqs[0].Query["auth_code"]
	assert.False(t, hasAuthCode)
	assert.Equal(t, "Bearer t0k", reqs[0].Header.Get("Authorization"))
	assert.NoError(t, env.CheckBlobConnection())
}

func TestReferenceBlobstoreNotFound(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()

	lookup := v2Env(srv)
	lookup["blobstore"] = `{"blob_id":"x","blob_record_id":"r"}`
	env, hook, err := newEnv(t, afsenv.Config{Lookup: lookup})
	require.NoError(t, err)

	assert.Len(t, srv.RequestsTo(blobInfoPath), 1)
	assert.True(t, env.BlobCredential().IsZero())
	assert.True(t, loggedContaining(hook, "Not found"))

	resErr := env.BlobResolutionErr()
	assert.Equal(t, afsenv.StageLookup, resolutionStage(t, resErr))
	httpErr, ok := resErr.(*afsenv.BlobResolutionError).Err.(*httpx.HTTPError)
	require.True(t, ok)
	assert.True(t, httpErr.NotFound())
}

func TestReferenceKeepsRecordIDWhenLookupOmitsIt(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	info := fullInfo
	info.BlobRecordID = ""
	srv.AddBlob("x", info)

	lookup := v2Env(srv)
	lookup["blobstore"] = `{"blob_id":"x","blob_record_id":"r"}`
	env, _, err := newEnv(t, afsenv.Config{Lookup: lookup})
	require.NoError(t, err)
	assert.Equal(t, "r", env.BlobCredential().BlobRecordID)
}

func TestMalformedBlobstore(t *testing.T) {
	tests := []struct {
		name  string
		value string
		stage afsenv.Stage
	}{
		{"not json", `{"blob_id":`, afsenv.StageParse},
		{"not an object", `["x"]`, afsenv.StageParse},
		{"credentials a non-empty string", `{"credentials":"abc","blob_record_id":"r"}`, afsenv.StageParse},
		{"credentials a non-empty array", `{"credentials":["e"],"blob_record_id":"r"}`, afsenv.StageParse},
		{"credentials true", `{"credentials":true,"blob_record_id":"r"}`, afsenv.StageParse},
		{"wrong field type", `{"credentials":{"endpoint":1},"blob_record_id":"r"}`, afsenv.StageParse},
		{"reference without blob id", `{"blob_record_id":"r"}`, afsenv.StageFields},
		{"empty credentials need blob id", `{"credentials":{},"blob_record_id":"r"}`, afsenv.StageFields},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := afstest.NewServer()
			defer srv.Close()

			lookup := v2Env(srv)
			lookup["blobstore"] = tc.value
			env, hook, err := newEnv(t, afsenv.Config{Lookup: lookup})
			require.NoError(t, err)

			assert.True(t, env.BlobCredential().IsZero())
			assert.Equal(t, tc.stage, resolutionStage(t, env.BlobResolutionErr()))
			assert.True(t, loggedContaining(hook, "set blob credentials manually"))
			assert.Len(t, srv.Requests(), 1)
		})
	}
}

func TestParseBlobSource(t *testing.T) {
	src, err := afsenv.ParseBlobSource(`{"credentials":null,"blob_id":"x","blob_record_id":"r"}`)
	require.NoError(t, err)
	assert.Equal(t, afsenv.ReferenceSource{BlobID: "x", RecordID: "r"}, src)

	src, err = afsenv.ParseBlobSource(`{"credentials":{"endpoint":"e"},"blob_record_id":"r"}`)
	require.NoError(t, err)
	direct, ok := src.(afsenv.DirectSource)
	require.True(t, ok)
	assert.Equal(t, "r", direct.RecordID)
	assert.Equal(t, "e", direct.Credential.Endpoint)
	assert.Equal(t, []string{"accessKey", "secretKey", "bucketName"}, direct.Credential.Missing())
}

func TestCheckBlobConnectionWithoutBlobstore(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()

	env, _, err := newEnv(t, afsenv.Config{Lookup: v2Env(srv)})
	require.NoError(t, err)

	err = env.CheckBlobConnection()
	require.Error(t, err)
	cfgErr, ok := err.(*afsenv.BlobConfigurationError)
	require.True(t, ok)
	assert.Equal(t, []string{"endpoint", "accessKey", "secretKey", "blobRecordId", "bucketName"}, cfgErr.Missing)
}

func TestEmptyCredentialsSelectReference(t *testing.T) {
	for _, value := range []string{`null`, `""`, `false`, `0`, `[]`, `{}`} {
		t.Run(value, func(t *testing.T) {
			src, err := afsenv.ParseBlobSource(`{"credentials":` + value + `,"blob_id":"x","blob_record_id":"r"}`)
			require.NoError(t, err)
			assert.Equal(t, afsenv.ReferenceSource{BlobID: "x", RecordID: "r"}, src)
		})
	}
}

func TestFalsyCredentialsLookUpReference(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	srv.AddBlob("x", fullInfo)

	lookup := v2Env(srv)
	lookup["blobstore"] = `{"credentials":false,"blob_id":"x","blob_record_id":"r"}`
	env, _, err := newEnv(t, afsenv.Config{Lookup: lookup})
	require.NoError(t, err)

	assert.Len(t, srv.RequestsTo(blobInfoPath), 1)
	assert.NoError(t, env.BlobResolutionErr())
	assert.Equal(t, "models", env.BlobCredential().BucketName)
}
