package cmd

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/afs"
	"github.com/serverlessresearch/afs/pkg/afsenv"
	"github.com/serverlessresearch/afs/pkg/afstest"
	"github.com/serverlessresearch/afs/pkg/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) (string, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "afs-cmd")
	require.NoError(t, err)
	path := filepath.Join(dir, "afs.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(body), 0600))
	return path, func() { os.RemoveAll(dir) }
}

func baseConfig(srv *afstest.Server) string {
	return fmt.Sprintf("afs_url: %s\ninstance_id: 1234-4567-7890\nauth_code: \"1234\"\n", srv.URL)
}

// clearEnv unsets every AFS variable so only the config file under test is
// seen, and returns a function restoring the previous values.
func clearEnv() func() {
	saved := make(map[string]string)
	for _, name := range afs.EnvNames {
		if v, ok := os.LookupEnv(name); ok {
			saved[name] = v
			os.Unsetenv(name)
		}
	}
	return func() {
		for name, v := range saved {
			os.Setenv(name, v)
		}
	}
}

func run(args ...string) (string, error) {
	defer clearEnv()()

	rootConfig.cfgFile = ""
	rootConfig.logLevel = "error"
	rootConfig.verifyTLS = false
	rootConfig.caBundle = ""
	rootConfig.endpoint = ""
	rootConfig.instanceID = ""
	rootConfig.authCode = ""
	rootConfig.token = ""
	blobCheckConfig.probe = false
	blobCheckConfig.region = blobstore.DefaultRegion
	logger.Out = ioutil.Discard

	var buf bytes.Buffer
	rootCmd.SetOutput(&buf)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestEnvCommand(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	path, cleanup := writeConfig(t, baseConfig(srv))
	defer cleanup()

	out, err := run("--config", path, "env")
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL+"/v2/")
	assert.Contains(t, out, "platform version: 2.0.2")
	assert.Contains(t, out, "auth:             auth_code")
	assert.Contains(t, out, "blob:             not configured")
}

func TestEnvCommandWithToken(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	path, cleanup := writeConfig(t, fmt.Sprintf("afs_url: %s\ninstance_id: i-1\n", srv.URL))
	defer cleanup()

	out, err := run("--config", path, "--token", "Bearer t0k", "env")
	require.NoError(t, err)
	assert.Contains(t, out, "auth:             token")
	assert.Equal(t, "Bearer t0k", srv.RequestsTo("/")[0].Header.Get("Authorization"))
}

func TestMissingEndpointFailsBootstrap(t *testing.T) {
	path, cleanup := writeConfig(t, "instance_id: i-1\nauth_code: c\n")
	defer cleanup()

	_, err := run("--config", path, "env")
	require.Error(t, err)
	assert.Equal(t, afsenv.ErrConfiguration, errors.Cause(err))
}

func TestBlobCheckWithoutCredentials(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	path, cleanup := writeConfig(t, baseConfig(srv))
	defer cleanup()

	_, err := run("--config", path, "blob", "check")
	require.Error(t, err)
	cfgErr, ok := err.(*afsenv.BlobConfigurationError)
	require.True(t, ok)
	assert.Len(t, cfgErr.Missing, 5)
}

func TestBlobCheckProbe(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	store := afstest.NewBlobStore("models")
	defer store.Close()

	blob := fmt.Sprintf(`{"credentials":{"endpoint":"%s","accessKey":"a","secretKey":"s","bucket_name":"models"},"blob_record_id":"r"}`, store.URL)
	path, cleanup := writeConfig(t, baseConfig(srv)+fmt.Sprintf("blobstore: '%s'\n", blob))
	defer cleanup()

	out, err := run("--config", path, "blob", "check", "--probe")
	require.NoError(t, err)
	assert.Contains(t, out, "blob credentials complete for bucket models")
	assert.Contains(t, out, "bucket models reachable")
	assert.Equal(t, 1, store.HeadRequests())
}

func TestBucketCommand(t *testing.T) {
	srv := afstest.NewServer()
	defer srv.Close()
	srv.SetBucket(map[string]string{"name": "models"})
	path, cleanup := writeConfig(t, baseConfig(srv))
	defer cleanup()

	out, err := run("--config", path, "bucket")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"models"}`, out)
}

func TestProcessEnvironmentDoesNotLeakIntoRun(t *testing.T) {
	restore := clearEnv()
	defer restore()
	os.Setenv(afs.EnvURL, "http://env.invalid")
	os.Setenv(afs.EnvBlobstore, `{"blob_id":"from-env"}`)
	defer os.Unsetenv(afs.EnvURL)
	defer os.Unsetenv(afs.EnvBlobstore)

	srv := afstest.NewServer()
	defer srv.Close()
	path, cleanup := writeConfig(t, baseConfig(srv))
	defer cleanup()

	out, err := run("--config", path, "env")
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL+"/v2/")
	assert.Contains(t, out, "blob:             not configured")
	assert.Equal(t, "http://env.invalid", os.Getenv(afs.EnvURL))
}
