package afsenv

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/afs"
)

// Error kinds. Use errors.Cause (or errors.Is) to tell them apart; the
// returned errors carry extra context around these values.
var (
	// ErrConfiguration means the endpoint or the instance id could not be resolved.
	ErrConfiguration = errors.New("missing endpoint or instance identity")
	// ErrAuthenticationConfig means neither a token nor an auth code is available.
	ErrAuthenticationConfig = errors.New("no credential available")
	// ErrServerDiscovery means the server root could not be read or did not
	// report an API version.
	ErrServerDiscovery = errors.New("AFS server discovery failed")
	// ErrConnectivity means the server root answered with an API version but
	// without a platform version.
	ErrConnectivity = errors.New("cannot fetch AFS server")
	// ErrBucketNotFound means the bucket listing call did not succeed.
	ErrBucketNotFound = errors.New("bucket info not found")
)

// BlobConfigurationError is returned by CheckBlobConnection.
type BlobConfigurationError = afs.BlobConfigurationError

// Stage identifies where blob credential resolution stopped.
type Stage int

const (
	// StageParse: the blobstore value is not a JSON object of the expected shape.
	StageParse Stage = iota + 1
	// StageFields: a field needed to continue is missing.
	StageFields
	// StageLookup: the blob info request failed or was rejected.
	StageLookup
)

func (s Stage) String() string {
	switch s {
	case StageParse:
		return "parse"
	case StageFields:
		return "fields"
	case StageLookup:
		return "lookup"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// BlobResolutionError records why blob credentials were left empty. It never
// fails bootstrap; Env.BlobResolutionErr exposes it for diagnostics.
type BlobResolutionError struct {
	Stage Stage
	Err   error
}

func (e *BlobResolutionError) Error() string {
	return fmt.Sprintf("blobstore %s: %v", e.Stage, e.Err)
}

func (e *BlobResolutionError) Cause() error  { return e.Err }
func (e *BlobResolutionError) Unwrap() error { return e.Err }
